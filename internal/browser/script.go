package browser

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// clickScript 生成点击脚本；选择器经 JSON 编码后嵌入，避免引号注入。
// 脚本返回 true 表示已点击，false 表示元素不存在。
func clickScript(rowSelector, titleSelector string, ordinal int) (string, error) {
	if ordinal < 0 {
		return "", fmt.Errorf("行序号不能为负数：%d", ordinal)
	}
	row, err := jsString(rowSelector)
	if err != nil {
		return "", err
	}
	title, err := jsString(titleSelector)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
  const row = document.querySelectorAll(%s)[%d];
  if (!row) return false;
  const el = row.querySelector(%s);
  if (!el) return false;
  el.click();
  return true;
})()`, row, ordinal, title), nil
}

// jsString 把 s 编码为 JS 字符串字面量（保留 > 等字符，便于排查）。
func jsString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

const (
	// 资源缓冲区默认只有 250 条，长课程会被挤满。
	perfPrepareScript = `performance.setResourceTimingBufferSize(100000); true`
	perfEntriesScript = `performance.getEntriesByType("resource").map(e => ({name: e.name, type: e.initiatorType}))`
	perfClearScript   = `performance.clearResourceTimings(); true`
)
