package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/m3u8gen/internal/domain"
)

// emitReport 输出运行结果：
// - stdout 是 TTY：摘要 + 问题条目表格
// - stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）
func emitReport(stdout, stderr io.Writer, tty bool, rr domain.RunReport) {
	if tty {
		fmt.Fprintln(stdout, summaryLine(rr))
		if t := problemTable(rr); t != nil {
			t.SetOutputMirror(stdout)
			t.Render()
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	line := fmt.Sprintf("完成：rows=%d captured=%d missing=%d skipped=%d unreachable=%d",
		s.Rows, s.Captured, s.Missing, s.Skipped, s.Unreachable,
	)
	if rr.ErrorCode != "" {
		line += fmt.Sprintf(" error=%s: %s", rr.ErrorCode, truncate(rr.ErrorMsg, 160))
	}
	return line
}

// problemTable 列出未拿到可用 URL 的条目；没有时返回 nil。
func problemTable(rr domain.RunReport) table.Writer {
	var rows []table.Row
	for _, it := range rr.Items {
		if it.Status == domain.StatusCaptured {
			continue
		}
		rows = append(rows, table.Row{it.Index, truncate(it.Title, 60), statusLabel(it.Status), it.ErrorCode, truncate(it.ErrorMsg, 80)})
	}
	if len(rows) == 0 {
		return nil
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "标题", "状态", "错误码", "说明"})
	t.AppendRows(rows)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return t
}

func statusLabel(status string) string {
	switch status {
	case domain.StatusCaptured:
		return "OK"
	case domain.StatusMissing:
		return "MISS"
	case domain.StatusSkipped:
		return "SKIP"
	case domain.StatusUnreachable:
		return "DEAD"
	default:
		return strings.ToUpper(status)
	}
}

// failureReport 为整次运行失败（配置、浏览器、页面）生成一个只带错误的报告。
func failureReport(mode, url, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Mode:       mode,
		URL:        url,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

// isTTY 报告 w 是否为终端；非 *os.File（例如测试里的 buffer）一律视为非终端。
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
