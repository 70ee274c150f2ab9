package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/export"
)

type stubClipboard struct {
	text string
	err  error
}

func (c *stubClipboard) WriteAll(s string) error {
	if c.err != nil {
		return c.err
	}
	c.text = s
	return nil
}

// blockedOutDir 返回一个无法创建的输出目录（父路径是普通文件），root 用户下同样有效。
func blockedOutDir(t *testing.T) string {
	t.Helper()
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	return filepath.Join(blocker, "out")
}

func deliverFixture() (config.EffectiveConfig, *domain.CommandBuffer) {
	buf := domain.NewCommandBuffer("Topic Sub Topic")
	buf.Append(domain.Captured(1, "Intro", "http://x/1/240p.m3u8"))
	eff := config.EffectiveConfig{Program: export.DefaultProgram, Missing: export.MissingPlaceholder}
	return eff, buf
}

func TestDeliverCommand_WritesFile(t *testing.T) {
	eff, buf := deliverFixture()
	eff.OutDir = t.TempDir()
	clip := &stubClipboard{}
	var stdout, stderr bytes.Buffer
	var rr domain.RunReport

	if !deliverCommand(&stdout, &stderr, false, eff, clip, buf, export.SuffixActive, &rr) {
		t.Fatalf("写入成功时应返回 true（stderr=%q）", stderr.String())
	}
	if want := filepath.Join(eff.OutDir, "Topic_Sub_Topic_command.txt"); rr.Output != want || rr.Clipboard {
		t.Fatalf("交付结果不正确：output=%q clipboard=%v", rr.Output, rr.Clipboard)
	}
	if clip.text != "" || stdout.Len() != 0 || rr.ErrorCode != "" {
		t.Fatalf("写入成功时不应使用剪贴板或输出命令：clip=%q stdout=%q rr=%+v", clip.text, stdout.String(), rr)
	}
}

func TestDeliverCommand_ClipboardFallback(t *testing.T) {
	eff, buf := deliverFixture()
	eff.OutDir = blockedOutDir(t)
	clip := &stubClipboard{}
	var stdout, stderr bytes.Buffer
	var rr domain.RunReport

	if !deliverCommand(&stdout, &stderr, false, eff, clip, buf, export.SuffixActive, &rr) {
		t.Fatalf("剪贴板成功时应返回 true")
	}
	if !rr.Clipboard || rr.Output != "" || rr.ErrorCode != "" {
		t.Fatalf("报告应标记剪贴板交付：%+v", rr)
	}
	if !strings.Contains(clip.text, `--url "http://x/1/240p.m3u8|1.Intro"`) {
		t.Fatalf("剪贴板内容不正确：%q", clip.text)
	}
	if !strings.HasPrefix(stderr.String(), "注意：") || stdout.Len() != 0 {
		t.Fatalf("应只在 stderr 提示：stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestDeliverCommand_BothFailPrintsCommand(t *testing.T) {
	eff, buf := deliverFixture()
	eff.OutDir = blockedOutDir(t)
	clip := &stubClipboard{err: errors.New("no display")}

	// 非 TTY：stdout 留给 JSON，命令走 stderr。
	var stdout, stderr bytes.Buffer
	var rr domain.RunReport
	if deliverCommand(&stdout, &stderr, false, eff, clip, buf, export.SuffixActive, &rr) {
		t.Fatalf("文件与剪贴板都失败时应返回 false")
	}
	if rr.ErrorCode != domain.ErrCodeDeliverFailed || rr.OK() {
		t.Fatalf("报告应带 deliver_failed：%+v", rr)
	}
	if stdout.Len() != 0 {
		t.Fatalf("非 TTY 时 stdout 不应出现命令：%q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "交付失败") || !strings.Contains(stderr.String(), "--folder \"Topic Sub Topic\"") {
		t.Fatalf("stderr 应包含失败原因与完整命令：%q", stderr.String())
	}

	// TTY：命令直接打印在 stdout。
	stdout.Reset()
	stderr.Reset()
	rr = domain.RunReport{}
	deliverCommand(&stdout, &stderr, true, eff, clip, buf, export.SuffixActive, &rr)
	if !strings.Contains(stdout.String(), "--folder \"Topic Sub Topic\"") || strings.Contains(stderr.String(), "--folder") {
		t.Fatalf("TTY 时命令应打印在 stdout：stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestExecute_RunMissingConfigEmitsSingleJSON(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "nope.json5")
	code, stdout, stderr := runCLI(t, "run", "--config", cfg, "https://example.com/course")
	if code != 1 {
		t.Fatalf("期望退出码 1，实际 %d（stderr=%q）", code, stderr)
	}

	dec := json.NewDecoder(strings.NewReader(stdout))
	var rr domain.RunReport
	if err := dec.Decode(&rr); err != nil {
		t.Fatalf("stdout 应是 RunReport JSON：%v\n%s", err, stdout)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		t.Fatalf("stdout 只能有一个 JSON 对象，多出：%s（err=%v）", extra, err)
	}
	if rr.ErrorCode != "config_not_found" || rr.Mode != domain.ModeActive || rr.URL != "https://example.com/course" {
		t.Fatalf("报告不正确：%+v", rr)
	}
	if !strings.Contains(stderr, "error=config_not_found") {
		t.Fatalf("stderr 应包含摘要：%q", stderr)
	}
}
