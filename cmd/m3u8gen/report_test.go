package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/m3u8gen/internal/domain"
)

func sampleReport() domain.RunReport {
	rr := domain.RunReport{
		Mode:        domain.ModeActive,
		CourseTitle: "Course",
		Items: []domain.ItemResult{
			domain.ItemFromEntry(domain.Captured(1, "Intro", "http://x/240p.m3u8")),
			domain.ItemFromEntry(domain.Missing(2, "Basics", domain.ReasonClickFailed)),
		},
	}
	rr.Finalize()
	return rr
}

func TestEmitReport_NonTTYWritesSingleJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	emitReport(&stdout, &stderr, false, sampleReport())

	dec := json.NewDecoder(&stdout)
	var got domain.RunReport
	if err := dec.Decode(&got); err != nil {
		t.Fatalf("stdout 应是 RunReport JSON：%v", err)
	}
	if dec.More() {
		t.Fatalf("stdout 只能有一个 JSON 对象")
	}
	if got.Summary.Captured != 1 || got.Summary.Missing != 1 {
		t.Fatalf("summary 不正确：%+v", got.Summary)
	}
	if !strings.Contains(stderr.String(), "captured=1 missing=1") {
		t.Fatalf("摘要应写到 stderr：%q", stderr.String())
	}
}

func TestEmitReport_TTYListsProblems(t *testing.T) {
	var stdout, stderr bytes.Buffer
	emitReport(&stdout, &stderr, true, sampleReport())

	out := stdout.String()
	if !strings.Contains(out, "完成：rows=2 captured=1 missing=1") {
		t.Fatalf("缺少摘要：\n%s", out)
	}
	if !strings.Contains(out, "MISS") || !strings.Contains(out, domain.ErrCodeClickFailed) {
		t.Fatalf("表格应列出缺失条目：\n%s", out)
	}
	if strings.Contains(out, "Intro") {
		t.Fatalf("成功条目不应出现在问题表格中：\n%s", out)
	}
	if stderr.Len() != 0 {
		t.Fatalf("TTY 模式不应写 stderr：%q", stderr.String())
	}
}

func TestFailureReport(t *testing.T) {
	rr := failureReport(domain.ModeActive, "https://x", domain.ErrCodeBrowserFailed, errors.New("boom"))
	if rr.OK() || rr.ErrorCode != domain.ErrCodeBrowserFailed || rr.ErrorMsg != "boom" {
		t.Fatalf("失败报告不正确：%+v", rr)
	}
	if !strings.Contains(summaryLine(rr), "error=browser_failed: boom") {
		t.Fatalf("摘要应包含运行级错误：%q", summaryLine(rr))
	}
}
