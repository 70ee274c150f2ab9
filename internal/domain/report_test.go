package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Mode:       ModeActive,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Index: 3, Status: StatusMissing},
			{Index: 1, Status: StatusCaptured},
			{Index: 2, Status: StatusSkipped},
			{Index: 4, Status: StatusUnreachable},
		},
	}

	r.Finalize()

	for i, it := range r.Items {
		if it.Index != i+1 {
			t.Fatalf("items 排序不符合契约：第 %d 项 index=%d", i, it.Index)
		}
	}
	want := ReportSummary{Rows: 4, Captured: 1, Missing: 1, Skipped: 1, Unreachable: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：got=%+v want=%+v", r.Summary, want)
	}
	if r.OK() {
		t.Fatalf("存在 missing/unreachable 时 OK() 应为 false")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_MarshalJSON_EmptyItems(t *testing.T) {
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) {
		t.Fatalf("空 items 应输出 []：%s", string(b))
	}
}

func TestItemFromEntry_MissingReasons(t *testing.T) {
	cases := map[string]string{
		ReasonTimeout:     ErrCodeTimeout,
		ReasonClickFailed: ErrCodeClickFailed,
		ReasonCanceled:    ErrCodeCanceled,
	}
	for reason, code := range cases {
		it := ItemFromEntry(Missing(7, "T", reason))
		if it.Status != StatusMissing || it.ErrorCode != code {
			t.Fatalf("reason=%s：期望 missing/%s，实际 %s/%s", reason, code, it.Status, it.ErrorCode)
		}
		if it.Index != 7 || it.Title != "T" || it.URL != "" {
			t.Fatalf("条目字段不正确：%+v", it)
		}
	}

	ok := ItemFromEntry(Captured(1, "Intro", "http://x/240p.m3u8"))
	if ok.Status != StatusCaptured || ok.ErrorCode != "" {
		t.Fatalf("成功条目不应带错误码：%+v", ok)
	}
}

func TestCommandBuffer_AppendKeepsOrderAndCopies(t *testing.T) {
	b := NewCommandBuffer("Course")
	if b.ID == "" {
		t.Fatalf("buffer 应带 run id")
	}
	b.Append(Captured(2, "B", "u2"))
	b.Append(Missing(1, "A", ReasonTimeout))

	es := b.Entries()
	if len(es) != 2 || es[0].Index != 2 || es[1].Index != 1 {
		t.Fatalf("应保持处理顺序：%+v", es)
	}
	es[0].Title = "changed"
	if b.Entries()[0].Title != "B" {
		t.Fatalf("Entries 应返回副本")
	}
	if b.Missing() != 1 {
		t.Fatalf("期望 missing=1，实际 %d", b.Missing())
	}
	if got := b.Entries()[1].DisplayURL(); got != URLNotFound {
		t.Fatalf("缺失条目应显示占位符，实际 %q", got)
	}
}

func TestRunReport_OK_RunLevelError(t *testing.T) {
	r := RunReport{ErrorCode: ErrCodeBrowserFailed, ErrorMsg: "启动浏览器失败"}
	r.Finalize()
	if r.OK() {
		t.Fatalf("运行级错误时 OK() 应为 false")
	}
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if bytes.Contains(b, []byte(`"error_code"`)) {
		t.Fatalf("没有运行级错误时不应输出 error_code：%s", string(b))
	}
}
