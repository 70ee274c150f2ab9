package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ModeActive  = "active"
	ModePassive = "passive"
)

const (
	StatusCaptured    = "captured"
	StatusMissing     = "missing"
	StatusSkipped     = "skipped"
	StatusUnreachable = "unreachable"
)

const (
	ErrCodeTimeout         = "resource_timeout"
	ErrCodeClickFailed     = "click_failed"
	ErrCodeCanceled        = "canceled"
	ErrCodeNoTitle         = "missing_title"
	ErrCodeProbeFailed     = "probe_failed"
	ErrCodeBrowserFailed   = "browser_failed"
	ErrCodeDeliverFailed   = "deliver_failed"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
	ErrCodeNothingCaptured = "nothing_captured"
)

// RunReport 是对外稳定输出（stdout JSON / cache/reports/*.json）的结构。
type RunReport struct {
	RunID       string `json:"run_id"`
	Mode        string `json:"mode"`
	URL         string `json:"url"`
	CourseTitle string `json:"course_title"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Output 是命令文件的最终路径；落盘失败时为空。
	Output    string `json:"output"`
	Clipboard bool   `json:"clipboard"`

	// ErrorCode/ErrorMsg 描述导致整次运行失败的错误（配置、浏览器等）；逐行错误记录在 Items 中。
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Rows        int `json:"rows"`
	Captured    int `json:"captured"`
	Missing     int `json:"missing"`
	Skipped     int `json:"skipped"`
	Unreachable int `json:"unreachable"`
}

type ItemResult struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	URL   string `json:"url"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// ItemFromEntry 把捕获结果映射为 report 条目。
func ItemFromEntry(e CapturedEntry) ItemResult {
	it := ItemResult{
		Index:  e.Index,
		Title:  e.Title,
		URL:    e.URL,
		Status: StatusCaptured,
	}
	if e.Found {
		return it
	}
	it.Status = StatusMissing
	switch e.Reason {
	case ReasonClickFailed:
		it.ErrorCode = ErrCodeClickFailed
		it.ErrorMsg = "点击标题失败（元素可能已从页面移除）"
	case ReasonCanceled:
		it.ErrorCode = ErrCodeCanceled
		it.ErrorMsg = "运行被中断，该行未处理"
	default:
		it.ErrorCode = ErrCodeTimeout
		it.ErrorMsg = "等待清单请求超时"
	}
	return it
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 按 index 稳定排序（index 相同保持处理顺序）
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Index < r.Items[j].Index
	})

	s := ReportSummary{Rows: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusCaptured:
			s.Captured++
		case StatusMissing:
			s.Missing++
		case StatusSkipped:
			s.Skipped++
		case StatusUnreachable:
			s.Unreachable++
		}
	}
	r.Summary = s
}

// OK 表示运行本身没有失败，且所有可处理的行都拿到了可用 URL。
func (r RunReport) OK() bool {
	return r.ErrorCode == "" && r.Summary.Missing == 0 && r.Summary.Unreachable == 0
}

// MarshalJSON 保证 items 为空时输出 [] 而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	return json.Marshal(a)
}
