package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/John-Robertt/m3u8gen/internal/resource"
)

// PerformanceLog 以页面自身的 resource timing 缓冲区作为资源记录（performance 观测方式）。
// 与 Journal 不同，它只能看到当前文档发起的请求，且跨导航不保留。
type PerformanceLog struct {
	s *Session
}

var _ resource.Log = (*PerformanceLog)(nil)

// PerformanceLog 返回绑定到当前标签页的 performance 记录，并扩大缓冲区。
func (s *Session) PerformanceLog(ctx context.Context) (*PerformanceLog, error) {
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(perfPrepareScript, &ok)); err != nil {
		return nil, err
	}
	return &PerformanceLog{s: s}, nil
}

type perfEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (p *PerformanceLog) Entries(ctx context.Context) ([]resource.Entry, error) {
	var raw []perfEntry
	if err := p.s.run(ctx, chromedp.Evaluate(perfEntriesScript, &raw)); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]resource.Entry, 0, len(raw))
	for _, e := range raw {
		out = append(out, resource.Entry{Name: e.Name, Type: e.Type, At: now})
	}
	return out, nil
}

func (p *PerformanceLog) Clear(ctx context.Context) error {
	var ok bool
	return p.s.run(ctx, chromedp.Evaluate(perfClearScript, &ok))
}
