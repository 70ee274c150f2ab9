package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/m3u8gen/internal/app/run"
	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：等待清单期间长时间没有输出时，定期打印一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	phase   string
	total   int
	done    int
	ok      int
	missing int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 8 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] m3u8gen\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  url: %s\n", truncate(eff.URL, 120))
	fmt.Fprintf(p.w, "  profile: %s (pattern=%s dedup=%s)\n", eff.Profile.Name, eff.Profile.ResourcePattern, eff.Profile.Dedup)
	fmt.Fprintf(p.w, "  order: %s\n", eff.Order)
	fmt.Fprintf(p.w, "  timing: timeout=%s poll=%s click_settle=%s row_settle=%s\n",
		eff.Timeout, eff.Poll, eff.ClickSettle, eff.RowSettle,
	)
	fmt.Fprintf(p.w, "  browser: %s\n", formatBrowser(eff.Browser))
	fmt.Fprintf(p.w, "  missing: %s\n", eff.Missing)
	fmt.Fprintf(p.w, "  probe: %s (concurrency=%d)\n", onOff(eff.Probe), eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  out: %s\n", eff.OutDir)
	fmt.Fprintf(p.w, "  cache: %s\n", eff.CacheDir)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhaseRows:
		p.total = intField(fields, "canonical") - intField(fields, "skipped")
		fmt.Fprintf(p.w, "视频行: found=%d canonical=%d skipped=%d order=%v (%s)\n\n",
			intField(fields, "found"), intField(fields, "canonical"), intField(fields, "skipped"), fields["order"], formatShortDuration(dur),
		)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case run.PhaseCapture:
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "\n捕获: captured=%d missing=%d (%s)\n",
			intField(fields, "captured"), intField(fields, "missing"), formatElapsed(dur),
		)
	case run.PhaseCanceled:
		fmt.Fprintf(p.w, "中断: 未处理 %d 行，已记为缺失\n", intField(fields, "rows"))
	case run.PhaseProbe:
		fmt.Fprintf(p.w, "探测: checked=%d unreachable=%d (%s)\n",
			intField(fields, "checked"), intField(fields, "unreachable"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	// 捕获阶段结束后，后续的 OnRowDone 来自探测。
	p.phase = name
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnRowDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != run.PhaseRows {
		// 探测结果只报告不可访问的条目。
		if res.Status == domain.StatusUnreachable {
			fmt.Fprintf(p.w, "[探测 %d/%d] %d.%s DEAD: %s (%s)\n",
				idx, total, res.Index, truncate(res.Title, 60), truncate(res.ErrorMsg, 120), formatShortDuration(dur),
			)
			p.lastPrinted = time.Now()
		}
		return
	}

	p.done = idx
	p.total = total
	switch res.Status {
	case domain.StatusCaptured:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %d.%s OK (%s)\n", idx, total, res.Index, truncate(res.Title, 60), formatShortDuration(dur))
	default:
		p.missing++
		fmt.Fprintf(p.w, "[%d/%d] %d.%s %s %s (%s)\n",
			idx, total, res.Index, truncate(res.Title, 60), statusLabel(res.Status), res.ErrorCode, formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// OnCapture 用于被动模式：每捕获一条新清单打印一行。
func (p *progressUI) OnCapture(e domain.CapturedEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] 捕获 #%d %s\n", time.Now().Format("15:04:05"), e.Index, truncate(e.URL, 120))
	p.lastPrinted = time.Now()
}

// Location 在结束时打印产物位置。
func (p *progressUI) Location(label, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s: %s\n", label, path)
}

// Stop 停止 keepalive（可重复调用）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 8 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d missing=%d elapsed=%s（等待第 %d 行的清单请求）\n",
						p.done, p.total, p.ok, p.missing, formatElapsed(time.Since(p.startedAt)), p.done+1,
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatBrowser(b config.Browser) string {
	if strings.TrimSpace(b.RemoteURL) != "" {
		return fmt.Sprintf("remote %s (observe=%s)", truncate(b.RemoteURL, 80), b.Observe)
	}
	s := "launch"
	if b.Headless {
		s += " headless"
	}
	if b.ExecPath != "" {
		s += " exec=" + truncate(b.ExecPath, 60)
	}
	if b.UserDataDir != "" {
		s += " profile=" + truncate(b.UserDataDir, 60)
	}
	return s + " (observe=" + b.Observe + ")"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
