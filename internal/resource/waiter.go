package resource

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// Waiter 轮询 Log，直到出现匹配条目或超时。
type Waiter struct {
	Log      Log
	Interval time.Duration
	Logger   *slog.Logger
}

// Wait 立即检查一次，之后每 Interval 检查一次，与总超时赛跑。
//
// 返回值：
// - 命中：(entry, true, nil)，在 deadline 之前返回
// - 超时：(Entry{}, false, nil)，不早于 timeout 返回；超时不是错误，由调用方记录占位
// - ctx 结束：(Entry{}, false, ctx.Err())
//
// Entries 的临时失败只记日志、继续轮询（页面切换时 evaluate 偶尔会失败）。
func (w Waiter) Wait(ctx context.Context, pattern string, timeout time.Duration) (Entry, bool, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() (Entry, bool) {
		entries, err := w.Log.Entries(ctx)
		if err != nil {
			logger.DebugContext(ctx, "read resource log failed", "pattern", pattern, "err", err)
			return Entry{}, false
		}
		return First(entries, pattern)
	}

	if e, ok := check(); ok {
		return e, true, nil
	}
	for {
		select {
		case <-ctx.Done():
			return Entry{}, false, ctx.Err()
		case <-deadline.C:
			return Entry{}, false, nil
		case <-ticker.C:
			if e, ok := check(); ok {
				return e, true, nil
			}
		}
	}
}
