package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaiter_ResolvesBeforeDeadlineWhenMatchInjected(t *testing.T) {
	j := NewJournal()
	w := Waiter{Log: j, Interval: 5 * time.Millisecond}

	go func() {
		time.Sleep(30 * time.Millisecond)
		j.Append(Entry{Name: "https://cdn.test/a/index.css"})
		j.Append(Entry{Name: "https://cdn.test/a/240p.m3u8?token=1"})
	}()

	timeout := 2 * time.Second
	started := time.Now()
	e, ok, err := w.Wait(context.Background(), "240p.m3u8", timeout)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中，但超时")
	}
	if e.Name != "https://cdn.test/a/240p.m3u8?token=1" {
		t.Fatalf("命中条目不正确：%q", e.Name)
	}
	if time.Since(started) >= timeout {
		t.Fatalf("应在 deadline 之前返回")
	}
}

func TestWaiter_TimesOutNoEarlierThanTimeout(t *testing.T) {
	j := NewJournal()
	j.Append(Entry{Name: "https://cdn.test/a/720p.m3u8"})
	w := Waiter{Log: j, Interval: 5 * time.Millisecond}

	timeout := 60 * time.Millisecond
	started := time.Now()
	_, ok, err := w.Wait(context.Background(), "240p.m3u8", timeout)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ok {
		t.Fatalf("不应命中")
	}
	if el := time.Since(started); el < timeout {
		t.Fatalf("超时返回过早：%s < %s", el, timeout)
	}
}

func TestWaiter_ClearMakesStaleMatchUnreachable(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	w := Waiter{Log: j, Interval: 5 * time.Millisecond}

	j.Append(Entry{Name: "https://cdn.test/v1/240p.m3u8"})
	if _, ok, _ := w.Wait(ctx, "240p.m3u8", time.Second); !ok {
		t.Fatalf("第一轮应命中")
	}

	if err := j.Clear(ctx); err != nil {
		t.Fatalf("Clear 失败：%v", err)
	}
	if _, ok, _ := w.Wait(ctx, "240p.m3u8", 40*time.Millisecond); ok {
		t.Fatalf("清空后不应再命中上一轮的条目")
	}
}

func TestWaiter_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := Waiter{Log: NewJournal(), Interval: 5 * time.Millisecond}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, ok, err := w.Wait(ctx, "240p.m3u8", 5*time.Second)
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 ok=%v err=%v", ok, err)
	}
}

type flakyLog struct {
	calls atomic.Int32
	inner *Journal
}

func (f *flakyLog) Entries(ctx context.Context) ([]Entry, error) {
	if f.calls.Add(1) <= 2 {
		return nil, errors.New("evaluate: execution context was destroyed")
	}
	return f.inner.Entries(ctx)
}

func (f *flakyLog) Clear(ctx context.Context) error { return f.inner.Clear(ctx) }

func TestWaiter_TransientReadErrorsKeepPolling(t *testing.T) {
	j := NewJournal()
	j.Append(Entry{Name: "https://cdn.test/x/240p.m3u8"})
	w := Waiter{Log: &flakyLog{inner: j}, Interval: 5 * time.Millisecond}

	_, ok, err := w.Wait(context.Background(), "240p.m3u8", time.Second)
	if err != nil || !ok {
		t.Fatalf("临时读取失败后应继续轮询并命中：ok=%v err=%v", ok, err)
	}
}
