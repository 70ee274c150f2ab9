package resource

import (
	"context"
	"testing"
	"time"
)

func TestJournal_SubscribeReceivesAppendsAcrossClear(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewJournal()
	j.Append(Entry{Name: "before-subscribe"})
	ch := j.Subscribe(ctx)

	j.Append(Entry{Name: "a"})
	if err := j.Clear(ctx); err != nil {
		t.Fatalf("Clear 失败：%v", err)
	}
	j.Append(Entry{Name: "b"})

	var got []string
	for len(got) < 2 {
		select {
		case e := <-ch:
			got = append(got, e.Name)
		case <-time.After(time.Second):
			t.Fatalf("等待订阅条目超时，已收到 %v", got)
		}
	}
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("订阅顺序不正确：%v", got)
	}

	entries, err := j.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries 失败：%v", err)
	}
	if len(entries) != 1 || entries[0].Name != "b" {
		t.Fatalf("Clear 后只应保留之后追加的条目：%+v", entries)
	}
}

func TestJournal_SubscriptionClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJournal()
	ch := j.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("ctx 结束后不应再收到条目")
		}
	case <-time.After(time.Second):
		t.Fatalf("ctx 结束后通道应关闭")
	}

	// 取消后 Append 不应阻塞或 panic。
	done := make(chan struct{})
	go func() {
		j.Append(Entry{Name: "late"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("取消订阅后 Append 被阻塞")
	}
}

func TestFirst(t *testing.T) {
	es := []Entry{{Name: "a.js"}, {Name: "x/240p.m3u8"}, {Name: "y/240p.m3u8"}}
	e, ok := First(es, "240p.m3u8")
	if !ok || e.Name != "x/240p.m3u8" {
		t.Fatalf("应返回第一条匹配：%+v ok=%v", e, ok)
	}
	if _, ok := First(es, ""); ok {
		t.Fatalf("空 pattern 不应匹配任何条目")
	}
}

func TestJournal_RetainWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewJournalRetain(3)
	ch := j.Subscribe(ctx)
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		j.Append(Entry{Name: n})
	}
	entries, _ := j.Entries(ctx)
	if len(entries) != 3 || entries[0].Name != "c" || entries[2].Name != "e" {
		t.Fatalf("只应保留最近 3 条：%+v", entries)
	}

	// 订阅者不受保留窗口影响。
	for _, want := range []string{"a", "b", "c", "d", "e"} {
		select {
		case e := <-ch:
			if e.Name != want {
				t.Fatalf("订阅顺序不正确：want=%s got=%s", want, e.Name)
			}
		case <-time.After(time.Second):
			t.Fatalf("等待订阅条目 %s 超时", want)
		}
	}

	none := NewJournalRetain(0)
	none.Append(Entry{Name: "x"})
	if entries, _ := none.Entries(ctx); len(entries) != 0 {
		t.Fatalf("只订阅模式不应保留条目：%+v", entries)
	}
}
