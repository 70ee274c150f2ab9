package resource

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// DefaultRetain 是 Journal 默认保留的条目数。主动模式每行都会 Clear，
// 被动模式只靠订阅，因此保留窗口只需覆盖一行内的请求量。
const DefaultRetain = 4096

// Journal 是进程内的追加式资源记录，由 DevTools 网络事件喂入。
//
// 并发安全：Append 可能来自 chromedp 的事件 goroutine，读写都加锁。
// Clear 只截断可读窗口，不影响订阅者（订阅者看到的是完整的追加流）。
// 可读窗口最多保留 retain 条，超出时丢弃最旧的条目。
type Journal struct {
	mu      sync.Mutex
	retain  int
	entries []Entry
	subs    map[*subscriber]struct{}
}

var (
	_ Log        = (*Journal)(nil)
	_ Subscriber = (*Journal)(nil)
)

type subscriber struct {
	mu     sync.Mutex
	ch     chan Entry
	done   <-chan struct{}
	closed bool
}

func (s *subscriber) send(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	case <-s.done:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func NewJournal() *Journal {
	return NewJournalRetain(DefaultRetain)
}

// NewJournalRetain 返回最多保留 n 条可读条目的 Journal；n <= 0 表示不保留（只推送给订阅者）。
func NewJournalRetain(n int) *Journal {
	if n < 0 {
		n = 0
	}
	return &Journal{retain: n, subs: make(map[*subscriber]struct{})}
}

// Append 记录一条条目并推送给所有订阅者。推送不持有 j.mu，
// 慢订阅者只会拖慢本次 Append，不会阻塞 Entries/Clear。
func (j *Journal) Append(e Entry) {
	j.mu.Lock()
	if j.retain > 0 {
		if len(j.entries) >= j.retain {
			j.entries = j.entries[len(j.entries)-j.retain+1:]
		}
		j.entries = append(j.entries, e)
	}
	subs := make([]*subscriber, 0, len(j.subs))
	for s := range j.subs {
		subs = append(subs, s)
	}
	j.mu.Unlock()

	for _, s := range subs {
		s.send(e)
	}
}

func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...), nil
}

func (j *Journal) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
	return nil
}

// Subscribe 返回一个接收后续所有 Append 条目的通道；ctx 结束时通道关闭。
func (j *Journal) Subscribe(ctx context.Context) <-chan Entry {
	s := &subscriber{
		ch:   make(chan Entry, subscriberBuffer),
		done: ctx.Done(),
	}

	j.mu.Lock()
	j.subs[s] = struct{}{}
	j.mu.Unlock()

	go func() {
		<-ctx.Done()
		j.mu.Lock()
		delete(j.subs, s)
		j.mu.Unlock()
		s.close()
	}()
	return s.ch
}
