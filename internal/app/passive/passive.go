// Package passive 实现被动捕获：用户自己在页面上播放视频，
// 程序只订阅网络记录，把每个新出现的清单 URL 追加进命令缓冲区。
package passive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/resource"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
)

// ErrNothingCaptured 表示结束时一个清单都没有捕获到。
var ErrNothingCaptured = errors.New("no videos captured yet")

// DefaultPlaceholder 是无法确定标题时使用的占位标题。
const DefaultPlaceholder = "Video_Clip"

// TitlePolicy 决定被动捕获的条目用什么标题。
//
// 被动模式下清单请求与页面上的哪一行对应是未知的，
// 标题来源必须是显式选择的策略，而不是猜测。
type TitlePolicy interface {
	Title(index int, e resource.Entry) string
}

// UnknownTitle 对所有条目返回同一个占位标题（依赖序号区分）。
type UnknownTitle struct {
	Placeholder string
}

func (u UnknownTitle) Title(int, resource.Entry) string {
	if u.Placeholder == "" {
		return DefaultPlaceholder
	}
	return u.Placeholder
}

// TitleFunc 把普通函数适配为 TitlePolicy。
type TitleFunc func(index int, e resource.Entry) string

func (f TitleFunc) Title(index int, e resource.Entry) string { return f(index, e) }

// Capture 按 URL 去重地收集清单请求。并发安全。
type Capture struct {
	pattern string
	titles  TitlePolicy
	logger  *slog.Logger

	// OnCapture 在每条新条目追加后调用（用于进度输出），可为空。
	OnCapture func(domain.CapturedEntry)

	mu     sync.Mutex
	seen   map[string]struct{}
	buf    *domain.CommandBuffer
	titled bool
}

func New(courseTitle, pattern string, titles TitlePolicy, logger *slog.Logger) *Capture {
	if titles == nil {
		titles = UnknownTitle{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	clean := sanitize.Clean(courseTitle)
	return &Capture{
		pattern: pattern,
		titles:  titles,
		logger:  logger,
		seen:    make(map[string]struct{}),
		buf:     domain.NewCommandBuffer(sanitize.CleanOr(clean, sanitize.UnknownCourseTitle)),
		titled:  clean != "",
	}
}

// CourseTitleKnown 报告课程名是否来自页面（而不是回退名）。
func (c *Capture) CourseTitleKnown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.titled
}

// SetCourseTitle 在课程名仍是回退名时采用 title。
// title 清洗后为空，或课程名已经来自页面时忽略；返回是否采用。
func (c *Capture) SetCourseTitle(title string) bool {
	clean := sanitize.Clean(title)
	if clean == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.titled {
		return false
	}
	c.buf.CourseTitle = clean
	c.titled = true
	return true
}

// Add 处理一条资源记录；返回 ok=false 表示不匹配或重复。
func (c *Capture) Add(e resource.Entry) (domain.CapturedEntry, bool) {
	if !resource.Match(c.pattern)(e) {
		return domain.CapturedEntry{}, false
	}

	c.mu.Lock()
	if _, dup := c.seen[e.Name]; dup {
		c.mu.Unlock()
		return domain.CapturedEntry{}, false
	}
	c.seen[e.Name] = struct{}{}
	index := c.buf.Len() + 1
	title := sanitize.SnakeOr(c.titles.Title(index, e), DefaultPlaceholder)
	entry := domain.Captured(index, title, e.Name)
	c.buf.Append(entry)
	c.mu.Unlock()

	c.logger.Debug("captured manifest", "index", index, "url", e.Name)
	if c.OnCapture != nil {
		c.OnCapture(entry)
	}
	return entry, true
}

// Run 持续消费 ch，直到 ctx 结束或 ch 关闭。两种结束方式都视为正常完成。
func (c *Capture) Run(ctx context.Context, ch <-chan resource.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.Add(e)
		}
	}
}

// Buffer 返回命令缓冲区（Run 结束后再读取）。
func (c *Capture) Buffer() *domain.CommandBuffer {
	return c.buf
}

// Len 返回已捕获的条目数。
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// Report 生成被动模式的 RunReport。
func (c *Capture) Report(url string, started time.Time) domain.RunReport {
	c.mu.Lock()
	entries := c.buf.Entries()
	c.mu.Unlock()

	rr := domain.RunReport{
		RunID:       c.buf.ID,
		Mode:        domain.ModePassive,
		URL:         url,
		CourseTitle: c.buf.CourseTitle,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Items:       make([]domain.ItemResult, 0, len(entries)),
	}
	for _, e := range entries {
		rr.Items = append(rr.Items, domain.ItemFromEntry(e))
	}
	rr.Finalize()
	return rr
}
