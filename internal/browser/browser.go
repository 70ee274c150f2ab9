// Package browser 通过 DevTools 协议（chromedp）驱动 Chromium：
// 启动或连接浏览器、打开课程页、读取页面快照、点击视频行，
// 并把网络请求记录暴露为 resource.Log。
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/John-Robertt/m3u8gen/internal/resource"
)

// Options 描述如何获得一个浏览器标签页。
type Options struct {
	// RemoteURL 非空时连接已运行的浏览器（--remote-debugging-port），否则启动新进程。
	RemoteURL string

	ExecPath    string
	UserDataDir string
	Headless    bool
	ProxyURL    string

	// SubscribeOnly 表示调用方只通过 Journal().Subscribe 消费网络记录，
	// Journal 不再保留可读窗口。
	SubscribeOnly bool

	Logger *slog.Logger
}

// ErrRowGone 表示点击目标在当前页面中不存在（页面结构与快照不一致）。
var ErrRowGone = errors.New("目标行或标题元素不存在")

// Session 是一个已附着的标签页。所有方法都在该标签页上执行。
type Session struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	journal *resource.Journal
	logger  *slog.Logger
}

// Open 启动（或连接）浏览器并打开一个新标签页，同时开始把网络响应记录进 Journal。
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if remote := strings.TrimSpace(opts.RemoteURL); remote != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, remote)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, execOptions(opts)...)
	}

	logf := func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...), "stream", "chromedp")
	}
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logf), chromedp.WithErrorf(logf))

	journal := resource.NewJournal()
	if opts.SubscribeOnly {
		journal = resource.NewJournalRetain(0)
	}
	s := &Session{
		allocCancel: allocCancel,
		ctx:         tabCtx,
		cancel:      cancel,
		journal:     journal,
		logger:      logger,
	}

	// 监听需在 network.Enable 之前注册，避免漏掉第一批事件。
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Response != nil {
			s.journal.Append(resource.Entry{
				Name: e.Response.URL,
				Type: strings.ToLower(string(e.Type)),
				At:   time.Now(),
			})
		}
	})

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("启动浏览器失败：%w", err)
	}
	return s, nil
}

func execOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("mute-audio", true),
		// 后台标签页也要正常播放，否则清单请求可能不会发出。
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if p := strings.TrimSpace(opts.ExecPath); p != "" {
		out = append(out, chromedp.ExecPath(p))
	}
	if d := strings.TrimSpace(opts.UserDataDir); d != "" {
		out = append(out, chromedp.UserDataDir(d))
	}
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		out = append(out, chromedp.ProxyServer(p))
	}
	return out
}

// Close 关闭标签页；若浏览器由本进程启动，也一并退出。
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// Journal 返回 DevTools 网络事件的记录（cdp 观测方式）。
func (s *Session) Journal() *resource.Journal { return s.journal }

// Navigate 打开 url 并等待 body 就绪。
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("打开页面失败：%w", err)
	}
	return nil
}

// WaitVisible 等待 selector 出现（课程列表通常由前端异步渲染）。
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Snapshot 返回当前渲染后的完整 HTML。
func (s *Session) Snapshot(ctx context.Context) ([]byte, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("读取页面快照失败：%w", err)
	}
	return []byte(html), nil
}

// Click 点击第 ordinal 个 rowSelector 元素内的 titleSelector 元素。
func (s *Session) Click(ctx context.Context, rowSelector, titleSelector string, ordinal int) error {
	script, err := clickScript(rowSelector, titleSelector, ordinal)
	if err != nil {
		return err
	}
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("点击第 %d 行失败：%w", ordinal+1, err)
	}
	if !ok {
		return fmt.Errorf("点击第 %d 行失败：%w", ordinal+1, ErrRowGone)
	}
	return nil
}

// run 在标签页上执行 actions，同时尊重调用方 ctx 的取消。
// 只取消派生的 ctx：中断当前动作，不会关闭标签页。
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
