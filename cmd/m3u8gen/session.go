package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/John-Robertt/m3u8gen/internal/browser"
	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/export"
	"github.com/John-Robertt/m3u8gen/internal/infra/cache"
	"github.com/John-Robertt/m3u8gen/internal/site"
)

// pageReadyTimeout 限制等待行元素出现的时间（前端异步渲染课程列表）。
const pageReadyTimeout = 60 * time.Second

// parsePageURL 校验课程页地址：只接受 http/https。
func parsePageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", usageError{fmt.Errorf("课程页地址必须是 http(s) URL，实际是 %q", raw)}
	}
	return raw, nil
}

func loadEffective(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	return config.LoadEffective(cwd, cli, site.Builtin())
}

// configErrorCode 返回配置错误的报告错误码。
func configErrorCode(err error) string {
	if c := config.Code(err); c != "" {
		return c
	}
	return domain.ErrCodeConfigInvalid
}

// openBrowser 按配置打开浏览器；subscribeOnly 用于只订阅网络记录的 watch。
func openBrowser(ctx context.Context, eff config.EffectiveConfig, subscribeOnly bool, logger *slog.Logger) (*browser.Session, error) {
	return browser.Open(ctx, browser.Options{
		RemoteURL:     eff.Browser.RemoteURL,
		ExecPath:      eff.Browser.ExecPath,
		UserDataDir:   eff.Browser.UserDataDir,
		Headless:      eff.Browser.Headless,
		ProxyURL:      eff.ProxyURL,
		SubscribeOnly: subscribeOnly,
		Logger:        logger,
	})
}

// loadCoursePage 打开课程页，等待行元素渲染，返回快照与解析结果。
func loadCoursePage(ctx context.Context, sess *browser.Session, eff config.EffectiveConfig) ([]byte, site.Page, error) {
	if err := sess.Navigate(ctx, eff.URL); err != nil {
		return nil, site.Page{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, pageReadyTimeout)
	err := sess.WaitVisible(waitCtx, eff.Profile.RowSelector)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, site.Page{}, ctx.Err()
		}
		return nil, site.Page{}, fmt.Errorf("等待视频列表（%s）超时：%w", eff.Profile.RowSelector, err)
	}
	html, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, site.Page{}, err
	}
	page, err := site.Parse(eff.Profile, html)
	if err != nil {
		return nil, site.Page{}, fmt.Errorf("解析页面失败：%w", err)
	}
	return html, page, nil
}

// deliverCommand 把命令交付到 out_dir（或剪贴板），并把交付结果写回 rr。
// 返回 false 表示文件与剪贴板都失败（命令已直接打印）。
func deliverCommand(stdout, stderr io.Writer, tty bool, eff config.EffectiveConfig, clip export.Clipboard, buf *domain.CommandBuffer, suffix string, rr *domain.RunReport) bool {
	content := export.Render(buf, export.Options{Program: eff.Program, Missing: eff.Missing})
	d, err := export.Deliver(eff.OutDir, export.FileName(buf.CourseTitle, suffix), content, clip)
	rr.Output = d.Path
	rr.Clipboard = d.Clipboard
	if err == nil {
		return true
	}

	var de *export.DeliverError
	if errors.As(err, &de) && de.Clipboard {
		fmt.Fprintf(stderr, "注意：%v\n", err)
		return true
	}

	fmt.Fprintf(stderr, "交付失败：%v\n", err)
	rr.ErrorCode = domain.ErrCodeDeliverFailed
	rr.ErrorMsg = err.Error()
	// stdout 非 TTY 时只能有 JSON，命令改走 stderr。
	w := stdout
	if !tty {
		w = stderr
	}
	fmt.Fprintln(w, content)
	return false
}

// saveReport 把报告写到 <cache>/reports/<课程>.json，返回路径。
func saveReport(store cache.Store, rr domain.RunReport) (string, error) {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return "", err
	}
	return store.WriteReport(rr.CourseTitle, append(b, '\n'))
}
