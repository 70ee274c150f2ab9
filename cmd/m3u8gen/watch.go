package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/m3u8gen/internal/app/passive"
	"github.com/John-Robertt/m3u8gen/internal/app/run"
	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/export"
	"github.com/John-Robertt/m3u8gen/internal/infra/cache"
	"github.com/John-Robertt/m3u8gen/internal/infra/httpx"
	"github.com/John-Robertt/m3u8gen/internal/site"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	f := &browserFlags{}
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "打开课程页，记录你手动播放的视频，按 Enter 生成下载命令",
		Long: `watch 不点击页面：在打开的浏览器里逐个播放视频，
每个新出现的清单请求都会被记录（按 URL 去重，按出现顺序编号）。
按 Enter（或 Ctrl-C）结束并生成 <课程>_manual_command.txt。

被动模式无法确定清单属于哪一行，标题统一使用 placeholder_title。`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageURL, err := parsePageURL(args[0])
			if err != nil {
				return err
			}
			return asExit(runWatch(cmd.Context(), f.cliArgs(cmd, g, pageURL), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	f.register(cmd)
	return cmd
}

func runWatch(ctx context.Context, cli config.CLIArgs, stdin io.Reader, stdout, stderr io.Writer) int {
	tty := isTTY(stdout)
	logger := slog.Default()
	started := time.Now().UTC()

	eff, err := loadEffective(cli)
	if err != nil {
		emitReport(stdout, stderr, tty, failureReport(domain.ModePassive, cli.URL, configErrorCode(err), err))
		return 1
	}

	sess, err := openBrowser(ctx, eff, true, logger)
	if err != nil {
		emitReport(stdout, stderr, tty, failureReport(domain.ModePassive, eff.URL, domain.ErrCodeBrowserFailed, err))
		return 1
	}
	defer sess.Close()

	capture := passive.New("", eff.Profile.ResourcePattern, passive.UnknownTitle{Placeholder: eff.PlaceholderTitle}, logger)
	progressW, interactive := pickProgressWriter()
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		defer ui.Stop()
		capture.OnCapture = ui.OnCapture
		ui.OnStart(eff)
	}

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	// 先订阅并开始消费再导航：页面加载期间的请求不会漏掉，
	// 订阅通道也不会因无人读取而阻塞浏览器事件。
	ch := sess.Journal().Subscribe(watchCtx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		capture.Run(watchCtx, ch)
	}()

	if err := sess.Navigate(ctx, eff.URL); err != nil {
		stop()
		<-done
		emitReport(stdout, stderr, tty, failureReport(domain.ModePassive, eff.URL, domain.ErrCodeBrowserFailed, err))
		return 1
	}
	capture.SetCourseTitle(readCourseTitle(ctx, sess, eff.Profile, titleWaitTimeout, logger))

	if ui != nil {
		fmt.Fprintln(progressW, "在浏览器里逐个播放视频；完成后按 Enter 生成命令（Ctrl-C 同样结束）。")
	}
	go func() {
		waitForEnter(watchCtx, stdin)
		stop()
	}()
	<-done

	// 课程名可能在开始时尚未渲染；结束时再读一次（Ctrl-C 后浏览器仍然可用）。
	if !capture.CourseTitleKnown() {
		capture.SetCourseTitle(readCourseTitle(context.WithoutCancel(ctx), sess, eff.Profile, 0, logger))
	}

	if capture.Len() == 0 {
		fmt.Fprintln(stderr, passive.ErrNothingCaptured)
		rr := capture.Report(eff.URL, started)
		rr.ErrorCode = domain.ErrCodeNothingCaptured
		rr.ErrorMsg = passive.ErrNothingCaptured.Error()
		emitReport(stdout, stderr, tty, rr)
		return 1
	}

	rr := capture.Report(eff.URL, started)
	var obs run.Observer
	if ui != nil {
		obs = ui
	}
	if eff.Probe && ctx.Err() == nil {
		client, err := httpx.NewProbeClient(eff.ProxyURL, eff.URL)
		if err != nil {
			logger.Warn("probe client unavailable", "err", err)
		} else {
			run.Probe(ctx, client, &rr, eff.Concurrency, obs)
		}
	}

	delivered := deliverCommand(stdout, stderr, tty, eff, export.SystemClipboard(), capture.Buffer(), export.SuffixPassive, &rr)
	if eff.Report {
		if path, err := saveReport(cache.New(eff.CacheDir, false), rr); err != nil {
			fmt.Fprintf(stderr, "写入报告失败：%v\n", err)
		} else if ui != nil {
			ui.Location("report", path)
		}
	}

	emitReport(stdout, stderr, tty, rr)
	if ui != nil && rr.Output != "" {
		ui.Location("command", rr.Output)
	}
	if delivered && rr.OK() {
		return 0
	}
	return 1
}

// waitForEnter 在读到一行或 ctx 结束时返回。
// stdin 已关闭（例如重定向自 /dev/null）时只等 ctx。
func waitForEnter(ctx context.Context, stdin io.Reader) {
	if _, err := bufio.NewReader(stdin).ReadString('\n'); err != nil {
		<-ctx.Done()
	}
}

// titleWaitTimeout 限制开始捕获前等待课程名渲染的时间；超时后照常开始。
const titleWaitTimeout = 15 * time.Second

type titleSource interface {
	WaitVisible(ctx context.Context, selector string) error
	Snapshot(ctx context.Context) ([]byte, error)
}

// readCourseTitle 尽力读取页面上的课程名，读不到时返回空（由 passive 使用回退名）。
// wait > 0 时先等待课程名元素出现。
func readCourseTitle(ctx context.Context, sess titleSource, p site.Profile, wait time.Duration, logger *slog.Logger) string {
	if wait > 0 && p.CourseTitleSelector != "" {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		err := sess.WaitVisible(waitCtx, p.CourseTitleSelector)
		cancel()
		if err != nil {
			logger.Debug("course title not visible", "selector", p.CourseTitleSelector, "err", err)
		}
	}

	snapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	html, err := sess.Snapshot(snapCtx)
	if err != nil {
		logger.Debug("course title snapshot failed", "err", err)
		return ""
	}
	page, err := site.Parse(p, html)
	if err != nil {
		return ""
	}
	return page.CourseTitle
}
