package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/m3u8gen/internal/app/run"
	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/export"
	"github.com/John-Robertt/m3u8gen/internal/infra/cache"
	"github.com/John-Robertt/m3u8gen/internal/infra/httpx"
	"github.com/John-Robertt/m3u8gen/internal/resource"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
)

// browserFlags 是 run/watch 共用的浏览器与输出参数。
type browserFlags struct {
	profile   string
	order     string
	outDir    string
	missing   string
	timeout   time.Duration
	remoteURL string
	headless  bool
	observe   string
	probe     bool
	report    bool
}

func (f *browserFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.profile, "profile", "", "站点配置名（默认 course-stages）")
	fs.StringVar(&f.order, "order", "", "处理顺序：asc|desc")
	fs.StringVar(&f.outDir, "out", "", "命令文件输出目录（默认当前目录）")
	fs.StringVar(&f.missing, "missing", "", "缺失条目输出方式：placeholder|comment")
	fs.DurationVar(&f.timeout, "timeout", 0, "每行等待清单请求的超时（例如 10s）")
	fs.StringVar(&f.remoteURL, "remote-url", "", "连接已运行的浏览器（ws:// 或 http://host:9222）")
	fs.BoolVar(&f.headless, "headless", false, "无界面启动浏览器")
	fs.StringVar(&f.observe, "observe", "", "资源记录来源：cdp|performance")
	fs.BoolVar(&f.probe, "probe", false, "结束后请求每个清单 URL，确认可访问")
	fs.BoolVar(&f.report, "report", false, "把运行报告写入缓存目录")
}

// cliArgs 把命令行参数转换为 config.CLIArgs；只有显式给出的参数才覆盖配置文件。
func (f *browserFlags) cliArgs(cmd *cobra.Command, g *globalFlags, pageURL string) config.CLIArgs {
	fs := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:   g.configPath,
		URL:          pageURL,
		Profile:      f.profile,
		ProfileSet:   fs.Changed("profile"),
		Order:        f.order,
		OrderSet:     fs.Changed("order"),
		OutDir:       f.outDir,
		OutDirSet:    fs.Changed("out"),
		Missing:      f.missing,
		MissingSet:   fs.Changed("missing"),
		Timeout:      f.timeout,
		TimeoutSet:   fs.Changed("timeout"),
		RemoteURL:    f.remoteURL,
		RemoteURLSet: fs.Changed("remote-url"),
		Headless:     f.headless,
		HeadlessSet:  fs.Changed("headless"),
		Observe:      f.observe,
		ObserveSet:   fs.Changed("observe"),
		Probe:        f.probe,
		ProbeSet:     fs.Changed("probe"),
		Report:       f.report,
		ReportSet:    fs.Changed("report"),
	}
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &browserFlags{}
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "逐行点击课程页上的视频，捕获清单地址并生成下载命令",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageURL, err := parsePageURL(args[0])
			if err != nil {
				return err
			}
			return asExit(runActive(cmd.Context(), f.cliArgs(cmd, g, pageURL), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	f.register(cmd)
	return cmd
}

func runActive(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) int {
	tty := isTTY(stdout)
	logger := slog.Default()

	eff, err := loadEffective(cli)
	if err != nil {
		emitReport(stdout, stderr, tty, failureReport(domain.ModeActive, cli.URL, configErrorCode(err), err))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		defer ui.Stop()
		obs = ui
	}

	sess, err := openBrowser(ctx, eff, false, logger)
	if err != nil {
		emitReport(stdout, stderr, tty, failureReport(domain.ModeActive, eff.URL, domain.ErrCodeBrowserFailed, err))
		return 1
	}
	defer sess.Close()

	html, page, err := loadCoursePage(ctx, sess, eff)
	if err != nil {
		emitReport(stdout, stderr, tty, failureReport(domain.ModeActive, eff.URL, domain.ErrCodeBrowserFailed, err))
		return 1
	}

	store := cache.New(eff.CacheDir, false)
	if path, err := store.WritePage(sanitize.CleanOr(page.CourseTitle, sanitize.DefaultCourseTitle), html); err != nil {
		logger.Warn("write page snapshot failed", "err", err)
	} else {
		logger.Debug("page snapshot saved", "path", path)
	}

	var rlog resource.Log = sess.Journal()
	if eff.Browser.Observe == config.ObservePerformance {
		pl, err := sess.PerformanceLog(ctx)
		if err != nil {
			emitReport(stdout, stderr, tty, failureReport(domain.ModeActive, eff.URL, domain.ErrCodeBrowserFailed, err))
			return 1
		}
		rlog = pl
	}

	res := run.Execute(ctx, eff, run.Input{Page: page, Clicker: sess, Log: rlog, Logger: logger}, obs)
	rr := res.Report

	if eff.Probe && !res.Canceled {
		client, err := httpx.NewProbeClient(eff.ProxyURL, eff.URL)
		if err != nil {
			logger.Warn("probe client unavailable", "err", err)
		} else {
			run.Probe(ctx, client, &rr, eff.Concurrency, obs)
		}
	}

	delivered := deliverCommand(stdout, stderr, tty, eff, export.SystemClipboard(), res.Buffer, export.SuffixActive, &rr)
	if res.Canceled {
		fmt.Fprintln(stderr, "已中断：未处理的行已作为缺失条目写入命令")
	}

	if eff.Report {
		if path, err := saveReport(store, rr); err != nil {
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
