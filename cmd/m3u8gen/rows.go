package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/infra/cache"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
	"github.com/John-Robertt/m3u8gen/internal/site"
)

// rowsFlags 是 rows 实际用到的参数：只读取页面，不点击也不导出。
type rowsFlags struct {
	profile   string
	remoteURL string
	headless  bool
}

func (f *rowsFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.profile, "profile", "", "站点配置名（默认 course-stages）")
	fs.StringVar(&f.remoteURL, "remote-url", "", "连接已运行的浏览器（ws:// 或 http://host:9222）")
	fs.BoolVar(&f.headless, "headless", false, "无界面启动浏览器")
}

func (f *rowsFlags) cliArgs(cmd *cobra.Command, g *globalFlags) config.CLIArgs {
	fs := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:   g.configPath,
		Profile:      f.profile,
		ProfileSet:   fs.Changed("profile"),
		RemoteURL:    f.remoteURL,
		RemoteURLSet: fs.Changed("remote-url"),
		Headless:     f.headless,
		HeadlessSet:  fs.Changed("headless"),
	}
}

func newRowsCmd(g *globalFlags) *cobra.Command {
	f := &rowsFlags{}
	cmd := &cobra.Command{
		Use:   "rows <url|page.html|课程名>",
		Short: "列出页面上识别到的视频行（不点击），用于检查选择器",
		Long: `rows 只读取页面并按配置的选择器解析视频行，不触发播放。
参数可以是：
  - 课程页 URL：启动浏览器读取，并把快照缓存到 <cache_dir>/pages/
  - 已保存的 HTML 快照文件
  - 课程名：读取 <cache_dir>/pages/ 中该课程的快照（run/rows 读取页面时写入）`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asExit(runRows(cmd.Context(), args[0], f.cliArgs(cmd, g), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	f.register(cmd)
	return cmd
}

// rowsSource 是 rows 参数的三种解释。
type rowsSource int

const (
	sourceURL rowsSource = iota
	sourceFile
	sourceCache
)

func runRows(ctx context.Context, target string, cli config.CLIArgs, stdout, stderr io.Writer) int {
	html, source, err := classifyRowsTarget(target)
	if err != nil {
		fmt.Fprintf(stderr, "读取快照失败：%v\n", err)
		return 1
	}
	if source == sourceURL {
		pageURL, err := parsePageURL(target)
		if err != nil {
			fmt.Fprintf(stderr, "参数错误：%v\n", err)
			return 2
		}
		cli.URL = pageURL
	}

	eff, err := loadEffective(cli)
	if err != nil {
		fmt.Fprintf(stderr, "配置错误（%s）：%v\n", configErrorCode(err), err)
		return 1
	}

	var page site.Page
	switch source {
	case sourceURL:
		page, err = fetchRows(ctx, eff)
	case sourceCache:
		html, err = readCachedPage(cache.New(eff.CacheDir, true), target)
		if err == nil {
			page, err = site.Parse(eff.Profile, html)
		}
	default:
		page, err = site.Parse(eff.Profile, html)
	}
	if err != nil {
		fmt.Fprintf(stderr, "读取视频行失败：%v\n", err)
		return 1
	}

	renderRows(stdout, eff, page)
	return 0
}

// classifyRowsTarget 判断参数是 URL、已存在的快照文件，还是缓存中的课程名。
// 是文件时顺带读出内容。
func classifyRowsTarget(target string) ([]byte, rowsSource, error) {
	if strings.Contains(target, "://") {
		return nil, sourceURL, nil
	}
	fi, err := os.Stat(target)
	if err != nil || fi.IsDir() {
		return nil, sourceCache, nil
	}
	b, err := os.ReadFile(target)
	if err != nil {
		return nil, sourceFile, err
	}
	return b, sourceFile, nil
}

// readCachedPage 按课程名读取缓存的页面快照。
func readCachedPage(store cache.Store, course string) ([]byte, error) {
	html, ok, err := store.ReadPage(course)
	if err != nil {
		return nil, err
	}
	if !ok {
		path, _ := store.PagePath(course)
		return nil, fmt.Errorf("缓存中没有课程 %q 的页面快照（%s）；先用 rows <url> 或 run 读取一次页面", course, path)
	}
	return html, nil
}

func fetchRows(ctx context.Context, eff config.EffectiveConfig) (site.Page, error) {
	logger := slog.Default()
	sess, err := openBrowser(ctx, eff, false, logger)
	if err != nil {
		return site.Page{}, err
	}
	defer sess.Close()

	html, page, err := loadCoursePage(ctx, sess, eff)
	if err != nil {
		return site.Page{}, err
	}
	if path, err := cache.New(eff.CacheDir, false).WritePage(sanitize.CleanOr(page.CourseTitle, sanitize.DefaultCourseTitle), html); err != nil {
		logger.Warn("write page snapshot failed", "err", err)
	} else {
		logger.Debug("page snapshot saved", "path", path)
	}
	return page, nil
}

// renderRows 打印全部行元素，并标出去重后实际会被处理的行。
func renderRows(w io.Writer, eff config.EffectiveConfig, page site.Page) {
	canonical := site.Canonical(eff.Profile, page.Rows)
	keep := make(map[int]struct{}, len(canonical))
	for _, r := range canonical {
		keep[r.Ordinal] = struct{}{}
	}

	course := sanitize.CleanOr(page.CourseTitle, sanitize.DefaultCourseTitle)
	fmt.Fprintf(w, "课程：%s\n", course)
	fmt.Fprintf(w, "行：found=%d canonical=%d dedup=%s order=%s\n", len(page.Rows), len(canonical), eff.Profile.Dedup, eff.Order)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "ID", "标题", "状态"})
	for _, r := range page.Rows {
		t.AppendRow(table.Row{r.Index, r.ID, rowTitle(r, eff.PlaceholderTitle), rowState(r, keep)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	t.Render()
}

func rowTitle(r domain.VideoRow, placeholder string) string {
	if !r.HasTitle {
		return ""
	}
	return truncate(sanitize.SnakeOr(r.RawTitle, placeholder), 80)
}

func rowState(r domain.VideoRow, keep map[int]struct{}) string {
	if _, ok := keep[r.Ordinal]; !ok {
		return "重复"
	}
	if !r.HasTitle {
		return "跳过（无标题）"
	}
	return "处理"
}
