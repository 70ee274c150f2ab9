package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globalFlags 是所有子命令共享的参数。
type globalFlags struct {
	configPath string
	verbose    bool
}

// exitStatus 由子命令返回，携带进程退出码；相关信息已由子命令输出。
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// asExit 把子命令的退出码转换为 cobra 的 RunE 返回值。
func asExit(code int) error {
	if code == 0 {
		return nil
	}
	return exitStatus(code)
}

func newRootCmd(g *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "m3u8gen",
		Short: "从课程播放页捕获 m3u8 清单地址，生成下载器命令",
		Long: `m3u8gen 驱动 Chromium 逐个点击课程页上的视频，
记录每个视频的清单请求（默认 240p.m3u8），并生成 downloader.py 的多行命令。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), g.verbose))
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "配置文件路径（默认 ./m3u8gen.json5，可选）")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "输出调试日志到 stderr")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newRunCmd(g),
		newWatchCmd(g),
		newRowsCmd(g),
		newVerifyCmd(g),
	)
	return root
}

// execute 运行命令行并返回退出码：
// 0 成功；1 运行失败或存在缺失；2 参数错误。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g := &globalFlags{}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

// usageError 标记参数错误（退出码 2）。
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs 把 cobra 的参数个数校验包装为参数错误。
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var st exitStatus
	if errors.As(err, &st) {
		return int(st)
	}
	// 其余错误都来自命令行解析（未知命令、未知参数、参数个数）。
	fmt.Fprintf(stderr, "参数错误：%v\n使用 \"m3u8gen --help\" 查看用法。\n", err)
	return 2
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
