package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/export"
	"github.com/John-Robertt/m3u8gen/internal/verify"
)

type verifyFlags struct {
	folder string
	root   string
}

func newVerifyCmd(_ *globalFlags) *cobra.Command {
	f := &verifyFlags{}
	cmd := &cobra.Command{
		Use:   "verify [command.txt]",
		Short: "核对下载目录，列出缺失的序号",
		Long: `verify 按生成的命令文件核对下载结果：
下载目录中以 "<序号>." 开头的文件视为已下载，命令里有但目录里没有的序号即为缺失。

未指定 --folder 时，在 --root（默认当前目录）下按课程名查找最接近的目录。
不给命令文件时必须指定 --folder，缺失范围取目录中最小到最大序号。`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if strings.TrimSpace(f.folder) == "" {
					return usageError{errors.New("没有命令文件时必须指定 --folder")}
				}
				return asExit(verifyFolder(cmd.OutOrStdout(), cmd.ErrOrStderr(), f.folder))
			}
			return asExit(verifyCommand(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], *f))
		},
	}
	cmd.Flags().StringVar(&f.folder, "folder", "", "下载目录")
	cmd.Flags().StringVar(&f.root, "root", "", "课程目录所在的根目录（默认当前目录）")
	return cmd
}

func verifyFolder(stdout, stderr io.Writer, folder string) int {
	found, err := verify.ScanIndexes(folder)
	if err != nil {
		fmt.Fprintf(stderr, "读取目录失败：%v\n", err)
		return 1
	}
	missing := verify.MissingIndexes(found, 0, 0)
	fmt.Fprintf(stdout, "目录：%s\n已下载：%d 个文件\n", folder, len(found))
	if len(missing) == 0 {
		fmt.Fprintln(stdout, "没有缺失的序号")
		return 0
	}
	fmt.Fprintf(stdout, "缺失：%s\n", joinInts(missing))
	return 1
}

func verifyCommand(stdout, stderr io.Writer, path string, f verifyFlags) int {
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "读取命令文件失败：%v\n", err)
		return 1
	}
	parsed, err := export.Parse(string(b))
	if err != nil {
		fmt.Fprintf(stderr, "解析命令文件失败：%v\n", err)
		return 1
	}

	folder := strings.TrimSpace(f.folder)
	if folder == "" {
		root := strings.TrimSpace(f.root)
		if root == "" {
			root = "."
		}
		m, ok, err := verify.ClosestFolder(root, parsed.CourseTitle)
		if err != nil {
			fmt.Fprintf(stderr, "查找课程目录失败：%v\n", err)
			return 1
		}
		if !ok {
			if m.Name != "" {
				fmt.Fprintf(stderr, "在 %s 下找不到课程 %q 的目录（最接近：%q，相似度 %.2f）\n", root, parsed.CourseTitle, m.Name, m.Score)
			} else {
				fmt.Fprintf(stderr, "在 %s 下找不到课程 %q 的目录\n", root, parsed.CourseTitle)
			}
			return 1
		}
		folder = m.Path
		fmt.Fprintf(stdout, "课程目录：%s（相似度 %.2f）\n", m.Path, m.Score)
	}

	res, err := verify.Check(parsed, folder)
	if err != nil {
		fmt.Fprintf(stderr, "读取目录失败：%v\n", err)
		return 1
	}
	renderVerify(stdout, parsed, res)
	if len(res.Missing) == 0 {
		return 0
	}
	return 1
}

func renderVerify(w io.Writer, parsed export.Parsed, res verify.Result) {
	fmt.Fprintf(w, "课程：%s\n命令条目：%d 已下载：%d 缺失：%d 未捕获：%d\n",
		parsed.CourseTitle, len(parsed.Entries), len(res.Found), len(res.Missing), len(res.NotCaptured))
	if len(res.MissingEntries) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "标题", "URL"})
	for _, e := range res.MissingEntries {
		t.AppendRow(table.Row{e.Index, truncate(e.Title, 60), missingURL(e)})
	}
	t.Render()
}

func missingURL(e domain.CapturedEntry) string {
	if e.Found {
		return truncate(e.URL, 100)
	}
	if e.Reason == "" {
		return domain.URLNotFound
	}
	return domain.URLNotFound + " (" + e.Reason + ")"
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
