// Package export 把捕获结果序列化为下载器命令，并交付给用户（文件或剪贴板）。
package export

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
)

const DefaultProgram = "python downloader.py"

// 缺失条目的输出策略。
const (
	// MissingPlaceholder：原位输出 --url "URL_NOT_FOUND_TIMEOUT|<index>.<title>"。
	MissingPlaceholder = "placeholder"
	// MissingComment：命令里跳过，命令结束后逐行列出 "# missing: ..."。
	MissingComment = "comment"
)

type Options struct {
	Program string
	Missing string
}

// Render 生成多行、反斜杠续行的命令文本。
//
// 不变量：
// - 每个条目恰好对应一行（--url 行或 # missing 行），不会静默丢弃
// - 最后一行没有续行符
func Render(buf *domain.CommandBuffer, opts Options) string {
	program := strings.TrimSpace(opts.Program)
	if program == "" {
		program = DefaultProgram
	}

	lines := []string{
		program,
		fmt.Sprintf("  --folder %s", quote(buf.CourseTitle)),
	}

	var trailer []string
	for _, e := range buf.Entries() {
		if !e.Found && opts.Missing == MissingComment {
			trailer = append(trailer, fmt.Sprintf("# missing: %d.%s (%s)", e.Index, e.Title, reasonOr(e.Reason)))
			continue
		}
		lines = append(lines, fmt.Sprintf("  --url %s", quote(fmt.Sprintf("%s|%d.%s", e.DisplayURL(), e.Index, e.Title))))
	}

	out := strings.Join(lines, " \\\n")
	if len(trailer) > 0 {
		out += "\n" + strings.Join(trailer, "\n")
	}
	return out
}

// FileName 返回命令文件名：<snake 课程名><suffix>。
func FileName(courseTitle, suffix string) string {
	return sanitize.SnakeOr(courseTitle, sanitize.DefaultCourseTitle) + suffix
}

// 文件名后缀。
const (
	SuffixActive  = "_command.txt"
	SuffixPassive = "_manual_command.txt"
)

var dquoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

// quote 生成 shell 双引号参数。标题已清洗，这里主要防御 URL 中的特殊字符。
func quote(s string) string {
	return `"` + dquoteEscaper.Replace(s) + `"`
}

func reasonOr(r string) string {
	if r == "" {
		return domain.ReasonTimeout
	}
	return r
}
