package export

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/John-Robertt/m3u8gen/internal/domain"
)

// Parsed 是从命令文本还原出的内容（Render 的逆过程）。
type Parsed struct {
	Program     string
	CourseTitle string
	Entries     []domain.CapturedEntry
}

var missingLineRE = regexp.MustCompile(`^#\s*missing:\s*(\d+)\.(.*?)\s*(?:\(([a-z_]+)\))?\s*$`)

// Parse 解析 Render 生成的命令文本（也兼容手工编辑过的同格式文件）。
// 分词遵循 /bin/sh 规则：单双引号、反斜杠转义与反斜杠续行。
func Parse(text string) (Parsed, error) {
	var cmdLines, comments []string
	for _, ln := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(ln)
		if strings.HasPrefix(trimmed, "#") {
			comments = append(comments, trimmed)
			continue
		}
		cmdLines = append(cmdLines, ln)
	}
	args, err := shellquote.Split(strings.Join(cmdLines, "\n"))
	if err != nil {
		return Parsed{}, fmt.Errorf("命令分词失败：%w", err)
	}
	if len(args) == 0 {
		return Parsed{}, errors.New("命令为空")
	}

	var out Parsed
	var program []string
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--folder":
			if i+1 >= len(args) {
				return Parsed{}, errors.New("--folder 缺少值")
			}
			i++
			out.CourseTitle = args[i]
		case a == "--url":
			if i+1 >= len(args) {
				return Parsed{}, errors.New("--url 缺少值")
			}
			i++
			e, err := parseURLArg(args[i])
			if err != nil {
				return Parsed{}, err
			}
			out.Entries = append(out.Entries, e)
		case len(out.Entries) == 0 && out.CourseTitle == "":
			program = append(program, a)
		default:
			return Parsed{}, fmt.Errorf("无法识别的参数 %q", a)
		}
	}
	out.Program = strings.Join(program, " ")

	for _, c := range comments {
		m := missingLineRE.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		out.Entries = append(out.Entries, domain.Missing(idx, strings.TrimSpace(m[2]), m[3]))
	}
	return out, nil
}

// parseURLArg 解析 "<url>|<index>.<title>"。URL 本身可能含 '|'，按最后一个分隔。
func parseURLArg(v string) (domain.CapturedEntry, error) {
	bar := strings.LastIndex(v, "|")
	if bar < 0 {
		return domain.CapturedEntry{}, fmt.Errorf("--url 值缺少 '|'：%q", v)
	}
	u, rest := v[:bar], v[bar+1:]
	dot := strings.Index(rest, ".")
	if dot <= 0 {
		return domain.CapturedEntry{}, fmt.Errorf("--url 值缺少 <index>.<title>：%q", v)
	}
	idx, err := strconv.Atoi(rest[:dot])
	if err != nil {
		return domain.CapturedEntry{}, fmt.Errorf("--url 序号无效：%q", v)
	}
	title := rest[dot+1:]
	if u == domain.URLNotFound {
		return domain.Missing(idx, title, domain.ReasonTimeout), nil
	}
	return domain.Captured(idx, title, u), nil
}
