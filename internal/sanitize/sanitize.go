// Package sanitize 把页面上的原始文本清洗为可安全放进 shell 双引号参数、
// 也可直接作为文件/目录名的字符串。
//
// 所有函数都是幂等的：对已清洗的文本再次清洗，结果不变。
package sanitize

import (
	"regexp"
	"strings"
)

const (
	DefaultCourseTitle = "Downloaded_Course"
	UnknownCourseTitle = "Unknown_Course"
)

// illegal 覆盖文件系统非法字符与 shell 特殊字符（含排版用的右单引号 ’）。
var illegal = func() map[rune]struct{} {
	m := make(map[rune]struct{}, 40)
	for _, r := range "!@#$%^&()[]{};',.`~+=|/\\*?<>:\"’" {
		m[r] = struct{}{}
	}
	return m
}()

// boilerplate 是站点在标题里附带的本地化前缀/后缀。
var boilerplate = regexp.MustCompile(`वीडियो श्रृंखला|Video Series`)

// Clean 去掉非法字符与样板短语，空白折叠为单个空格并去掉首尾空白。
func Clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if _, bad := illegal[r]; bad {
			return -1
		}
		return r
	}, s)
	s = collapse(s)

	// 删除短语后折叠空白可能拼出新的短语（例如 "Video Video Series Series"），
	// 因此循环到不动点；每轮字符串严格变短或结束。
	for {
		next := collapse(boilerplate.ReplaceAllString(s, ""))
		if next == s {
			return s
		}
		s = next
	}
}

// Snake 是 Clean 的文件名形式：空格替换为下划线。
func Snake(s string) string {
	return strings.ReplaceAll(Clean(s), " ", "_")
}

// CleanOr 在清洗结果为空时返回 fallback。
func CleanOr(s, fallback string) string {
	if c := Clean(s); c != "" {
		return c
	}
	return fallback
}

// SnakeOr 在清洗结果为空时返回 fallback 的 snake 形式。
func SnakeOr(s, fallback string) string {
	if c := Snake(s); c != "" {
		return c
	}
	return Snake(fallback)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
