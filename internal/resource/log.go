// Package resource 抽象浏览器“最近完成的网络请求记录”（resource timing），
// 并在其上实现轮询式等待与订阅式捕获。
package resource

import (
	"context"
	"strings"
	"time"
)

// Entry 是一条已完成的资源请求。Name 与浏览器 PerformanceResourceTiming.name 一致（即 URL）。
type Entry struct {
	Name string
	Type string
	At   time.Time
}

// Log 是可读、可清空的资源记录。
//
// 约束：Clear 之后 Entries 不得再返回 Clear 之前的条目；
// 这是“上一轮的匹配不会被误当成本轮结果”的唯一保证。
type Log interface {
	Entries(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
}

// Subscriber 提供新条目的推送（被动捕获模式使用）。
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan Entry
}

// Match 返回一个按子串匹配 Name 的谓词。
func Match(pattern string) func(Entry) bool {
	return func(e Entry) bool {
		return pattern != "" && strings.Contains(e.Name, pattern)
	}
}

// First 返回第一条匹配的条目（按记录顺序）。
func First(entries []Entry, pattern string) (Entry, bool) {
	m := Match(pattern)
	for _, e := range entries {
		if m(e) {
			return e, true
		}
	}
	return Entry{}, false
}
