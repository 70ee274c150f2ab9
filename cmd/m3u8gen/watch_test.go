package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/John-Robertt/m3u8gen/internal/site"
)

type fakeTitlePage struct {
	html    string
	waitErr error
	waited  []string
}

func (f *fakeTitlePage) WaitVisible(_ context.Context, selector string) error {
	f.waited = append(f.waited, selector)
	return f.waitErr
}

func (f *fakeTitlePage) Snapshot(context.Context) ([]byte, error) {
	if f.html == "" {
		return nil, errors.New("no page")
	}
	return []byte(f.html), nil
}

func TestReadCourseTitle_WaitsForSelector(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := site.Profile{CourseTitleSelector: "h1.course", RowSelector: "li"}
	page := &fakeTitlePage{html: `<html><body><h1 class="course"> Topic  Sub Topic </h1></body></html>`}

	if got := readCourseTitle(context.Background(), page, p, time.Second, logger); got != "Topic Sub Topic" {
		t.Fatalf("课程名不正确：%q", got)
	}
	if len(page.waited) != 1 || page.waited[0] != "h1.course" {
		t.Fatalf("应先等待课程名元素：%v", page.waited)
	}

	// 等待超时仍然读取快照，读不到课程名时返回空。
	late := &fakeTitlePage{html: `<html><body></body></html>`, waitErr: context.DeadlineExceeded}
	if got := readCourseTitle(context.Background(), late, p, time.Second, logger); got != "" {
		t.Fatalf("页面没有课程名时应返回空，实际 %q", got)
	}

	again := &fakeTitlePage{}
	if got := readCourseTitle(context.Background(), again, p, 0, logger); got != "" || len(again.waited) != 0 {
		t.Fatalf("wait=0 不应等待，快照失败应返回空：got=%q waited=%v", got, again.waited)
	}
}
