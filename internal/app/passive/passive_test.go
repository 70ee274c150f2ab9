package passive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/resource"
)

func TestCapture_DedupsAndNumbers(t *testing.T) {
	c := New("Course: One", "240p.m3u8", nil, nil)

	in := []string{
		"http://cdn.test/a/240p.m3u8",
		"http://cdn.test/a/480p.m3u8",
		"http://cdn.test/a/240p.m3u8",
		"http://cdn.test/b/240p.m3u8",
		"http://cdn.test/seg-001.ts",
	}
	for _, u := range in {
		c.Add(resource.Entry{Name: u})
	}

	want := []domain.CapturedEntry{
		domain.Captured(1, DefaultPlaceholder, "http://cdn.test/a/240p.m3u8"),
		domain.Captured(2, DefaultPlaceholder, "http://cdn.test/b/240p.m3u8"),
	}
	if diff := cmp.Diff(want, c.Buffer().Entries()); diff != "" {
		t.Fatalf("捕获结果不正确 (-want +got):\n%s", diff)
	}
	if c.Buffer().CourseTitle != "Course One" {
		t.Fatalf("课程名不正确：%q", c.Buffer().CourseTitle)
	}
}

func TestCapture_EmptyCourseFallsBack(t *testing.T) {
	c := New("  ", "240p.m3u8", nil, nil)
	if c.Buffer().CourseTitle != "Unknown_Course" {
		t.Fatalf("空课程名应回退为 Unknown_Course，实际 %q", c.Buffer().CourseTitle)
	}
}

func TestCapture_LateCourseTitle(t *testing.T) {
	c := New("", "240p.m3u8", nil, nil)
	c.Add(resource.Entry{Name: "http://x/240p.m3u8"})
	if c.CourseTitleKnown() {
		t.Fatalf("空课程名不应视为已知")
	}
	if c.SetCourseTitle(" ?: ") {
		t.Fatalf("清洗后为空的课程名不应被采用")
	}
	if !c.SetCourseTitle("Topic: Sub Topic") {
		t.Fatalf("回退名应被页面课程名替换")
	}
	if c.SetCourseTitle("Other") {
		t.Fatalf("已有课程名时不应再次替换")
	}
	rr := c.Report("http://page", time.Now())
	if c.Buffer().CourseTitle != "Topic Sub Topic" || rr.CourseTitle != "Topic Sub Topic" {
		t.Fatalf("课程名不正确：buffer=%q report=%q", c.Buffer().CourseTitle, rr.CourseTitle)
	}

	known := New("Course", "240p.m3u8", nil, nil)
	if !known.CourseTitleKnown() || known.SetCourseTitle("Other") {
		t.Fatalf("初始课程名有效时不应被替换")
	}
}

func TestCapture_TitlePolicyIsSanitized(t *testing.T) {
	titles := TitleFunc(func(i int, e resource.Entry) string { return fmt.Sprintf("Clip: %d?", i) })
	c := New("C", "240p.m3u8", titles, nil)

	e, ok := c.Add(resource.Entry{Name: "http://x/240p.m3u8"})
	if !ok || e.Title != "Clip_1" {
		t.Fatalf("标题应经过清洗：%+v ok=%v", e, ok)
	}

	c2 := New("C", "240p.m3u8", UnknownTitle{Placeholder: "Lecture"}, nil)
	e2, _ := c2.Add(resource.Entry{Name: "http://x/240p.m3u8"})
	if e2.Title != "Lecture" {
		t.Fatalf("占位标题应可配置：%+v", e2)
	}
}

func TestCapture_RunDrainsSubscription(t *testing.T) {
	j := resource.NewJournal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New("C", "240p.m3u8", nil, nil)
	got := make(chan domain.CapturedEntry, 4)
	c.OnCapture = func(e domain.CapturedEntry) { got <- e }

	ch := j.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, ch)
		close(done)
	}()

	j.Append(resource.Entry{Name: "http://x/1/240p.m3u8"})
	_ = j.Clear(ctx)
	j.Append(resource.Entry{Name: "http://x/2/240p.m3u8"})

	for i := 1; i <= 2; i++ {
		select {
		case e := <-got:
			if e.Index != i {
				t.Fatalf("期望序号 %d，实际 %d", i, e.Index)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("等待第 %d 条捕获超时", i)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ctx 取消后 Run 应返回")
	}

	rr := c.Report("https://example.test/course", time.Now())
	if rr.Mode != domain.ModePassive || rr.Summary.Captured != 2 || rr.RunID != c.Buffer().ID {
		t.Fatalf("report 不正确：%+v", rr)
	}
}
