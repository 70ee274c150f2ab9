package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/m3u8gen/internal/domain"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func TestParse_DefaultProfile(t *testing.T) {
	page, err := Parse(Default(), readFixture(t, "course.html"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if page.CourseTitle != "वीडियो श्रृंखला: Topic: Sub Topic" {
		t.Fatalf("课程标题不正确：%q", page.CourseTitle)
	}
	if len(page.Rows) != 6 {
		t.Fatalf("期望 6 行（含重复渲染），实际 %d", len(page.Rows))
	}

	want := []domain.VideoRow{
		{Ordinal: 0, Index: 1, ID: "video-0-0", RawTitle: "Intro to the course", HasTitle: true},
		{Ordinal: 1, Index: 2, ID: "video-0-1", RawTitle: "Don’t stop: part 2", HasTitle: true},
		{Ordinal: 2, Index: 3, ID: "video-0-2", HasTitle: false},
	}
	if diff := cmp.Diff(want, Canonical(Default(), page.Rows)); diff != "" {
		t.Fatalf("canonical 行不符合预期 (-want +got):\n%s", diff)
	}
}

func TestCanonical_HalfRoundsUp(t *testing.T) {
	rows := make([]domain.VideoRow, 5)
	for i := range rows {
		rows[i] = domain.VideoRow{Ordinal: i, Index: i + 1}
	}
	got := Canonical(Default(), rows)
	if len(got) != 3 {
		t.Fatalf("5 行时应取前 3 行，实际 %d", len(got))
	}
	if len(Canonical(Default(), nil)) != 0 {
		t.Fatalf("空输入应返回空")
	}
}

func TestCanonical_ByID(t *testing.T) {
	p := Default()
	p.Dedup = DedupID
	rows := []domain.VideoRow{
		{Ordinal: 0, ID: "a"}, {Ordinal: 1, ID: "b"}, {Ordinal: 2, ID: "a"}, {Ordinal: 3, ID: ""}, {Ordinal: 4, ID: ""},
	}
	got := Canonical(p, rows)
	var ords []int
	for _, r := range got {
		ords = append(ords, r.Ordinal)
	}
	if diff := cmp.Diff([]int{0, 1, 3, 4}, ords); diff != "" {
		t.Fatalf("按 id 去重结果不正确 (-want +got):\n%s", diff)
	}
}

func TestParse_EmptyHTML(t *testing.T) {
	if _, err := Parse(Default(), nil); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestProfile_OverrideAndValidate(t *testing.T) {
	p := Default().Override(Profile{ResourcePattern: "480p.m3u8", Dedup: "nope"})
	if p.ResourcePattern != "480p.m3u8" || p.RowSelector != Default().RowSelector {
		t.Fatalf("override 只应覆盖非空字段：%+v", p)
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("非法 dedup 应报错")
	}
}

func TestRegistry(t *testing.T) {
	r := Builtin()
	if _, ok := r.Get(" Course-Stages "); !ok {
		t.Fatalf("应能按不区分大小写的名称取到内置 profile")
	}
	if _, err := NewRegistry(Default(), Default()); err == nil {
		t.Fatalf("重复 profile 应报错")
	}
	if diff := cmp.Diff([]string{DefaultProfileName}, r.Names()); diff != "" {
		t.Fatalf("Names 不正确：%s", diff)
	}
}
