// Package verify 检查下载结果：按命令文件核对下载目录里缺了哪些序号，
// 并在课程目录名与页面标题不完全一致时给出最接近的候选目录。
package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/export"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
)

// MinScore 是认定“同一课程目录”的最低 Jaro-Winkler 相似度。
const MinScore = 0.85

var indexedFileRE = regexp.MustCompile(`^(\d+)\.`)

// ScanIndexes 返回 dir 下形如 "<n>.<...>" 的文件序号（升序、去重）。
// 只看当前目录的普通文件，不递归。
func ScanIndexes(dir string) ([]int, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(ents))
	out := make([]int, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		m := indexedFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// MissingIndexes 返回 [lo, hi] 中不在 found 里的序号。
// lo/hi 任一 <= 0 时使用 found 的最小/最大值（没有命令文件时的推断方式）。
func MissingIndexes(found []int, lo, hi int) []int {
	if len(found) == 0 && (lo <= 0 || hi <= 0) {
		return []int{}
	}
	if lo <= 0 {
		lo = found[0]
	}
	if hi <= 0 {
		hi = found[len(found)-1]
	}
	have := make(map[int]struct{}, len(found))
	for _, n := range found {
		have[n] = struct{}{}
	}
	out := []int{}
	for n := lo; n <= hi; n++ {
		if _, ok := have[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Result 是一次核对的结果。
type Result struct {
	Folder string
	Found  []int
	// Missing 是应有但目录里没有的序号。
	Missing []int
	// MissingEntries 是 Missing 对应的命令条目（仅在有命令文件时）。
	MissingEntries []domain.CapturedEntry
	// NotCaptured 是命令里本来就没有 URL 的条目（下载器无法处理）。
	NotCaptured []domain.CapturedEntry
}

// Check 按命令文件核对 folder。
func Check(cmd export.Parsed, folder string) (Result, error) {
	found, err := ScanIndexes(folder)
	if err != nil {
		return Result{}, err
	}
	res := Result{Folder: folder, Found: found, Missing: []int{}}

	have := make(map[int]struct{}, len(found))
	for _, n := range found {
		have[n] = struct{}{}
	}
	entries := append([]domain.CapturedEntry(nil), cmd.Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	for _, e := range entries {
		if !e.Found {
			res.NotCaptured = append(res.NotCaptured, e)
		}
		if _, ok := have[e.Index]; ok {
			continue
		}
		res.Missing = append(res.Missing, e.Index)
		res.MissingEntries = append(res.MissingEntries, e)
	}
	return res, nil
}

// Match 是一个候选课程目录。
type Match struct {
	Name  string
	Path  string
	Score float64
}

// ClosestFolder 在 root 的一级子目录中找与 course 最接近的目录。
// 比较前两边都去掉“Video Series”一类固定前缀与符号，并忽略大小写与下划线。
//
// ok=false 表示最高分低于 MinScore（此时仍返回最高分的候选，便于提示）。
func ClosestFolder(root, course string) (best Match, ok bool, err error) {
	ents, err := os.ReadDir(root)
	if err != nil {
		return Match{}, false, err
	}
	want := normalize(course)
	if want == "" {
		return Match{}, false, fmt.Errorf("课程名为空")
	}
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		got := normalize(e.Name())
		if got == "" {
			continue
		}
		score := 1.0
		if got != want {
			score = matchr.JaroWinkler(want, got, false)
		}
		if score > best.Score {
			best = Match{Name: e.Name(), Path: filepath.Join(root, e.Name()), Score: score}
		}
	}
	return best, best.Name != "" && best.Score >= MinScore, nil
}

func normalize(s string) string {
	return strings.ToLower(sanitize.Clean(strings.ReplaceAll(s, "_", " ")))
}
