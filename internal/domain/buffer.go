package domain

import "github.com/google/uuid"

// CommandBuffer 按处理顺序累积 CapturedEntry，外加只清洗一次的课程标题。
//
// 每次运行各自持有一个 buffer（不存在包级共享状态），便于多次独立运行与测试。
type CommandBuffer struct {
	ID          string
	CourseTitle string

	entries []CapturedEntry
}

func NewCommandBuffer(courseTitle string) *CommandBuffer {
	return &CommandBuffer{
		ID:          uuid.NewString(),
		CourseTitle: courseTitle,
		entries:     make([]CapturedEntry, 0, 64),
	}
}

// Append 是唯一的写入口：条目一旦追加就不可变。
func (b *CommandBuffer) Append(e CapturedEntry) {
	b.entries = append(b.entries, e)
}

// Entries 返回条目副本（调用方修改不影响 buffer）。
func (b *CommandBuffer) Entries() []CapturedEntry {
	return append([]CapturedEntry(nil), b.entries...)
}

func (b *CommandBuffer) Len() int { return len(b.entries) }

// Missing 统计捕获失败的条目数。
func (b *CommandBuffer) Missing() int {
	n := 0
	for _, e := range b.entries {
		if !e.Found {
			n++
		}
	}
	return n
}
