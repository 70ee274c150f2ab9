package site

import (
	"fmt"
	"strings"
)

// 行去重策略：页面会把每一行渲染两遍。
const (
	DedupHalf = "half" // 只取前 ⌈n/2⌉ 行
	DedupID   = "id"   // 按元素 id 保留首次出现
)

const DefaultProfileName = "course-stages"

// Profile 把“站点结构”限制在一组选择器里；核心流程只依赖 Profile 与 Parse 的结果。
//
// 约束：选择器视为外部配置，不在代码里做任何站点特例判断。
type Profile struct {
	Name string

	CourseTitleSelector string
	RowSelector         string
	// RowTitleSelector 相对行元素查找标题（同时也是点击目标）。
	RowTitleSelector string

	// ResourcePattern 是清单请求 URL 需要包含的子串。
	ResourcePattern string

	Dedup string
}

// Default 返回内置的 course-stages 页面配置。
func Default() Profile {
	return Profile{
		Name:                DefaultProfileName,
		CourseTitleSelector: "#course-stages .z-10 > div > div > div",
		RowSelector:         `[id^="video-0-"]`,
		RowTitleSelector:    "div > div > p",
		ResourcePattern:     "240p.m3u8",
		Dedup:               DedupHalf,
	}
}

// Validate 检查必填字段与枚举值。
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile.name 不能为空")
	}
	if strings.TrimSpace(p.RowSelector) == "" {
		return fmt.Errorf("profile %q：row 选择器不能为空", p.Name)
	}
	if strings.TrimSpace(p.RowTitleSelector) == "" {
		return fmt.Errorf("profile %q：row_title 选择器不能为空", p.Name)
	}
	if strings.TrimSpace(p.ResourcePattern) == "" {
		return fmt.Errorf("profile %q：pattern 不能为空", p.Name)
	}
	switch p.Dedup {
	case DedupHalf, DedupID:
		return nil
	default:
		return fmt.Errorf("profile %q：dedup 只能是 half 或 id，实际是 %q", p.Name, p.Dedup)
	}
}

// Override 用非空字段覆盖 p（配置文件里的 selectors 段）。
func (p Profile) Override(o Profile) Profile {
	if v := strings.TrimSpace(o.CourseTitleSelector); v != "" {
		p.CourseTitleSelector = v
	}
	if v := strings.TrimSpace(o.RowSelector); v != "" {
		p.RowSelector = v
	}
	if v := strings.TrimSpace(o.RowTitleSelector); v != "" {
		p.RowTitleSelector = v
	}
	if v := strings.TrimSpace(o.ResourcePattern); v != "" {
		p.ResourcePattern = v
	}
	if v := strings.TrimSpace(o.Dedup); v != "" {
		p.Dedup = v
	}
	return p
}
