package site

import (
	"fmt"
	"sort"
	"strings"
)

// Registry 是 profile 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Profile
}

func NewRegistry(profiles ...Profile) (Registry, error) {
	byName := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return Registry{}, fmt.Errorf("profile.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 profile：%q", name)
		}
		if err := p.Validate(); err != nil {
			return Registry{}, err
		}
		p.Name = name
		byName[name] = p
	}
	return Registry{byName: byName}, nil
}

// Builtin 返回只含内置 profile 的注册表。
func Builtin() Registry {
	r, err := NewRegistry(Default())
	if err != nil {
		panic(err)
	}
	return r
}

func (r Registry) Get(name string) (Profile, bool) {
	if r.byName == nil {
		return Profile{}, false
	}
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names 返回已注册的 profile 名（排序后，便于错误提示）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
