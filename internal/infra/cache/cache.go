package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/m3u8gen/internal/infra/fsx"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
)

// Store 提供 <cache_dir>/ 下的文件缓存读写。
//
// 布局：
// - pages/<snake 课程名>.html：课程页快照（rows <课程名> 离线复查）
// - reports/<snake 课程名>.json：运行报告（--report）
//
// 约束：ReadOnly=true 时只允许读。
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// PagePath 返回课程页快照的路径。
func (s Store) PagePath(course string) (string, error) {
	key, err := cacheKey(course)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "pages", key+".html"), nil
}

// ReportPath 返回运行报告的路径。
func (s Store) ReportPath(course string) (string, error) {
	key, err := cacheKey(course)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "reports", key+".json"), nil
}

// ReadPage 读取课程页快照；不存在时返回 ok=false 且不报错。
func (s Store) ReadPage(course string) ([]byte, bool, error) {
	path, err := s.PagePath(course)
	if err != nil {
		return nil, false, err
	}
	return readIfExists(path)
}

// WritePage 写入快照并返回路径。
func (s Store) WritePage(course string, html []byte) (string, error) {
	path, err := s.PagePath(course)
	if err != nil {
		return "", err
	}
	return path, s.write(path, html)
}

// WriteReport 写入报告并返回路径（同名覆盖，只保留最近一次）。
func (s Store) WriteReport(course string, b []byte) (string, error) {
	path, err := s.ReportPath(course)
	if err != nil {
		return "", err
	}
	return path, s.write(path, b)
}

func (s Store) write(path string, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), data)
}

func readIfExists(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// cacheKey 复用标题清洗规则：清洗后的 snake 形式不含路径分隔符。
func cacheKey(course string) (string, error) {
	k := sanitize.Snake(course)
	if k == "" {
		return "", fmt.Errorf("课程名清洗后为空：%q", course)
	}
	return k, nil
}
