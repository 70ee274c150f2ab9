package fsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename/link 失败。
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
)

// maxUniqueTries 限制 "name (n).ext" 的尝试次数。
const maxUniqueTries = 1000

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），已存在则覆盖。
// 用于 cache 下的快照与 report 等内部状态。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644, renameFunc)
}

// WriteFileAtomicNoOverwrite 在 dir 下原子写入 name；目标已存在时返回 os.ErrExist，
// 目标是目录或其它非普通文件时返回 *PathTypeConflictError。
// 并发写同一个 name 时只有一个调用成功。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644, publishNoOverwrite)
}

// publishNoOverwrite 用硬链接发布临时文件：目标已存在时 link 原子失败。
func publishNoOverwrite(tmp, dst string) error {
	err := linkFunc(tmp, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		if cerr := checkAbsent(dst); cerr != nil {
			return cerr
		}
		return os.ErrExist
	}
	// 文件系统不支持硬链接时退回“检查后 rename”。
	if cerr := checkAbsent(dst); cerr != nil {
		return cerr
	}
	return renameFunc(tmp, dst)
}

// WriteFileUnique 与浏览器下载的命名行为一致：name 已存在时依次尝试
// "stem (1).ext"、"stem (2).ext"……，返回最终写入的绝对路径。
// 命令文件属于用户产物，永不覆盖。
func WriteFileUnique(dir, name string, data []byte) (string, error) {
	dir = filepath.Clean(dir)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxUniqueTries; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		err := WriteFileAtomicNoOverwrite(dir, candidate, data)
		if err == nil {
			abs, e := filepath.Abs(filepath.Join(dir, candidate))
			if e != nil {
				return filepath.Join(dir, candidate), nil
			}
			return abs, nil
		}
		if errors.Is(err, os.ErrExist) || IsPathTypeConflict(err) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("%s：尝试 %d 个文件名均已存在", filepath.Join(dir, name), maxUniqueTries)
}

func checkAbsent(dst string) error {
	fi, err := os.Lstat(dst)
	if err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
		}
		return os.ErrExist
	}
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// writeFileAtomic 先写同目录临时文件，再用 publish 把它放到最终路径。
// 临时文件在返回前总会被删除（link 发布后删除的只是多余的名字）。
func writeFileAtomic(dir, name string, data []byte, perm os.FileMode, publish func(tmp, dst string) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 同目录临时文件，保证 rename 原子；前缀带 '.'，不在下载目录里显眼。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := publish(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	// 目录 fsync：best-effort。
	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
