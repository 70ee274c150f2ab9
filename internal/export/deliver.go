package export

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/John-Robertt/m3u8gen/internal/infra/fsx"
)

// Clipboard 是系统剪贴板的最小接口（便于测试替换）。
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard 返回基于 atotto/clipboard 的实现。
func SystemClipboard() Clipboard { return systemClipboard{} }

// Delivery 描述命令最终交付到了哪里。
type Delivery struct {
	Path      string
	Clipboard bool
}

// DeliverError 表示文件写入失败；Clipboard=true 时内容已复制到剪贴板。
type DeliverError struct {
	WriteErr     error
	ClipboardErr error
	Clipboard    bool
}

func (e *DeliverError) Error() string {
	if e.Clipboard {
		return fmt.Sprintf("写入命令文件失败，已复制到剪贴板：%v", e.WriteErr)
	}
	return fmt.Sprintf("写入命令文件失败（%v），复制到剪贴板也失败（%v）", e.WriteErr, e.ClipboardErr)
}

func (e *DeliverError) Unwrap() error { return e.WriteErr }

// Deliver 把命令写入 dir/name（不覆盖已有文件）；写入失败时回退到剪贴板。
//
// 返回：
// - 写入成功：Delivery{Path}，nil
// - 写入失败但复制成功：Delivery{Clipboard:true}，*DeliverError（提示用户）
// - 都失败：Delivery{}，*DeliverError（调用方应直接打印命令）
func Deliver(dir, name, content string, clip Clipboard) (Delivery, error) {
	path, werr := fsx.WriteFileUnique(dir, name, []byte(content))
	if werr == nil {
		return Delivery{Path: path}, nil
	}

	if clip == nil {
		return Delivery{}, &DeliverError{WriteErr: werr, ClipboardErr: errors.New("剪贴板不可用")}
	}
	if cerr := clip.WriteAll(content); cerr != nil {
		return Delivery{}, &DeliverError{WriteErr: werr, ClipboardErr: cerr}
	}
	return Delivery{Clipboard: true}, &DeliverError{WriteErr: werr, Clipboard: true}
}
