package httpx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError 表示服务端返回了非 2xx 状态码。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NotPlaylistError 表示响应成功但内容不是 HLS 播放列表。
type NotPlaylistError struct {
	URL  string
	Head string
}

func (e *NotPlaylistError) Error() string {
	return fmt.Sprintf("响应不是 m3u8 播放列表（开头：%q）", e.Head)
}

// maxHeadBytes 只读取响应开头，足够判断 #EXTM3U 标记。
const maxHeadBytes = 512

// ProbeManifest 请求 rawURL 并确认它返回 HLS 播放列表（首个非空行以 #EXTM3U 开头）。
func ProbeManifest(ctx context.Context, c *http.Client, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxHeadBytes))
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	sc := bufio.NewScanner(io.LimitReader(resp.Body, maxHeadBytes))
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTM3U") {
			return nil
		}
		return &NotPlaylistError{URL: rawURL, Head: line}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return &NotPlaylistError{URL: rawURL}
}
