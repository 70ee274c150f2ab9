// Package httpx 提供清单探测用的 HTTP client 与请求。
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const probeTimeout = 20 * time.Second

// browserUA 与常见桌面 Chrome 一致；清单 CDN 经常拒绝 Go 默认 UA。
const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// pageHeaders 让探测请求看起来像是课程页里的播放器发出的。
// 调用方已设置的同名请求头不会被覆盖。
type pageHeaders struct {
	base   http.RoundTripper
	header http.Header
}

func (t *pageHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	r := req.Clone(req.Context())
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	for k, vs := range t.header {
		if r.Header.Get(k) == "" {
			r.Header[k] = append([]string(nil), vs...)
		}
	}
	return t.base.RoundTrip(r)
}

// NewProbeClient 构造用于清单探测的 HTTP client。
//
// proxyURL 非空时所有请求都走该代理（与浏览器使用同一出口）；
// referer 通常是课程页地址，非空时随请求发送。
func NewProbeClient(proxyURL, referer string) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("代理地址无效：%q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
	}

	h := http.Header{}
	h.Set("User-Agent", browserUA)
	h.Set("Accept", "application/vnd.apple.mpegurl, */*")
	if referer = strings.TrimSpace(referer); referer != "" {
		h.Set("Referer", referer)
	}
	return &http.Client{
		Transport: &pageHeaders{base: base, header: h},
		Timeout:   probeTimeout,
	}, nil
}
