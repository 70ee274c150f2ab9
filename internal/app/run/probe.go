package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/infra/httpx"
)

// Probe 逐个请求已捕获的清单 URL，确认它们返回 HLS 播放列表。
// 请求失败的条目在 report 中标记为 unreachable；命令内容不受影响。
//
// 只在提取循环结束后调用，并发度由 workers 限制（worker pool）。
func Probe(ctx context.Context, c *http.Client, rr *domain.RunReport, workers int, obs Observer) {
	if obs == nil {
		obs = nopObserver{}
	}
	started := time.Now()

	targets := make([]int, 0, len(rr.Items))
	for i, it := range rr.Items {
		if it.Status == domain.StatusCaptured && it.URL != "" {
			targets = append(targets, i)
		}
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(targets) && len(targets) > 0 {
		workers = len(targets)
	}

	type probeResult struct {
		i   int
		err error
		dur time.Duration
	}

	jobs := make(chan int)
	results := make(chan probeResult, len(targets))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				oneStarted := time.Now()
				err := httpx.ProbeManifest(ctx, c, rr.Items[i].URL)
				results <- probeResult{i: i, err: err, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for _, i := range targets {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	done, unreachable := 0, 0
	for res := range results {
		done++
		item := &rr.Items[res.i]
		if res.err != nil {
			unreachable++
			item.Status = domain.StatusUnreachable
			item.ErrorCode = domain.ErrCodeProbeFailed
			item.ErrorMsg = humanizeProbeError(res.err)
		}
		obs.OnRowDone(done, len(targets), *item, res.dur)
	}

	rr.Finalize()
	obs.OnPhaseDone(PhaseProbe, map[string]any{
		"checked":     done,
		"unreachable": unreachable,
	}, time.Since(started))
}

func humanizeProbeError(err error) string {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Sprintf("HTTP %d：清单需要登录态或已过期（签名 URL 通常有时效）", se.StatusCode)
		case http.StatusNotFound:
			return "HTTP 404：清单不存在"
		default:
			return se.Error()
		}
	}
	var npe *httpx.NotPlaylistError
	if errors.As(err, &npe) {
		return npe.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "探测被中断或超时"
	}
	return err.Error()
}
