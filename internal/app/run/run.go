// Package run 实现主动提取流程：逐行点击、等待清单请求、记录结果。
package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
	"github.com/John-Robertt/m3u8gen/internal/resource"
	"github.com/John-Robertt/m3u8gen/internal/sanitize"
	"github.com/John-Robertt/m3u8gen/internal/site"
)

// Clicker 是提取循环对浏览器的唯一写操作。
type Clicker interface {
	Click(ctx context.Context, rowSelector, titleSelector string, ordinal int) error
}

// Input 是一次主动提取需要的全部外部依赖。
type Input struct {
	// Page 是点击前的页面快照解析结果；行的 Ordinal 必须与页面上的元素顺序一致。
	Page    site.Page
	Clicker Clicker
	Log     resource.Log
	Logger  *slog.Logger
}

// Result 是一次提取的结果。Buffer 中每个可处理的行恰好对应一条记录。
type Result struct {
	Buffer   *domain.CommandBuffer
	Report   domain.RunReport
	Canceled bool
}

// Execute 执行主动提取循环，返回命令缓冲区与 RunReport（Output/Clipboard 由交付方填写）。
//
// 每一行严格按顺序：清空记录 -> 点击 -> 等待页面稳定 -> 等待清单 -> 记录 -> 等待页面稳定。
// 第 N+1 行只会在第 N 行的等待结束、且记录被清空之后开始。
//
// ctx 取消时：尚未处理的行（含正在处理的行）都记为 canceled 缺失，
// 保证“行数 == 命令条目数”，调用方仍可导出部分结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, in Input, obs Observer) Result {
	if obs == nil {
		obs = nopObserver{}
	}
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}
	started := time.Now().UTC()
	obs.OnStart(eff)

	rowsStarted := time.Now()
	rows := site.Canonical(eff.Profile, in.Page.Rows)
	if eff.Order == config.OrderDesc {
		reverse(rows)
	}

	buf := domain.NewCommandBuffer(sanitize.CleanOr(in.Page.CourseTitle, sanitize.DefaultCourseTitle))
	rr := domain.RunReport{
		RunID:       buf.ID,
		Mode:        domain.ModeActive,
		URL:         eff.URL,
		CourseTitle: buf.CourseTitle,
		StartedAt:   started,
		Items:       make([]domain.ItemResult, 0, len(rows)),
	}

	work := make([]domain.VideoRow, 0, len(rows))
	for _, r := range rows {
		if !r.HasTitle {
			rr.Items = append(rr.Items, skippedItem(r))
			continue
		}
		work = append(work, r)
	}
	obs.OnPhaseDone(PhaseRows, map[string]any{
		"found":     len(in.Page.Rows),
		"canonical": len(rows),
		"skipped":   len(rows) - len(work),
		"order":     eff.Order,
	}, time.Since(rowsStarted))

	waiter := resource.Waiter{Log: in.Log, Interval: eff.Poll, Logger: logger}
	placeholder := eff.PlaceholderTitle

	captureStarted := time.Now()
	done := 0
	canceled := false
	for i, r := range work {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		oneStarted := time.Now()
		title := sanitize.SnakeOr(r.RawTitle, placeholder)

		entry, ok := captureOne(ctx, eff, in, waiter, r, title, logger)
		if !ok {
			canceled = true
			break
		}
		buf.Append(entry)
		item := domain.ItemFromEntry(entry)
		rr.Items = append(rr.Items, item)
		done++
		obs.OnRowDone(done, len(work), item, time.Since(oneStarted))

		if i < len(work)-1 {
			if err := sleep(ctx, eff.RowSettle); err != nil {
				canceled = true
				break
			}
		}
	}
	obs.OnPhaseDone(PhaseCapture, map[string]any{
		"captured": len(buf.Entries()) - buf.Missing(),
		"missing":  buf.Missing(),
	}, time.Since(captureStarted))

	if canceled {
		rest := work[done:]
		for _, r := range rest {
			e := domain.Missing(r.Index, sanitize.SnakeOr(r.RawTitle, placeholder), domain.ReasonCanceled)
			buf.Append(e)
			rr.Items = append(rr.Items, domain.ItemFromEntry(e))
		}
		obs.OnPhaseDone(PhaseCanceled, map[string]any{"rows": len(rest)}, 0)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return Result{Buffer: buf, Report: rr, Canceled: canceled}
}

// captureOne 处理单行。返回 ok=false 表示 ctx 已取消（该行未完成）。
func captureOne(ctx context.Context, eff config.EffectiveConfig, in Input, waiter resource.Waiter, r domain.VideoRow, title string, logger *slog.Logger) (domain.CapturedEntry, bool) {
	if err := in.Log.Clear(ctx); err != nil {
		if ctx.Err() != nil {
			return domain.CapturedEntry{}, false
		}
		// 清空失败时上一行的清单可能仍在记录里，宁可记为缺失也不输出错配的 URL。
		logger.WarnContext(ctx, "clear resource log failed", "index", r.Index, "err", err)
		return domain.Missing(r.Index, title, domain.ReasonTimeout), true
	}

	if err := in.Clicker.Click(ctx, eff.Profile.RowSelector, eff.Profile.RowTitleSelector, r.Ordinal); err != nil {
		if ctx.Err() != nil {
			return domain.CapturedEntry{}, false
		}
		logger.WarnContext(ctx, "click row failed", "index", r.Index, "err", err)
		return domain.Missing(r.Index, title, domain.ReasonClickFailed), true
	}

	if err := sleep(ctx, eff.ClickSettle); err != nil {
		return domain.CapturedEntry{}, false
	}

	e, found, err := waiter.Wait(ctx, eff.Profile.ResourcePattern, eff.Timeout)
	if err != nil {
		return domain.CapturedEntry{}, false
	}
	if !found {
		logger.DebugContext(ctx, "manifest not observed before timeout", "index", r.Index, "timeout", eff.Timeout)
		return domain.Missing(r.Index, title, domain.ReasonTimeout), true
	}
	return domain.Captured(r.Index, title, e.Name), true
}

func skippedItem(r domain.VideoRow) domain.ItemResult {
	return domain.ItemResult{
		Index:     r.Index,
		Status:    domain.StatusSkipped,
		ErrorCode: domain.ErrCodeNoTitle,
		ErrorMsg:  "行内没有标题元素，已跳过",
	}
}

// sleep 是可取消的固定等待。
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func reverse(rows []domain.VideoRow) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
