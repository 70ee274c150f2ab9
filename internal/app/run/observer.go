package run

import (
	"time"

	"github.com/John-Robertt/m3u8gen/internal/config"
	"github.com/John-Robertt/m3u8gen/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：探测阶段的事件来自多个 goroutine。
type Observer interface {
	// OnStart 在 Execute 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnRowDone 在某一行处理完成时调用（捕获、缺失或探测结果）。
	OnRowDone(idx, total int, res domain.ItemResult, dur time.Duration)
}

// 阶段名（OnPhaseDone 的 name）。
const (
	PhaseRows     = "rows"
	PhaseCapture  = "capture"
	PhaseCanceled = "canceled"
	PhaseProbe    = "probe"
)

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnRowDone(int, int, domain.ItemResult, time.Duration) {}
