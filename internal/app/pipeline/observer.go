package pipeline

import (
	"time"

	"github.com/John-Robertt/LocPack/internal/config"
	"github.com/John-Robertt/LocPack/internal/domain"
)

// Observer 把“钩子进度/阶段/逐资源结果”从流水线里解耦出来。
//
// 约束：
// - 流水线只发事件，不做任何输出（stdout 的 JSON 契约归 CLI 管）。
// - 实现必须并发安全：资源级事件可能来自批处理 goroutine。
type Observer interface {
	// OnHookStart 在钩子开始时调用（尽量早，保证用户很快看到输出）。
	OnHookStart(hook string, eff config.Effective)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(hook, phase string, fields map[string]any, dur time.Duration)
	// OnResourceDone 在单个资源处理完成时调用（搬离或回迁）。
	OnResourceDone(hook string, idx, total int, res domain.ResourceResult, dur time.Duration)
}
