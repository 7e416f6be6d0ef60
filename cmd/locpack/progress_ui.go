package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/LocPack/internal/app/pipeline"
	"github.com/John-Robertt/LocPack/internal/config"
	"github.com/John-Robertt/LocPack/internal/domain"
)

var _ pipeline.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：流水线只发事件，CLI 决定如何展示
// - 资源级事件可能来自批处理 goroutine，输出必须串行化
type progressUI struct {
	w io.Writer

	mu sync.Mutex
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnHookStart(hook string, eff config.Effective) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] locpack %s\n", time.Now().Format("15:04:05"), hook)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  export_dir: %s\n", orUnset(eff.ExportDirURL))
	fmt.Fprintf(p.w, "  staging_dir: %s\n", eff.StagingDir)
	fmt.Fprintf(p.w, "  restore_batch: %d (pause=%s)\n", eff.RestoreBatchSize, eff.BatchPause)
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(hook, phase string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch phase {
	case "backup":
		fmt.Fprintf(p.w, "备份: %s (%s)\n",
			truncate(stringField(fields, "file"), 120), formatShortDuration(dur),
		)
	case "analyze":
		fmt.Fprintf(p.w, "分析: default=%d non_default=%d to_move=%d (%s)\n",
			intField(fields, "default"), intField(fields, "non_default"), intField(fields, "to_move"),
			formatShortDuration(dur),
		)
	case "evict":
		fmt.Fprintf(p.w, "搬离: evicted=%d failed=%d (%s)\n",
			intField(fields, "evicted"), intField(fields, "failed"), formatShortDuration(dur),
		)
	case "file_restore":
		fmt.Fprintf(p.w, "主文件: restored=%v (%s)\n",
			boolField(fields, "restored"), formatShortDuration(dur),
		)
	case "restore":
		fmt.Fprintf(p.w, "回迁: total=%d failed=%d (%s)\n",
			intField(fields, "total"), intField(fields, "failed"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s/%s (%s)\n", hook, phase, formatShortDuration(dur))
	}
}

func (p *progressUI) OnResourceDone(hook string, idx, total int, res domain.ResourceResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := res.ResourceID
	if id == "" {
		id = "<unknown>"
	}

	switch res.Status {
	case domain.ResourceStatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, id, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.ResourceStatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP %s (%s)\n",
			idx, total, id, truncate(res.ErrorMsg, 120), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s OK (%s)\n",
			idx, total, id, formatShortDuration(dur),
		)
	}
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return "<未配置>"
	}
	return s
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func boolField(fields map[string]any, key string) bool {
	if fields == nil {
		return false
	}
	if b, ok := fields[key].(bool); ok {
		return b
	}
	return false
}
