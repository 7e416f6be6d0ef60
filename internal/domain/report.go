package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	HookLoad      = "load"
	HookPreBuild  = "pre_build"
	HookPostBuild = "post_build"
	HookUnload    = "unload"
)

const (
	// StatusApplied 表示 pre-build 生效：备份 + 收窄完成，搬离已执行。
	StatusApplied = "applied"
	// StatusRestored 表示恢复完成且无遗留记录。
	StatusRestored = "restored"
	// StatusPartial 表示恢复后仍有遗留记录（已写入账本等待重试）。
	StatusPartial = "partial"
	// StatusSkipped 表示前置条件不满足，未做任何变更。
	StatusSkipped = "skipped"
	// StatusFailed 表示阶段级失败（状态未变更，或已尽力恢复）。
	StatusFailed = "failed"
)

const (
	ErrCodeConfigMissing = "config_missing"
	ErrCodeNotFound      = "not_found"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeRefreshFailed = "refresh_failed"
	ErrCodeDataInvalid   = "data_invalid"
	ErrCodeStateConflict = "state_conflict"
)

const (
	ResourceStatusEvicted  = "evicted"
	ResourceStatusRestored = "restored"
	ResourceStatusSkipped  = "skipped"
	ResourceStatusFailed   = "failed"
)

// HookReport 是单次生命周期钩子的对外稳定输出（stdout JSON / 日志附件）。
// 钩子永不向宿主抛错：失败只体现在 Status / ErrorCode 与逐资源结果里。
type HookReport struct {
	Hook    string `json:"hook"`
	RunID   string `json:"run_id"`
	Project string `json:"project"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// I18NRestored 表示本地化文件已恢复（post_build/unload 的文件阶段）。
	I18NRestored bool `json:"i18n_restored"`

	Summary   HookSummary      `json:"summary"`
	Resources []ResourceResult `json:"resources"`
}

type HookSummary struct {
	Evicted  int `json:"evicted"`
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	// Remaining 是钩子结束后账本内的遗留记录数（由控制器在落账后填写）。
	Remaining int `json:"remaining"`
}

// ResourceResult 是单个资源在某阶段的处理结果。
type ResourceResult struct {
	ResourceID string `json:"resource_id"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code"`
	ErrorMsg   string `json:"error_msg"`

	Src string `json:"src"`
	Dst string `json:"dst"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) resources 稳定排序：按 resource_id 字典序；id=="" 的条目排在最后
// 3) summary 的 evicted/restored/skipped/failed 由 resources 计算
// Remaining 不由此计算：它来自落账后的账本长度，调用方已填好则保持不动。
func (r *HookReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Resources, func(i, j int) bool {
		a := r.Resources[i].ResourceID
		b := r.Resources[j].ResourceID
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	remaining := r.Summary.Remaining
	var s HookSummary
	for _, res := range r.Resources {
		switch res.Status {
		case ResourceStatusEvicted:
			s.Evicted++
		case ResourceStatusRestored:
			s.Restored++
		case ResourceStatusSkipped:
			s.Skipped++
		case ResourceStatusFailed:
			s.Failed++
		}
	}
	s.Remaining = remaining
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r HookReport) MarshalJSON() ([]byte, error) {
	type Alias HookReport
	return json.Marshal(Alias(r))
}
