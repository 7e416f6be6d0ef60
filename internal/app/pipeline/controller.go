// Package pipeline 把资源排除流水线编排在三个生命周期钩子上：
// 构建前（备份 + 收窄 + 搬离）、构建后（回迁）、卸载（兜底回迁）。
//
// 约束：
// - 钩子永不向宿主抛错：所有失败都降级为报告里的状态与条目
// - 单资源失败不影响其余资源
// - 回迁可重复调用：剩余记录持久化在暂存目录，跨进程可重试
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/John-Robertt/LocPack/internal/analyze"
	"github.com/John-Robertt/LocPack/internal/assetdb"
	"github.com/John-Robertt/LocPack/internal/config"
	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
	"github.com/John-Robertt/LocPack/internal/infra/logx"
	"github.com/John-Robertt/LocPack/internal/staging"
)

// State 是控制器的生命周期位置。
type State string

const (
	StateIdle             State = "idle"
	StatePreBuildApplied  State = "pre_build_applied"
	StatePostBuildRestore State = "post_build_restoring"
)

// SurfaceHookErrors 提示宿主把钩子报告里的失败当真并终止打包。
// 内部代码从不依赖该传播路径：钩子本身永不抛错。
var SurfaceHookErrors = true

// Controller 持有一次扩展生命周期内的全部可变状态：
// 状态机位置、待回迁记录、数据集备份、在飞的后台回迁任务。
type Controller struct {
	gw    assetdb.Gateway
	store staging.Store
	eff   config.Effective
	log   *slog.Logger
	obs   Observer

	mu      sync.Mutex
	state   State
	records []domain.MovedFileRecord
	backup  *domain.BackupInfo
	bg      *bgTask
}

// bgTask 是构建后派生的后台资源回迁。results/remaining 在 done
// 关闭之前写入，读取方必须先等 done。
type bgTask struct {
	done      chan struct{}
	results   []domain.ResourceResult
	remaining int
}

func New(gw assetdb.Gateway, eff config.Effective, log *slog.Logger, obs Observer) (*Controller, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway 不能为空")
	}
	if log == nil {
		log = logx.Nop()
	}
	return &Controller{
		gw:    gw,
		store: staging.New(eff.StagingDir),
		eff:   eff,
		log:   log,
		obs:   obs,
		state: StateIdle,
	}, nil
}

// State 返回当前状态（诊断与测试用）。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PendingRecords 返回内存里尚未回迁的记录数。
func (c *Controller) PendingRecords() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Load 装载钩子。失败清单的自动重放是休眠路径：这里只感知并提示，
// 真正的合并发生在回迁阶段。
func (c *Controller) Load(ctx context.Context) (rep domain.HookReport) {
	rep = c.newReport(domain.HookLoad)
	if c.obs != nil {
		c.obs.OnHookStart(domain.HookLoad, c.eff)
	}
	defer func() { rep.FinishedAt = time.Now().UTC(); rep.Finalize() }()

	if records, ok, err := c.store.LoadLedger(); err != nil {
		c.log.Warn("读取失败清单出错", "err", err)
	} else if ok {
		c.log.Info("检测到上次运行的失败清单", "count", len(records))
		rep.Summary.Remaining = len(records)
	}
	rep.Status = domain.StatusSkipped
	return rep
}

// PreBuild 构建前钩子：备份并收窄主数据文件，然后把非默认语言独占的
// 图片资源搬进暂存目录。失败不抛出，报告状态说明结局。
func (c *Controller) PreBuild(ctx context.Context) (rep domain.HookReport) {
	rep = c.newReport(domain.HookPreBuild)
	if c.obs != nil {
		c.obs.OnHookStart(domain.HookPreBuild, c.eff)
	}
	defer func() { rep.FinishedAt = time.Now().UTC(); rep.Finalize() }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.log.Warn("状态不满足构建前置条件，跳过", "state", string(c.state))
		rep.Status = domain.StatusSkipped
		rep.ErrorCode = domain.ErrCodeStateConflict
		rep.ErrorMsg = fmt.Sprintf("当前状态 %s 不允许预构建", c.state)
		return rep
	}

	// 第一步：备份并收窄主数据文件。
	backupStarted := time.Now()
	ds, err := c.backupAndNarrowLocked(ctx)
	if err != nil {
		code := domain.Code(err)
		switch code {
		case domain.ErrCodeConfigMissing, domain.ErrCodeNotFound, domain.ErrCodeDataInvalid:
			// 非致命：不做排除，打包照常进行。
			c.log.Warn("预构建跳过", "reason", code, "err", err)
			rep.Status = domain.StatusSkipped
		default:
			c.log.Error("备份主数据文件失败", "err", err)
			rep.Status = domain.StatusFailed
		}
		rep.ErrorCode = code
		rep.ErrorMsg = err.Error()
		return rep
	}
	c.observePhase(domain.HookPreBuild, "backup", map[string]any{"file": c.backup.OriginalPath}, time.Since(backupStarted))

	// 第二步：资源归属分析。
	analyzeStarted := time.Now()
	a := analyze.Scan(ds)
	toMove := a.ResourcesToMove()
	c.observePhase(domain.HookPreBuild, "analyze", map[string]any{
		"default":     len(a.DefaultResources),
		"non_default": len(a.NonDefaultResources),
		"to_move":     len(toMove),
	}, time.Since(analyzeStarted))

	// 第三步：逐资源搬离。单个失败只影响自己。
	evictStarted := time.Now()
	results := c.evictResourcesLocked(ctx, toMove)
	rep.Resources = append(rep.Resources, results...)

	evicted, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case domain.ResourceStatusEvicted:
			evicted++
		case domain.ResourceStatusFailed:
			failed++
		}
	}
	c.observePhase(domain.HookPreBuild, "evict", map[string]any{
		"evicted": evicted,
		"failed":  failed,
	}, time.Since(evictStarted))

	c.state = StatePreBuildApplied
	if failed > 0 {
		rep.Status = domain.StatusPartial
	} else {
		rep.Status = domain.StatusApplied
	}
	return rep
}

// PostBuild 构建后钩子：同步恢复主数据文件，异步回迁暂存资源。
// 钩子返回时后台回迁可能尚未收尾；用 AwaitBackground 合流拿最终结果。
func (c *Controller) PostBuild(ctx context.Context) (rep domain.HookReport) {
	rep = c.newReport(domain.HookPostBuild)
	if c.obs != nil {
		c.obs.OnHookStart(domain.HookPostBuild, c.eff)
	}
	defer func() { rep.FinishedAt = time.Now().UTC(); rep.Finalize() }()

	c.mu.Lock()

	if c.bgActiveLocked() {
		c.mu.Unlock()
		rep.Status = domain.StatusSkipped
		rep.ErrorCode = domain.ErrCodeStateConflict
		rep.ErrorMsg = "上一次后台回迁尚未收尾"
		return rep
	}
	if c.state != StatePreBuildApplied && !c.hasLeftoversLocked() {
		c.mu.Unlock()
		c.log.Debug("构建后无事可做", "state", string(c.state))
		rep.Status = domain.StatusSkipped
		return rep
	}
	c.state = StatePostBuildRestore

	// 第一步（同步）：主数据文件先恢复。失败不阻止资源回迁。
	fileStarted := time.Now()
	restored, err := c.restoreI18NFileLocked(ctx)
	rep.I18NRestored = restored
	if err != nil {
		c.log.Error("主数据文件恢复失败", "err", err)
		rep.ErrorCode = domain.Code(err)
		rep.ErrorMsg = err.Error()
	}

	// 第二步（异步）：资源回迁放到后台，不阻塞宿主的打包收尾。
	// 回迁不接受取消：部分完成交给失败清单兜底。
	task := &bgTask{done: make(chan struct{})}
	c.bg = task
	c.state = StateIdle
	c.mu.Unlock()

	c.observePhase(domain.HookPostBuild, "file_restore", map[string]any{"restored": restored}, time.Since(fileStarted))

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(task.done)
		task.results, task.remaining = c.restoreResources(bgCtx, domain.HookPostBuild)
	}()

	if err != nil {
		rep.Status = domain.StatusPartial
	} else {
		rep.Status = domain.StatusRestored
	}
	return rep
}

// Unload 卸载钩子：从任何状态兜底。先限时等后台回迁合流，再同步
// 回迁全部剩余记录、恢复主数据文件、清理暂存目录。
func (c *Controller) Unload(ctx context.Context) (rep domain.HookReport) {
	rep = c.newReport(domain.HookUnload)
	if c.obs != nil {
		c.obs.OnHookStart(domain.HookUnload, c.eff)
	}
	defer func() { rep.FinishedAt = time.Now().UTC(); rep.Finalize() }()

	// 先等在飞的后台任务，避免与它抢同一批文件。
	if results, _, had := c.awaitBackground(ctx, c.eff.UnloadTimeout); had {
		rep.Resources = append(rep.Resources, results...)
	}

	c.mu.Lock()
	if !c.hasLeftoversLocked() {
		c.state = StateIdle
		c.mu.Unlock()
		rep.Status = domain.StatusSkipped
		return rep
	}

	fileStarted := time.Now()
	restored, err := c.restoreI18NFileLocked(ctx)
	rep.I18NRestored = restored
	if err != nil {
		c.log.Error("主数据文件恢复失败", "err", err)
		rep.ErrorCode = domain.Code(err)
		rep.ErrorMsg = err.Error()
	}
	c.mu.Unlock()
	c.observePhase(domain.HookUnload, "file_restore", map[string]any{"restored": restored}, time.Since(fileStarted))

	results, remaining := c.restoreResources(context.WithoutCancel(ctx), domain.HookUnload)
	rep.Resources = append(rep.Resources, results...)
	rep.Summary.Remaining = remaining

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	switch {
	case err != nil || remaining > 0:
		rep.Status = domain.StatusPartial
	case !restored && len(rep.Resources) == 0:
		rep.Status = domain.StatusSkipped
	default:
		rep.Status = domain.StatusRestored
	}
	return rep
}

// AwaitBackground 等待构建后台资源回迁收尾，返回其逐资源结果与剩余
// 记录数。没有后台任务时 hadTask=false，立即返回。
func (c *Controller) AwaitBackground(ctx context.Context) (results []domain.ResourceResult, remaining int, hadTask bool) {
	return c.awaitBackground(ctx, 0)
}

// Close 只等后台回迁收尾（上限同卸载超时），不做任何恢复。
// 进程退出前的兜底：复制做到一半就退出比多等几秒更糟。
func (c *Controller) Close() error {
	_, _, _ = c.awaitBackground(context.Background(), c.eff.UnloadTimeout)
	return nil
}

func (c *Controller) awaitBackground(ctx context.Context, timeout time.Duration) ([]domain.ResourceResult, int, bool) {
	c.mu.Lock()
	task := c.bg
	c.mu.Unlock()
	if task == nil {
		return nil, 0, false
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-task.done:
	case <-ctx.Done():
		c.log.Warn("等待后台回迁被打断", "err", ctx.Err())
		return nil, 0, true
	case <-timer:
		c.log.Warn("等待后台回迁超时", "timeout", timeout)
		return nil, 0, true
	}

	c.mu.Lock()
	if c.bg == task {
		c.bg = nil
	}
	c.mu.Unlock()
	return task.results, task.remaining, true
}

// bgActiveLocked 判断后台回迁是否仍在飞。调用方持有 mu。
func (c *Controller) bgActiveLocked() bool {
	if c.bg == nil {
		return false
	}
	select {
	case <-c.bg.done:
		return false
	default:
		return true
	}
}

// hasLeftoversLocked 判断是否还有欠账：内存记录、内存备份、
// 磁盘清单或磁盘备份任意其一。调用方持有 mu。
func (c *Controller) hasLeftoversLocked() bool {
	if len(c.records) > 0 || c.backup != nil {
		return true
	}
	if _, ok, _ := c.store.LoadLedger(); ok {
		return true
	}
	return fsx.Exists(c.store.BackupPath())
}

func (c *Controller) newReport(hook string) domain.HookReport {
	return domain.HookReport{
		Hook:      hook,
		RunID:     logx.NewRunID(),
		Project:   c.eff.Path,
		StartedAt: time.Now().UTC(),
		Resources: []domain.ResourceResult{},
	}
}

func (c *Controller) observePhase(hook, phase string, fields map[string]any, dur time.Duration) {
	if c.obs != nil {
		c.obs.OnPhaseDone(hook, phase, fields, dur)
	}
}
