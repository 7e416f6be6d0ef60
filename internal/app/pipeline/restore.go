package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/John-Robertt/LocPack/internal/assetdb"
	"github.com/John-Robertt/LocPack/internal/config"
	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/i18nfile"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
)

// copyBackFunc 可替换，测试用来注入回迁失败。
var copyBackFunc = fsx.CopyFile

// restoreI18NFileLocked 把主数据文件恢复到备份时的内容。
// 返回 (是否恢复, 错误)；两者都为零值表示没有备份、无事可做。
// 调用方持有 mu。
//
// 恢复来源按可靠程度递减：磁盘备份文件 → 内存快照。内存快照是
// 备份文件被外部删掉时的最后防线，只在本进程内有效。
func (c *Controller) restoreI18NFileLocked(ctx context.Context) (bool, error) {
	b := c.backup
	if b == nil {
		// 崩溃恢复路径：本进程没做过备份，但磁盘上留有上次的备份文件。
		if !fsx.Exists(c.store.BackupPath()) {
			return false, nil
		}
		livePath, ok := c.resolveLivePath(ctx)
		if !ok {
			return false, &domain.Error{Code: domain.ErrCodeNotFound, Err: errors.New("无法定位主数据文件")}
		}
		b = &domain.BackupInfo{
			OriginalPath: livePath,
			BackupPath:   c.store.BackupPath(),
		}
	}

	if fsx.Exists(b.BackupPath) {
		if err := copyBackFunc(b.BackupPath, b.OriginalPath); err != nil {
			if b.OriginalData == nil {
				return false, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: b.BackupPath, Err: err}
			}
			c.log.Warn("备份复制回原位失败，改用内存快照重建", "err", err)
			if werr := i18nfile.Write(b.OriginalPath, b.OriginalData); werr != nil {
				return false, werr
			}
		}
	} else {
		if b.OriginalData == nil {
			return false, &domain.Error{Code: domain.ErrCodeNotFound, Ref: b.BackupPath, Err: errors.New("备份文件丢失且无内存快照")}
		}
		c.log.Warn("备份文件丢失，改用内存快照重建", "path", b.BackupPath)
		if err := i18nfile.Write(b.OriginalPath, b.OriginalData); err != nil {
			return false, err
		}
	}

	_ = os.Remove(c.store.BackupPath())
	c.backup = nil
	return true, nil
}

// resolveLivePath 在没有内存备份信息时推算主数据文件的磁盘位置。
func (c *Controller) resolveLivePath(ctx context.Context) (string, bool) {
	if url := c.eff.FileURL(); url != "" {
		if p, ok, err := c.gw.ResolvePath(ctx, url); err == nil && ok {
			return p, true
		}
	}
	if c.eff.ExportDirURL == "" {
		return "", false
	}
	dir, ok, err := c.gw.ResolvePath(ctx, c.eff.ExportDirURL)
	if err != nil || !ok {
		return "", false
	}
	return filepath.Join(dir, config.I18NFileName), true
}

// restoreResources 回迁全部待处理记录（内存 + 磁盘清单合并后）。
// 返回逐资源结果与落账后剩余的记录数。
//
// 失败的记录保留在暂存目录并写回清单；只有全部清零才会收掉
// 暂存目录本身。
func (c *Controller) restoreResources(ctx context.Context, hook string) ([]domain.ResourceResult, int) {
	c.mu.Lock()
	c.mergeLedgerLocked()
	snapshot := make([]domain.MovedFileRecord, len(c.records))
	copy(snapshot, c.records)
	c.mu.Unlock()

	if len(snapshot) == 0 {
		if err := c.store.ClearLedger(); err != nil {
			c.log.Warn("清理失败清单出错", "err", err)
		}
		if err := c.store.RemoveIfEmpty(); err != nil {
			c.log.Warn("收尾暂存目录出错", "err", err)
		}
		return nil, 0
	}

	started := time.Now()
	results, failed := c.runBatches(ctx, hook, snapshot)
	c.observePhase(hook, "restore", map[string]any{
		"total":  len(snapshot),
		"failed": len(failed),
	}, time.Since(started))

	// 落账：本轮失败的 + 本轮快照之外新产生的记录一起保留。
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, rec := range snapshot {
		inSnapshot[rec.TempPath] = struct{}{}
	}
	c.mu.Lock()
	kept := make([]domain.MovedFileRecord, 0, len(failed))
	kept = append(kept, failed...)
	for _, rec := range c.records {
		if _, ok := inSnapshot[rec.TempPath]; !ok {
			kept = append(kept, rec)
		}
	}
	c.records = kept
	remaining := len(kept)
	if remaining > 0 {
		if err := c.store.SaveLedger(kept); err != nil {
			c.log.Error("写失败清单出错", "err", err)
		}
	} else if err := c.store.ClearLedger(); err != nil {
		c.log.Warn("清理失败清单出错", "err", err)
	}
	c.mu.Unlock()

	if len(failed) < len(snapshot) {
		// 批量刷新一次，让编辑器重新认领回迁的文件。失败不重试。
		if err := c.gw.RefreshAsset(ctx, assetdb.URLPrefix); err != nil {
			c.log.Warn("资源库刷新失败", "code", domain.ErrCodeRefreshFailed, "err", err)
		}
	}
	if remaining == 0 {
		if err := c.store.RemoveIfEmpty(); err != nil {
			c.log.Warn("收尾暂存目录出错", "err", err)
		}
	}
	return results, remaining
}

// mergeLedgerLocked 把磁盘上的失败清单并进内存记录（按暂存路径去重）。
// 这是跨进程重试的入口：上次运行留下的欠账从这里回到流水线。
// 调用方持有 mu。
func (c *Controller) mergeLedgerLocked() {
	ledger, ok, err := c.store.LoadLedger()
	if err != nil {
		c.log.Warn("读取失败清单出错", "err", err)
		return
	}
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(c.records))
	for _, rec := range c.records {
		seen[rec.TempPath] = struct{}{}
	}
	merged := 0
	for _, rec := range ledger {
		if _, dup := seen[rec.TempPath]; dup {
			continue
		}
		seen[rec.TempPath] = struct{}{}
		c.records = append(c.records, rec)
		merged++
	}
	if merged > 0 {
		c.log.Info("并入上次运行的失败清单", "count", merged)
	}
}

// runBatches 分批并发回迁。批内并发、批间停顿，避免一次性压垮
// 文件系统或编辑器的文件监视。
func (c *Controller) runBatches(ctx context.Context, hook string, records []domain.MovedFileRecord) (results []domain.ResourceResult, failed []domain.MovedFileRecord) {
	size := c.eff.RestoreBatchSize
	if size < 1 {
		size = 1
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		c.log.Warn("创建回迁工作池失败，改为串行", "err", err)
		pool = nil
	} else {
		defer pool.Release()
	}

	var mu sync.Mutex
	total := len(records)
	done := 0

	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		var wg sync.WaitGroup
		for _, rec := range records[start:end] {
			rec := rec
			wg.Add(1)
			job := func() {
				defer wg.Done()
				jobStarted := time.Now()
				res := c.restoreOne(rec)
				mu.Lock()
				results = append(results, res)
				if res.Status == domain.ResourceStatusFailed {
					failed = append(failed, rec)
				}
				done++
				idx := done
				mu.Unlock()
				if c.obs != nil {
					c.obs.OnResourceDone(hook, idx, total, res, time.Since(jobStarted))
				}
			}
			if pool != nil {
				if err := pool.Submit(job); err != nil {
					job() // 就地执行，别丢任务
				}
			} else {
				job()
			}
		}
		wg.Wait()
		if end < total && c.eff.BatchPause > 0 {
			time.Sleep(c.eff.BatchPause)
		}
	}
	return results, failed
}

// restoreOne 回迁单条记录。不接受取消：半拉子回迁比慢更糟，
// 没完成的部分由失败清单兜底。
func (c *Controller) restoreOne(rec domain.MovedFileRecord) domain.ResourceResult {
	res := domain.ResourceResult{
		ResourceID: rec.ResourceID,
		Src:        rec.TempPath,
		Dst:        rec.OriginalPath,
	}
	fail := func(code, msg string) domain.ResourceResult {
		res.Status = domain.ResourceStatusFailed
		res.ErrorCode = code
		res.ErrorMsg = msg
		return res
	}

	if !fsx.Exists(rec.TempPath) {
		return fail(domain.ErrCodeNotFound, "暂存副本不存在")
	}
	if err := fsx.EnsureDir(filepath.Dir(rec.OriginalPath)); err != nil {
		return fail(domain.ErrCodeIOFailed, "重建目录失败："+err.Error())
	}
	if err := copyBackFunc(rec.TempPath, rec.OriginalPath); err != nil {
		return fail(domain.ErrCodeIOFailed, "复制回原位失败："+err.Error())
	}
	if rec.TempMetaPath != "" {
		if !fsx.Exists(rec.TempMetaPath) {
			return fail(domain.ErrCodeNotFound, ".meta 暂存副本不存在")
		}
		if err := copyBackFunc(rec.TempMetaPath, rec.MetaPath); err != nil {
			return fail(domain.ErrCodeIOFailed, "复制 .meta 回原位失败："+err.Error())
		}
	}

	// 回迁成功后暂存副本就是垃圾，尽力清掉；清不掉不算失败。
	_ = os.Remove(rec.TempPath)
	if rec.TempMetaPath != "" {
		_ = os.Remove(rec.TempMetaPath)
	}
	res.Status = domain.ResourceStatusRestored
	return res
}
