package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/i18nfile"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
)

// backupAndNarrowLocked 备份主数据文件并把它收窄到默认语言。
// 成功后 c.backup 非空，返回备份时的完整数据集。调用方持有 mu。
//
// 顺序刻意是 备份落盘 → 收窄写回：收窄一旦失败就撤掉备份，
// 不留下“有备份但线上文件未动”的假欠账。
func (c *Controller) backupAndNarrowLocked(ctx context.Context) (*domain.Dataset, error) {
	fileURL := c.eff.FileURL()
	if fileURL == "" {
		return nil, &domain.Error{Code: domain.ErrCodeConfigMissing, Ref: "export_dir"}
	}

	livePath, ok, err := c.gw.ResolvePath(ctx, fileURL)
	if err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: fileURL, Err: err}
	}
	if !ok {
		return nil, &domain.Error{Code: domain.ErrCodeNotFound, Ref: fileURL}
	}

	ds, err := i18nfile.Load(livePath)
	if err != nil {
		return nil, err
	}

	if err := c.store.EnsureDir(); err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: c.store.Dir, Err: err}
	}
	backupPath := c.store.BackupPath()
	if err := fsx.CopyFile(livePath, backupPath); err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: backupPath, Err: err}
	}
	c.backup = &domain.BackupInfo{
		OriginalPath: livePath,
		BackupPath:   backupPath,
		OriginalData: ds,
	}

	narrowed := i18nfile.Narrow(ds)
	if err := c.writeDataset(ctx, fileURL, livePath, narrowed); err != nil {
		// 线上文件没动成，备份就是多余的痕迹，撤掉。
		_ = os.Remove(backupPath)
		c.backup = nil
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: livePath, Err: err}
	}
	return ds, nil
}

// writeDataset 优先走资源数据库网关写回（让编辑器感知变更），
// 网关不认识该文件时降级为直接写盘。
func (c *Controller) writeDataset(ctx context.Context, fileURL, livePath string, ds *domain.Dataset) error {
	b, err := i18nfile.Encode(ds)
	if err != nil {
		return err
	}
	if _, ok, err := c.gw.SaveAsset(ctx, fileURL, b); err == nil && ok {
		return nil
	} else if err != nil {
		c.log.Warn("网关保存失败，改为直接写盘", "url", fileURL, "err", err)
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(livePath), filepath.Base(livePath), b)
}
