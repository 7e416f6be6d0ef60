package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/John-Robertt/LocPack/internal/assetdb"
	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
	"github.com/John-Robertt/LocPack/internal/infra/imgx"
)

// evictPlan 是单个资源的搬离计划：源位置、暂存位置、随行 .meta。
type evictPlan struct {
	resourceID string
	assetURL   string
	srcPath    string
	metaPath   string
	stagedPath string
	stagedMeta string
}

// evictResourcesLocked 把 ids 逐个搬进暂存目录。成功的资源追加进
// c.records；失败只记录结果，不中断后续资源。调用方持有 mu。
func (c *Controller) evictResourcesLocked(ctx context.Context, ids []string) []domain.ResourceResult {
	results := make([]domain.ResourceResult, 0, len(ids))
	total := len(ids)
	for i, id := range ids {
		started := time.Now()
		res := c.evictOne(ctx, id)
		results = append(results, res)
		if c.obs != nil {
			c.obs.OnResourceDone(domain.HookPreBuild, i+1, total, res, time.Since(started))
		}
	}
	return results
}

// evictOne 先查库定位，再落地搬离。查不到的资源按跳过处理：
// 数据文件里引用不存在的资源不算流水线的错。
func (c *Controller) evictOne(ctx context.Context, id string) domain.ResourceResult {
	info, ok, err := c.gw.QueryAssetInfo(ctx, id)
	if err != nil {
		return domain.ResourceResult{
			ResourceID: id,
			Status:     domain.ResourceStatusFailed,
			ErrorCode:  domain.ErrCodeIOFailed,
			ErrorMsg:   fmt.Sprintf("查询资源失败：%v", err),
		}
	}
	if !ok {
		return domain.ResourceResult{
			ResourceID: id,
			Status:     domain.ResourceStatusSkipped,
			ErrorCode:  domain.ErrCodeNotFound,
			ErrorMsg:   "资源数据库中不存在",
		}
	}

	src, ok := c.resolveFirst(ctx, info.URL, id)
	if !ok {
		return domain.ResourceResult{
			ResourceID: id,
			Status:     domain.ResourceStatusSkipped,
			ErrorCode:  domain.ErrCodeNotFound,
			ErrorMsg:   "无法解析资源的磁盘路径",
		}
	}

	p := evictPlan{
		resourceID: id,
		assetURL:   info.URL,
		srcPath:    src,
		stagedPath: c.store.StagedPath(id, src),
	}
	if mp := assetdb.MetaPath(src); fsx.Exists(mp) {
		p.metaPath = mp
		p.stagedMeta = assetdb.MetaPath(p.stagedPath)
	}
	return c.execEvict(ctx, p)
}

// execEvict 执行搬离：先复制进暂存并校验，后删活资源。顺序不可反：
// 删除前暂存副本必须已经完好，否则资源就真丢了。
func (c *Controller) execEvict(ctx context.Context, p evictPlan) domain.ResourceResult {
	res := domain.ResourceResult{
		ResourceID: p.resourceID,
		Src:        p.srcPath,
		Dst:        p.stagedPath,
	}
	fail := func(code, msg string) domain.ResourceResult {
		res.Status = domain.ResourceStatusFailed
		res.ErrorCode = code
		res.ErrorMsg = msg
		return res
	}
	undoStaged := func() {
		_ = os.Remove(p.stagedPath)
		if p.stagedMeta != "" {
			_ = os.Remove(p.stagedMeta)
		}
	}

	if err := c.store.EnsureDir(); err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("创建暂存目录失败：%v", err))
	}
	if err := fsx.CopyFile(p.srcPath, p.stagedPath); err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("复制到暂存失败：%v", err))
	}
	if err := verifyStagedCopy(p.srcPath, p.stagedPath); err != nil {
		// 校验不过：该资源不搬离，活文件原样保留，按跳过计。
		undoStaged()
		c.log.Warn("暂存副本校验失败，资源不搬离", "resource", p.resourceID, "err", err)
		res.Status = domain.ResourceStatusSkipped
		res.ErrorCode = domain.ErrCodeIOFailed
		res.ErrorMsg = fmt.Sprintf("暂存副本校验失败：%v", err)
		return res
	}
	if p.metaPath != "" {
		if err := fsx.CopyFile(p.metaPath, p.stagedMeta); err != nil {
			undoStaged()
			return fail(domain.ErrCodeIOFailed, fmt.Sprintf("复制 .meta 失败：%v", err))
		}
	}

	rec := domain.MovedFileRecord{
		OriginalPath: p.srcPath,
		TempPath:     p.stagedPath,
		MetaPath:     p.metaPath,
		TempMetaPath: p.stagedMeta,
		ResourceID:   p.resourceID,
		AssetURL:     p.assetURL,
	}

	if p.assetURL == "" {
		// 没有 URL 就没法走数据库删除。记账但不动活资源，
		// 打包产物会多带这张图。
		c.log.Warn("资源缺少 URL，活资源保持原样", "resource", p.resourceID, "path", p.srcPath)
		c.records = append(c.records, rec)
		res.Status = domain.ResourceStatusEvicted
		return res
	}

	if _, ok, err := c.gw.DeleteAsset(ctx, p.assetURL); err != nil {
		undoStaged()
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("删除活资源失败：%v", err))
	} else if !ok {
		undoStaged()
		return fail(domain.ErrCodeIOFailed, "删除活资源失败：数据库未确认")
	}

	c.records = append(c.records, rec)
	res.Status = domain.ResourceStatusEvicted
	return res
}

// verifyStagedCopy 校验暂存副本：尺寸一致，图片的话头部还要能解出来。
func verifyStagedCopy(src, staged string) error {
	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	ti, err := os.Stat(staged)
	if err != nil {
		return err
	}
	if si.Size() != ti.Size() {
		return fmt.Errorf("尺寸不一致：源 %d 字节，副本 %d 字节", si.Size(), ti.Size())
	}
	if imgx.IsImagePath(staged) {
		b, err := os.ReadFile(staged)
		if err != nil {
			return err
		}
		if _, _, err := imgx.DecodeBounds(b); err != nil {
			return fmt.Errorf("图片头部不可读：%w", err)
		}
	}
	return nil
}

// resolveFirst 按给定顺序逐个尝试解析磁盘路径，返回第一个命中。
func (c *Controller) resolveFirst(ctx context.Context, keys ...string) (string, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		p, ok, err := c.gw.ResolvePath(ctx, k)
		if err != nil {
			c.log.Warn("解析资源路径出错", "key", k, "err", err)
			continue
		}
		if ok {
			return p, true
		}
	}
	return "", false
}
