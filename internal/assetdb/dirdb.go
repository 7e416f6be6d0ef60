package assetdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/John-Robertt/LocPack/internal/infra/fsx"
	"github.com/John-Robertt/LocPack/internal/infra/imgx"
)

// DirDB 把 <root>/assets 目录树当作资源数据库：每个资源文件伴随同名
// .meta（JSON，含 uuid）；标识索引在首次查询时构建。
//
// 并发：单把互斥锁串行化全部操作。目录实现面向命令行与测试，不追求吞吐。
type DirDB struct {
	root string

	mu    sync.Mutex
	built bool
	byID  map[string]dbEntry // uuid 与文件主名 → 条目
}

type dbEntry struct {
	rel  string // assets/ 下相对路径（斜杠分隔）
	uuid string
}

type metaFile struct {
	Ver      string `json:"ver"`
	Importer string `json:"importer"`
	UUID     string `json:"uuid"`
}

const metaVer = "1.0.0"

func NewDirDB(projectRoot string) *DirDB {
	return &DirDB{root: filepath.Clean(strings.TrimSpace(projectRoot))}
}

// AssetsRoot 返回资源树在磁盘上的根目录。
func (db *DirDB) AssetsRoot() string { return filepath.Join(db.root, "assets") }

func (db *DirDB) absPath(rel string) string {
	return filepath.Join(db.root, "assets", filepath.FromSlash(rel))
}

// ResolvePath 把 URL 或裸标识解析为磁盘绝对路径。
// 含 :// 或斜杠的输入按 URL 解析，其余按标识查索引。
func (db *DirDB) ResolvePath(ctx context.Context, urlOrID string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureIndex(ctx); err != nil {
		return "", false, err
	}
	if u := strings.TrimSpace(urlOrID); u == URLPrefix || u == URLPrefix+"/" {
		return db.AssetsRoot(), true, nil
	}
	rel, ok, err := db.relFor(urlOrID)
	if err != nil || !ok {
		return "", false, err
	}
	return db.absPath(rel), true, nil
}

// QueryAssetInfo 按标识查询；标识可以是 .meta 里的 uuid，也可以是文件主名。
func (db *DirDB) QueryAssetInfo(ctx context.Context, id string) (Info, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return Info{}, false, nil
	}
	if err := db.ensureIndex(ctx); err != nil {
		return Info{}, false, err
	}
	e, ok := db.byID[id]
	if !ok || !fsx.Exists(db.absPath(e.rel)) {
		return Info{}, false, nil
	}
	return db.infoAt(e.rel), true, nil
}

// CreateAsset 在 url 处写入新资源并补发 .meta。
func (db *DirDB) CreateAsset(ctx context.Context, url string, content []byte, opts CreateOptions) (Info, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureIndex(ctx); err != nil {
		return Info{}, err
	}
	_, rel, err := NormalizeURL(url)
	if err != nil {
		return Info{}, err
	}
	if rel == "" {
		return Info{}, fmt.Errorf("CreateAsset 需要具体文件 URL：%q", url)
	}

	abs := db.absPath(rel)
	if fsx.Exists(abs) {
		switch {
		case opts.Overwrite:
			// 覆盖：内容替换，uuid 保留。
		case opts.Rename:
			rel, err = db.allocName(rel)
			if err != nil {
				return Info{}, err
			}
			abs = db.absPath(rel)
		default:
			return Info{}, fmt.Errorf("资源已存在：%s", URLPrefix+"/"+rel)
		}
	}

	if err := fsx.EnsureDir(filepath.Dir(abs)); err != nil {
		return Info{}, err
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(abs), filepath.Base(abs), content); err != nil {
		return Info{}, err
	}
	if err := db.ensureMeta(abs, rel); err != nil {
		return Info{}, err
	}
	db.indexPut(rel)
	return db.infoAt(rel), nil
}

// ImportAsset 把数据库外的文件读入并落到 url 处，等价于覆盖式 CreateAsset。
func (db *DirDB) ImportAsset(ctx context.Context, srcPath, url string) (Info, error) {
	b, err := os.ReadFile(srcPath)
	if err != nil {
		return Info{}, err
	}
	return db.CreateAsset(ctx, url, b, CreateOptions{Overwrite: true})
}

// SaveAsset 覆写既有资源的内容；目标不存在时 bool=false，不落新文件。
func (db *DirDB) SaveAsset(ctx context.Context, url string, content []byte) (Info, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureIndex(ctx); err != nil {
		return Info{}, false, err
	}
	_, rel, err := NormalizeURL(url)
	if err != nil {
		return Info{}, false, err
	}
	abs := db.absPath(rel)
	if rel == "" || !fsx.Exists(abs) {
		return Info{}, false, nil
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(abs), filepath.Base(abs), content); err != nil {
		return Info{}, false, err
	}
	return db.infoAt(rel), true, nil
}

// DeleteAsset 删除资源与 .meta，并从索引剔除；返回删除前的信息。
func (db *DirDB) DeleteAsset(ctx context.Context, urlOrID string) (Info, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureIndex(ctx); err != nil {
		return Info{}, false, err
	}
	rel, ok, err := db.relFor(urlOrID)
	if err != nil || !ok {
		return Info{}, false, err
	}
	abs := db.absPath(rel)
	info := db.infoAt(rel)
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return Info{}, false, nil
		}
		return Info{}, false, err
	}
	if err := os.Remove(MetaPath(abs)); err != nil && !os.IsNotExist(err) {
		return Info{}, false, err
	}
	db.indexDrop(rel)
	return info, true, nil
}

// MoveAsset 在资源树内移动资源与 .meta；src 不存在时 bool=false。
func (db *DirDB) MoveAsset(ctx context.Context, srcURL, dstURL string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureIndex(ctx); err != nil {
		return false, err
	}
	_, srcRel, err := NormalizeURL(srcURL)
	if err != nil {
		return false, err
	}
	_, dstRel, err := NormalizeURL(dstURL)
	if err != nil {
		return false, err
	}
	if srcRel == "" || dstRel == "" {
		return false, fmt.Errorf("MoveAsset 需要具体文件 URL")
	}
	srcAbs := db.absPath(srcRel)
	if !fsx.Exists(srcAbs) {
		return false, nil
	}
	dstAbs := db.absPath(dstRel)
	if fsx.Exists(dstAbs) {
		return false, fmt.Errorf("目标已存在：%s", URLPrefix+"/"+dstRel)
	}
	if err := fsx.EnsureDir(filepath.Dir(dstAbs)); err != nil {
		return false, err
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return false, err
	}
	if fsx.Exists(MetaPath(srcAbs)) {
		if err := os.Rename(MetaPath(srcAbs), MetaPath(dstAbs)); err != nil {
			return false, err
		}
	}
	db.indexDrop(srcRel)
	db.indexPut(dstRel)
	return true, nil
}

// RefreshAsset 重新感知 url 子树：给缺 .meta 的文件补发，然后丢弃索引，
// 下次查询时重建。
func (db *DirDB) RefreshAsset(ctx context.Context, url string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, rel, err := NormalizeURL(url)
	if err != nil {
		return err
	}
	start := db.absPath(rel)
	if fsx.Exists(start) {
		err = filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			name := d.Name()
			if strings.HasSuffix(name, ".meta") || strings.HasPrefix(name, ".") {
				return nil
			}
			relOS, err := filepath.Rel(db.AssetsRoot(), p)
			if err != nil {
				return err
			}
			return db.ensureMeta(p, filepath.ToSlash(relOS))
		})
		if err != nil {
			return err
		}
	}
	db.built = false
	db.byID = nil
	return nil
}

// ensureIndex 构建 uuid/主名 → 相对路径 的索引。调用方必须已持有 mu。
// 主名冲突按字典序先到先得，保证确定性。
func (db *DirDB) ensureIndex(ctx context.Context) error {
	if db.built {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	byID := make(map[string]dbEntry)
	rootDir := db.AssetsRoot()
	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".meta") || strings.HasPrefix(name, ".") {
			return nil
		}
		relOS, err := filepath.Rel(rootDir, p)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relOS)
		e := dbEntry{rel: rel}
		if m, ok := readMeta(MetaPath(p)); ok {
			e.uuid = m.UUID
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if _, exists := byID[stem]; !exists {
			byID[stem] = e
		}
		if e.uuid != "" {
			if _, exists := byID[e.uuid]; !exists {
				byID[e.uuid] = e
			}
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// 资源树还不存在：当作空库。
			db.byID = map[string]dbEntry{}
			db.built = true
			return nil
		}
		return err
	}
	db.byID = byID
	db.built = true
	return nil
}

// relFor 把 URL 或裸标识换成 assets/ 下相对路径。调用方已持有 mu 且索引已建。
func (db *DirDB) relFor(urlOrID string) (string, bool, error) {
	urlOrID = strings.TrimSpace(urlOrID)
	if urlOrID == "" {
		return "", false, nil
	}
	if strings.Contains(urlOrID, "://") || strings.Contains(urlOrID, "/") {
		_, rel, err := NormalizeURL(urlOrID)
		if err != nil {
			return "", false, err
		}
		if rel == "" || !fsx.Exists(db.absPath(rel)) {
			return "", false, nil
		}
		return rel, true, nil
	}
	e, ok := db.byID[urlOrID]
	if !ok || !fsx.Exists(db.absPath(e.rel)) {
		return "", false, nil
	}
	return e.rel, true, nil
}

// infoAt 汇出 rel 处资源的数据库视图。调用方已持有 mu。
func (db *DirDB) infoAt(rel string) Info {
	info := Info{
		URL:  URLPrefix + "/" + rel,
		Name: strings.TrimSuffix(path.Base(rel), path.Ext(rel)),
		Type: deriveImporter(rel),
	}
	if m, ok := readMeta(MetaPath(db.absPath(rel))); ok {
		info.UUID = m.UUID
		if m.Importer != "" {
			info.Type = m.Importer
		}
	}
	return info
}

// indexPut 把 rel 写进索引；主名已被别的文件占用时不抢占。
func (db *DirDB) indexPut(rel string) {
	if db.byID == nil {
		db.byID = map[string]dbEntry{}
	}
	e := dbEntry{rel: rel}
	if m, ok := readMeta(MetaPath(db.absPath(rel))); ok {
		e.uuid = m.UUID
	}
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if old, exists := db.byID[stem]; !exists || old.rel == rel {
		db.byID[stem] = e
	}
	if e.uuid != "" {
		db.byID[e.uuid] = e
	}
}

// indexDrop 从索引剔除 rel 的全部映射。
func (db *DirDB) indexDrop(rel string) {
	for k, e := range db.byID {
		if e.rel == rel {
			delete(db.byID, k)
		}
	}
}

// allocName 在同目录下给既有名字找一个未占用的变体：name__2.ext、name__3.ext…
func (db *DirDB) allocName(rel string) (string, error) {
	dir := path.Dir(rel)
	base := path.Base(rel)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 2; i < 10000; i++ {
		cand := fmt.Sprintf("%s__%d%s", stem, i, ext)
		if dir != "." {
			cand = dir + "/" + cand
		}
		if !fsx.Exists(db.absPath(cand)) {
			return cand, nil
		}
	}
	return "", fmt.Errorf("找不到可用名字：%s", rel)
}

// ensureMeta 给 assetPath 补发 .meta（已有且含 uuid 则不动）。
func (db *DirDB) ensureMeta(assetPath, rel string) error {
	if _, ok := readMeta(MetaPath(assetPath)); ok {
		return nil
	}
	return writeMeta(assetPath, metaFile{
		Ver:      metaVer,
		Importer: deriveImporter(rel),
		UUID:     uuid.NewString(),
	})
}

func deriveImporter(rel string) string {
	if imgx.IsImagePath(rel) {
		return "image"
	}
	return "asset"
}

func readMeta(path string) (metaFile, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return metaFile{}, false
	}
	var m metaFile
	if err := json.Unmarshal(b, &m); err != nil || m.UUID == "" {
		return metaFile{}, false
	}
	return m, true
}

func writeMeta(assetPath string, m metaFile) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(assetPath), filepath.Base(assetPath)+".meta", b)
}
