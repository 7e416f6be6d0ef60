// Package assetdb 抽象内容工具的资源数据库：按 URL 或标识解析、查询、
// 增删改资源。流程层只依赖 Gateway 接口；DirDB 是基于项目目录的实现，
// 既服务命令行模式，也是测试基座。
package assetdb

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// URLPrefix 资源 URL 的规范前缀（资源树的根）。
const URLPrefix = "db://assets"

// Info 一条资源在数据库里的视图。
type Info struct {
	UUID string // 数据库内唯一标识
	URL  string // db://assets/ 规范 URL
	Name string // 文件主名（不含扩展名）
	Type string // importer 类型，如 image
}

// CreateOptions 控制 CreateAsset 在目标已存在时的行为。
// 两者都不设置时，目标已存在视为错误。
type CreateOptions struct {
	Overwrite bool // 覆盖旧内容，保留原 uuid
	Rename    bool // 自动改名（name__2.ext、name__3.ext…）
}

// Gateway 把“资源数据库如何实现”隔离在实现侧。
//
// 约束：
// - 查询类操作返回 (值, bool, error)：bool=false 表示“不存在”，error 只报真实故障
// - 接受 URL 的参数均支持 NormalizeURL 的全部写法
// - 所有操作带 ctx：真实网关是编辑器的 RPC 边界，目录实现同样尊重取消
type Gateway interface {
	// ResolvePath 把 URL 或裸标识解析为磁盘绝对路径。
	ResolvePath(ctx context.Context, urlOrID string) (string, bool, error)
	// QueryAssetInfo 按标识（uuid 或文件主名）查询资源信息。
	QueryAssetInfo(ctx context.Context, id string) (Info, bool, error)
	// CreateAsset 在 url 处落一份新资源（含 .meta）。
	CreateAsset(ctx context.Context, url string, content []byte, opts CreateOptions) (Info, error)
	// ImportAsset 把数据库之外的文件导入到 url 处。
	ImportAsset(ctx context.Context, srcPath, url string) (Info, error)
	// SaveAsset 覆写既有资源的内容；资源不存在时 bool=false。
	SaveAsset(ctx context.Context, url string, content []byte) (Info, bool, error)
	// DeleteAsset 删除资源及其 .meta；返回删除前的信息。
	DeleteAsset(ctx context.Context, urlOrID string) (Info, bool, error)
	// MoveAsset 在资源树内移动资源（连同 .meta）。
	MoveAsset(ctx context.Context, srcURL, dstURL string) (bool, error)
	// RefreshAsset 让数据库重新感知 url 子树（补发缺失的 .meta、重建索引）。
	RefreshAsset(ctx context.Context, url string) error
}

// MetaPath 返回资源文件对应的同目录 .meta 路径。
func MetaPath(assetPath string) string { return assetPath + ".meta" }

// NormalizeURL 把四种写法统一为规范 URL，并返回 assets/ 下的相对路径
// （斜杠分隔）：
//
//	db://assets/a/b.png      → ("db://assets/a/b.png", "a/b.png")
//	project://assets/a/b.png → ("db://assets/a/b.png", "a/b.png")
//	assets/a/b.png           → ("db://assets/a/b.png", "a/b.png")
//	a/b.png                  → ("db://assets/a/b.png", "a/b.png")
//
// "db://assets" 本身合法，rel 为空串（指整棵资源树）。
// project:// 写法只接受 assets/ 之下的路径。
func NormalizeURL(u string) (canonical, rel string, err error) {
	u = strings.TrimSpace(u)
	if u == "" {
		return "", "", fmt.Errorf("资源 URL 不能为空")
	}
	if strings.Contains(u, "\\") {
		return "", "", fmt.Errorf("资源 URL 不接受反斜杠：%q", u)
	}

	switch {
	case u == URLPrefix || u == URLPrefix+"/":
		rel = ""
	case strings.HasPrefix(u, URLPrefix+"/"):
		rel = strings.TrimPrefix(u, URLPrefix+"/")
	case strings.HasPrefix(u, "db://"):
		return "", "", fmt.Errorf("不支持的资源根：%q", u)
	case strings.HasPrefix(u, "project://"):
		rest := strings.TrimPrefix(u, "project://")
		if rest != "assets" && !strings.HasPrefix(rest, "assets/") {
			return "", "", fmt.Errorf("project:// 路径必须位于 assets/ 之下：%q", u)
		}
		rel = strings.TrimPrefix(strings.TrimPrefix(rest, "assets"), "/")
	case u == "assets" || strings.HasPrefix(u, "assets/"):
		rel = strings.TrimPrefix(strings.TrimPrefix(u, "assets"), "/")
	default:
		if path.IsAbs(u) {
			return "", "", fmt.Errorf("资源 URL 越界：%q", u)
		}
		rel = u
	}

	rel = strings.Trim(rel, "/")
	if rel != "" {
		clean := path.Clean(rel)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return "", "", fmt.Errorf("资源 URL 越界：%q", u)
		}
		if clean == "." {
			rel = ""
		} else {
			rel = clean
		}
	}
	if rel == "" {
		return URLPrefix, "", nil
	}
	return URLPrefix + "/" + rel, rel, nil
}
