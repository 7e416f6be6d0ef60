package assetdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestAsset(t *testing.T, root, rel string, content []byte, id string) string {
	t.Helper()
	abs := filepath.Join(root, "assets", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir 失败：%v", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
	if id != "" {
		meta := fmt.Sprintf("{\n  \"ver\": \"1.0.0\",\n  \"importer\": \"image\",\n  \"uuid\": %q\n}\n", id)
		if err := os.WriteFile(abs+".meta", []byte(meta), 0o644); err != nil {
			t.Fatalf("写 meta 失败：%v", err)
		}
	}
	return abs
}

func TestDirDB_ResolveAndQuery(t *testing.T) {
	root := t.TempDir()
	flagAbs := writeTestAsset(t, root, "textures/fr/flag.png", []byte("png"), "u-flag")
	writeTestAsset(t, root, "textures/logo.png", []byte("png"), "")

	db := NewDirDB(root)
	ctx := context.Background()

	// URL 解析。
	p, ok, err := db.ResolvePath(ctx, "db://assets/textures/fr/flag.png")
	if err != nil || !ok {
		t.Fatalf("按 URL 解析失败：ok=%v err=%v", ok, err)
	}
	if p != flagAbs {
		t.Fatalf("路径不正确：%q != %q", p, flagAbs)
	}

	// 裸标识走索引。
	p, ok, err = db.ResolvePath(ctx, "flag")
	if err != nil || !ok || p != flagAbs {
		t.Fatalf("按主名解析失败：p=%q ok=%v err=%v", p, ok, err)
	}
	if _, ok, _ := db.ResolvePath(ctx, "nope"); ok {
		t.Fatalf("未知标识不应解析成功")
	}

	// 资源树根。
	p, ok, err = db.ResolvePath(ctx, "db://assets")
	if err != nil || !ok || p != db.AssetsRoot() {
		t.Fatalf("根 URL 解析失败：p=%q ok=%v err=%v", p, ok, err)
	}

	// uuid 与主名都能查。
	info, ok, err := db.QueryAssetInfo(ctx, "u-flag")
	if err != nil || !ok {
		t.Fatalf("按 uuid 查询失败：ok=%v err=%v", ok, err)
	}
	if info.URL != "db://assets/textures/fr/flag.png" || info.Name != "flag" || info.Type != "image" || info.UUID != "u-flag" {
		t.Fatalf("Info 不正确：%+v", info)
	}
	info, ok, _ = db.QueryAssetInfo(ctx, "logo")
	if !ok || info.UUID != "" {
		t.Fatalf("无 meta 的资源应按主名可查且 uuid 为空：ok=%v %+v", ok, info)
	}
	if _, ok, _ := db.QueryAssetInfo(ctx, "missing"); ok {
		t.Fatalf("未知标识不应查询成功")
	}
}

func TestDirDB_CreateAsset(t *testing.T) {
	root := t.TempDir()
	db := NewDirDB(root)
	ctx := context.Background()

	info, err := db.CreateAsset(ctx, "db://assets/ui/i18n.json", []byte(`{}`), CreateOptions{})
	if err != nil {
		t.Fatalf("CreateAsset 失败：%v", err)
	}
	if info.UUID == "" || info.URL != "db://assets/ui/i18n.json" {
		t.Fatalf("Info 不正确：%+v", info)
	}
	abs := filepath.Join(root, "assets", "ui", "i18n.json")
	if _, err := os.Stat(abs); err != nil {
		t.Fatalf("资源文件未落盘：%v", err)
	}
	if _, err := os.Stat(abs + ".meta"); err != nil {
		t.Fatalf(".meta 未落盘：%v", err)
	}

	// 已存在且未给策略：报错。
	if _, err := db.CreateAsset(ctx, "ui/i18n.json", []byte(`{"x":1}`), CreateOptions{}); err == nil {
		t.Fatalf("已存在时应报错")
	}

	// Overwrite：内容换、uuid 不换。
	info2, err := db.CreateAsset(ctx, "ui/i18n.json", []byte(`{"x":1}`), CreateOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("Overwrite 失败：%v", err)
	}
	if info2.UUID != info.UUID {
		t.Fatalf("覆盖不应更换 uuid：%q != %q", info2.UUID, info.UUID)
	}
	b, _ := os.ReadFile(abs)
	if string(b) != `{"x":1}` {
		t.Fatalf("内容未覆盖：%s", b)
	}

	// Rename：落到 i18n__2.json。
	info3, err := db.CreateAsset(ctx, "ui/i18n.json", []byte(`{"y":2}`), CreateOptions{Rename: true})
	if err != nil {
		t.Fatalf("Rename 失败：%v", err)
	}
	if info3.URL != "db://assets/ui/i18n__2.json" {
		t.Fatalf("改名结果不正确：%q", info3.URL)
	}
	if info3.UUID == info.UUID {
		t.Fatalf("改名创建应是新资源")
	}
}

func TestDirDB_SaveAsset(t *testing.T) {
	root := t.TempDir()
	writeTestAsset(t, root, "data/i18n.json", []byte(`{}`), "u-i18n")
	db := NewDirDB(root)
	ctx := context.Background()

	if _, ok, err := db.SaveAsset(ctx, "data/missing.json", []byte("x")); ok || err != nil {
		t.Fatalf("不存在的资源不应可保存：ok=%v err=%v", ok, err)
	}
	info, ok, err := db.SaveAsset(ctx, "data/i18n.json", []byte(`{"saved":true}`))
	if err != nil || !ok {
		t.Fatalf("SaveAsset 失败：ok=%v err=%v", ok, err)
	}
	if info.UUID != "u-i18n" {
		t.Fatalf("uuid 不应变化：%+v", info)
	}
	b, _ := os.ReadFile(filepath.Join(root, "assets", "data", "i18n.json"))
	if string(b) != `{"saved":true}` {
		t.Fatalf("内容未保存：%s", b)
	}
}

func TestDirDB_DeleteAsset(t *testing.T) {
	root := t.TempDir()
	abs := writeTestAsset(t, root, "textures/fr/flag.png", []byte("png"), "u-flag")
	db := NewDirDB(root)
	ctx := context.Background()

	info, ok, err := db.DeleteAsset(ctx, "u-flag")
	if err != nil || !ok {
		t.Fatalf("DeleteAsset 失败：ok=%v err=%v", ok, err)
	}
	if info.URL != "db://assets/textures/fr/flag.png" {
		t.Fatalf("删除前信息不正确：%+v", info)
	}
	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Fatalf("资源文件应已删除")
	}
	if _, err := os.Stat(abs + ".meta"); !os.IsNotExist(err) {
		t.Fatalf(".meta 应随资源一起删除")
	}

	// 再删、按标识解析都应得到“不存在”。
	if _, ok, _ := db.DeleteAsset(ctx, "u-flag"); ok {
		t.Fatalf("重复删除应返回不存在")
	}
	if _, ok, _ := db.ResolvePath(ctx, "flag"); ok {
		t.Fatalf("索引应已剔除该标识")
	}
}

func TestDirDB_MoveAsset(t *testing.T) {
	root := t.TempDir()
	writeTestAsset(t, root, "a/logo.png", []byte("png"), "u-logo")
	db := NewDirDB(root)
	ctx := context.Background()

	ok, err := db.MoveAsset(ctx, "a/logo.png", "b/c/logo.png")
	if err != nil || !ok {
		t.Fatalf("MoveAsset 失败：ok=%v err=%v", ok, err)
	}
	dst := filepath.Join(root, "assets", "b", "c", "logo.png")
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("目标不存在：%v", err)
	}
	if _, err := os.Stat(dst + ".meta"); err != nil {
		t.Fatalf("目标 .meta 不存在：%v", err)
	}
	p, ok, _ := db.ResolvePath(ctx, "u-logo")
	if !ok || p != dst {
		t.Fatalf("索引未跟随移动：p=%q ok=%v", p, ok)
	}

	if ok, err := db.MoveAsset(ctx, "a/ghost.png", "b/ghost.png"); ok || err != nil {
		t.Fatalf("源不存在应返回 (false, nil)：ok=%v err=%v", ok, err)
	}
}

func TestDirDB_ImportAsset(t *testing.T) {
	root := t.TempDir()
	db := NewDirDB(root)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "outside.png")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("准备源文件失败：%v", err)
	}
	info, err := db.ImportAsset(ctx, src, "imported/outside.png")
	if err != nil {
		t.Fatalf("ImportAsset 失败：%v", err)
	}
	if info.UUID == "" || info.Type != "image" {
		t.Fatalf("导入信息不正确：%+v", info)
	}
	b, _ := os.ReadFile(filepath.Join(root, "assets", "imported", "outside.png"))
	if string(b) != "payload" {
		t.Fatalf("导入内容不正确：%s", b)
	}
}

func TestDirDB_RefreshMintsMeta(t *testing.T) {
	root := t.TempDir()
	db := NewDirDB(root)
	ctx := context.Background()

	// 先建索引（空库），再绕过网关直接丢一个文件进去。
	if _, ok, _ := db.ResolvePath(ctx, "late"); ok {
		t.Fatalf("空库不应有资源")
	}
	abs := filepath.Join(root, "assets", "late.png")
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir 失败：%v", err)
	}
	if err := os.WriteFile(abs, []byte("png"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}

	// 旧索引看不到；刷新后补发 .meta 且可查。
	if _, ok, _ := db.ResolvePath(ctx, "late"); ok {
		t.Fatalf("刷新前旧索引不应看到新文件")
	}
	if err := db.RefreshAsset(ctx, "db://assets"); err != nil {
		t.Fatalf("RefreshAsset 失败：%v", err)
	}
	if _, err := os.Stat(abs + ".meta"); err != nil {
		t.Fatalf("刷新应补发 .meta：%v", err)
	}
	info, ok, err := db.QueryAssetInfo(ctx, "late")
	if err != nil || !ok || info.UUID == "" {
		t.Fatalf("刷新后应可查：ok=%v err=%v info=%+v", ok, err, info)
	}
}

func TestDirDB_ContextCanceled(t *testing.T) {
	db := NewDirDB(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := db.ResolvePath(ctx, "anything"); err == nil {
		t.Fatalf("已取消的 ctx 应让索引构建失败")
	}
}

func TestDirDB_StemCollisionDeterministic(t *testing.T) {
	root := t.TempDir()
	writeTestAsset(t, root, "a/dup.png", []byte("first"), "u-a")
	writeTestAsset(t, root, "z/dup.png", []byte("second"), "u-z")
	db := NewDirDB(root)
	ctx := context.Background()

	// 主名冲突按字典序先到先得：a/ 在 z/ 之前。
	p, ok, err := db.ResolvePath(ctx, "dup")
	if err != nil || !ok {
		t.Fatalf("解析失败：ok=%v err=%v", ok, err)
	}
	if !strings.HasSuffix(p, filepath.Join("a", "dup.png")) {
		t.Fatalf("冲突解析不确定：%q", p)
	}
	// uuid 仍能精确定位各自文件。
	p, _, _ = db.ResolvePath(ctx, "u-z")
	if !strings.HasSuffix(p, filepath.Join("z", "dup.png")) {
		t.Fatalf("uuid 定位不正确：%q", p)
	}
}
