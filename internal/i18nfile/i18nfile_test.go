package i18nfile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/LocPack/internal/domain"
)

const sampleFile = `{
  "languages": [
    {"name": "English", "code": "en"},
    {"name": "Français", "code": "fr"}
  ],
  "defaultLanguage": "en",
  "items": {
    "zeta.title": {"type": "text", "value": {"en": {"text": "Hello"}, "fr": {"text": "Bonjour"}}},
    "alpha.icon": {"type": "sprite", "value": {"en": {"text": "atlasA:frameY"}, "fr": {"text": "atlasA:frameX@6c48a"}}},
    "beta.hint": {"type": "text", "value": {"fr": {"text": "Astuce"}}}
  }
}
`

func TestDecode_KeepsKeyOrder(t *testing.T) {
	ds, err := Decode([]byte(sampleFile))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	wantKeys := []string{"zeta.title", "alpha.icon", "beta.hint"}
	if diff := cmp.Diff(wantKeys, ds.Keys); diff != "" {
		t.Fatalf("键顺序必须与文件一致（字典序也不行）：\n%s", diff)
	}
	if ds.DefaultLanguage != "en" || len(ds.Languages) != 2 {
		t.Fatalf("头部字段解析不正确：%+v", ds)
	}
	it, ok := ds.Get("alpha.icon")
	if !ok || it.Type != domain.ItemSprite || it.Value["fr"].Text != "atlasA:frameX@6c48a" {
		t.Fatalf("条目解析不正确：%+v", it)
	}
}

func TestDecode_InvalidInputs(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"非对象顶层", `[1,2]`},
		{"截断", `{"languages": [`},
		{"重复 key", `{"items": {"a": {"type":"text","value":{}}, "a": {"type":"text","value":{}}}}`},
		{"items 非对象", `{"items": 42}`},
	}
	for _, c := range cases {
		_, err := Decode([]byte(c.in))
		if err == nil {
			t.Fatalf("%s：期望失败，但得到 nil", c.name)
		}
		if domain.Code(err) != domain.ErrCodeDataInvalid {
			t.Fatalf("%s：期望 data_invalid，实际：%v", c.name, err)
		}
	}
}

func TestDecode_UnknownTopLevelFieldSkipped(t *testing.T) {
	ds, err := Decode([]byte(`{"version": 3, "defaultLanguage": "en", "items": {}}`))
	if err != nil {
		t.Fatalf("未知字段不应报错：%v", err)
	}
	if ds.DefaultLanguage != "en" {
		t.Fatalf("已知字段解析不正确：%+v", ds)
	}
}

func TestEncode_StableRoundTrip(t *testing.T) {
	ds, err := Decode([]byte(sampleFile))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	first, err := Encode(ds)
	if err != nil {
		t.Fatalf("Encode 失败：%v", err)
	}
	ds2, err := Decode(first)
	if err != nil {
		t.Fatalf("自产文件应可解析：%v", err)
	}
	second, err := Encode(ds2)
	if err != nil {
		t.Fatalf("Encode 失败：%v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("Decode→Encode 必须逐字节稳定：\n--- 第一次\n%s\n--- 第二次\n%s", first, second)
	}
	if !strings.HasSuffix(string(first), "\n") {
		t.Fatalf("输出应以换行结尾")
	}
}

func TestEncode_ValueOrderFollowsLanguages(t *testing.T) {
	ds := &domain.Dataset{
		Languages:       []domain.Language{{Name: "Français", Code: "fr"}, {Name: "English", Code: "en"}},
		DefaultLanguage: "fr",
	}
	// value 的 map 顺序不可控；输出必须按 languages 声明顺序（fr 在前）。
	ds.Put("k", domain.Item{Type: domain.ItemText, Value: map[string]domain.Value{
		"en": {Text: "Hello"},
		"fr": {Text: "Bonjour"},
		"zz": {Text: "未声明语言"},
	}})

	b, err := Encode(ds)
	if err != nil {
		t.Fatalf("Encode 失败：%v", err)
	}
	s := string(b)
	fr := strings.Index(s, `"fr"`)
	en := strings.Index(s, `"en"`)
	zz := strings.Index(s, `"zz"`)
	// languages 段里也出现 "fr"/"en"，这里取 value 段内的相对位置：都在 items 之后。
	items := strings.Index(s, `"items"`)
	if fr < 0 || en < 0 || zz < 0 || items < 0 {
		t.Fatalf("输出缺少预期内容：\n%s", s)
	}
	frV := strings.Index(s[items:], `"fr"`)
	enV := strings.Index(s[items:], `"en"`)
	zzV := strings.Index(s[items:], `"zz"`)
	if !(frV < enV && enV < zzV) {
		t.Fatalf("value 顺序不符合契约（fr < en < 未声明）：\n%s", s)
	}
}

func TestEncode_NoHTMLEscape(t *testing.T) {
	ds := &domain.Dataset{
		Languages:       []domain.Language{{Name: "English", Code: "en"}},
		DefaultLanguage: "en",
	}
	ds.Put("rich", domain.Item{Type: domain.ItemText, Value: map[string]domain.Value{
		"en": {Text: "<color=#ff0000>red</color>"},
	}})

	b, err := Encode(ds)
	if err != nil {
		t.Fatalf("Encode 失败：%v", err)
	}
	if !strings.Contains(string(b), "<color=#ff0000>red</color>") {
		t.Fatalf("富文本被转义了：\n%s", b)
	}
}

func TestLoadWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "i18n.json")

	ds, err := Decode([]byte(sampleFile))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := Write(path, ds); err != nil {
		t.Fatalf("Write 失败：%v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败：%v", err)
	}
	if diff := cmp.Diff(ds, got); diff != "" {
		t.Fatalf("落盘往返不一致：\n%s", diff)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	if domain.Code(err) != domain.ErrCodeNotFound {
		t.Fatalf("期望 not_found，实际：%v", err)
	}
}
