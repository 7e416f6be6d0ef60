package export

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/John-Robertt/LocPack/internal/domain"
)

type stubExporter struct{ format string }

func (s stubExporter) Format() string                              { return s.format }
func (s stubExporter) FileName(lang string) string                 { return lang + ".txt" }
func (s stubExporter) Export(*domain.Dataset, string) ([]byte, error) { return nil, nil }

func textItem(values map[string]string) domain.Item {
	v := map[string]domain.Value{}
	for code, text := range values {
		v[code] = domain.Value{Text: text}
	}
	return domain.Item{Type: domain.ItemText, Value: v}
}

func spriteItem(values map[string]string) domain.Item {
	v := map[string]domain.Value{}
	for code, text := range values {
		v[code] = domain.Value{Text: text}
	}
	return domain.Item{Type: domain.ItemSprite, Value: v}
}

// exportDataset 的看点：带点号的键、精灵图条目（必须被排除）、
// 只有默认语言的键（fr 导出时必须被跳过）。
func exportDataset() *domain.Dataset {
	ds := &domain.Dataset{
		Languages: []domain.Language{
			{Name: "English", Code: "en"},
			{Name: "Français", Code: "fr"},
		},
		DefaultLanguage: "en",
	}
	ds.Put("home.title", textItem(map[string]string{"en": "Hello", "fr": "Bonjour"}))
	ds.Put("home.flag", spriteItem(map[string]string{"en": "flag_en", "fr": "flag_fr"}))
	ds.Put("farewell", textItem(map[string]string{"en": "Goodbye", "fr": "Au revoir"}))
	ds.Put("en.only", textItem(map[string]string{"en": "English only"}))
	return ds
}

func TestNewRegistry_Validation(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Fatalf("空 exporter 应报错")
	}
	if _, err := NewRegistry(stubExporter{format: ""}); err == nil {
		t.Fatalf("空格式名应报错")
	}
	if _, err := NewRegistry(stubExporter{format: "a"}, stubExporter{format: " A"}); err == nil {
		t.Fatalf("重复格式（忽略大小写与空白）应报错")
	}
}

func TestRegistry_GetAndFormats(t *testing.T) {
	r, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := r.Get("goi18n"); !ok {
		t.Fatalf("goi18n 应已注册")
	}
	if _, ok := r.Get(" GOI18N "); !ok {
		t.Fatalf("查找应忽略大小写与空白")
	}
	if _, ok := r.Get("nope"); ok {
		t.Fatalf("未注册的格式不该命中")
	}
	want := []string{"goi18n", "jsondict", "yamlcat"}
	if diff := cmp.Diff(want, r.Formats()); diff != "" {
		t.Fatalf("格式清单不符（-want +got）：\n%s", diff)
	}
}

func TestGoI18N_Export(t *testing.T) {
	b, err := GoI18N{}.Export(exportDataset(), "fr")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	var got map[string]string
	if err := toml.Unmarshal(b, &got); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := map[string]string{
		"home.title": "Bonjour",
		"farewell":   "Au revoir",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("TOML 内容不符（-want +got）：\n%s", diff)
	}

	// 下游视角：go-i18n 必须能装载产出并看到全部消息
	bundle := i18n.NewBundle(language.French)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	mf, err := bundle.ParseMessageFileBytes(b, "messages.fr.toml")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	ids := map[string]bool{}
	for _, m := range mf.Messages {
		ids[m.ID] = true
	}
	if !ids["home.title"] || !ids["farewell"] || len(ids) != 2 {
		t.Fatalf("消息集合不对：%v", ids)
	}
}

func TestGoI18N_InvalidTag(t *testing.T) {
	ds := &domain.Dataset{Languages: []domain.Language{{Name: "Bad", Code: "!!"}}}
	if _, err := (GoI18N{}).Export(ds, "!!"); err == nil {
		t.Fatalf("非法语言标签应报错")
	}
}

func TestJSONDict_Export(t *testing.T) {
	b, err := JSONDict{}.Export(exportDataset(), "fr")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := "{\n  \"farewell\": \"Au revoir\",\n  \"home.title\": \"Bonjour\"\n}\n"
	if string(b) != want {
		t.Fatalf("JSON 内容不符：\n%s", b)
	}
}

func TestYAMLCat_Export(t *testing.T) {
	b, err := YAMLCat{}.Export(exportDataset(), "fr")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// messages 保持数据文件键序：home.title 在 farewell 前面
	want := "language: fr\nmessages:\n    home.title: Bonjour\n    farewell: Au revoir\n"
	if string(b) != want {
		t.Fatalf("YAML 内容不符：\n%s", b)
	}
}

func TestYAMLCat_NoEntries(t *testing.T) {
	ds := &domain.Dataset{Languages: []domain.Language{{Name: "English", Code: "en"}}}
	b, err := YAMLCat{}.Export(ds, "en")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := "language: en\nmessages: {}\n"
	if string(b) != want {
		t.Fatalf("YAML 内容不符：\n%s", b)
	}
}

func TestExport_UndeclaredLanguage(t *testing.T) {
	ds := exportDataset()
	for _, e := range []Exporter{GoI18N{}, JSONDict{}, YAMLCat{}} {
		if _, err := e.Export(ds, "de"); err == nil {
			t.Fatalf("%s：未声明语言应报错", e.Format())
		}
	}
}
