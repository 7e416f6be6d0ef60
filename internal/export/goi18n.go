package export

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/John-Robertt/LocPack/internal/domain"
)

// GoI18N 导出 go-i18n 消息文件（扁平 TOML：键 = 文本）。
// 产出前把语言码过一遍 BCP-47 解析，产出后再用 go-i18n 自己的
// 装载器读回来验一次：发出去的文件必须是下游服务直接能用的。
type GoI18N struct{}

func (GoI18N) Format() string { return "goi18n" }

func (GoI18N) FileName(lang string) string { return "messages." + lang + ".toml" }

func (g GoI18N) Export(ds *domain.Dataset, lang string) ([]byte, error) {
	if err := ensureLanguage(ds, lang); err != nil {
		return nil, err
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("语言码 %q 不是合法的 BCP-47 标签：%w", lang, err)
	}

	flat := map[string]string{}
	for _, e := range textEntries(ds, lang) {
		flat[e.Key] = e.Text
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(flat); err != nil {
		return nil, fmt.Errorf("编码 TOML 失败：%w", err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	if _, err := bundle.ParseMessageFileBytes(buf.Bytes(), g.FileName(lang)); err != nil {
		return nil, fmt.Errorf("产出无法被 go-i18n 装载：%w", err)
	}
	return buf.Bytes(), nil
}
