package export

import (
	"encoding/json"
	"fmt"

	"github.com/John-Robertt/LocPack/internal/domain"
)

// JSONDict 导出扁平 JSON 字典（键 = 文本，键按字典序）。
type JSONDict struct{}

func (JSONDict) Format() string { return "jsondict" }

func (JSONDict) FileName(lang string) string { return lang + ".json" }

func (JSONDict) Export(ds *domain.Dataset, lang string) ([]byte, error) {
	if err := ensureLanguage(ds, lang); err != nil {
		return nil, err
	}
	flat := map[string]string{}
	for _, e := range textEntries(ds, lang) {
		flat[e.Key] = e.Text
	}
	b, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("编码 JSON 失败：%w", err)
	}
	return append(b, '\n'), nil
}
