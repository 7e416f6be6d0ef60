// Package export 把数据集的文本条目导出成下游可直接消费的格式。
// 精灵图条目是引擎侧资源，不参与导出。
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/LocPack/internal/domain"
)

// Exporter 产出某一种格式的单语言文件。
//
// 约束：
// - Export 必须是纯函数：相同输入 => 相同字节
// - lang 必须出现在数据集的语言声明表里，否则报错
type Exporter interface {
	Format() string
	FileName(lang string) string
	Export(ds *domain.Dataset, lang string) ([]byte, error)
}

// Registry 是 exporter 的只读注册表（按 format 索引）。
// 用 map 做 O(1) 查找；格式数量极小，保持简单即可。
type Registry struct {
	byFormat map[string]Exporter
}

func NewRegistry(exporters ...Exporter) (Registry, error) {
	byFormat := make(map[string]Exporter, len(exporters))
	for _, e := range exporters {
		if e == nil {
			return Registry{}, fmt.Errorf("exporter 不能为空")
		}
		format := strings.ToLower(strings.TrimSpace(e.Format()))
		if format == "" {
			return Registry{}, fmt.Errorf("exporter.Format 不能为空")
		}
		if _, ok := byFormat[format]; ok {
			return Registry{}, fmt.Errorf("重复的 exporter：%q", format)
		}
		byFormat[format] = e
	}
	return Registry{byFormat: byFormat}, nil
}

// NewDefaultRegistry 注册全部内建格式。
func NewDefaultRegistry() (Registry, error) {
	return NewRegistry(GoI18N{}, JSONDict{}, YAMLCat{})
}

func (r Registry) Get(format string) (Exporter, bool) {
	if r.byFormat == nil {
		return nil, false
	}
	format = strings.ToLower(strings.TrimSpace(format))
	e, ok := r.byFormat[format]
	return e, ok
}

// Formats 返回已注册格式名（字典序，给用法文本用）。
func (r Registry) Formats() []string {
	out := make([]string, 0, len(r.byFormat))
	for format := range r.byFormat {
		out = append(out, format)
	}
	sort.Strings(out)
	return out
}

type entry struct {
	Key  string
	Text string
}

// textEntries 按声明顺序收集 lang 的文本条目；精灵图与缺失取值跳过。
func textEntries(ds *domain.Dataset, lang string) []entry {
	out := make([]entry, 0, len(ds.Keys))
	for _, key := range ds.Keys {
		it, ok := ds.Items[key]
		if !ok || it.Type != domain.ItemText {
			continue
		}
		v, ok := it.Value[lang]
		if !ok {
			continue
		}
		out = append(out, entry{Key: key, Text: v.Text})
	}
	return out
}

func ensureLanguage(ds *domain.Dataset, lang string) error {
	for _, l := range ds.Languages {
		if l.Code == lang {
			return nil
		}
	}
	return fmt.Errorf("未声明的语言码：%q", lang)
}
