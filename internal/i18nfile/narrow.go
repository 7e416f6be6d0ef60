package i18nfile

import "github.com/John-Robertt/LocPack/internal/domain"

// Narrow 把数据集收窄为仅默认语言的内容（打包前执行）：
// - languages 只保留默认语言那一项
// - 每个条目只保留默认语言的取值；没有默认语言取值的条目整体丢弃
// - defaultLanguage 不变；键顺序保持原样
//
// 纯函数，不修改入参；幂等：对已收窄的数据集再收窄，结果不变。
func Narrow(ds *domain.Dataset) *domain.Dataset {
	out := &domain.Dataset{
		DefaultLanguage: ds.DefaultLanguage,
		Items:           make(map[string]domain.Item, len(ds.Items)),
	}
	if entry, ok := ds.DefaultEntry(); ok {
		out.Languages = []domain.Language{entry}
	}

	for _, key := range ds.Keys {
		it := ds.Items[key]
		v, ok := it.Value[ds.DefaultLanguage]
		if !ok {
			continue
		}
		out.Keys = append(out.Keys, key)
		out.Items[key] = domain.Item{
			Type:  it.Type,
			Value: map[string]domain.Value{ds.DefaultLanguage: v},
		}
	}
	return out
}
