// Package analyze 统计数据集中图集资源的语言归属，给出需要搬离的资源清单。
//
// 扫描只看 sprite 条目：每个语言取值解析为资源引用，按“取值所属语言
// 是否为默认语言”落入两张集合。搬离清单是两张集合的差：只被非默认
// 语言引用的资源才会被搬走，默认语言引用过的资源永远留在原地。
package analyze

import (
	"sort"

	"github.com/John-Robertt/LocPack/internal/domain"
)

// Analysis 一次扫描的结果。同一资源可以同时出现在两张集合里，
// 归属判定发生在 ResourcesToMove，而不是入表时。
type Analysis struct {
	// DefaultResources 默认语言取值引用到的资源标识。
	DefaultResources map[string]struct{}
	// NonDefaultResources 非默认语言取值引用到的资源标识。
	NonDefaultResources map[string]struct{}
}

// ResourcesToMove 返回只被非默认语言引用的资源标识，字典序排列。
func (a Analysis) ResourcesToMove() []string {
	out := make([]string, 0, len(a.NonDefaultResources))
	for id := range a.NonDefaultResources {
		if _, ok := a.DefaultResources[id]; ok {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Scan 遍历数据集，解析 sprite 条目的全部语言取值并归类。
// 纯函数；text 条目与空引用忽略，引用解析时剥离 @hash 变体后缀。
func Scan(ds *domain.Dataset) Analysis {
	a := Analysis{
		DefaultResources:    make(map[string]struct{}),
		NonDefaultResources: make(map[string]struct{}),
	}
	for _, key := range ds.Keys {
		it := ds.Items[key]
		if it.Type != domain.ItemSprite {
			continue
		}
		for code, v := range it.Value {
			ref := domain.ParseResourceRef(v.Text)
			for _, id := range ref.IDs() {
				if code == ds.DefaultLanguage {
					a.DefaultResources[id] = struct{}{}
				} else {
					a.NonDefaultResources[id] = struct{}{}
				}
			}
		}
	}
	return a
}
