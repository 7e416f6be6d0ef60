package domain

// Language 描述数据集内的一种语言（name 给人看，code 是唯一键）。
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ItemType 是条目类型：文本或精灵图引用。
type ItemType string

const (
	ItemText   ItemType = "text"
	ItemSprite ItemType = "sprite"
)

// Value 是某条目在某语言下的取值。
// Text 条目：text 为字面文本；Sprite 条目：text 为资源引用串（见 ResourceRef）。
type Value struct {
	Text    string         `json:"text"`
	Options map[string]any `json:"options,omitempty"`
}

// Item 是一个翻译键下的全部语言取值。
type Item struct {
	Type  ItemType         `json:"type"`
	Value map[string]Value `json:"value"`
}

// Dataset 是本地化数据文件的内存形态。
//
// 不变量（实现必须遵守）：
// - Languages 内 code 唯一
// - Languages 非空时 DefaultLanguage 必须指向其中一项
// - Keys 与 Items 一一对应；Keys 保留文件内的原始顺序（写回时按原顺序输出）
type Dataset struct {
	Languages       []Language
	DefaultLanguage string
	Keys            []string
	Items           map[string]Item
}

// Put 写入（或覆盖）一个条目；新键追加到 Keys 末尾，保持既有顺序不变。
func (d *Dataset) Put(key string, it Item) {
	if d.Items == nil {
		d.Items = map[string]Item{}
	}
	if _, ok := d.Items[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	d.Items[key] = it
}

// Get 按键取条目。
func (d *Dataset) Get(key string) (Item, bool) {
	it, ok := d.Items[key]
	return it, ok
}

// HasLanguage 判断 code 是否在 Languages 中。
func (d *Dataset) HasLanguage(code string) bool {
	for _, l := range d.Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// DefaultEntry 返回默认语言对应的 Language 项。
func (d *Dataset) DefaultEntry() (Language, bool) {
	for _, l := range d.Languages {
		if l.Code == d.DefaultLanguage {
			return l, true
		}
	}
	return Language{}, false
}
