package domain

import "strings"

// ResourceRef 是精灵图条目 text 的解析结果。
//
// 合法形态：
// - "spriteId"          → {Atlas:"", Sprite:"spriteId"}
// - "atlasId:spriteId"  → {Atlas:"atlasId", Sprite:"spriteId"}
// - 任一半可带 "@suffix"（资产库追加的子资源标记），匹配前必须剥离
type ResourceRef struct {
	Atlas  string
	Sprite string
}

// ParseResourceRef 是全函数：任何输入都能得到一个 ResourceRef（空串得到零值）。
// 只按第一个 ':' 切分；两半的 '@' 后缀各自独立剥离。
func ParseResourceRef(s string) ResourceRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return ResourceRef{}
	}
	if i := strings.Index(s, ":"); i >= 0 {
		return ResourceRef{
			Atlas:  StripVariant(s[:i]),
			Sprite: StripVariant(s[i+1:]),
		}
	}
	return ResourceRef{Sprite: StripVariant(s)}
}

// StripVariant 剥离资源标识符上的 "@suffix" 片段（资产库用它标记子资源）。
func StripVariant(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[:i]
	}
	return s
}

// IDs 返回非空的标识符（先 atlas 后 sprite），供使用分析按资源聚合。
func (r ResourceRef) IDs() []string {
	out := make([]string, 0, 2)
	if r.Atlas != "" {
		out = append(out, r.Atlas)
	}
	if r.Sprite != "" {
		out = append(out, r.Sprite)
	}
	return out
}

// IsEmpty 判断引用是否为空（两半都不存在）。
func (r ResourceRef) IsEmpty() bool {
	return r.Atlas == "" && r.Sprite == ""
}
