// Package lint 对本地化数据集做构建前体检：语言声明、取值归属、
// 资源引用存在性、富文本标记一致性。只产出发现，不改数据。
package lint

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"

	"github.com/John-Robertt/LocPack/internal/assetdb"
	"github.com/John-Robertt/LocPack/internal/domain"
)

const (
	SeverityError = "error"
	SeverityWarn  = "warn"
)

// 发现的分类码。error 级别的发现会让 check 命令以非零码退出。
const (
	CodeLangDuplicate          = "lang_duplicate"
	CodeLangInvalidTag         = "lang_invalid_tag"
	CodeDefaultLanguageMissing = "default_language_missing"
	CodeValueUnknownLanguage   = "value_unknown_language"
	CodeDefaultTextEmpty       = "default_text_empty"
	CodeSpriteAssetMissing     = "sprite_asset_missing"
	CodeTextLooksLikeRef       = "text_looks_like_ref"
	CodeMarkupMismatch         = "markup_mismatch"
)

// Finding 是一条体检发现。Key/Language 视分类码可为空。
type Finding struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Key      string `json:"key,omitempty"`
	Language string `json:"language,omitempty"`
	Detail   string `json:"detail"`
}

// Report 汇总全部发现与分级计数。
type Report struct {
	Findings []Finding `json:"findings"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
}

func (r *Report) add(severity, code, key, lang, detail string) {
	r.Findings = append(r.Findings, Finding{
		Code:     code,
		Severity: severity,
		Key:      key,
		Language: lang,
		Detail:   detail,
	})
	if severity == SeverityError {
		r.Errors++
	} else {
		r.Warnings++
	}
}

// HasErrors 判断是否存在 error 级别的发现。
func (r Report) HasErrors() bool { return r.Errors > 0 }

// Check 按固定顺序体检数据集。gw 为 nil 时跳过资源存在性检查
//（离线场景：只看数据本身）。发现的顺序是确定的，同一份输入
// 两次体检产出逐字节相同的报告。
func Check(ctx context.Context, ds *domain.Dataset, gw assetdb.Gateway) Report {
	r := Report{Findings: []Finding{}}
	declared := checkLanguages(ds, &r)
	checkItems(ctx, ds, declared, gw, &r)
	return r
}

// checkLanguages 校验语言声明表，返回声明过的语言码集合。
func checkLanguages(ds *domain.Dataset, r *Report) map[string]struct{} {
	declared := make(map[string]struct{}, len(ds.Languages))
	for _, lang := range ds.Languages {
		code := lang.Code
		if code == "" {
			r.add(SeverityError, CodeLangInvalidTag, "", "", "语言码为空")
			continue
		}
		if _, dup := declared[code]; dup {
			r.add(SeverityError, CodeLangDuplicate, "", code, "语言码重复")
			continue
		}
		declared[code] = struct{}{}
		if _, err := language.Parse(code); err != nil {
			r.add(SeverityError, CodeLangInvalidTag, "", code, fmt.Sprintf("不是合法的 BCP-47 语言标签：%v", err))
		}
	}
	if ds.DefaultLanguage != "" {
		if _, ok := declared[ds.DefaultLanguage]; !ok {
			r.add(SeverityError, CodeDefaultLanguageMissing, "", ds.DefaultLanguage, "defaultLanguage 不在 languages 里")
		}
	}
	return declared
}

func checkItems(ctx context.Context, ds *domain.Dataset, declared map[string]struct{}, gw assetdb.Gateway, r *Report) {
	// 资源存在性按 id 全局去重：同一个缺失的图集被十个键引用，
	// 报一次就够了。
	assetSeen := map[string]bool{}
	assetCheck := gw != nil

	for _, key := range ds.Keys {
		it, ok := ds.Items[key]
		if !ok {
			continue
		}
		codes := make([]string, 0, len(it.Value))
		for code := range it.Value {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		for _, code := range codes {
			if _, ok := declared[code]; !ok {
				r.add(SeverityWarn, CodeValueUnknownLanguage, key, code, "取值使用了未声明的语言码")
			}
		}

		switch it.Type {
		case domain.ItemText:
			if ds.DefaultLanguage != "" {
				v, ok := it.Value[ds.DefaultLanguage]
				if !ok || strings.TrimSpace(v.Text) == "" {
					r.add(SeverityWarn, CodeDefaultTextEmpty, key, ds.DefaultLanguage, "默认语言文本为空")
				}
			}
			for _, code := range codes {
				if text := it.Value[code].Text; looksLikeRef(text) {
					r.add(SeverityWarn, CodeTextLooksLikeRef, key, code, fmt.Sprintf("文本看起来像精灵图引用：%q", text))
				}
			}
			checkMarkup(ds, key, it, declared, r)

		case domain.ItemSprite:
			if !assetCheck {
				continue
			}
			for _, code := range codes {
				ref := domain.ParseResourceRef(it.Value[code].Text)
				for _, id := range ref.IDs() {
					if _, seen := assetSeen[id]; seen {
						continue
					}
					_, found, err := gw.QueryAssetInfo(ctx, id)
					if err != nil {
						// 网关出错（多半是取消）就放弃剩余的存在性检查，体检继续。
						assetCheck = false
						break
					}
					assetSeen[id] = found
					if !found {
						r.add(SeverityError, CodeSpriteAssetMissing, key, code, fmt.Sprintf("引用的资源不存在：%q", id))
					}
				}
				if !assetCheck {
					break
				}
			}
		}
	}
}

// checkMarkup 比较每个声明语言的富文本标记多重集与默认语言是否一致。
// 只在任一侧出现标记时才比较；不一致按警告处理（翻译漏掉加粗
// 比多一层标签常见得多，都不致命）。
func checkMarkup(ds *domain.Dataset, key string, it domain.Item, declared map[string]struct{}, r *Report) {
	if ds.DefaultLanguage == "" {
		return
	}
	base := tagMultiset(it.Value[ds.DefaultLanguage].Text)

	codes := make([]string, 0, len(it.Value))
	for code := range it.Value {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if code == ds.DefaultLanguage {
			continue
		}
		if _, ok := declared[code]; !ok {
			continue
		}
		got := tagMultiset(it.Value[code].Text)
		if len(base) == 0 && len(got) == 0 {
			continue
		}
		if !sameTags(base, got) {
			r.add(SeverityWarn, CodeMarkupMismatch, key, code,
				fmt.Sprintf("富文本标记与默认语言不一致：默认 %s，此语言 %s", formatTags(base), formatTags(got)))
		}
	}
}

// tagMultiset 解析富文本，统计标签名出现次数。纯文本返回空。
func tagMultiset(s string) map[string]int {
	if !strings.Contains(s, "<") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return nil
	}
	tags := map[string]int{}
	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		tags[goquery.NodeName(sel)]++
	})
	return tags
}

func sameTags(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, n := range a {
		if b[k] != n {
			return false
		}
	}
	return true
}

func formatTags(m map[string]int) string {
	if len(m) == 0 {
		return "无"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s×%d", k, m[k]))
	}
	return strings.Join(parts, ",")
}

var refPattern = regexp.MustCompile(`^[\w./-]+(@[\w.-]+)?(:[\w./-]+(@[\w.-]+)?)?$`)

// looksLikeRef 判断一段文本是否像 "atlas:sprite" 形态的资源引用。
// 必须带冒号且含字母，排掉 "10:30" 这类时刻写法。
func looksLikeRef(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, ":") {
		return false
	}
	if strings.IndexFunc(s, unicode.IsLetter) < 0 {
		return false
	}
	return refPattern.MatchString(s)
}
