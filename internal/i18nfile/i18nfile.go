package i18nfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
)

// 本地化数据文件（JSON, UTF-8, 2 空格缩进）：
//
//	{
//	  "languages": [{"name": "...", "code": "..."}],
//	  "defaultLanguage": "...",
//	  "items": { "<key>": { "type": "text"|"sprite", "value": { "<code>": {"text": "...", "options": {...}} } } }
//	}
//
// items 的键顺序是数据的一部分：写回必须按原顺序输出。
// map 反序列化会丢失顺序，所以 Decode 用 json.Decoder 顺序读 token。

// Decode 解析本地化数据文件。任何不合法输入返回 error_code=data_invalid。
func Decode(data []byte) (*domain.Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Err: err}
	}

	ds := &domain.Dataset{Items: map[string]domain.Item{}}
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Err: err}
		}
		switch key {
		case "languages":
			if err := dec.Decode(&ds.Languages); err != nil {
				return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Ref: "languages", Err: err}
			}
		case "defaultLanguage":
			if err := dec.Decode(&ds.DefaultLanguage); err != nil {
				return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Ref: "defaultLanguage", Err: err}
			}
		case "items":
			if err := decodeItems(dec, ds); err != nil {
				return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Ref: "items", Err: err}
			}
		default:
			// 未知顶层字段：跳过（向后兼容，不报错）。
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Ref: key, Err: err}
			}
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeDataInvalid, Err: err}
	}
	return ds, nil
}

func decodeItems(dec *json.Decoder, ds *domain.Dataset) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return err
		}
		if _, dup := ds.Items[key]; dup {
			return fmt.Errorf("重复的 key：%q", key)
		}
		var it domain.Item
		if err := dec.Decode(&it); err != nil {
			return fmt.Errorf("key %q：%w", key, err)
		}
		ds.Keys = append(ds.Keys, key)
		ds.Items[key] = it
	}
	_, err := dec.Token()
	return err
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("期望 %q，实际 %v", want, tok)
	}
	return nil
}

func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("期望对象键，实际 %v", tok)
	}
	return s, nil
}

// Encode 输出稳定的 2 空格缩进 JSON：
// - items 按 Keys 顺序
// - 每个条目的 value 按 Languages 顺序；不在 Languages 里的 code 排在其后（字典序）
// - 不做 HTML 转义：富文本取值里的 '<'、'>' 必须原样落盘
// - Decode→Encode 对本包产出逐字节稳定（收窄幂等与备份比对依赖这一点）
func Encode(ds *domain.Dataset) ([]byte, error) {
	w := fileWire{
		Languages:       ds.Languages,
		DefaultLanguage: ds.DefaultLanguage,
		Items:           orderedItems{ds: ds},
	}
	if w.Languages == nil {
		w.Languages = []domain.Language{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	// Encoder.Encode 自带末尾换行。
	return buf.Bytes(), nil
}

type fileWire struct {
	Languages       []domain.Language `json:"languages"`
	DefaultLanguage string            `json:"defaultLanguage"`
	Items           orderedItems      `json:"items"`
}

// orderedItems 按 Dataset.Keys 的顺序序列化 items（encoding/json 会对
// Marshaler 的输出重新缩进，这里只需产出紧凑形态）。
type orderedItems struct {
	ds *domain.Dataset
}

func (o orderedItems) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, key := range o.ds.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := marshalNoEscape(itemWire{ds: o.ds, it: o.ds.Items[key]})
		if err != nil {
			return nil, fmt.Errorf("key %q：%w", key, err)
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

type itemWire struct {
	ds *domain.Dataset
	it domain.Item
}

func (w itemWire) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"type":`)
	t, err := marshalNoEscape(w.it.Type)
	if err != nil {
		return nil, err
	}
	b.Write(t)
	b.WriteString(`,"value":{`)
	for i, code := range valueOrder(w.ds, w.it) {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := marshalNoEscape(code)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := marshalNoEscape(w.it.Value[code])
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteString("}}")
	return b.Bytes(), nil
}

// marshalNoEscape 等价 json.Marshal，但不做 HTML 转义（Encoder 层也不转义，
// 两层一致才能保证富文本原样落盘）。
func marshalNoEscape(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// valueOrder 给出条目取值的输出顺序：Languages 声明顺序在前，未声明的 code 字典序在后。
func valueOrder(ds *domain.Dataset, it domain.Item) []string {
	out := make([]string, 0, len(it.Value))
	seen := make(map[string]struct{}, len(it.Value))
	for _, l := range ds.Languages {
		if _, ok := it.Value[l.Code]; ok {
			out = append(out, l.Code)
			seen[l.Code] = struct{}{}
		}
	}
	rest := make([]string, 0, len(it.Value))
	for code := range it.Value {
		if _, ok := seen[code]; !ok {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Load 读取并解析磁盘上的本地化数据文件。
func Load(path string) (*domain.Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.Error{Code: domain.ErrCodeNotFound, Ref: path, Err: err}
		}
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: path, Err: err}
	}
	return Decode(b)
}

// Write 把数据集编码后原子写入 path（覆盖同名文件）。
func Write(path string, ds *domain.Dataset) error {
	b, err := Encode(ds)
	if err != nil {
		return &domain.Error{Code: domain.ErrCodeIOFailed, Ref: path, Err: err}
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b); err != nil {
		return &domain.Error{Code: domain.ErrCodeIOFailed, Ref: path, Err: err}
	}
	return nil
}
