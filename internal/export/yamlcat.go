package export

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/LocPack/internal/domain"
)

// YAMLCat 导出 YAML 语言目录：language 头 + messages 表。
// 用 yaml.Node 手搭文档树，messages 保持数据文件里的键序
//（map 编码会重排，目录类文件的审阅体验靠原始顺序）。
type YAMLCat struct{}

func (YAMLCat) Format() string { return "yamlcat" }

func (YAMLCat) FileName(lang string) string { return lang + ".yaml" }

func (YAMLCat) Export(ds *domain.Dataset, lang string) ([]byte, error) {
	if err := ensureLanguage(ds, lang); err != nil {
		return nil, err
	}

	messages := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range textEntries(ds, lang) {
		messages.Content = append(messages.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Text},
		)
	}
	root := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "language"},
			{Kind: yaml.ScalarNode, Value: lang},
			{Kind: yaml.ScalarNode, Value: "messages"},
			messages,
		},
	}

	b, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("编码 YAML 失败：%w", err)
	}
	return b, nil
}
