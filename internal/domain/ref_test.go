package domain

import "testing"

func TestParseResourceRef(t *testing.T) {
	cases := []struct {
		in   string
		want ResourceRef
	}{
		{"", ResourceRef{}},
		{"   ", ResourceRef{}},
		{"frameX", ResourceRef{Sprite: "frameX"}},
		{"atlasA:frameX", ResourceRef{Atlas: "atlasA", Sprite: "frameX"}},
		{"atlasA@f9941:frameX", ResourceRef{Atlas: "atlasA", Sprite: "frameX"}},
		{"atlasA:frameX@6c48a", ResourceRef{Atlas: "atlasA", Sprite: "frameX"}},
		{"atlasA@f9941:frameX@6c48a", ResourceRef{Atlas: "atlasA", Sprite: "frameX"}},
		{"frameX@6c48a", ResourceRef{Sprite: "frameX"}},
		// 只按第一个 ':' 切分：后续冒号归入 sprite 一侧。
		{"a:b:c", ResourceRef{Atlas: "a", Sprite: "b:c"}},
		// 空半边也是合法输入（全函数，不报错）。
		{":frameX", ResourceRef{Sprite: "frameX"}},
		{"atlasA:", ResourceRef{Atlas: "atlasA"}},
	}
	for _, c := range cases {
		got := ParseResourceRef(c.in)
		if got != c.want {
			t.Fatalf("ParseResourceRef(%q) = %+v，期望 %+v", c.in, got, c.want)
		}
	}
}

func TestResourceRef_IDs(t *testing.T) {
	r := ParseResourceRef("atlasA:frameX")
	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "atlasA" || ids[1] != "frameX" {
		t.Fatalf("IDs 不符合预期：%v", ids)
	}

	r = ParseResourceRef("frameX")
	ids = r.IDs()
	if len(ids) != 1 || ids[0] != "frameX" {
		t.Fatalf("裸标识符 IDs 不符合预期：%v", ids)
	}

	if !ParseResourceRef("  ").IsEmpty() {
		t.Fatalf("空输入应得到空引用")
	}
}

func TestStripVariant(t *testing.T) {
	if got := StripVariant("atlasA@f9941"); got != "atlasA" {
		t.Fatalf("后缀未剥离：%q", got)
	}
	if got := StripVariant("atlasA"); got != "atlasA" {
		t.Fatalf("无后缀输入不应改变：%q", got)
	}
}

func TestDataset_PutKeepsOrder(t *testing.T) {
	var d Dataset
	d.Put("zeta", Item{Type: ItemText})
	d.Put("alpha", Item{Type: ItemText})
	d.Put("zeta", Item{Type: ItemSprite}) // 覆盖不改变顺序

	if len(d.Keys) != 2 || d.Keys[0] != "zeta" || d.Keys[1] != "alpha" {
		t.Fatalf("Keys 顺序不符合契约：%v", d.Keys)
	}
	it, ok := d.Get("zeta")
	if !ok || it.Type != ItemSprite {
		t.Fatalf("覆盖写入未生效：%+v ok=%v", it, ok)
	}
}
