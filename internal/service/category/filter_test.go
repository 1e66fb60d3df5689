package category

import (
	"testing"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(name, url string) model.CategoryNode {
	return model.CategoryNode{Name: name, Url: url, Children: []model.CategoryNode{}, Depth: 2}
}

func sampleTree() []model.CategoryNode {
	return []model.CategoryNode{
		{
			Name: "Tecnología",
			Children: []model.CategoryNode{
				leaf("TV y Video", "https://www.falabella.com/falabella-cl/category/cat2033/TV-y-Video"),
				leaf("Audio", "https://www.falabella.com/falabella-cl/category/cat2005/Audio"),
				leaf("Mundo Gamer", "https://www.falabella.com/falabella-cl/category/cat7330046/Mundo-Gamer"),
			},
			Depth: 1,
		},
		{
			Name: "Moda",
			Children: []model.CategoryNode{
				leaf("Mujer", "https://www.falabella.com/falabella-cl/category/cat9/Mujer"),
				leaf("Audio para correr", "https://www.falabella.com/falabella-cl/category/cat2005/Audio"),
			},
			Depth: 1,
		},
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	t.Run("保留命中节点的祖先", func(t *testing.T) {
		t.Parallel()
		out := Filter(sampleTree(), NameContains("audio"))
		require.Len(t, out, 2)
		assert.Equal(t, "Tecnología", out[0].Name)
		require.Len(t, out[0].Children, 1)
		assert.Equal(t, "Audio", out[0].Children[0].Name)
		assert.Equal(t, "Audio para correr", out[1].Children[0].Name)
		require.NoError(t, model.ValidateTree(out))
	})

	t.Run("命中父节点时不会保留未命中的子节点", func(t *testing.T) {
		t.Parallel()
		out := Filter(sampleTree(), NameContains("MODA"))
		require.Len(t, out, 1)
		assert.Equal(t, "Moda", out[0].Name)
		assert.NotNil(t, out[0].Children)
		assert.Empty(t, out[0].Children)
	})

	t.Run("Unicode 大小写折叠", func(t *testing.T) {
		t.Parallel()
		out := Filter(sampleTree(), NameContains("TECNOLOGÍA"))
		require.Len(t, out, 1)
		assert.Empty(t, out[0].Children)
	})

	t.Run("没有命中时为空", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Filter(sampleTree(), NameContains("jardín")))
	})

	t.Run("空过滤词保留整棵树", func(t *testing.T) {
		t.Parallel()
		tree := sampleTree()
		assert.Equal(t, tree, Filter(tree, NameContains("")))
	})

	t.Run("不修改输入", func(t *testing.T) {
		t.Parallel()
		tree := sampleTree()
		_ = Filter(tree, NameContains("gamer"))
		assert.Equal(t, sampleTree(), tree)
	})
}

func TestStartAddresses(t *testing.T) {
	t.Parallel()
	seeds := StartAddresses(sampleTree())
	// 分组节点没有地址,重复的 Audio 地址只保留第一次
	require.Len(t, seeds, 4)
	assert.Equal(t, Seed{
		Url:          "https://www.falabella.com/falabella-cl/category/cat2033/TV-y-Video",
		CategoryName: "TV y Video",
	}, seeds[0])
	assert.Equal(t, "Audio", seeds[1].CategoryName)
	assert.Equal(t, "Mujer", seeds[3].CategoryName)
}

func TestFromStore(t *testing.T) {
	t.Parallel()
	store := config.Falabella()
	tree := FromStore(&store)
	require.Len(t, tree, len(store.Categories))
	require.NoError(t, model.ValidateTree(tree))
	assert.Equal(t, "TV y Video", tree[0].Name)
	assert.True(t, tree[0].IsListing())
	assert.Len(t, StartAddresses(tree), len(store.Categories))
}
