package category

import (
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"golang.org/x/text/cases"
)

// Predicate 判断分类名是否命中
type Predicate func(name string) bool

// NameContains 大小写不敏感的子串匹配,使用 Unicode case folding
func NameContains(substr string) Predicate {
	needle := cases.Fold().String(substr)
	return func(name string) bool {
		return strings.Contains(cases.Fold().String(name), needle)
	}
}

// Filter 返回新的树:节点本身命中或者有命中的后代时保留
// 保留的节点字段不变,只裁剪子节点,兄弟顺序不变
func Filter(tree []model.CategoryNode, pred Predicate) []model.CategoryNode {
	var out []model.CategoryNode
	for _, node := range tree {
		children := Filter(node.Children, pred)
		if !pred(node.Name) && len(children) == 0 {
			continue
		}
		if children == nil {
			children = []model.CategoryNode{}
		}
		out = append(out, model.CategoryNode{
			Name:     node.Name,
			Url:      node.Url,
			Children: children,
			Depth:    node.Depth,
		})
	}
	return out
}

// Seed 一个分类的起始列表页
type Seed struct {
	Url          string
	CategoryName string
}

// StartAddresses 深度优先展开所有带列表页的节点,重复地址只保留第一次出现
func StartAddresses(tree []model.CategoryNode) []Seed {
	var seeds []Seed
	seen := make(map[string]struct{})
	model.Walk(tree, func(n *model.CategoryNode) bool {
		if !n.IsListing() {
			return true
		}
		if _, ok := seen[n.Url]; ok {
			return true
		}
		seen[n.Url] = struct{}{}
		seeds = append(seeds, Seed{Url: n.Url, CategoryName: n.Name})
		return true
	})
	return seeds
}

// FromStore 把配置中的种子分类转换为一层的分类树
func FromStore(store *config.Store) []model.CategoryNode {
	nodes := make([]model.CategoryNode, 0, len(store.Categories))
	for _, c := range store.Categories {
		nodes = append(nodes, model.CategoryNode{
			Name:     c.Name,
			Url:      c.URL,
			Children: []model.CategoryNode{},
			Depth:    model.RootDepth,
		})
	}
	return nodes
}
