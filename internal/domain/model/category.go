package model

import (
	"errors"
	"fmt"
)

// ErrInvalidDepth 分类树深度不满足 child = parent + 1
var ErrInvalidDepth = errors.New("invalid category depth")

// RootDepth 根节点深度
const RootDepth = 1

// CategoryNode 导航菜单中的一个分类节点
// Url 为空表示纯分组节点(一级菜单),没有对应的列表页
type CategoryNode struct {
	Name     string         `json:"name"`
	Url      string         `json:"url"`
	Children []CategoryNode `json:"children"`
	Depth    int            `json:"depth"`
}

// IsListing 节点是否有可以抓取的列表页
func (n *CategoryNode) IsListing() bool {
	return len(n.Url) >= 4 && n.Url[:4] == "http"
}

// ValidateTree 检查整棵树的深度约束
func ValidateTree(roots []CategoryNode) error {
	for i := range roots {
		if err := validateNode(&roots[i], RootDepth); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *CategoryNode, want int) error {
	if n.Depth != want {
		return fmt.Errorf("%w: %q has depth %d, want %d", ErrInvalidDepth, n.Name, n.Depth, want)
	}
	for i := range n.Children {
		if err := validateNode(&n.Children[i], want+1); err != nil {
			return err
		}
	}
	return nil
}

// Walk 深度优先遍历,fn 返回 false 时停止进入该节点的子树
func Walk(roots []CategoryNode, fn func(n *CategoryNode) bool) {
	for i := range roots {
		if fn(&roots[i]) {
			Walk(roots[i].Children, fn)
		}
	}
}

// Count 统计节点数量
func Count(roots []CategoryNode) int {
	total := 0
	Walk(roots, func(*CategoryNode) bool {
		total++
		return true
	})
	return total
}
