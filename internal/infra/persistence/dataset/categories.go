package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
)

// WriteCategories 以缩进 JSON 写入分类树,先写临时文件再替换
func WriteCategories(path string, tree []model.CategoryNode) error {
	if tree == nil {
		tree = []model.CategoryNode{}
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化分类失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("写入分类文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("替换分类文件失败: %w", err)
	}
	return nil
}

// ReadCategories 读取并校验分类树,文件不存在时返回 ErrNotFound
func ReadCategories(path string) ([]model.CategoryNode, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("读取分类文件失败: %w", err)
	}
	var tree []model.CategoryNode
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("解析分类文件失败: %w", err)
	}
	if err := model.ValidateTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}
