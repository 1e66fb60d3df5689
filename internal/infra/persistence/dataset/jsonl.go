package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
)

// 数据目录下的 JSONL 文件
const (
	PodsFile    = "products.jsonl"
	DetailsFile = "products-detail.jsonl"
)

// JSONLWriter 每条记录一行 JSON,追加写入
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func OpenJSONL(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	return &JSONLWriter{file: f, enc: json.NewEncoder(f)}, nil
}

func (w *JSONLWriter) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("写入 JSONL 失败: %w", err)
	}
	return nil
}

// PushProduct 只写入标准化的商品记录
func (w *JSONLWriter) PushProduct(ctx context.Context, p *entity.ExtractedProduct) error {
	return w.Append(p.Product)
}

func (w *JSONLWriter) PushListingPods(ctx context.Context, pods []entity.ListingPod) error {
	for _, pod := range pods {
		if err := w.Append(pod); err != nil {
			return err
		}
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
