package embedding

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/cloudwego/eino-ext/components/embedding/ollama"
)

type ollamaEmbedder struct {
	model     *ollama.Embedder
	batchSize int
}

// InitEmbedder 未配置模型时返回 nil, nil,调用方跳过向量化
func InitEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	if cfg.Embedder.Model == "" {
		return nil, nil
	}
	model, err := ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
		Model:   cfg.Embedder.Model,
		BaseURL: cfg.Embedder.Host + ":" + strconv.Itoa(cfg.Embedder.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化嵌入模型失败: %w", err)
	}
	return &ollamaEmbedder{model: model, batchSize: cfg.Embedder.BatchSize}, nil
}

func (e *ollamaEmbedder) BatchSize() int {
	return e.batchSize
}

// Embed 模型返回 float64,索引中使用 float32
func (e *ollamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.model.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("生成向量失败: %w", err)
	}
	out := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		f32 := make([]float32, len(v))
		for i, f := range v {
			f32[i] = float32(f)
		}
		out = append(out, f32)
	}
	return out, nil
}
