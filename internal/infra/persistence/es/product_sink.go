package es

import (
	"context"
	"fmt"
	"sync"

	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/embedding"
	"github.com/sirupsen/logrus"
)

// ProductSink 把抽取结果累积后批量写入索引
// 设置了 embedder 时先为每批文档生成向量
type ProductSink struct {
	client   TypedEsClient[*model.ProductDoc]
	embedder embedding.Embedder
	bulkSize int
	log      *logrus.Entry

	mu      sync.Mutex
	pending []*model.ProductDoc
	indexed uint64
}

// NewProductSink embedder 可以为 nil
func NewProductSink(client TypedEsClient[*model.ProductDoc], embedder embedding.Embedder, bulkSize int, log *logrus.Entry) *ProductSink {
	return &ProductSink{
		client:   client,
		embedder: embedder,
		bulkSize: max(bulkSize, 1),
		log:      log,
	}
}

// Prepare 创建索引,reindex 为 true 时先删除旧索引
func (s *ProductSink) Prepare(ctx context.Context, reindex bool) error {
	if reindex {
		if err := s.client.DeleteIndex(ctx); err != nil {
			return err
		}
	}
	return s.client.CreateIndexWithMapping(ctx)
}

// Count 索引中的文档总数,包括以前运行写入的文档
func (s *ProductSink) Count(ctx context.Context) (int64, error) {
	return s.client.CountDocs(ctx)
}

// PushProduct 达到批量大小时同步写入
func (s *ProductSink) PushProduct(ctx context.Context, p *entity.ExtractedProduct) error {
	doc := p.ToDocument(s.client.Index())
	s.mu.Lock()
	s.pending = append(s.pending, doc)
	if len(s.pending) < s.bulkSize {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	return s.write(ctx, batch)
}

// Flush 写入剩余文档
func (s *ProductSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	return s.write(ctx, batch)
}

// Indexed 已成功写入的文档数
func (s *ProductSink) Indexed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexed
}

func (s *ProductSink) write(ctx context.Context, docs []*model.ProductDoc) error {
	if len(docs) == 0 {
		return nil
	}
	if s.embedder != nil {
		if err := embedDocs(ctx, s.embedder, docs); err != nil {
			// 向量失败时仍然写入文本字段
			s.log.WithError(err).Warn("生成向量失败")
		}
	}
	stats, err := s.client.BulkIndexDocsWithID(ctx, docs)
	s.mu.Lock()
	s.indexed += stats.Indexed
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("写入索引失败: %w", err)
	}
	return nil
}

// embedDocs 按 embedder 的批量大小分批生成向量
func embedDocs[D model.Document](ctx context.Context, embedder embedding.Embedder, docs []D) error {
	size := max(embedder.BatchSize(), 1)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.GetEmbeddingString())
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for i, doc := range docs[start:end] {
			doc.SetEmbedding(vectors[i])
		}
	}
	return nil
}
