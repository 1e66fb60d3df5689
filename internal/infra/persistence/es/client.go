package es

import (
	"context"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// TypedEsClient 文档类型 D 的索引操作
type TypedEsClient[D model.Document] interface {
	Index() string
	CreateIndexWithMapping(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	BulkIndexDocsWithID(ctx context.Context, docs []D) (BulkStats, error)
	GetDoc(ctx context.Context, id string) (D, error)
	CountDocs(ctx context.Context) (int64, error)
	SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error)
}

// BulkStats 一次批量写入的结果
type BulkStats struct {
	Indexed uint64
	Failed  uint64
}
