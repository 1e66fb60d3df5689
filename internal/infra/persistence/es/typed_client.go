package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/sirupsen/logrus"
)

// ErrBulkFailed 批量写入中有文档失败
var ErrBulkFailed = errors.New("bulk indexing had failures")

type typedEsClient[D model.Document] struct {
	client  *elasticsearch.TypedClient
	index   string
	mapping *types.TypeMapping
	log     *logrus.Entry
}

func InitTypedEsClient[D model.Document](cfg *config.Config, log *logrus.Entry) (TypedEsClient[D], error) {
	typedClient, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
		Addresses: []string{
			cfg.Elasticsearch.Address,
		},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			// 跳过TLS验证(仅在开发环境中使用)
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 Elasticsearch 客户端失败: %w", err)
	}
	// 映射只依赖类型,不读取字段
	var schema D
	return &typedEsClient[D]{
		client:  typedClient,
		index:   cfg.Elasticsearch.Index,
		mapping: schema.GetTypeMapping(),
		log:     log.WithField("index", cfg.Elasticsearch.Index),
	}, nil
}

func (tec *typedEsClient[D]) Index() string {
	return tec.index
}

func (tec *typedEsClient[D]) CreateIndexWithMapping(ctx context.Context) error {
	exists, err := tec.client.Indices.Exists(tec.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("检查索引失败: %w", err)
	}
	if exists {
		tec.log.Debug("索引已存在,跳过创建")
		return nil
	}
	if tec.mapping == nil {
		_, err = tec.client.Indices.Create(tec.index).Do(ctx)
	} else {
		_, err = tec.client.Indices.Create(tec.index).Mappings(tec.mapping).Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("创建索引失败: %w", err)
	}
	tec.log.Info("索引已创建")
	return nil
}

// DeleteIndex 索引不存在时什么也不做
func (tec *typedEsClient[D]) DeleteIndex(ctx context.Context) error {
	exists, err := tec.client.Indices.Exists(tec.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("检查索引失败: %w", err)
	}
	if !exists {
		return nil
	}
	if _, err := tec.client.Indices.Delete(tec.index).Do(ctx); err != nil {
		return fmt.Errorf("删除索引失败: %w", err)
	}
	tec.log.Info("索引已删除")
	return nil
}

func (tec *typedEsClient[D]) BulkIndexDocsWithID(ctx context.Context, docs []D) (BulkStats, error) {
	if len(docs) == 0 {
		return BulkStats{}, nil
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         tec.index,
		Client:        tec.client,
		NumWorkers:    2,
		FlushBytes:    5 * 1024 * 1024,
		FlushInterval: 30 * time.Second,
		OnError: func(ctx context.Context, err error) {
			tec.log.WithError(err).Warn("批量写入出错")
		},
	})
	if err != nil {
		return BulkStats{}, fmt.Errorf("创建批量写入器失败: %w", err)
	}

	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			tec.log.WithError(err).WithField("id", doc.GetID()).Warn("序列化文档失败")
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.GetID(),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				log := tec.log.WithField("id", item.DocumentID)
				if err != nil {
					log.WithError(err).Warn("写入文档失败")
				} else {
					log.WithField("reason", res.Error.Reason).Warn("写入文档失败")
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return BulkStats{}, fmt.Errorf("添加文档失败: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return BulkStats{}, fmt.Errorf("关闭批量写入器失败: %w", err)
	}
	stats := bi.Stats()
	result := BulkStats{Indexed: stats.NumIndexed, Failed: stats.NumFailed}
	tec.log.WithFields(logrus.Fields{"indexed": result.Indexed, "failed": result.Failed}).Debug("批量写入完成")
	if result.Failed > 0 {
		return result, fmt.Errorf("%w: %d of %d", ErrBulkFailed, result.Failed, len(docs))
	}
	return result, nil
}

func (tec *typedEsClient[D]) GetDoc(ctx context.Context, id string) (D, error) {
	resp, err := tec.client.Get(tec.index, id).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取文档失败: %w", err)
	}
	if !resp.Found {
		return nil, nil
	}
	var doc D
	if err := json.Unmarshal(resp.Source_, &doc); err != nil {
		return nil, fmt.Errorf("解析文档失败: %w", err)
	}
	return doc, nil
}

func (tec *typedEsClient[D]) CountDocs(ctx context.Context) (int64, error) {
	resp, err := tec.client.Count().Index(tec.index).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("统计文档失败: %w", err)
	}
	return resp.Count, nil
}

func (tec *typedEsClient[D]) SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error) {
	resp, err := tec.client.Search().
		Index(tec.index).
		Query(query).
		From(from).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("搜索失败: %w", err)
	}

	results := make([]D, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var doc D
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			continue
		}
		results = append(results, doc)
	}
	var total int64
	if resp.Hits.Total != nil {
		total = resp.Hits.Total.Value
	}
	return results, total, nil
}
