package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// Document 可以写入 Elasticsearch 的文档
type Document interface {
	*ProductDoc
	GetID() string
	GetIndex() string
	GetTypeMapping() *types.TypeMapping
	GetEmbeddingString() string
	SetEmbedding(embedding []float32)
	GetEmbedding() []float32
}

// EmbeddingDims 向量维度,与 nomic-embed-text 一致
const EmbeddingDims = 768

// ProductDoc 商品在搜索索引中的形态
type ProductDoc struct {
	Index           string    `json:"-"`
	StoreID         string    `json:"store_id"`
	ExternalID      string    `json:"external_id"`
	Url             string    `json:"url"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Price           float64   `json:"price"`
	PriceDetermined bool      `json:"price_determined"`
	Currency        string    `json:"currency"`
	BrandName       string    `json:"brand_name,omitempty"`
	CategoryName    string    `json:"category_name,omitempty"`
	MainImage       string    `json:"main_image,omitempty"`
	Strategy        string    `json:"strategy,omitempty"`
	CrawledAt       time.Time `json:"crawled_at"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// NewProductDoc 由抓取结果构造索引文档
func NewProductDoc(index string, p *ScrapedProduct, strategy string, crawledAt time.Time) *ProductDoc {
	doc := &ProductDoc{
		Index:           index,
		StoreID:         p.StoreID,
		ExternalID:      p.ExternalID,
		Url:             p.Url,
		Title:           p.Title,
		Description:     p.Description,
		Price:           p.Price,
		PriceDetermined: p.PriceDetermined,
		Currency:        p.Currency,
		BrandName:       p.BrandName,
		CategoryName:    p.CategoryName,
		Strategy:        strategy,
		CrawledAt:       crawledAt,
	}
	if img, ok := p.MainImage(); ok {
		doc.MainImage = img.ImageUrl
	}
	return doc
}

// GetID 有稳定 ID 时使用 store_id:external_id,否则使用地址的哈希
func (d *ProductDoc) GetID() string {
	if d.ExternalID != "" && d.ExternalID != UnknownExternalID {
		return d.StoreID + ":" + d.ExternalID
	}
	sum := sha1.Sum([]byte(d.Url))
	return d.StoreID + ":url:" + hex.EncodeToString(sum[:])
}

func (d *ProductDoc) GetIndex() string {
	return d.Index
}

func (d *ProductDoc) GetTypeMapping() *types.TypeMapping {
	dims := EmbeddingDims
	embedding := types.NewDenseVectorProperty()
	embedding.Dims = &dims

	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"store_id":         types.NewKeywordProperty(),
			"external_id":      types.NewKeywordProperty(),
			"url":              types.NewKeywordProperty(),
			"title":            types.NewTextProperty(),
			"description":      types.NewTextProperty(),
			"price":            types.NewDoubleNumberProperty(),
			"price_determined": types.NewBooleanProperty(),
			"currency":         types.NewKeywordProperty(),
			"brand_name":       types.NewKeywordProperty(),
			"category_name":    types.NewKeywordProperty(),
			"main_image":       types.NewKeywordProperty(),
			"strategy":         types.NewKeywordProperty(),
			"crawled_at":       types.NewDateProperty(),
			"embedding":        embedding,
		},
	}
}

// GetEmbeddingString 参与向量化的文本
func (d *ProductDoc) GetEmbeddingString() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{d.Title, d.BrandName, d.CategoryName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}

func (d *ProductDoc) SetEmbedding(embedding []float32) {
	d.Embedding = embedding
}

func (d *ProductDoc) GetEmbedding() []float32 {
	return d.Embedding
}
