package entity

import (
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
)

// Crawlable 抓取得到的原始实体,可以转换为索引文档
// D 是文档类型,必须实现 model.Document 接口
type Crawlable[D model.Document] interface {
	*ExtractedProduct
	ToDocument(index string) D
}

// ExtractedProduct 一次成功抽取的结果,附带命中的策略
type ExtractedProduct struct {
	Product   *model.ScrapedProduct
	Strategy  string
	CrawledAt time.Time
}

func (e *ExtractedProduct) ToDocument(index string) *model.ProductDoc {
	return model.NewProductDoc(index, e.Product, e.Strategy, e.CrawledAt)
}
