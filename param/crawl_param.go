package param

import "fmt"

// TaskKind 任务类型
type TaskKind string

const (
	KindListing TaskKind = "category-listing"
	KindProduct TaskKind = "product-detail"
)

// CrawlTask 一个待访问的页面,只有 *ListingTask 和 *ProductTask 两种实现
// 通过类型 switch 分发
type CrawlTask interface {
	Kind() TaskKind
	TaskUrl() string
	IsValid() bool
	crawlTask()
}

// ListingTask 分类列表页,携带分类名和当前页码(从 1 开始)
type ListingTask struct {
	Url          string `json:"url"`
	CategoryName string `json:"category_name"`
	Page         int    `json:"page"`
}

// ProductTask 商品详情页,携带所属分类名
type ProductTask struct {
	Url          string `json:"url"`
	CategoryName string `json:"category_name"`
}

func (t *ListingTask) Kind() TaskKind  { return KindListing }
func (t *ListingTask) TaskUrl() string { return t.Url }
func (t *ListingTask) crawlTask() {}

func (t *ListingTask) IsValid() bool {
	return t != nil && t.Url != "" && t.Page >= 1
}

func (t *ListingTask) String() string {
	return fmt.Sprintf("listing[%s p%d] %s", t.CategoryName, t.Page, t.Url)
}

func (t *ProductTask) Kind() TaskKind  { return KindProduct }
func (t *ProductTask) TaskUrl() string { return t.Url }
func (t *ProductTask) crawlTask() {}

func (t *ProductTask) IsValid() bool {
	return t != nil && t.Url != ""
}

func (t *ProductTask) String() string {
	return fmt.Sprintf("product[%s] %s", t.CategoryName, t.Url)
}

// NewListingTask 分类的第一页
func NewListingTask(url, categoryName string) *ListingTask {
	return &ListingTask{Url: url, CategoryName: categoryName, Page: 1}
}
