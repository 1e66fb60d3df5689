package entity

import (
	"strconv"
	"strings"
	"time"
)

// UnknownPodTitle 列表卡片没有文本时的标题
const UnknownPodTitle = "Unknown Product"

// ListingPod 列表页上的商品卡片,只包含卡片可见信息
type ListingPod struct {
	Title        string    `json:"title"`
	Url          string    `json:"url"`
	Price        int64     `json:"price"`
	CategoryName string    `json:"category_name,omitempty"`
	Page         int       `json:"page,omitempty"`
	CrawledAt    time.Time `json:"crawled_at"`
}

// NewListingPod 由卡片的文本行和链接构造
// 第一行作为标题,第一条包含 "$" 的行作为价格,只保留数字
func NewListingPod(lines []string, href, linkBase string, crawledAt time.Time) ListingPod {
	pod := ListingPod{
		Title:     UnknownPodTitle,
		Url:       AbsoluteURL(href, linkBase),
		CrawledAt: crawledAt,
	}
	if len(lines) > 0 && lines[0] != "" {
		pod.Title = lines[0]
	}
	for _, line := range lines {
		if strings.Contains(line, "$") {
			pod.Price = digitsOnly(line)
			break
		}
	}
	return pod
}

// AbsoluteURL 非 http 开头的链接补上站点前缀
func AbsoluteURL(href, linkBase string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return linkBase + href
}

func digitsOnly(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
