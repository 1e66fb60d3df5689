package pagination

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
)

// DefaultPageParam 分页查询参数
const DefaultPageParam = "page"

// Paginator 判断列表页是否还有下一页,并计算下一页地址
// 是否存在下一页只看页面上的"下一页"控件,不会预先请求下一页
type Paginator struct {
	nextSelector   string
	pageParam      string
	maxPages       int
	requireEnabled bool
}

func New(store *config.Store, maxPages int, requireEnabled bool) *Paginator {
	param := store.PageParam
	if param == "" {
		param = DefaultPageParam
	}
	return &Paginator{
		nextSelector:   store.Selectors.NextPage,
		pageParam:      param,
		maxPages:       maxPages,
		requireEnabled: requireEnabled,
	}
}

// HasNextPage "下一页"控件存在,严格模式下还要求控件可用
func (p *Paginator) HasNextPage(ctx context.Context, page chrome.Page) (bool, error) {
	n, err := page.Count(ctx, p.nextSelector)
	if err != nil {
		return false, fmt.Errorf("查询下一页控件失败: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if !p.requireEnabled {
		return true, nil
	}
	enabled, err := page.IsEnabled(ctx, p.nextSelector)
	if err != nil {
		return false, fmt.Errorf("查询下一页控件状态失败: %w", err)
	}
	return enabled, nil
}

// Allows 当前是第 current 页时,是否还允许进入下一页
func (p *Paginator) Allows(current int) bool {
	return current+1 <= p.maxPages
}

func (p *Paginator) MaxPages() int {
	return p.maxPages
}

func (p *Paginator) NextAddress(current string, n int) (string, error) {
	return NextAddress(current, p.pageParam, n)
}

func (p *Paginator) CurrentPage(address string) int {
	return CurrentPage(address, p.pageParam)
}

// CurrentPage 从地址中读取页码,缺失或非法时为 1
func CurrentPage(address, param string) int {
	u, err := url.Parse(address)
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(u.Query().Get(param))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// NextAddress 把页码参数设为 n+1,其他查询参数原样保留(包括顺序)
func NextAddress(current, param string, n int) (string, error) {
	u, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("解析地址失败: %w", err)
	}
	value := strconv.Itoa(n + 1)
	pair := url.QueryEscape(param) + "=" + value

	var parts []string
	if u.RawQuery != "" {
		parts = strings.Split(u.RawQuery, "&")
	}
	replaced := false
	kept := parts[:0]
	for _, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil && k == param {
			if replaced {
				continue
			}
			part = pair
			replaced = true
		}
		kept = append(kept, part)
	}
	if !replaced {
		kept = append(kept, pair)
	}
	u.RawQuery = strings.Join(kept, "&")
	return u.String(), nil
}
