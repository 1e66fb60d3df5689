// Package chrometest 提供基于静态 HTML 的 chrome.Page 实现,用于测试
package chrometest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
	"github.com/PuerkitoBio/goquery"
)

// Site 地址到 HTML 的映射,所有页面共享
type Site struct {
	mu sync.Mutex
	// Pages 可以访问的页面
	Pages map[string]string
	// Clicks ClickText 的文本到点击后文档的映射
	Clicks map[string]string
	// Failures 形如 "navigate:<url>"、"click-text:<text>"、"click-at" 的操作会返回对应错误
	Failures map[string]error
	// Stalls 点击这些文本时元素永远不会出现,直到超时或 ctx 结束
	Stalls map[string]bool

	visits []string
}

func NewSite() *Site {
	return &Site{
		Pages:    map[string]string{},
		Clicks:   map[string]string{},
		Failures: map[string]error{},
		Stalls:   map[string]bool{},
	}
}

// Visits 按顺序返回所有 Navigate 过的地址
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

func (s *Site) failure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Failures[op]
}

// Browser 每次 NewPage 返回一个新的 Page
type Browser struct {
	Site *Site

	mu     sync.Mutex
	opened int
	closed int
}

func NewBrowser(site *Site) *Browser {
	return &Browser{Site: site}
}

func (b *Browser) NewPage(ctx context.Context) (chrome.Page, error) {
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &Page{site: b.Site, onClose: func() {
		b.mu.Lock()
		b.closed++
		b.mu.Unlock()
	}}, nil
}

func (b *Browser) Close() error { return nil }

// Balanced 打开的页面是否都已关闭
func (b *Browser) Balanced() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened == b.closed
}

type Page struct {
	site    *Site
	url     string
	html    string
	doc     *goquery.Document
	onClose func()
}

// NewPage 不经过 Browser 直接创建页面
func NewPage(site *Site) *Page {
	return &Page{site: site, onClose: func() {}}
}

func (p *Page) load(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	p.html, p.doc = html, doc
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.site.mu.Lock()
	p.site.visits = append(p.site.visits, url)
	html, ok := p.site.Pages[url]
	p.site.mu.Unlock()
	if err := p.site.failure("navigate:" + url); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("navigate %s: 404", url)
	}
	p.url = url
	return p.load(html)
}

func (p *Page) document() (*goquery.Document, error) {
	if p.doc == nil {
		return nil, chrome.ErrNotFound
	}
	return p.doc, nil
}

func (p *Page) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", chrome.ErrNotFound, selector)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return p.WaitSelector(ctx, selector, timeout)
}

func (p *Page) ClickText(ctx context.Context, selector, text string, timeout time.Duration) error {
	p.site.mu.Lock()
	stall := p.site.Stalls[text]
	p.site.mu.Unlock()
	if stall {
		return stalled(ctx, timeout)
	}
	if err := p.site.failure("click-text:" + text); err != nil {
		return err
	}
	p.site.mu.Lock()
	html, ok := p.site.Clicks[text]
	p.site.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s %q", chrome.ErrNotFound, selector, text)
	}
	return p.load(html)
}

func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	return p.site.failure("click-at")
}

func (p *Page) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	var texts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	return texts, nil
}

// VisibleLinks 带 hidden 属性的元素视为不可见
func (p *Page) VisibleLinks(ctx context.Context, selector string) ([]types.Link, error) {
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	var links []types.Link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if _, hidden := s.Attr("hidden"); hidden {
			return
		}
		links = append(links, types.Link{Href: s.AttrOr("href", ""), Text: s.Text()})
	})
	return links, nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	doc, err := p.document()
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

func (p *Page) IsEnabled(ctx context.Context, selector string) (bool, error) {
	doc, err := p.document()
	if err != nil {
		return false, err
	}
	s := doc.Find(selector).First()
	if s.Length() == 0 {
		return false, chrome.ErrNotFound
	}
	_, disabled := s.Attr("disabled")
	return !disabled, nil
}

func (p *Page) HTML(ctx context.Context) (*types.HtmlContent, error) {
	if p.doc == nil {
		return nil, chrome.ErrNotFound
	}
	return &types.HtmlContent{Url: p.url, Html: p.html}, nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	return chrome.ErrUnsupported
}

func (p *Page) Close() error {
	p.onClose()
	return nil
}

// stalled 模拟元素一直不出现的查找,timeout <= 0 时只能等 ctx 结束
func stalled(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	<-ctx.Done()
	return fmt.Errorf("%w: %w", chrome.ErrNotFound, ctx.Err())
}
