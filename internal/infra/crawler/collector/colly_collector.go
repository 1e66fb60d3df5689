package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// collyBrowser 静态抓取引擎,只能读取服务端渲染的 HTML,不执行 JS 也不能点击
type collyBrowser struct {
	colly *colly.Collector
	log   *logrus.Entry
}

// InitCollyBrowser 按配置创建 colly 收集器
func InitCollyBrowser(cfg *config.Config, log *logrus.Entry) (chrome.Browser, error) {
	var opts []colly.CollectorOption
	opts = append(opts,
		colly.UserAgent(cfg.Colly.UserAgent),
		colly.AllowURLRevisit(),
	)
	if len(cfg.Colly.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.Colly.AllowedDomains...))
	}
	if cfg.Colly.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}
	c := colly.NewCollector(opts...)
	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: max(cfg.Colly.Parallelism, 1),
		Delay:       time.Duration(cfg.Colly.Delay) * time.Second,
		RandomDelay: time.Duration(cfg.Colly.RandomDelay) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("设置限速规则失败: %w", err)
	}
	if cfg.Colly.EnableCookieJar {
		jarOpts := cfg.Colly.CookieJarOptions
		if jarOpts == nil {
			jarOpts = &cookiejar.Options{PublicSuffixList: publicsuffix.List}
		}
		jar, err := cookiejar.New(jarOpts)
		if err != nil {
			return nil, fmt.Errorf("创建 CookieJar 失败: %w", err)
		}
		c.SetCookieJar(jar)
	}
	log.WithFields(logrus.Fields{
		"parallelism":  cfg.Colly.Parallelism,
		"delay":        cfg.Colly.Delay,
		"random_delay": cfg.Colly.RandomDelay,
	}).Debug("InitCollyBrowser")
	return &collyBrowser{colly: c, log: log}, nil
}

// NewPage 每个页面使用独立的克隆收集器,共享限速规则
func (cb *collyBrowser) NewPage(ctx context.Context) (chrome.Page, error) {
	p := &collyPage{colly: cb.colly.Clone()}
	p.colly.OnResponse(func(r *colly.Response) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.body = r.Body
		p.url = r.Request.URL.String()
	})
	return p, nil
}

func (cb *collyBrowser) Close() error {
	cb.colly.Wait()
	return nil
}

type collyPage struct {
	colly *colly.Collector

	mu   sync.Mutex
	url  string
	body []byte
	doc  *goquery.Document
}

func (cp *collyPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp.mu.Lock()
	cp.body, cp.doc, cp.url = nil, nil, ""
	cp.mu.Unlock()

	cp.colly.SetRequestTimeout(timeout)
	if err := cp.colly.Visit(url); err != nil {
		return fmt.Errorf("访问URL失败: %w", err)
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(cp.body))
	if err != nil {
		return fmt.Errorf("解析 HTML 失败: %w", err)
	}
	cp.doc = doc
	return nil
}

func (cp *collyPage) document() (*goquery.Document, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.doc == nil {
		return nil, fmt.Errorf("%w: no document loaded", chrome.ErrNotFound)
	}
	return cp.doc, nil
}

// WaitSelector 静态页面不会变化,只检查一次
func (cp *collyPage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := cp.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", chrome.ErrNotFound, selector)
	}
	return nil
}

func (cp *collyPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return fmt.Errorf("%w: click %s", chrome.ErrUnsupported, selector)
}

func (cp *collyPage) ClickText(ctx context.Context, selector, text string, timeout time.Duration) error {
	return fmt.Errorf("%w: click %s %q", chrome.ErrUnsupported, selector, text)
}

func (cp *collyPage) ClickAt(ctx context.Context, x, y float64) error {
	return fmt.Errorf("%w: click at %.0f,%.0f", chrome.ErrUnsupported, x, y)
}

func (cp *collyPage) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	doc, err := cp.document()
	if err != nil {
		return nil, err
	}
	var texts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts, nil
}

// VisibleLinks 静态 HTML 没有布局信息,所有带 href 的元素都视为可见
func (cp *collyPage) VisibleLinks(ctx context.Context, selector string) ([]types.Link, error) {
	doc, err := cp.document()
	if err != nil {
		return nil, err
	}
	var links []types.Link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		links = append(links, types.Link{Href: href, Text: strings.TrimSpace(s.Text())})
	})
	return links, nil
}

func (cp *collyPage) Count(ctx context.Context, selector string) (int, error) {
	doc, err := cp.document()
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

func (cp *collyPage) IsEnabled(ctx context.Context, selector string) (bool, error) {
	doc, err := cp.document()
	if err != nil {
		return false, err
	}
	s := doc.Find(selector).First()
	if s.Length() == 0 {
		return false, chrome.ErrNotFound
	}
	if _, disabled := s.Attr("disabled"); disabled {
		return false, nil
	}
	return s.AttrOr("aria-disabled", "") != "true", nil
}

func (cp *collyPage) HTML(ctx context.Context) (*types.HtmlContent, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.body == nil {
		return nil, fmt.Errorf("%w: no document loaded", chrome.ErrNotFound)
	}
	return &types.HtmlContent{Url: cp.url, Html: string(cp.body)}, nil
}

func (cp *collyPage) Screenshot(ctx context.Context, path string) error {
	return fmt.Errorf("%w: screenshot", chrome.ErrUnsupported)
}

func (cp *collyPage) Close() error {
	return nil
}
