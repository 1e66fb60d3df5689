package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type chromedpBrowser struct {
	allocCtx      context.Context
	allocCtxFuc   context.CancelFunc
	browserCtx    context.Context
	browserCtxFuc context.CancelFunc
	timeoutCtxFuc context.CancelFunc
}

// InitChromedpBrowser 启动 chromedp 浏览器, LifeTime 大于 0 时限制浏览器总存活时间
func InitChromedpBrowser(ctx context.Context, cfg *config.Config) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Chromedp.Headless),
		chromedp.Flag("incognito", cfg.Chromedp.Incognito),
		chromedp.Flag("disable-dev-shm-usage", cfg.Chromedp.DisableDevShmUsage),
		chromedp.Flag("no-sandbox", cfg.Chromedp.NoSandbox),
	)
	if cfg.Chromedp.DisableBlinkFeatures != "" {
		opts = append(opts, chromedp.Flag("disable-blink-features", cfg.Chromedp.DisableBlinkFeatures))
	}
	if cfg.Chromedp.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.Chromedp.UserDataDir))
	}
	if cfg.Chromedp.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Chromedp.UserAgent))
	}
	if cfg.Chromedp.ViewportWidth > 0 && cfg.Chromedp.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Chromedp.ViewportWidth, cfg.Chromedp.ViewportHeight))
	}

	timeoutCtx, cancelTimeout := context.WithCancel(ctx)
	if cfg.Chromedp.LifeTime > 0 {
		cancelTimeout()
		timeoutCtx, cancelTimeout = context.WithTimeout(ctx, time.Duration(cfg.Chromedp.LifeTime)*time.Second)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(timeoutCtx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// 第一次 Run 才会真正启动浏览器
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		cancelTimeout()
		return nil, fmt.Errorf("启动 chromedp 浏览器失败: %w", err)
	}

	return &chromedpBrowser{
		allocCtx:      allocCtx,
		allocCtxFuc:   cancelAlloc,
		browserCtx:    browserCtx,
		browserCtxFuc: cancelBrowser,
		timeoutCtxFuc: cancelTimeout,
	}, nil
}

func (cb *chromedpBrowser) NewPage(ctx context.Context) (Page, error) {
	pageCtx, cancel := chromedp.NewContext(cb.browserCtx)
	if err := chromedp.Run(pageCtx, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}
	return &chromedpPage{pageCtx: pageCtx, pageCtxFuc: cancel}, nil
}

func (cb *chromedpBrowser) Close() error {
	cb.browserCtxFuc()
	cb.allocCtxFuc()
	cb.timeoutCtxFuc()
	return nil
}

type chromedpPage struct {
	pageCtx    context.Context
	pageCtxFuc context.CancelFunc
}

// run 在标签页上下文中执行动作,同时响应调用方 ctx 的取消
func (cp *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(cp.pageCtx)
	if timeout > 0 {
		cancel()
		runCtx, cancel = context.WithTimeout(cp.pageCtx, timeout)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (cp *chromedpPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := cp.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	return nil
}

func (cp *chromedpPage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := cp.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("等待元素 %s 失败: %w", selector, err)
	}
	return nil
}

func (cp *chromedpPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := cp.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("点击失败: %w", err)
	}
	return nil
}

func (cp *chromedpPage) ClickText(ctx context.Context, selector, text string, timeout time.Duration) error {
	js := fmt.Sprintf(`(() => {
		const el = Array.from(document.querySelectorAll(%s)).find(e => e.innerText.includes(%s));
		if (!el) return false;
		el.click();
		return true;
	})()`, quote(selector), quote(text))
	var clicked bool
	if err := cp.run(ctx, timeout, chromedp.Evaluate(js, &clicked)); err != nil {
		return fmt.Errorf("点击失败: %w", err)
	}
	if !clicked {
		return fmt.Errorf("%w: %s %q", ErrNotFound, selector, text)
	}
	return nil
}

func (cp *chromedpPage) ClickAt(ctx context.Context, x, y float64) error {
	return cp.run(ctx, 0, chromedp.MouseClickXY(x, y))
}

func (cp *chromedpPage) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.innerText)`, quote(selector))
	var texts []string
	if err := cp.run(ctx, 0, chromedp.Evaluate(js, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

func (cp *chromedpPage) VisibleLinks(ctx context.Context, selector string) ([]types.Link, error) {
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s))
		.filter(e => { const r = e.getBoundingClientRect(); return r.width > 0 && r.height > 0 && getComputedStyle(e).visibility !== 'hidden'; })
		.map(e => ({href: e.getAttribute('href') || '', text: e.innerText}))`, quote(selector))
	var raw []struct {
		Href string `json:"href"`
		Text string `json:"text"`
	}
	if err := cp.run(ctx, 0, chromedp.Evaluate(js, &raw)); err != nil {
		return nil, err
	}
	links := make([]types.Link, 0, len(raw))
	for _, r := range raw {
		links = append(links, types.Link{Href: r.Href, Text: r.Text})
	}
	return links, nil
}

func (cp *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	js := fmt.Sprintf(`document.querySelectorAll(%s).length`, quote(selector))
	if err := cp.run(ctx, 0, chromedp.Evaluate(js, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (cp *chromedpPage) IsEnabled(ctx context.Context, selector string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		return !el.disabled && el.getAttribute('aria-disabled') !== 'true';
	})()`, quote(selector))
	var enabled *bool
	if err := cp.run(ctx, 0, chromedp.Evaluate(js, &enabled)); err != nil {
		return false, err
	}
	if enabled == nil {
		return false, ErrNotFound
	}
	return *enabled, nil
}

func (cp *chromedpPage) HTML(ctx context.Context) (*types.HtmlContent, error) {
	var html, url string
	err := cp.run(ctx, 0,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&url),
	)
	if err != nil {
		return nil, fmt.Errorf("获取 HTML 失败: %w", err)
	}
	return &types.HtmlContent{Url: url, Html: html}, nil
}

func (cp *chromedpPage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := cp.run(ctx, 0, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

func (cp *chromedpPage) Close() error {
	cp.pageCtxFuc()
	return nil
}
