package chrome

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	pagePool rod.Pool[rod.Page]
	cfg      *config.Config
	log      *logrus.Entry
}

// InitRodBrowser 启动浏览器并创建页面池,poolSize 通常等于 worker 数
func InitRodBrowser(cfg *config.Config, poolSize int, log *logrus.Entry) (Browser, error) {
	l := launcher.New().
		Headless(cfg.Rod.Headless).
		NoSandbox(cfg.Rod.NoSandbox).
		Leakless(cfg.Rod.Leakless)
	if cfg.Rod.Bin != "" {
		l = l.Bin(cfg.Rod.Bin)
	}
	if cfg.Rod.UserDataDir != "" {
		if err := os.MkdirAll(cfg.Rod.UserDataDir, 0755); err != nil {
			return nil, fmt.Errorf("创建用户数据目录失败: %w", err)
		}
		l = l.UserDataDir(cfg.Rod.UserDataDir)
	}
	if cfg.Rod.DisableBlinkFeatures != "" {
		l = l.Set("disable-blink-features", cfg.Rod.DisableBlinkFeatures)
	}
	if cfg.Rod.Incognito {
		l = l.Set("incognito")
	}
	if cfg.Rod.DisableDevShmUsage {
		l = l.Set("disable-dev-shm-usage")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	log.WithField("control_url", controlURL).Debug("浏览器已启动")

	browser := rod.New().ControlURL(controlURL).Trace(cfg.Rod.Trace)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	return &rodBrowser{
		browser:  browser,
		launcher: l,
		pagePool: rod.NewPagePool(max(poolSize, 1)),
		cfg:      cfg,
		log:      log,
	}, nil
}

func (rb *rodBrowser) createPage() (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if rb.cfg.Rod.Stealth {
		page, err = stealth.Page(rb.browser)
	} else {
		page, err = rb.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}
	if ua := rb.cfg.Rod.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			rb.log.WithError(err).Warn("设置 UserAgent 失败")
		}
	}
	if rb.cfg.Rod.ViewportWidth > 0 && rb.cfg.Rod.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             rb.cfg.Rod.ViewportWidth,
			Height:            rb.cfg.Rod.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			rb.log.WithError(err).Warn("设置视口失败")
		}
	}
	return page, nil
}

// NewPage 从页面池中取出页面,Close 时放回池中
func (rb *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := rb.pagePool.Get(rb.createPage)
	if err != nil {
		return nil, err
	}
	return &rodPage{page: page, release: func() { rb.pagePool.Put(page) }}, nil
}

func (rb *rodBrowser) Close() error {
	rb.pagePool.Cleanup(func(p *rod.Page) { _ = p.Close() })
	err := rb.browser.Close()
	// 未指定用户数据目录时使用的是临时目录,退出后删除
	if rb.cfg.Rod.UserDataDir == "" {
		rb.launcher.Cleanup()
	}
	return err
}

type rodPage struct {
	page    *rod.Page
	release func()
}

func (rp *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := rp.page.Context(ctx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

func (rp *rodPage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := rp.page.Context(ctx).Element(selector); err != nil {
		return fmt.Errorf("等待元素 %s 失败: %w", selector, err)
	}
	return nil
}

func (rp *rodPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	el, err := rp.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("查找元素失败: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击失败: %w", err)
	}
	return nil
}

func (rp *rodPage) ClickText(ctx context.Context, selector, text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	el, err := rp.page.Context(ctx).ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		return fmt.Errorf("查找文本为 %q 的元素失败: %w", text, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击失败: %w", err)
	}
	return nil
}

func (rp *rodPage) ClickAt(ctx context.Context, x, y float64) error {
	p := rp.page.Context(ctx)
	if err := p.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return p.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (rp *rodPage) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	els, err := rp.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, fmt.Errorf("读取文本失败: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (rp *rodPage) VisibleLinks(ctx context.Context, selector string) ([]types.Link, error) {
	els, err := rp.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	links := make([]types.Link, 0, len(els))
	for _, el := range els {
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		href, err := el.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		text, err := el.Text()
		if err != nil {
			continue
		}
		links = append(links, types.Link{Href: *href, Text: text})
	}
	return links, nil
}

func (rp *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := rp.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (rp *rodPage) IsEnabled(ctx context.Context, selector string) (bool, error) {
	els, err := rp.page.Context(ctx).Elements(selector)
	if err != nil {
		return false, err
	}
	if len(els) == 0 {
		return false, ErrNotFound
	}
	res, err := els.First().Eval(`() => !this.disabled && this.getAttribute('aria-disabled') !== 'true'`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (rp *rodPage) HTML(ctx context.Context) (*types.HtmlContent, error) {
	p := rp.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("获取 HTML 失败: %w", err)
	}
	info, err := p.Info()
	if err != nil {
		return nil, fmt.Errorf("获取页面信息失败: %w", err)
	}
	return &types.HtmlContent{Url: info.URL, Html: html}, nil
}

func (rp *rodPage) Screenshot(ctx context.Context, path string) error {
	data, err := rp.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Close 把页面放回池中,真正的关闭在 Browser.Close 中完成
func (rp *rodPage) Close() error {
	if rp.release != nil {
		rp.release()
		rp.release = nil
	}
	return nil
}
