package chrome

import (
	"context"
	"errors"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
)

// ErrUnsupported 引擎不支持该操作(例如静态抓取无法点击)
var ErrUnsupported = errors.New("operation not supported by engine")

// ErrNotFound 选择器没有匹配任何元素
var ErrNotFound = errors.New("element not found")

// Page 浏览器标签页的最小能力集合,核心逻辑只依赖这个接口
// 同一个 Page 不能被两个任务同时使用
type Page interface {
	// Navigate 打开地址并等待 DOMContentLoaded
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitSelector 等待选择器出现,超时返回错误
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Click 点击第一个匹配的元素,查找元素最多等待 timeout
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// ClickText 点击第一个匹配且文本包含 text 的元素,查找元素最多等待 timeout
	ClickText(ctx context.Context, selector, text string, timeout time.Duration) error
	// ClickAt 在视口坐标处点击
	ClickAt(ctx context.Context, x, y float64) error
	// InnerTexts 所有匹配元素的 innerText
	InnerTexts(ctx context.Context, selector string) ([]string, error)
	// VisibleLinks 所有匹配且可见的元素的 href 与文本
	VisibleLinks(ctx context.Context, selector string) ([]types.Link, error)
	// Count 匹配元素数量,不等待
	Count(ctx context.Context, selector string) (int, error)
	// IsEnabled 第一个匹配元素是否可用
	IsEnabled(ctx context.Context, selector string) (bool, error)
	// HTML 当前文档的 outerHTML
	HTML(ctx context.Context) (*types.HtmlContent, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Browser 创建标签页
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Sleep 等待 d 或者 ctx 结束
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome 尽力而为操作的结果,失败不会中断调用方
type Outcome struct {
	Op  string
	Err error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Try 执行一个尽力而为的操作
func Try(op string, fn func() error) Outcome {
	return Outcome{Op: op, Err: fn()}
}
