package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// ErrNoMenu 主菜单没有任何可用的一级分类
var ErrNoMenu = errors.New("navigation menu has no categories")

// Walker 通过点击首页的导航菜单发现两级分类树
type Walker struct {
	page     chrome.Page
	store    *config.Store
	timeouts config.Timeouts
	log      *logrus.Entry
	progress func(label string, index, total int)
}

type Option func(*Walker)

func WithLogger(log *logrus.Entry) Option {
	return func(w *Walker) {
		w.log = log
	}
}

// WithProgress 每处理一个一级分类前回调
func WithProgress(fn func(label string, index, total int)) Option {
	return func(w *Walker) {
		w.progress = fn
	}
}

func NewWalker(page chrome.Page, store *config.Store, timeouts config.Timeouts, opts ...Option) *Walker {
	w := &Walker{
		page:     page,
		store:    store,
		timeouts: timeouts,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		progress: func(string, int, int) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Discover 返回深度为 1 的分类节点,每个节点的子节点是深度为 2 的列表页
// 首页或菜单失败时返回错误;单个分类失败只记录警告并跳过
func (w *Walker) Discover(ctx context.Context) ([]model.CategoryNode, error) {
	log := w.log.WithField("store", w.store.Name)

	if err := w.page.Navigate(ctx, w.store.HomeURL, w.timeouts.HomeTimeout()); err != nil {
		return nil, fmt.Errorf("打开首页失败: %w", err)
	}

	overlay := chrome.Try("dismiss-overlay", func() error {
		return w.page.ClickAt(ctx, w.store.Overlay.X, w.store.Overlay.Y)
	})
	if !overlay.OK() {
		log.WithError(overlay.Err).Debug("关闭遮罩失败,继续")
	}

	if err := w.page.WaitSelector(ctx, w.store.Selectors.MenuToggle, w.timeouts.ActionTimeout()); err != nil {
		return nil, fmt.Errorf("等待菜单按钮失败: %w", err)
	}
	if err := w.page.Click(ctx, w.store.Selectors.MenuToggle, w.timeouts.ActionTimeout()); err != nil {
		return nil, fmt.Errorf("打开菜单失败: %w", err)
	}
	if err := chrome.Sleep(ctx, w.timeouts.MenuSettleDelay()); err != nil {
		return nil, err
	}

	labels, err := w.page.InnerTexts(ctx, w.store.Selectors.MenuLabel)
	if err != nil {
		return nil, fmt.Errorf("读取菜单分类失败: %w", err)
	}
	labels = w.menuLabels(labels)
	if len(labels) == 0 {
		return nil, ErrNoMenu
	}
	log.WithField("labels", len(labels)).Info("发现一级分类")

	tree := make([]model.CategoryNode, 0, len(labels))
	for i, label := range labels {
		if err := ctx.Err(); err != nil {
			return tree, err
		}
		w.progress(label, i+1, len(labels))
		children, err := w.branch(ctx, label)
		if err != nil {
			if ctx.Err() != nil {
				return tree, ctx.Err()
			}
			log.WithError(err).WithField("label", label).Warn("处理分类失败,跳过")
			continue
		}
		tree = append(tree, model.CategoryNode{
			Name:     label,
			Url:      "",
			Children: children,
			Depth:    model.RootDepth,
		})
		log.WithFields(logrus.Fields{"label": label, "children": len(children)}).Debug("分类完成")
	}
	return tree, nil
}

// menuLabels 去空白、去排除项、去重,保持菜单顺序
func (w *Walker) menuLabels(raw []string) []string {
	excluded := make(map[string]struct{}, len(w.store.ExcludedLabels))
	for _, l := range w.store.ExcludedLabels {
		excluded[fold(l)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(raw))
	labels := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := excluded[fold(l)]; ok {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	return labels
}

// branch 点击一级分类,读取右侧面板中可见的子分类链接
func (w *Walker) branch(ctx context.Context, label string) ([]model.CategoryNode, error) {
	if err := w.page.ClickText(ctx, w.store.Selectors.MenuLabel, label, w.timeouts.ActionTimeout()); err != nil {
		return nil, fmt.Errorf("点击分类失败: %w", err)
	}
	if err := chrome.Sleep(ctx, w.timeouts.PanelSettleDelay()); err != nil {
		return nil, err
	}
	links, err := w.page.VisibleLinks(ctx, w.store.Selectors.SubcategoryLink)
	if err != nil {
		return nil, fmt.Errorf("读取子分类失败: %w", err)
	}
	return w.children(links), nil
}

func (w *Walker) children(links []types.Link) []model.CategoryNode {
	viewAll := fold(w.store.ViewAllLabel)
	seen := make(map[string]struct{}, len(links))
	nodes := make([]model.CategoryNode, 0, len(links))
	for _, link := range links {
		name := strings.TrimSpace(strings.Join(strings.Fields(link.Text), " "))
		if name == "" || link.Href == "" {
			continue
		}
		if viewAll != "" && strings.Contains(fold(name), viewAll) {
			continue
		}
		abs := entity.AbsoluteURL(link.Href, w.store.LinkBase)
		key := stripFragment(abs)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		nodes = append(nodes, model.CategoryNode{
			Name:     name,
			Url:      abs,
			Children: []model.CategoryNode{},
			Depth:    model.RootDepth + 1,
		})
	}
	return nodes
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func stripFragment(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return address
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
