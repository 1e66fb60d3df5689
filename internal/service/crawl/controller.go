package crawl

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/parallel"
	"github.com/LouYuanbo1/storecrawler/internal/service/category"
	"github.com/LouYuanbo1/storecrawler/internal/service/extract"
	"github.com/LouYuanbo1/storecrawler/internal/service/pagination"
	"github.com/LouYuanbo1/storecrawler/param"
	"github.com/PuerkitoBio/goquery"
	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// ProductSyncer 把商品推送到后端
type ProductSyncer interface {
	SyncProduct(ctx context.Context, p *model.ScrapedProduct) error
}

// Dataset 本地保存抽取结果
type Dataset interface {
	PushProduct(ctx context.Context, p *entity.ExtractedProduct) error
}

// PodSink 保存列表页上的商品卡片
type PodSink interface {
	PushListingPods(ctx context.Context, pods []entity.ListingPod) error
}

// Controller 调度列表页和商品页任务
type Controller struct {
	browser   chrome.Browser
	store     *config.Store
	timeouts  config.Timeouts
	paginator *pagination.Paginator
	pipeline  *extract.Pipeline
	products  glob.Glob

	workers       int
	maxTasks      int
	syncer        ProductSyncer
	datasets      []Dataset
	podSinks      []PodSink
	screenshotDir string
	now           func() time.Time
	log           *logrus.Entry
}

type Option func(*Controller)

func WithWorkers(n int) Option {
	return func(c *Controller) {
		c.workers = n
	}
}

// WithMaxTasks 0 表示不限制
func WithMaxTasks(n int) Option {
	return func(c *Controller) {
		c.maxTasks = n
	}
}

func WithSyncer(s ProductSyncer) Option {
	return func(c *Controller) {
		c.syncer = s
	}
}

// WithDataset 可以多次使用,每个商品写入所有数据集
func WithDataset(d Dataset) Option {
	return func(c *Controller) {
		c.datasets = append(c.datasets, d)
	}
}

// WithPodSink 设置后才会记录列表页卡片
func WithPodSink(s PodSink) Option {
	return func(c *Controller) {
		c.podSinks = append(c.podSinks, s)
	}
}

// WithScreenshotDir 列表页为空时在该目录保存截图
func WithScreenshotDir(dir string) Option {
	return func(c *Controller) {
		c.screenshotDir = dir
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Controller) {
		c.log = log
	}
}

func New(browser chrome.Browser, store *config.Store, timeouts config.Timeouts, paginator *pagination.Paginator, pipeline *extract.Pipeline, opts ...Option) (*Controller, error) {
	products, err := glob.Compile(store.ProductURLPattern, '/')
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", config.ErrInvalidPattern, store.ProductURLPattern, err)
	}
	c := &Controller{
		browser:   browser,
		store:     store,
		timeouts:  timeouts,
		paginator: paginator,
		pipeline:  pipeline,
		products:  products,
		workers:   config.DefaultWorkers,
		maxTasks:  config.DefaultMaxTasks,
		now:       time.Now,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SeedTasks 起始地址转换为列表页任务,页码取自地址中的分页参数
func SeedTasks(seeds []category.Seed, paginator *pagination.Paginator) []param.CrawlTask {
	tasks := make([]param.CrawlTask, 0, len(seeds))
	for _, s := range seeds {
		t := param.NewListingTask(s.Url, s.CategoryName)
		t.Page = paginator.CurrentPage(s.Url)
		tasks = append(tasks, t)
	}
	return tasks
}

// Run 处理任务直到队列耗尽、达到任务上限或者 ctx 结束
// 单个页面的失败只计入 Stats,不会中断运行
func (c *Controller) Run(ctx context.Context, seeds []param.CrawlTask) (Stats, error) {
	counter := newCounter(c.now())
	q, stop := newQueue(ctx, c.maxTasks)
	defer stop()

	queued := 0
	for _, t := range seeds {
		if q.push(t) {
			queued++
		}
	}
	c.log.WithFields(logrus.Fields{
		"seeds":     queued,
		"workers":   c.workers,
		"max_tasks": c.maxTasks,
	}).Info("开始爬取")

	var err error
	if queued > 0 {
		err = parallel.RunWorkers(ctx, c.browser, c.workers, c.log, func(ctx context.Context, workerID int, page chrome.Page) error {
			// 其他 worker 失败时唤醒阻塞在 pop 上的 worker
			stop := context.AfterFunc(ctx, q.close)
			defer stop()
			for {
				task, ok := q.pop()
				if !ok {
					return nil
				}
				c.handle(ctx, page, task, q, counter)
				q.done()
			}
		})
		q.close()
	}

	dispatched, dropped := q.counts()
	counter.add(func(s *Stats) {
		s.Dispatched = dispatched
		s.Dropped = dropped
		s.Finished = c.now()
	})
	stats := counter.snapshot()
	if err == nil {
		err = ctx.Err()
	}
	if dropped > 0 {
		c.log.WithField("dropped", dropped).Info("达到任务上限,剩余任务未处理")
	}
	c.log.WithFields(logrus.Fields{
		"dispatched": stats.Dispatched,
		"products":   stats.ProductsExtracted,
		"failures":   stats.ExtractionFailures + stats.NavigationFailures,
		"elapsed":    stats.Duration().String(),
	}).Info("爬取结束")
	return stats, err
}

func (c *Controller) handle(ctx context.Context, page chrome.Page, task param.CrawlTask, q *queue, counter *counter) {
	if ctx.Err() != nil {
		return
	}
	switch t := task.(type) {
	case *param.ListingTask:
		c.visitListing(ctx, page, t, q, counter)
	case *param.ProductTask:
		c.visitProduct(ctx, page, t, counter)
	default:
		c.log.WithField("task", task).Warn("未知任务类型")
	}
}

func (c *Controller) visitListing(ctx context.Context, page chrome.Page, task *param.ListingTask, q *queue, counter *counter) {
	log := c.log.WithFields(logrus.Fields{
		"category": task.CategoryName,
		"page":     task.Page,
		"url":      task.Url,
	})
	log.Info("处理分类列表页")

	if err := page.Navigate(ctx, task.Url, c.timeouts.ListingTimeout()); err != nil {
		if ctx.Err() == nil {
			counter.add(func(s *Stats) { s.NavigationFailures++ })
			log.WithError(err).Warn("打开列表页失败")
		}
		return
	}
	counter.add(func(s *Stats) { s.ListingsVisited++ })

	if err := page.WaitSelector(ctx, c.store.Selectors.ListingPod, c.timeouts.SelectorTimeout()); err != nil {
		counter.add(func(s *Stats) { s.EmptyListings++ })
		log.WithError(err).Warn("列表页没有商品,结束该分类")
		c.screenshot(ctx, page, task, log)
		return
	}

	content, err := page.HTML(ctx)
	if err != nil {
		log.WithError(err).Warn("读取列表页 HTML 失败")
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.Html))
	if err != nil {
		log.WithError(err).Warn("解析列表页 HTML 失败")
		return
	}
	base := content.Url
	if base == "" {
		base = task.Url
	}

	queued := 0
	for _, href := range c.productLinks(doc, base) {
		if q.push(&param.ProductTask{Url: href, CategoryName: task.CategoryName}) {
			queued++
		}
	}
	counter.add(func(s *Stats) { s.ProductsQueued += queued })
	log.WithField("products", queued).Debug("商品链接入队")

	if len(c.podSinks) > 0 {
		c.recordPods(ctx, doc, task, log, counter)
	}

	hasNext, err := c.paginator.HasNextPage(ctx, page)
	if err != nil {
		log.WithError(err).Warn("判断下一页失败")
		return
	}
	if !hasNext {
		log.Debug("没有下一页")
		return
	}
	if !c.paginator.Allows(task.Page) {
		log.WithField("max_pages", c.paginator.MaxPages()).Info("达到最大页数")
		return
	}
	next, err := c.paginator.NextAddress(task.Url, task.Page)
	if err != nil {
		log.WithError(err).Warn("计算下一页地址失败")
		return
	}
	q.push(&param.ListingTask{Url: next, CategoryName: task.CategoryName, Page: task.Page + 1})
	log.WithField("next", next).Debug("下一页入队")
}

// productLinks 页面上所有匹配商品模式的链接,相对地址按页面地址解析,去掉片段
func (c *Controller) productLinks(doc *goquery.Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		ref, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		abs.Fragment = ""
		abs.RawFragment = ""
		address := abs.String()
		if c.products.Match(address) {
			links = append(links, address)
		}
	})
	return links
}

func (c *Controller) recordPods(ctx context.Context, doc *goquery.Document, task *param.ListingTask, log *logrus.Entry, counter *counter) {
	crawledAt := c.now()
	var pods []entity.ListingPod
	doc.Find(c.store.Selectors.ListingPod).Each(func(_ int, s *goquery.Selection) {
		pod := entity.NewListingPod(textLines(s), s.AttrOr("href", ""), c.store.LinkBase, crawledAt)
		pod.CategoryName = task.CategoryName
		pod.Page = task.Page
		pods = append(pods, pod)
	})
	if len(pods) == 0 {
		return
	}
	counter.add(func(s *Stats) { s.ListingPods += len(pods) })
	for _, sink := range c.podSinks {
		if err := sink.PushListingPods(ctx, pods); err != nil {
			counter.add(func(s *Stats) { s.DatasetFailures++ })
			log.WithError(err).Warn("保存列表卡片失败")
		}
	}
}

// textLines 元素内每个非空文本节点作为一行
func textLines(s *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return lines
}

func (c *Controller) screenshot(ctx context.Context, page chrome.Page, task *param.ListingTask, log *logrus.Entry) {
	if c.screenshotDir == "" {
		return
	}
	name := fmt.Sprintf("debug-no-products-%s-%d.png", slug(task.CategoryName), task.Page)
	path := filepath.Join(c.screenshotDir, name)
	shot := chrome.Try("screenshot", func() error {
		return page.Screenshot(ctx, path)
	})
	if !shot.OK() {
		log.WithError(shot.Err).Debug("截图失败")
		return
	}
	log.WithField("path", path).Info("已保存截图")
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "category"
	}
	return s
}

func (c *Controller) visitProduct(ctx context.Context, page chrome.Page, task *param.ProductTask, counter *counter) {
	log := c.log.WithFields(logrus.Fields{
		"category": task.CategoryName,
		"url":      task.Url,
	})
	log.Info("处理商品页")

	if err := page.Navigate(ctx, task.Url, c.timeouts.ProductTimeout()); err != nil {
		if ctx.Err() == nil {
			counter.add(func(s *Stats) { s.NavigationFailures++ })
			log.WithError(err).Warn("打开商品页失败")
		}
		return
	}
	content, err := page.HTML(ctx)
	if err != nil {
		counter.add(func(s *Stats) { s.ExtractionFailures++ })
		log.WithError(err).Error("读取商品页 HTML 失败")
		return
	}
	snap, err := extract.NewSnapshot(task.Url, content.Html)
	if err != nil {
		counter.add(func(s *Stats) { s.ExtractionFailures++ })
		log.WithError(err).Error("解析商品页失败")
		return
	}
	res, ok := c.pipeline.Extract(snap, extract.TaskContext{Url: task.Url, CategoryName: task.CategoryName})
	if !ok {
		counter.add(func(s *Stats) { s.ExtractionFailures++ })
		log.Error("无法抽取商品数据")
		return
	}
	counter.add(func(s *Stats) {
		s.ProductsExtracted++
		s.ByStrategy[res.Strategy]++
	})
	log.WithFields(logrus.Fields{
		"strategy": res.Strategy,
		"title":    res.Product.Title,
		"price":    res.Product.Price,
	}).Debug("商品抽取成功")

	if c.syncer != nil {
		if err := c.syncer.SyncProduct(ctx, res.Product); err != nil {
			counter.add(func(s *Stats) { s.SyncFailures++ })
			log.WithError(err).Warn("同步商品失败")
		}
	}
	extracted := &entity.ExtractedProduct{Product: res.Product, Strategy: res.Strategy, CrawledAt: c.now()}
	for _, d := range c.datasets {
		if err := d.PushProduct(ctx, extracted); err != nil {
			counter.add(func(s *Stats) { s.DatasetFailures++ })
			log.WithError(err).Warn("保存商品失败")
		}
	}
}
