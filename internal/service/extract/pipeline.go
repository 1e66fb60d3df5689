package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// ErrNoDocument 快照中没有可解析的文档
var ErrNoDocument = errors.New("no document in snapshot")

// Snapshot 渲染完成后的商品页,策略只读取它,不再访问浏览器
type Snapshot struct {
	Url string
	Doc *goquery.Document
}

// NewSnapshot 解析渲染后的 HTML
func NewSnapshot(url, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析 HTML 失败: %w", err)
	}
	return &Snapshot{Url: url, Doc: doc}, nil
}

// TaskContext 抽取时由爬取任务携带的上下文,不从页面推断
type TaskContext struct {
	Url          string
	CategoryName string
}

// Strategy 一种抽取方式
// 返回 nil, nil 表示没有结果;返回错误表示解析失败,同样视为没有结果
type Strategy interface {
	Name() string
	Attempt(s *Snapshot, tc TaskContext) (*model.ScrapedProduct, error)
}

// Result 抽取结果和命中的策略
type Result struct {
	Product  *model.ScrapedProduct
	Strategy string
}

// Pipeline 按固定顺序尝试策略,第一个有结果的策略胜出
type Pipeline struct {
	store      *config.Store
	strategies []Strategy
	log        *logrus.Entry
}

type Option func(*Pipeline)

// WithStrategies 替换默认的策略顺序
func WithStrategies(strategies ...Strategy) Option {
	return func(p *Pipeline) {
		p.strategies = strategies
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// New 默认顺序: 结构化数据 -> 应用状态 -> DOM
func New(store *config.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store: store,
		strategies: []Strategy{
			NewJSONLD(store.DefaultCurrency),
			NewAppState(),
			NewDOM(store.Selectors.Price, store.DefaultCurrency),
		},
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Strategies 当前的策略名称,按顺序
func (p *Pipeline) Strategies() []string {
	names := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		names = append(names, s.Name())
	}
	return names
}

func (p *Pipeline) Extract(s *Snapshot, tc TaskContext) (Result, bool) {
	log := p.log.WithField("url", tc.Url)
	for _, strategy := range p.strategies {
		product, err := attempt(strategy, s, tc)
		if err != nil {
			log.WithError(err).WithField("strategy", strategy.Name()).Debug("策略解析失败,尝试下一个")
			continue
		}
		if product == nil {
			continue
		}
		p.stamp(product, tc)
		return Result{Product: product, Strategy: strategy.Name()}, true
	}
	return Result{}, false
}

// attempt 调用策略,把 panic 也转换为错误
func attempt(strategy Strategy, s *Snapshot, tc TaskContext) (product *model.ScrapedProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			product, err = nil, fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()
	if s == nil || s.Doc == nil {
		return nil, ErrNoDocument
	}
	return strategy.Attempt(s, tc)
}

// stamp 写入商店 ID、分类和地址,这些字段只来自配置和任务
func (p *Pipeline) stamp(product *model.ScrapedProduct, tc TaskContext) {
	product.StoreID = p.store.ID
	product.CategoryName = tc.CategoryName
	product.Url = tc.Url
	if product.ExternalID == "" {
		product.ExternalID = model.UnknownExternalID
	}
	if product.Images == nil {
		product.Images = []model.ScrapedImage{}
	}
}
