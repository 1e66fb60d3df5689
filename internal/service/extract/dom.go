package extract

import (
	"strconv"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
)

const StrategyDOM = "dom"

// DOM 兜底策略: 标题取 <title>,价格取价格选择器第一个元素中的数字
// 只要有文档就一定产出记录
type DOM struct {
	priceSelector   string
	defaultCurrency string
}

func NewDOM(priceSelector, defaultCurrency string) *DOM {
	return &DOM{priceSelector: priceSelector, defaultCurrency: defaultCurrency}
}

func (d *DOM) Name() string { return StrategyDOM }

func (d *DOM) Attempt(s *Snapshot, tc TaskContext) (*model.ScrapedProduct, error) {
	if s.Doc == nil {
		return nil, ErrNoDocument
	}
	p := &model.ScrapedProduct{
		ExternalID: model.UnknownExternalID,
		Title:      strings.TrimSpace(s.Doc.Find("title").First().Text()),
		Currency:   d.defaultCurrency,
		Images:     []model.ScrapedImage{},
	}
	if d.priceSelector != "" {
		p.SetPrice(parseDigits(s.Doc.Find(d.priceSelector).First().Text()))
	}
	return p, nil
}

// parseDigits "$ 19.990" -> 19990
func parseDigits(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
