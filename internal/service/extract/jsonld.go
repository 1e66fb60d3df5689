package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/PuerkitoBio/goquery"
)

const (
	StrategyJSONLD = "json-ld"
	productType    = "Product"
)

// JSONLD 从 application/ld+json 脚本中找到 @type 为 Product 的实体
type JSONLD struct {
	defaultCurrency string
}

func NewJSONLD(defaultCurrency string) *JSONLD {
	return &JSONLD{defaultCurrency: defaultCurrency}
}

func (j *JSONLD) Name() string { return StrategyJSONLD }

func (j *JSONLD) Attempt(s *Snapshot, tc TaskContext) (*model.ScrapedProduct, error) {
	var (
		found map[string]any
		errs  []error
	)
	s.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			errs = append(errs, fmt.Errorf("block %d: %w", i, err))
			return true
		}
		found = findProduct(data)
		return found == nil
	})
	if found == nil {
		if len(errs) > 0 {
			return nil, fmt.Errorf("json-ld: %w", errors.Join(errs...))
		}
		return nil, nil
	}
	return j.toProduct(found), nil
}

func (j *JSONLD) toProduct(raw map[string]any) *model.ScrapedProduct {
	p := &model.ScrapedProduct{
		ExternalID:     firstString(raw, "sku", "productID"),
		Title:          stringField(raw, "name"),
		Description:    stringField(raw, "description"),
		Currency:       j.defaultCurrency,
		BrandName:      brandName(raw["brand"]),
		Images:         images(raw["image"]),
		AdditionalData: map[string]any{"raw_json_ld": raw},
	}
	if p.ExternalID == "" {
		p.ExternalID = model.UnknownExternalID
	}
	offers := firstOffer(raw["offers"])
	p.SetPrice(offerPrice(offers))
	if c := stringField(offers, "priceCurrency"); c != "" {
		p.Currency = c
	}
	return p
}

// findProduct 支持单个对象、数组以及 @graph 容器
func findProduct(data any) map[string]any {
	switch v := data.(type) {
	case map[string]any:
		if isProduct(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"].([]any); ok {
			return findProduct(graph)
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok && isProduct(m["@type"]) {
				return m
			}
		}
	}
	return nil
}

func isProduct(t any) bool {
	switch v := t.(type) {
	case string:
		return v == productType
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == productType {
				return true
			}
		}
	}
	return false
}

func firstOffer(v any) map[string]any {
	switch o := v.(type) {
	case map[string]any:
		return o
	case []any:
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// offerPrice 取 price,为空时取 lowPrice
func offerPrice(offers map[string]any) (float64, bool) {
	if offers == nil {
		return 0, false
	}
	v := offers["price"]
	if !truthy(v) {
		v = offers["lowPrice"]
	}
	switch p := v.(type) {
	case float64:
		return p, true
	case string:
		return leadingFloat(p)
	}
	return 0, false
}

var floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// leadingFloat 解析字符串开头的数字,"19990 CLP" -> 19990
func leadingFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	}
	return true
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

func brandName(v any) string {
	switch b := v.(type) {
	case map[string]any:
		return stringField(b, "name")
	case string:
		return b
	}
	return ""
}

// images 字符串为唯一主图,数组时第一张为主图
func images(v any) []model.ScrapedImage {
	switch img := v.(type) {
	case string:
		if img == "" {
			return []model.ScrapedImage{}
		}
		return []model.ScrapedImage{{ImageUrl: img, Main: true}}
	case []any:
		out := make([]model.ScrapedImage, 0, len(img))
		for _, item := range img {
			u := imageURL(item)
			if u == "" {
				continue
			}
			out = append(out, model.ScrapedImage{ImageUrl: u, Main: len(out) == 0})
		}
		return out
	case map[string]any:
		if u := imageURL(img); u != "" {
			return []model.ScrapedImage{{ImageUrl: u, Main: true}}
		}
	}
	return []model.ScrapedImage{}
}

// imageURL 支持字符串和 ImageObject
func imageURL(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		return firstString(x, "url", "contentUrl")
	}
	return ""
}
