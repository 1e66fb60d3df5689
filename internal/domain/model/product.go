package model

// UnknownExternalID 无法获取稳定标识时使用的外部 ID
const UnknownExternalID = "unknown"

// ScrapedImage 商品图片,Main 标记主图
type ScrapedImage struct {
	ImageUrl string `json:"image_url"`
	Main     bool   `json:"main"`
}

// ScrapedProduct 一次商品详情页访问产生的标准化记录
//
// Price 始终非负。PriceDetermined 为 false 时 Price 为 0,表示价格未能确定,
// 而不是免费商品。
type ScrapedProduct struct {
	StoreID         string         `json:"store_id"`
	ExternalID      string         `json:"external_id"`
	Url             string         `json:"url"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Price           float64        `json:"price"`
	PriceDetermined bool           `json:"price_determined"`
	Currency        string         `json:"currency"`
	BrandName       string         `json:"brand_name,omitempty"`
	CategoryName    string         `json:"category_name,omitempty"`
	Images          []ScrapedImage `json:"images"`
	AdditionalData  map[string]any `json:"additional_data,omitempty"`
}

// SetPrice 记录解析出的价格,负数视为未确定
func (p *ScrapedProduct) SetPrice(v float64, ok bool) {
	if !ok || v < 0 {
		p.Price, p.PriceDetermined = 0, false
		return
	}
	p.Price, p.PriceDetermined = v, true
}

// MainImage 返回主图,没有显式主图时按约定取第一张
func (p *ScrapedProduct) MainImage() (ScrapedImage, bool) {
	if len(p.Images) == 0 {
		return ScrapedImage{}, false
	}
	for _, img := range p.Images {
		if img.Main {
			return img, true
		}
	}
	return p.Images[0], true
}

// HasStableID 是否拿到了站点上的商品标识
func (p *ScrapedProduct) HasStableID() bool {
	return p.ExternalID != "" && p.ExternalID != UnknownExternalID
}
