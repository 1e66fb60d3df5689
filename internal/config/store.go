package config

import (
	"fmt"
	"strings"
)

// Store 单个商店的静态配置,包括种子分类和页面选择器
type Store struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// Slug 用于命令行参数和文件名,例如 falabella
	Slug    string `json:"slug" yaml:"slug"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	// HomeURL 分类发现的入口页
	HomeURL string `json:"home_url" yaml:"home_url"`
	// LinkBase 相对链接补全前缀
	LinkBase string `json:"link_base" yaml:"link_base"`
	// ProductURLPattern 商品详情页地址的 glob 模式
	ProductURLPattern string `json:"product_url_pattern" yaml:"product_url_pattern"`
	// PageParam 分页使用的查询参数名
	PageParam       string `json:"page_param" yaml:"page_param"`
	DefaultCurrency string `json:"default_currency" yaml:"default_currency"`

	Overlay struct {
		X float64 `json:"x" yaml:"x"`
		Y float64 `json:"y" yaml:"y"`
	} `json:"overlay" yaml:"overlay"`

	ExcludedLabels []string  `json:"excluded_labels" yaml:"excluded_labels"`
	ViewAllLabel   string    `json:"view_all_label" yaml:"view_all_label"`
	Selectors      Selectors `json:"selectors" yaml:"selectors"`

	Categories []SeedCategory `json:"categories" yaml:"categories"`
}

// Selectors 页面元素的 CSS 选择器
type Selectors struct {
	MenuToggle      string `json:"menu_toggle" yaml:"menu_toggle"`
	MenuLabel       string `json:"menu_label" yaml:"menu_label"`
	SubcategoryLink string `json:"subcategory_link" yaml:"subcategory_link"`
	NextPage        string `json:"next_page" yaml:"next_page"`
	ListingPod      string `json:"listing_pod" yaml:"listing_pod"`
	Price           string `json:"price" yaml:"price"`
}

// SeedCategory 配置中预置的分类入口
type SeedCategory struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Falabella 返回内置的 Falabella 智利站点配置
func Falabella() Store {
	s := Store{
		ID:                "123e4567-e89b-12d3-a456-426614174000",
		Name:              "Falabella",
		Slug:              "falabella",
		BaseURL:           "https://www.falabella.com.cl",
		HomeURL:           "https://www.falabella.com/falabella-cl",
		LinkBase:          "https://www.falabella.com",
		ProductURLPattern: "https://www.falabella.com/falabella-cl/product/**",
		PageParam:         "page",
		DefaultCurrency:   "CLP",
		ExcludedLabels: []string{
			"Vende con nosotros",
			"Centro de ayuda",
			"Horario de tiendas",
			"Seguros",
			"Garantía extendida",
			"Guías de compra",
		},
		ViewAllLabel: "ver todo",
		Selectors: Selectors{
			MenuToggle:      "#testId-HamburgerBtn-toggle",
			MenuLabel:       `div[class*="categoryTitle"]`,
			SubcategoryLink: `div[class*="scrollContainer"] a[class*="SecondLevelCategories-module_link"]`,
			NextPage:        "#testId-pagination-top-arrow-right",
			ListingPod:      `a[class*="pod-link"], a[id^="testId-pod-"]`,
			Price:           "span.copy10",
		},
		Categories: []SeedCategory{
			{Name: "TV y Video", URL: "https://www.falabella.com/falabella-cl/category/cat2033/TV-y-Video"},
			{Name: "Audio", URL: "https://www.falabella.com/falabella-cl/category/cat2005/Audio"},
			{Name: "Mundo Gamer", URL: "https://www.falabella.com/falabella-cl/category/cat7330046/Mundo-Gamer"},
			{Name: "Cámaras y Drones", URL: "https://www.falabella.com/falabella-cl/category/cat2038/Camaras-y-Drones"},
			{Name: "Smart TV", URL: "https://www.falabella.com/falabella-cl/category/cat7190148/Smart-TV"},
		},
	}
	s.Overlay.X = 326
	s.Overlay.Y = 220
	return s
}

// Store 按名称或 slug 查找商店,大小写不敏感
func (c *Config) Store(name string) (*Store, error) {
	for i := range c.Stores {
		s := &c.Stores[i]
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.Slug, name) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStore, name)
}

// CategoriesFile 分类文档的文件名,例如 falabella-categories.json
func (s *Store) CategoriesFile() string {
	return s.Slug + "-categories.json"
}

func (s *Store) validate() error {
	if s.ID == "" || s.Name == "" {
		return fmt.Errorf("%w: store id and name are required", ErrInvalidStore)
	}
	if s.Slug == "" {
		return fmt.Errorf("%w: store %s has no slug", ErrInvalidStore, s.Name)
	}
	if s.ProductURLPattern == "" {
		return fmt.Errorf("%w: store %s", ErrInvalidPattern, s.Name)
	}
	sel := s.Selectors
	for name, v := range map[string]string{
		"menu_toggle":      sel.MenuToggle,
		"menu_label":       sel.MenuLabel,
		"subcategory_link": sel.SubcategoryLink,
		"next_page":        sel.NextPage,
		"listing_pod":      sel.ListingPod,
		"price":            sel.Price,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s.%s", ErrMissingSelector, s.Name, name)
		}
	}
	return nil
}
