package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

const appName = "storecrawler"

// EnvBackendURL 覆盖商品同步接口地址
const EnvBackendURL = "BACKEND_URL"

// ParseConfig 解析 JSON 配置,未填写的字段保留默认值
func ParseConfig(byteConfig []byte) (*Config, error) {
	cfg := NewConfig()
	cfg.Stores = nil
	if err := json.Unmarshal(byteConfig, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return finish(cfg)
}

// ParseYAML 解析 YAML 配置,未填写的字段保留默认值
func ParseYAML(byteConfig []byte) (*Config, error) {
	cfg := NewConfig()
	cfg.Stores = nil
	if err := yaml.Unmarshal(byteConfig, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return finish(cfg)
}

// LoadFile 根据扩展名选择 JSON 或 YAML 解析
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseConfig(data)
	}
}

// DefaultConfigPath 返回 $XDG_CONFIG_HOME/storecrawler/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// DefaultDataDir 返回 $XDG_DATA_HOME/storecrawler
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DataDir 数据目录,未配置时使用 XDG 数据目录
func (c *Config) DataDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return DefaultDataDir()
}

func finish(cfg *Config) (*Config, error) {
	if len(cfg.Stores) == 0 {
		cfg.Stores = []Store{Falabella()}
	}
	for i := range cfg.Stores {
		cfg.Stores[i] = mergeStore(cfg.Stores[i])
	}
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Backend.ProductURL = v
	}
	for _, dir := range []*string{&cfg.Rod.UserDataDir, &cfg.Chromedp.UserDataDir} {
		if *dir == "" {
			continue
		}
		absPath, err := filepath.Abs(*dir)
		if err != nil {
			return nil, err
		}
		*dir = absPath
	}
	return cfg, nil
}

// mergeStore 用内置商店补全配置文件中缺省的字段
func mergeStore(s Store) Store {
	var base Store
	if builtin := Falabella(); strings.EqualFold(s.Slug, builtin.Slug) || strings.EqualFold(s.Name, builtin.Name) {
		base = builtin
	}
	if s.PageParam == "" {
		s.PageParam = "page"
	}
	if s.DefaultCurrency == "" {
		s.DefaultCurrency = "CLP"
	}
	if s.Slug == "" {
		s.Slug = strings.ToLower(strings.ReplaceAll(s.Name, " ", "-"))
	}
	if base.ID == "" {
		return s
	}

	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&s.ID, base.ID)
	fill(&s.Name, base.Name)
	fill(&s.BaseURL, base.BaseURL)
	fill(&s.HomeURL, base.HomeURL)
	fill(&s.LinkBase, base.LinkBase)
	fill(&s.ProductURLPattern, base.ProductURLPattern)
	fill(&s.ViewAllLabel, base.ViewAllLabel)
	fill(&s.Selectors.MenuToggle, base.Selectors.MenuToggle)
	fill(&s.Selectors.MenuLabel, base.Selectors.MenuLabel)
	fill(&s.Selectors.SubcategoryLink, base.Selectors.SubcategoryLink)
	fill(&s.Selectors.NextPage, base.Selectors.NextPage)
	fill(&s.Selectors.ListingPod, base.Selectors.ListingPod)
	fill(&s.Selectors.Price, base.Selectors.Price)
	if s.Overlay.X == 0 && s.Overlay.Y == 0 {
		s.Overlay = base.Overlay
	}
	if s.ExcludedLabels == nil {
		s.ExcludedLabels = base.ExcludedLabels
	}
	if s.Categories == nil {
		s.Categories = base.Categories
	}
	return s
}

// Validate 校验配置,返回包装后的哨兵错误
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineRod, EngineChromedp, EngineColly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Engine)
	}
	if c.Crawl.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Crawl.MaxTasks < 0 {
		return ErrInvalidMaxTasks
	}
	if c.Crawl.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	t := c.Crawl.Timeouts
	for name, v := range map[string]int{
		"home":     t.Home,
		"listing":  t.Listing,
		"product":  t.Product,
		"selector": t.Selector,
		"action":   t.Action,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: crawl.timeouts.%s", ErrInvalidTimeout, name)
		}
	}
	if len(c.Stores) == 0 {
		return ErrNoStores
	}
	for i := range c.Stores {
		s := &c.Stores[i]
		if err := s.validate(); err != nil {
			return err
		}
		if _, err := glob.Compile(s.ProductURLPattern, '/'); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPattern, s.Name, err)
		}
	}
	return nil
}
