package config

import (
	"net/http/cookiejar"
	"time"
)

// 引擎名称
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
	EngineColly    = "colly"
)

// 默认值
const (
	// DefaultWorkers 并发的浏览器页面数量,每个 worker 独占一个页面
	DefaultWorkers = 2
	// DefaultMaxTasks 单次运行最多派发的任务数
	DefaultMaxTasks = 50
	// DefaultMaxPages 每个分类最多翻页数
	DefaultMaxPages = 5
	// DefaultUserAgent 与桌面版 Chrome 一致
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// DefaultBackendURL 商品同步接口,可通过 BACKEND_URL 覆盖
	DefaultBackendURL = "http://localhost:8000/api/sync-product"
	// DefaultCategoriesURL 分类同步接口
	DefaultCategoriesURL = "http://localhost:8000/api/categories"
	// DefaultProductIndex Elasticsearch 商品索引
	DefaultProductIndex = "store_products"
)

type Config struct {
	// Engine 选择浏览器引擎: rod | chromedp | colly
	Engine string `json:"engine" yaml:"engine"`

	Rod struct {
		UserDataDir          string `json:"user_data_dir" yaml:"user_data_dir"`
		Headless             bool   `json:"headless" yaml:"headless"`
		DisableBlinkFeatures string `json:"disable_blink_features" yaml:"disable_blink_features"`
		Incognito            bool   `json:"incognito" yaml:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage" yaml:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox" yaml:"no_sandbox"`
		UserAgent            string `json:"user_agent" yaml:"user_agent"`
		Leakless             bool   `json:"leakless" yaml:"leakless"`
		Bin                  string `json:"bin" yaml:"bin"`
		Stealth              bool   `json:"stealth" yaml:"stealth"`
		Trace                bool   `json:"trace" yaml:"trace"`
		ViewportWidth        int    `json:"viewport_width" yaml:"viewport_width"`
		ViewportHeight       int    `json:"viewport_height" yaml:"viewport_height"`
	} `json:"rod" yaml:"rod"`

	Chromedp struct {
		// LifeTime 浏览器存活时间(秒), 0 表示不限制
		LifeTime             int    `json:"life_time" yaml:"life_time"`
		UserDataDir          string `json:"user_data_dir" yaml:"user_data_dir"`
		Headless             bool   `json:"headless" yaml:"headless"`
		DisableBlinkFeatures string `json:"disable_blink_features" yaml:"disable_blink_features"`
		Incognito            bool   `json:"incognito" yaml:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage" yaml:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox" yaml:"no_sandbox"`
		UserAgent            string `json:"user_agent" yaml:"user_agent"`
		ViewportWidth        int    `json:"viewport_width" yaml:"viewport_width"`
		ViewportHeight       int    `json:"viewport_height" yaml:"viewport_height"`
	} `json:"chromedp" yaml:"chromedp"`

	Colly struct {
		AllowedDomains   []string           `json:"allowed_domains" yaml:"allowed_domains"`
		UserAgent        string             `json:"user_agent" yaml:"user_agent"`
		IgnoreRobotsTxt  bool               `json:"ignore_robots_txt" yaml:"ignore_robots_txt"`
		Parallelism      int                `json:"parallelism" yaml:"parallelism"`
		Delay            int                `json:"delay" yaml:"delay"`
		RandomDelay      int                `json:"random_delay" yaml:"random_delay"`
		EnableCookieJar  bool               `json:"enable_cookie_jar" yaml:"enable_cookie_jar"`
		CookieJarOptions *cookiejar.Options `json:"-" yaml:"-"`
	} `json:"colly" yaml:"colly"`

	Elasticsearch struct {
		Enabled  bool   `json:"enabled" yaml:"enabled"`
		Username string `json:"username" yaml:"username"`
		Password string `json:"password" yaml:"password"`
		Address  string `json:"address" yaml:"address"`
		Index    string `json:"index" yaml:"index"`
		// BulkSize 累积多少条商品后批量写入
		BulkSize int `json:"bulk_size" yaml:"bulk_size"`
	} `json:"elasticsearch" yaml:"elasticsearch"`

	Embedder struct {
		Host      string `json:"host" yaml:"host"`
		Port      int    `json:"port" yaml:"port"`
		Model     string `json:"model" yaml:"model"`
		BatchSize int    `json:"batch_size" yaml:"batch_size"`
	} `json:"embedder" yaml:"embedder"`

	Backend struct {
		ProductURL    string `json:"product_url" yaml:"product_url"`
		CategoriesURL string `json:"categories_url" yaml:"categories_url"`
		// Timeout 单次请求超时(秒)
		Timeout int `json:"timeout" yaml:"timeout"`
		// DryRun 只记录日志不发送请求
		DryRun bool `json:"dry_run" yaml:"dry_run"`
		// DryRunDelay 模拟网络延迟(毫秒)
		DryRunDelay int `json:"dry_run_delay" yaml:"dry_run_delay"`
	} `json:"backend" yaml:"backend"`

	Crawl struct {
		Workers            int      `json:"workers" yaml:"workers"`
		MaxTasks           int      `json:"max_tasks" yaml:"max_tasks"`
		MaxPages           int      `json:"max_pages" yaml:"max_pages"`
		RequireEnabledNext bool     `json:"require_enabled_next" yaml:"require_enabled_next"`
		RecordListingPods  bool     `json:"record_listing_pods" yaml:"record_listing_pods"`
		DebugScreenshots   bool     `json:"debug_screenshots" yaml:"debug_screenshots"`
		Timeouts           Timeouts `json:"timeouts" yaml:"timeouts"`
	} `json:"crawl" yaml:"crawl"`

	Storage struct {
		// Dir 数据目录,为空时使用 XDG 数据目录
		Dir        string `json:"dir" yaml:"dir"`
		SQLite     bool   `json:"sqlite" yaml:"sqlite"`
		JSONL      bool   `json:"jsonl" yaml:"jsonl"`
		DisableWAL bool   `json:"disable_wal" yaml:"disable_wal"`
	} `json:"storage" yaml:"storage"`

	Log struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"log" yaml:"log"`

	Stores []Store `json:"stores" yaml:"stores"`
}

// Timeouts 以毫秒为单位,便于在 JSON/YAML 中直接填写数字
type Timeouts struct {
	Home        int `json:"home" yaml:"home"`
	Listing     int `json:"listing" yaml:"listing"`
	Product     int `json:"product" yaml:"product"`
	Selector    int `json:"selector" yaml:"selector"`
	Action      int `json:"action" yaml:"action"`
	MenuSettle  int `json:"menu_settle" yaml:"menu_settle"`
	PanelSettle int `json:"panel_settle" yaml:"panel_settle"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (t Timeouts) HomeTimeout() time.Duration      { return ms(t.Home) }
func (t Timeouts) ListingTimeout() time.Duration   { return ms(t.Listing) }
func (t Timeouts) ProductTimeout() time.Duration   { return ms(t.Product) }
func (t Timeouts) SelectorTimeout() time.Duration  { return ms(t.Selector) }
func (t Timeouts) ActionTimeout() time.Duration    { return ms(t.Action) }
func (t Timeouts) MenuSettleDelay() time.Duration  { return ms(t.MenuSettle) }
func (t Timeouts) PanelSettleDelay() time.Duration { return ms(t.PanelSettle) }

// NewConfig 返回带默认值的配置,文件中的配置在此基础上覆盖
func NewConfig() *Config {
	cfg := &Config{Engine: EngineRod}

	cfg.Rod.Headless = true
	cfg.Rod.DisableBlinkFeatures = "AutomationControlled"
	cfg.Rod.UserAgent = DefaultUserAgent
	cfg.Rod.Leakless = true
	cfg.Rod.Stealth = true
	cfg.Rod.ViewportWidth = 1920
	cfg.Rod.ViewportHeight = 1080

	cfg.Chromedp.Headless = true
	cfg.Chromedp.DisableBlinkFeatures = "AutomationControlled"
	cfg.Chromedp.UserAgent = DefaultUserAgent
	cfg.Chromedp.ViewportWidth = 1920
	cfg.Chromedp.ViewportHeight = 1080

	cfg.Colly.UserAgent = DefaultUserAgent
	cfg.Colly.Parallelism = DefaultWorkers
	cfg.Colly.EnableCookieJar = true

	cfg.Elasticsearch.Address = "http://localhost:9200"
	cfg.Elasticsearch.Index = DefaultProductIndex
	cfg.Elasticsearch.BulkSize = 20

	cfg.Embedder.BatchSize = 16

	cfg.Backend.ProductURL = DefaultBackendURL
	cfg.Backend.CategoriesURL = DefaultCategoriesURL
	cfg.Backend.Timeout = 10
	cfg.Backend.DryRun = true
	cfg.Backend.DryRunDelay = 100

	cfg.Crawl.Workers = DefaultWorkers
	cfg.Crawl.MaxTasks = DefaultMaxTasks
	cfg.Crawl.MaxPages = DefaultMaxPages
	cfg.Crawl.RequireEnabledNext = true
	cfg.Crawl.RecordListingPods = true
	cfg.Crawl.Timeouts = Timeouts{
		Home:        60000,
		Listing:     45000,
		Product:     45000,
		Selector:    15000,
		Action:      10000,
		MenuSettle:  1000,
		PanelSettle: 800,
	}

	cfg.Storage.SQLite = true
	cfg.Storage.JSONL = true

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.Stores = []Store{Falabella()}
	return cfg
}
