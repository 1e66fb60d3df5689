package config

import "errors"

// 配置校验错误,调用方通过 errors.Is 判断
var (
	// ErrNoStores 没有配置任何商店
	ErrNoStores = errors.New("no stores configured")

	// ErrUnknownStore 按名称找不到商店
	ErrUnknownStore = errors.New("unknown store")

	// ErrInvalidStore 商店缺少必要字段
	ErrInvalidStore = errors.New("invalid store")

	// ErrInvalidPattern 商品地址模式为空或无法编译
	ErrInvalidPattern = errors.New("invalid product url pattern")

	// ErrMissingSelector 商店缺少必要的选择器
	ErrMissingSelector = errors.New("missing selector")

	// ErrInvalidEngine 引擎名称不在 rod/chromedp/colly 之中
	ErrInvalidEngine = errors.New("invalid engine: must be rod, chromedp or colly")

	// ErrInvalidWorkers worker 数量必须为正
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxTasks 任务上限不能为负, 0 表示不限制
	ErrInvalidMaxTasks = errors.New("invalid max tasks: must be non-negative")

	// ErrInvalidMaxPages 每个分类至少访问一页
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout 导航和等待必须带有正的超时
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")
)
