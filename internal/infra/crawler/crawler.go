package crawler

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/collector"
	"github.com/sirupsen/logrus"
)

// NewBrowser 按配置的引擎创建浏览器, pages 为需要同时打开的页面数
func NewBrowser(ctx context.Context, cfg *config.Config, pages int, log *logrus.Entry) (chrome.Browser, error) {
	log = log.WithField("engine", cfg.Engine)
	switch cfg.Engine {
	case config.EngineRod, "":
		return chrome.InitRodBrowser(cfg, pages, log)
	case config.EngineChromedp:
		return chrome.InitChromedpBrowser(ctx, cfg)
	case config.EngineColly:
		return collector.InitCollyBrowser(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidEngine, cfg.Engine)
	}
}
