package parallel

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// WorkFunc worker 的主循环,page 在整个循环期间由该 worker 独占
type WorkFunc func(ctx context.Context, workerID int, page chrome.Page) error

// RunWorkers 启动 workers 个 goroutine,每个从 browser 取一个页面后执行 work
// 任意 worker 返回错误会取消其他 worker 的 ctx,返回第一个错误
func RunWorkers(ctx context.Context, browser chrome.Browser, workers int, log *logrus.Entry, work WorkFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for workerID := range max(workers, 1) {
		g.Go(func() error {
			page, err := browser.NewPage(gctx)
			if err != nil {
				return fmt.Errorf("worker %d 获取页面失败: %w", workerID, err)
			}
			defer func() {
				if err := page.Close(); err != nil {
					log.WithError(err).WithField("worker", workerID).Warn("关闭页面失败")
				}
			}()
			log.WithField("worker", workerID).Debug("worker 启动")
			return work(gctx, workerID, page)
		})
	}
	return g.Wait()
}
