package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/backend"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler"
	"github.com/LouYuanbo1/storecrawler/internal/infra/embedding"
	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/dataset"
	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/es"
	"github.com/LouYuanbo1/storecrawler/internal/service/category"
	"github.com/LouYuanbo1/storecrawler/internal/service/crawl"
	"github.com/LouYuanbo1/storecrawler/internal/service/extract"
	"github.com/LouYuanbo1/storecrawler/internal/service/pagination"
	"github.com/LouYuanbo1/storecrawler/internal/service/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// 分类来源
const (
	sourceFile    = "file"
	sourceBackend = "backend"
	sourceConfig  = "config"
)

// NewScrapeCmd 创建 scrape 命令
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl category listings and product pages",
		Long: `Scrape loads a category tree, optionally narrows it with --filter, and crawls
every listing page (following pagination) and every product page it links to.

Category sources:
  file     <data-dir>/<store>-categories.json written by discover (default)
  backend  the mapped tree returned by the backend
  config   the seed categories of the store configuration`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}
	cmd.Flags().StringP("store", "s", "falabella", "store name or slug")
	cmd.Flags().StringP("filter", "f", "", "keep only categories whose name contains this text (case-insensitive)")
	cmd.Flags().String("source", sourceFile, "category source: file, backend or config")
	cmd.Flags().Int("max-tasks", 0, "maximum number of pages to visit (default from config)")
	cmd.Flags().Int("max-pages", 0, "maximum listing pages per category (default from config)")
	cmd.Flags().IntP("workers", "w", 0, "number of concurrent pages (default from config)")
	cmd.Flags().StringP("report", "r", "", "write a markdown run report to this path")
	cmd.Flags().Bool("reindex", false, "drop and recreate the Elasticsearch product index before crawling")
	return cmd
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetInt("max-tasks"); v > 0 {
		a.cfg.Crawl.MaxTasks = v
	}
	if v, _ := flags.GetInt("max-pages"); v > 0 {
		a.cfg.Crawl.MaxPages = v
	}
	if v, _ := flags.GetInt("workers"); v > 0 {
		a.cfg.Crawl.Workers = v
	}
	name, _ := flags.GetString("store")
	store, err := a.cfg.Store(name)
	if err != nil {
		return err
	}
	source, _ := flags.GetString("source")
	filter, _ := flags.GetString("filter")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	log := a.entry("scrape").WithField("store", store.Name)
	client := backend.NewClient(a.cfg, a.entry("backend"))

	tree, err := loadTree(ctx, a, store, source, client)
	if err != nil {
		return err
	}
	if filter != "" {
		tree = category.Filter(tree, category.NameContains(filter))
		log.WithFields(logrus.Fields{"filter": filter, "nodes": model.Count(tree)}).Info("已过滤分类")
	}
	seeds := category.StartAddresses(tree)
	if len(seeds) == 0 {
		log.Warn("没有可抓取的分类地址")
		return nil
	}

	paginator := pagination.New(store, a.cfg.Crawl.MaxPages, a.cfg.Crawl.RequireEnabledNext)
	pipeline := extract.New(store, extract.WithLogger(a.entry("extract")))

	browser, err := crawler.NewBrowser(ctx, a.cfg, a.cfg.Crawl.Workers, log)
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Warn("关闭浏览器失败")
		}
	}()

	reindex, _ := flags.GetBool("reindex")
	sinks, err := openSinks(ctx, a, store, reindex)
	if err != nil {
		return err
	}
	defer sinks.close(log)

	opts := []crawl.Option{
		crawl.WithLogger(a.entry("crawl")),
		crawl.WithWorkers(a.cfg.Crawl.Workers),
		crawl.WithMaxTasks(a.cfg.Crawl.MaxTasks),
		crawl.WithSyncer(client),
	}
	opts = append(opts, sinks.options...)
	if a.cfg.Crawl.DebugScreenshots {
		opts = append(opts, crawl.WithScreenshotDir(filepath.Join(a.dataDir, "debug")))
	}
	controller, err := crawl.New(browser, store, a.cfg.Crawl.Timeouts, paginator, pipeline, opts...)
	if err != nil {
		return err
	}

	stats, runErr := controller.Run(ctx, crawl.SeedTasks(seeds, paginator))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	// 运行被中断时仍然落盘已有结果
	indexDocs := sinks.finish(context.WithoutCancel(ctx), stats, log)

	if path, _ := flags.GetString("report"); path != "" {
		names := make([]string, 0, len(seeds))
		for _, s := range seeds {
			names = append(names, s.CategoryName)
		}
		info := report.RunInfo{
			RunID:      sinks.runID(),
			Store:      store.Name,
			Engine:     a.cfg.Engine,
			Filter:     filter,
			Source:     source,
			Categories: names,
		}
		if sinks.esSink != nil {
			info.Index = a.cfg.Elasticsearch.Index
			info.IndexDocs = indexDocs
		}
		if err := writeReport(path, info, stats); err != nil {
			return err
		}
		log.WithField("path", path).Info("报告已生成")
	}
	return runErr
}

func loadTree(ctx context.Context, a *app, store *config.Store, source string, client *backend.Client) ([]model.CategoryNode, error) {
	switch strings.ToLower(source) {
	case sourceFile, "":
		path := filepath.Join(a.dataDir, store.CategoriesFile())
		tree, err := dataset.ReadCategories(path)
		if err != nil {
			return nil, fmt.Errorf("读取分类失败(先运行 discover): %w", err)
		}
		return tree, nil
	case sourceBackend:
		return client.GetMappedCategories(ctx, store.Name)
	case sourceConfig:
		return category.FromStore(store), nil
	default:
		return nil, fmt.Errorf("未知的分类来源 %q", source)
	}
}

func writeReport(path string, info report.RunInfo, stats crawl.Stats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建报告失败: %w", err)
	}
	if err := report.WriteMarkdown(f, info, stats); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sinks 本次运行打开的所有输出
type sinks struct {
	options []crawl.Option
	db      *dataset.Store
	run     *dataset.Run
	esSink  *es.ProductSink
	closers []io.Closer
}

func openSinks(ctx context.Context, a *app, store *config.Store, reindex bool) (*sinks, error) {
	s := &sinks{}
	if a.cfg.Storage.SQLite {
		opts := dataset.DefaultOptions()
		opts.EnableWAL = !a.cfg.Storage.DisableWAL
		db, err := dataset.Open(a.dataDir, opts)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.closers = append(s.closers, db)
		run, err := db.BeginRun(ctx, store.ID, store.Name, time.Now())
		if err != nil {
			s.close(a.entry("scrape"))
			return nil, err
		}
		s.run = run
		s.options = append(s.options, crawl.WithDataset(run))
		if a.cfg.Crawl.RecordListingPods {
			s.options = append(s.options, crawl.WithPodSink(run))
		}
	}
	if a.cfg.Storage.JSONL {
		details, err := dataset.OpenJSONL(filepath.Join(a.dataDir, dataset.DetailsFile))
		if err != nil {
			s.close(a.entry("scrape"))
			return nil, err
		}
		s.closers = append(s.closers, details)
		s.options = append(s.options, crawl.WithDataset(details))
		if a.cfg.Crawl.RecordListingPods {
			pods, err := dataset.OpenJSONL(filepath.Join(a.dataDir, dataset.PodsFile))
			if err != nil {
				s.close(a.entry("scrape"))
				return nil, err
			}
			s.closers = append(s.closers, pods)
			s.options = append(s.options, crawl.WithPodSink(pods))
		}
	}
	if a.cfg.Elasticsearch.Enabled {
		client, err := es.InitTypedEsClient[*model.ProductDoc](a.cfg, a.entry("elasticsearch"))
		if err != nil {
			s.close(a.entry("scrape"))
			return nil, err
		}
		embedder, err := embedding.InitEmbedder(ctx, a.cfg)
		if err != nil {
			s.close(a.entry("scrape"))
			return nil, err
		}
		s.esSink = es.NewProductSink(client, embedder, a.cfg.Elasticsearch.BulkSize, a.entry("elasticsearch"))
		if err := s.esSink.Prepare(ctx, reindex); err != nil {
			s.close(a.entry("scrape"))
			return nil, err
		}
		s.options = append(s.options, crawl.WithDataset(s.esSink))
	}
	return s, nil
}

func (s *sinks) runID() string {
	if s.run == nil {
		return ""
	}
	return s.run.ID
}

// finish 落盘所有输出,返回索引中的文档总数(未启用或统计失败时为 -1)
func (s *sinks) finish(ctx context.Context, stats crawl.Stats, log *logrus.Entry) int64 {
	total := int64(-1)
	if s.esSink != nil {
		if err := s.esSink.Flush(ctx); err != nil {
			log.WithError(err).Warn("写入索引失败")
		}
		n, err := s.esSink.Count(ctx)
		if err != nil {
			log.WithError(err).Warn("统计索引文档失败")
		} else {
			total = n
		}
		log.WithFields(logrus.Fields{"indexed": s.esSink.Indexed(), "total": total}).Info("索引写入完成")
	}
	if s.run != nil {
		if err := s.run.Finish(ctx, stats.Finished, stats); err != nil {
			log.WithError(err).Warn("更新运行记录失败")
		}
		log.WithFields(logrus.Fields{"run": s.run.ID, "db": s.db.Path()}).Info("数据已保存")
	}
	return total
}

func (s *sinks) close(log *logrus.Entry) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			log.WithError(err).Warn("关闭输出失败")
		}
	}
	s.closers = nil
}
