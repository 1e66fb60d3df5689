package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/backend"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler"
	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/dataset"
	"github.com/LouYuanbo1/storecrawler/internal/service/discovery"
	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewDiscoverCmd 创建 discover 命令
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover the category tree from the store navigation menu",
		Long: `Discover opens the store home page, walks the navigation menu and writes the
two-level category tree to <data-dir>/<store>-categories.json.`,
		Args: cobra.NoArgs,
		RunE: runDiscoverCmd,
	}
	cmd.Flags().StringP("store", "s", "", "store name or slug (required)")
	cmd.Flags().Bool("sync", false, "also push the discovered tree to the backend")
	cmd.Flags().Bool("no-spinner", false, "disable the progress spinner")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func runDiscoverCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("store")
	store, err := a.cfg.Store(name)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	log := a.entry("discover").WithField("store", store.Name)
	browser, err := crawler.NewBrowser(ctx, a.cfg, 1, log)
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Warn("关闭浏览器失败")
		}
	}()
	page, err := browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("创建页面失败: %w", err)
	}
	defer page.Close()

	opts := []discovery.Option{discovery.WithLogger(log)}
	quiet, _ := cmd.Flags().GetBool("no-spinner")
	// debug 日志太密,旋转动画没有意义
	if !quiet && !a.log.IsLevelEnabled(logrus.DebugLevel) {
		s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " opening " + store.HomeURL
		s.Start()
		restore := a.log.Out
		a.log.SetOutput(&spinnerWriter{spinner: s, out: restore})
		defer func() {
			s.Stop()
			a.log.SetOutput(restore)
		}()
		opts = append(opts, discovery.WithProgress(func(label string, i, total int) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" [%d/%d] %s", i, total, label)
			s.Unlock()
		}))
	}

	tree, err := discovery.NewWalker(page, store, a.cfg.Crawl.Timeouts, opts...).Discover(ctx)
	if err != nil {
		return fmt.Errorf("发现分类失败: %w", err)
	}

	path := filepath.Join(a.dataDir, store.CategoriesFile())
	if err := dataset.WriteCategories(path, tree); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"top_level": len(tree),
		"nodes":     model.Count(tree),
		"path":      path,
	}).Info("分类树已保存")

	if doSync, _ := cmd.Flags().GetBool("sync"); doSync {
		client := backend.NewClient(a.cfg, a.entry("backend"))
		if err := client.SyncCategories(ctx, store.Name, tree); err != nil {
			return err
		}
	}
	return nil
}

// spinnerWriter 写日志前先停下旋转动画并清掉当前行,写完再继续
type spinnerWriter struct {
	spinner *spinner.Spinner
	out     io.Writer
}

func (w *spinnerWriter) Write(p []byte) (int, error) {
	if !w.spinner.Active() {
		return w.out.Write(p)
	}
	w.spinner.Stop()
	defer w.spinner.Start()
	return w.out.Write(p)
}
