package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storecrawler",
		Short: "Category discovery and product crawler for JS-rendered stores",
		Long: `storecrawler discovers the category tree of an online store by driving its
navigation menu in a headless browser, then crawls category listings and product
detail pages, extracting normalized product records.

Typical flow:
  storecrawler discover --store falabella
  storecrawler scrape --store falabella --filter audio --report report.md`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file (.json or .yaml), default: "+config.DefaultConfigPath())
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("data-dir", "", "directory for category files, datasets and screenshots")
	cmd.PersistentFlags().String("engine", "", "browser engine: rod, chromedp or colly")

	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewStoresCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewRunsCmd())
	return cmd
}

// Execute 运行根命令,出错时以非零状态退出
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 子命令共享的配置和日志
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	dataDir string
}

func (a *app) entry(component string) *logrus.Entry {
	return a.log.WithField("component", component)
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.Storage.Dir = v
	}
	if v, _ := flags.GetString("engine"); v != "" {
		cfg.Engine = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置错误: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, dataDir: cfg.DataDir()}, nil
}

// loadConfig 依次使用 --config、XDG 配置文件、内置配置
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.LoadFile(config.DefaultConfigPath())
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("检查配置文件失败: %w", err)
	}
	return config.ParseConfig(appConfig)
}

// signalContext Ctrl+C 或 SIGTERM 时取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
