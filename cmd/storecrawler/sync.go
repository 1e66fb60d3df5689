package main

import (
	"fmt"
	"path/filepath"

	"github.com/LouYuanbo1/storecrawler/internal/infra/backend"
	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/dataset"
	"github.com/spf13/cobra"
)

// NewSyncCmd 创建 sync 命令
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push a discovered category tree to the backend",
		Args:  cobra.NoArgs,
		RunE:  runSyncCmd,
	}
	cmd.Flags().StringP("store", "s", "falabella", "store name or slug")
	cmd.Flags().String("file", "", "category file (default: <data-dir>/<store>-categories.json)")
	return cmd
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("store")
	store, err := a.cfg.Store(name)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = filepath.Join(a.dataDir, store.CategoriesFile())
	}
	tree, err := dataset.ReadCategories(path)
	if err != nil {
		return fmt.Errorf("读取分类失败(先运行 discover): %w", err)
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	return backend.NewClient(a.cfg, a.entry("backend")).SyncCategories(ctx, store.Name, tree)
}
