package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/es"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// errSearchDisabled 配置中没有启用 Elasticsearch
var errSearchDisabled = errors.New("elasticsearch is disabled in the configuration")

// NewSearchCmd 创建 search 命令
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search crawled products in the Elasticsearch index",
		Long: `Search runs a full-text query over title, brand, category and description of
the products indexed by scrape. Without text it lists the most recent matches of
the whole index. --id fetches a single document by its id (store_id:external_id).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSearchCmd,
	}
	cmd.Flags().StringP("store", "s", "", "only products of this store (name or slug)")
	cmd.Flags().IntP("size", "n", 10, "number of results")
	cmd.Flags().String("id", "", "fetch one document by id")
	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if !a.cfg.Elasticsearch.Enabled {
		return errSearchDisabled
	}
	flags := cmd.Flags()
	var storeID string
	if name, _ := flags.GetString("store"); name != "" {
		store, err := a.cfg.Store(name)
		if err != nil {
			return err
		}
		storeID = store.ID
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	client, err := es.InitTypedEsClient[*model.ProductDoc](a.cfg, a.entry("elasticsearch"))
	if err != nil {
		return err
	}

	if id, _ := flags.GetString("id"); id != "" {
		doc, err := client.GetDoc(ctx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("文档 %s 不存在", id)
		}
		return renderDocs(cmd.OutOrStdout(), []*model.ProductDoc{doc}, 1)
	}

	var text string
	if len(args) > 0 {
		text = args[0]
	}
	size, _ := flags.GetInt("size")
	docs, total, err := client.SearchDoc(ctx, es.ProductQuery(text, storeID), 0, max(size, 1))
	if err != nil {
		return err
	}
	return renderDocs(cmd.OutOrStdout(), docs, total)
}

func renderDocs(w io.Writer, docs []*model.ProductDoc, total int64) error {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		price := "-"
		if d.PriceDetermined {
			price = strconv.FormatFloat(d.Price, 'f', -1, 64) + " " + d.Currency
		}
		rows = append(rows, []string{d.GetID(), d.Title, strings.TrimSpace(d.BrandName), d.CategoryName, price, d.Url})
	}
	return markdown.NewMarkdown(w).
		PlainText(fmt.Sprintf("%d of %d products", len(docs), total)).
		PlainText("").
		Table(markdown.TableSet{
			Header: []string{"ID", "Title", "Brand", "Category", "Price", "URL"},
			Rows:   rows,
		}).
		Build()
}
