package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/dataset"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// NewRunsCmd 创建 runs 命令
func NewRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <run-id>",
		Short: "Show a stored scrape run from the sqlite dataset",
		Long: `Runs prints the run record, the extracted products and the number of listing
pods stored by scrape for the given run id (printed at the end of scrape and in
the report).`,
		Args: cobra.ExactArgs(1),
		RunE: runRunsCmd,
	}
}

func runRunsCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	opts := dataset.DefaultOptions()
	opts.CreateIfNotExists = false
	opts.EnableWAL = !a.cfg.Storage.DisableWAL
	db, err := dataset.Open(a.dataDir, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	products, err := db.Products(ctx, rec.ID)
	if err != nil {
		return err
	}
	pods, err := db.ListingPods(ctx, rec.ID)
	if err != nil {
		return err
	}

	finished := "running or interrupted"
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.Format(time.RFC3339)
	}
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		price := "-"
		if p.PriceDetermined {
			price = strconv.FormatFloat(p.Price, 'f', -1, 64) + " " + p.Currency
		}
		rows = append(rows, []string{p.ExternalID, p.Title, p.CategoryName, price})
	}
	return markdown.NewMarkdown(cmd.OutOrStdout()).
		H1(fmt.Sprintf("Run %s", rec.ID)).
		Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"Store", rec.StoreName},
				{"Started", rec.StartedAt.Format(time.RFC3339)},
				{"Finished", finished},
				{"Products", strconv.Itoa(len(products))},
				{"Listing pods", strconv.Itoa(len(pods))},
			},
		}).
		H2("Products").
		Table(markdown.TableSet{
			Header: []string{"External ID", "Title", "Category", "Price"},
			Rows:   rows,
		}).
		Build()
}
