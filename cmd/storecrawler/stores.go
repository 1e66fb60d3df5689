package main

import (
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// NewStoresCmd 创建 stores 命令
func NewStoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(a.cfg.Stores))
			for _, s := range a.cfg.Stores {
				rows = append(rows, []string{s.Slug, s.Name, s.ID, s.HomeURL, strconv.Itoa(len(s.Categories))})
			}
			return markdown.NewMarkdown(cmd.OutOrStdout()).
				Table(markdown.TableSet{
					Header: []string{"Slug", "Name", "ID", "Home", "Seed categories"},
					Rows:   rows,
				}).
				Build()
		},
	}
}
