package report

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/service/crawl"
	"github.com/nao1215/markdown"
)

// RunInfo 报告头部信息
type RunInfo struct {
	RunID      string
	Store      string
	Engine     string
	Filter     string
	Source     string
	Categories []string
	// Index 为空表示没有写入搜索索引
	Index string
	// IndexDocs 运行结束时索引中的文档数, -1 表示未知
	IndexDocs int64
}

// WriteMarkdown 输出一次爬取的 Markdown 摘要
func WriteMarkdown(w io.Writer, info RunInfo, stats crawl.Stats) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Report: " + info.Store)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", orDash(info.RunID)},
			{"Engine", orDash(info.Engine)},
			{"Category source", orDash(info.Source)},
			{"Filter", orDash(info.Filter)},
			{"Started", stats.Started.Format(time.RFC3339)},
			{"Duration", stats.Duration().Round(time.Second).String()},
		},
	})
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Tasks dispatched", strconv.Itoa(stats.Dispatched)},
			{"Tasks dropped (cap)", strconv.Itoa(stats.Dropped)},
			{"Listings visited", strconv.Itoa(stats.ListingsVisited)},
			{"Empty listings", strconv.Itoa(stats.EmptyListings)},
			{"Products queued", strconv.Itoa(stats.ProductsQueued)},
			{"Products extracted", strconv.Itoa(stats.ProductsExtracted)},
			{"Listing pods", strconv.Itoa(stats.ListingPods)},
			{"Extraction failures", strconv.Itoa(stats.ExtractionFailures)},
			{"Navigation failures", strconv.Itoa(stats.NavigationFailures)},
			{"Sync failures", strconv.Itoa(stats.SyncFailures)},
			{"Dataset failures", strconv.Itoa(stats.DatasetFailures)},
		},
	})
	md.PlainText("")

	if info.Index != "" {
		docs := "unknown"
		if info.IndexDocs >= 0 {
			docs = strconv.FormatInt(info.IndexDocs, 10)
		}
		md.H2("Search index")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Index", "Documents"},
			Rows:   [][]string{{info.Index, docs}},
		})
		md.PlainText("")
	}

	if len(stats.ByStrategy) > 0 {
		md.H2("Extraction strategies")
		md.PlainText("")
		names := make([]string, 0, len(stats.ByStrategy))
		for name := range stats.ByStrategy {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strconv.Itoa(stats.ByStrategy[name])})
		}
		md.Table(markdown.TableSet{Header: []string{"Strategy", "Products"}, Rows: rows})
		md.PlainText("")
	}

	if len(info.Categories) > 0 {
		md.H2("Categories")
		md.PlainText("")
		md.BulletList(info.Categories...)
		md.PlainText("")
	}
	return md.Build()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
