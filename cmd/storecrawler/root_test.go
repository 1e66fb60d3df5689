package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/persistence/dataset"
	"github.com/briandowns/spinner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\nstorage:\n  sqlite: false\n  jsonl: false\n"), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()
	names := map[string]bool{}
	for _, c := range NewRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"discover", "scrape", "sync", "stores", "search", "runs"} {
		assert.True(t, names[want], want)
	}
}

func TestStoresCmd(t *testing.T) {
	t.Parallel()
	out, err := run(t, "stores", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "falabella")
	assert.Contains(t, out, "123e4567-e89b-12d3-a456-426614174000")
}

func TestDiscoverCmd_RequiresStore(t *testing.T) {
	t.Parallel()
	_, err := run(t, "discover", "--config", writeConfig(t))
	assert.Error(t, err)
}

func TestScrapeCmd_MissingCategoryFile(t *testing.T) {
	t.Parallel()
	_, err := run(t, "scrape", "--config", writeConfig(t), "--data-dir", t.TempDir())
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestScrapeCmd_UnknownStore(t *testing.T) {
	t.Parallel()
	_, err := run(t, "scrape", "--config", writeConfig(t), "--store", "nope")
	assert.Error(t, err)
}

func TestScrapeCmd_FilterWithoutMatches(t *testing.T) {
	t.Parallel()
	_, err := run(t, "scrape", "--config", writeConfig(t), "--data-dir", t.TempDir(),
		"--source", "config", "--filter", "no-such-category")
	assert.NoError(t, err)
}

func TestSyncCmd_MissingCategoryFile(t *testing.T) {
	t.Parallel()
	_, err := run(t, "sync", "--config", writeConfig(t), "--data-dir", t.TempDir())
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestSpinnerWriter_PassesThrough(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(&buf))
	var logs bytes.Buffer
	w := &spinnerWriter{spinner: s, out: &logs}

	n, err := w.Write([]byte("level=info msg=分类树已保存\n"))
	require.NoError(t, err)
	assert.Equal(t, len("level=info msg=分类树已保存\n"), n)
	assert.Equal(t, "level=info msg=分类树已保存\n", logs.String())
	assert.False(t, s.Active())
}

func TestSearchCmd_Disabled(t *testing.T) {
	t.Parallel()
	_, err := run(t, "search", "audio", "--config", writeConfig(t))
	assert.ErrorIs(t, err, errSearchDisabled)
}

func TestRenderDocs(t *testing.T) {
	t.Parallel()
	priced := &model.ProductDoc{StoreID: "s", ExternalID: "1", Title: "Parlante", Price: 19990, PriceDetermined: true, Currency: "CLP"}
	unpriced := &model.ProductDoc{StoreID: "s", ExternalID: "2", Title: "Audífonos"}

	var out bytes.Buffer
	require.NoError(t, renderDocs(&out, []*model.ProductDoc{priced, unpriced}, 7))
	assert.Contains(t, out.String(), "2 of 7 products")
	assert.Contains(t, out.String(), "19990 CLP")
	assert.Contains(t, out.String(), "s:2")
}

func TestRunsCmd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	db, err := dataset.Open(dir, dataset.DefaultOptions())
	require.NoError(t, err)
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r, err := db.BeginRun(ctx, "store-1", "Falabella", started)
	require.NoError(t, err)
	p := &model.ScrapedProduct{StoreID: "store-1", ExternalID: "881234", Title: "Parlante", CategoryName: "Audio", Currency: "CLP", Images: []model.ScrapedImage{}}
	p.SetPrice(19990, true)
	require.NoError(t, r.PushProduct(ctx, &entity.ExtractedProduct{Product: p, Strategy: "json-ld", CrawledAt: started}))
	require.NoError(t, r.Finish(ctx, started.Add(time.Minute), map[string]int{"products": 1}))
	require.NoError(t, db.Close())

	out, err := run(t, "runs", r.ID, "--config", writeConfig(t), "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, r.ID)
	assert.Contains(t, out, "881234")
	assert.Contains(t, out, "19990 CLP")
	assert.Contains(t, out, "2025-03-01T12:01:00Z")

	_, err = run(t, "runs", "missing", "--config", writeConfig(t), "--data-dir", dir)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestRunsCmd_NoDatabase(t *testing.T) {
	t.Parallel()
	_, err := run(t, "runs", "any", "--config", writeConfig(t), "--data-dir", t.TempDir())
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}
