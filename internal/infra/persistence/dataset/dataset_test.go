package dataset

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var crawledAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func product(id string) *entity.ExtractedProduct {
	return &entity.ExtractedProduct{
		Product: &model.ScrapedProduct{
			StoreID:         "store-1",
			ExternalID:      id,
			Url:             "https://shop.test/product/" + id,
			Title:           "Producto " + id,
			Price:           0,
			PriceDetermined: true,
			Currency:        "CLP",
			Images:          []model.ScrapedImage{{ImageUrl: "a.jpg", Main: true}},
		},
		Strategy:  "json-ld",
		CrawledAt: crawledAt,
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	run, err := s.BeginRun(ctx, "store-1", "Shop", crawledAt)
	require.NoError(t, err)
	require.NoError(t, run.PushProduct(ctx, product("1")))
	require.NoError(t, run.PushProduct(ctx, product("2")))
	require.NoError(t, run.PushListingPods(ctx, []entity.ListingPod{
		{Title: "Producto 1", Url: "https://shop.test/product/1", Price: 19990, CategoryName: "Audio", Page: 1, CrawledAt: crawledAt},
	}))
	require.NoError(t, run.Finish(ctx, crawledAt.Add(time.Minute), map[string]int{"products": 2}))

	products, err := s.Products(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "1", products[0].ExternalID)
	assert.True(t, products[0].PriceDetermined, "free products keep their determined flag")
	assert.Equal(t, []model.ScrapedImage{{ImageUrl: "a.jpg", Main: true}}, products[0].Images)

	pods, err := s.ListingPods(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, int64(19990), pods[0].Price)
	assert.Equal(t, "Audio", pods[0].CategoryName)

	rec, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", rec.StoreName)
	require.NotNil(t, rec.FinishedAt)
	assert.JSONEq(t, `{"products":2}`, rec.StatsJSON)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_WithoutCreate(t *testing.T) {
	t.Parallel()
	_, err := Open(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONLWriter_Appends(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", PodsFile)
	w, err := OpenJSONL(path)
	require.NoError(t, err)
	require.NoError(t, w.PushProduct(context.Background(), product("1")))
	require.NoError(t, w.PushListingPods(context.Background(), []entity.ListingPod{{Title: "a"}, {Title: "b"}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestCategories_RoundTripAndMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "falabella-categories.json")
	tree := []model.CategoryNode{{
		Name:  "Tecnología",
		Depth: 1,
		Children: []model.CategoryNode{
			{Name: "Audio", Url: "https://shop.test/cat/audio", Children: []model.CategoryNode{}, Depth: 2},
		},
	}}
	require.NoError(t, WriteCategories(path, tree))
	got, err := ReadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, tree, got)

	_, err = ReadCategories(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"x","url":"","children":[],"depth":3}]`), 0o644))
	_, err = ReadCategories(path)
	assert.ErrorIs(t, err, model.ErrInvalidDepth)
}
