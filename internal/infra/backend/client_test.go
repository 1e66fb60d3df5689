package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *httptest.Server, dryRun bool) *Client {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Backend.ProductURL = srv.URL + "/api/sync-product"
	cfg.Backend.CategoriesURL = srv.URL + "/api/categories"
	cfg.Backend.DryRun = dryRun
	cfg.Backend.DryRunDelay = 0
	return NewClient(cfg, logrus.NewEntry(logrus.New()))
}

func TestClient_SyncProduct(t *testing.T) {
	t.Parallel()
	var got model.ScrapedProduct
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sync-product", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := &model.ScrapedProduct{ExternalID: "881", Title: "Parlante", Price: 19990, PriceDetermined: true, Currency: "CLP", Images: []model.ScrapedImage{}}
	require.NoError(t, newClient(t, srv, false).SyncProduct(context.Background(), p))
	assert.Equal(t, "881", got.ExternalID)
	assert.True(t, got.PriceDetermined)
}

func TestClient_StatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newClient(t, srv, false).SyncProduct(context.Background(), &model.ScrapedProduct{ExternalID: "1"})
	assert.ErrorIs(t, err, ErrStatus)
}

func TestClient_DryRunSendsNothing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	defer srv.Close()

	c := newClient(t, srv, true)
	assert.NoError(t, c.SyncProduct(context.Background(), &model.ScrapedProduct{ExternalID: "1"}))
	assert.NoError(t, c.SyncCategories(context.Background(), "Falabella", nil))
	_, err := c.GetMappedCategories(context.Background(), "Falabella")
	assert.ErrorIs(t, err, ErrDryRun)
}

func TestClient_Categories(t *testing.T) {
	t.Parallel()
	tree := []model.CategoryNode{{
		Name:  "Tecnología",
		Depth: 1,
		Children: []model.CategoryNode{
			{Name: "Audio", Url: "https://www.falabella.com/falabella-cl/category/cat2005/Audio", Children: []model.CategoryNode{}, Depth: 2},
		},
	}}
	var posted categoriesPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			assert.Equal(t, "Falabella", r.URL.Query().Get("store"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(tree)
		}
	}))
	defer srv.Close()

	c := newClient(t, srv, false)
	require.NoError(t, c.SyncCategories(context.Background(), "Falabella", tree))
	assert.Equal(t, "Falabella", posted.Store)
	assert.Equal(t, tree, posted.Categories)

	got, err := c.GetMappedCategories(context.Background(), "Falabella")
	require.NoError(t, err)
	assert.Equal(t, tree, got)
}
