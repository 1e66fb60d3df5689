package crawl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome/chrometest"
	"github.com/LouYuanbo1/storecrawler/internal/service/category"
	"github.com/LouYuanbo1/storecrawler/internal/service/extract"
	"github.com/LouYuanbo1/storecrawler/internal/service/pagination"
	"github.com/LouYuanbo1/storecrawler/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	listingURL = "https://www.falabella.com/falabella-cl/category/cat2005/Audio"
	productFmt = "https://www.falabella.com/falabella-cl/product/%d/Parlante"
	nextArrow  = `<button id="testId-pagination-top-arrow-right">›</button>`
)

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) SyncProduct(ctx context.Context, p *model.ScrapedProduct) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type memoryDataset struct {
	mu       sync.Mutex
	products []*entity.ExtractedProduct
	pods     []entity.ListingPod
}

func (d *memoryDataset) PushProduct(ctx context.Context, p *entity.ExtractedProduct) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.products = append(d.products, p)
	return nil
}

func (d *memoryDataset) PushListingPods(ctx context.Context, pods []entity.ListingPod) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pods = append(d.pods, pods...)
	return nil
}

func (d *memoryDataset) urls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, p := range d.products {
		out = append(out, p.Product.Url)
	}
	sort.Strings(out)
	return out
}

func listingPage(next bool, ids ...int) string {
	html := "<html><body>"
	for _, id := range ids {
		html += fmt.Sprintf(`<a class="pod-link" href="/falabella-cl/product/%d/Parlante#reviews"><b>Parlante %d</b><span>$ %d.990</span></a>`, id, id, id)
	}
	html += `<a href="/falabella-cl/category/cat1/Otro">otro</a>`
	if next {
		html += nextArrow
	}
	return html + "</body></html>"
}

func productPage(id int) string {
	return fmt.Sprintf(`<html><head><script type="application/ld+json">{"@type":"Product","sku":"%d","name":"Parlante %d","offers":{"price":"%d990"}}</script></head></html>`, id, id, id)
}

func fixture(t *testing.T, maxPages int, opts ...Option) (*Controller, *chrometest.Site, *chrometest.Browser, *pagination.Paginator) {
	t.Helper()
	store := config.Falabella()
	site := chrometest.NewSite()
	browser := chrometest.NewBrowser(site)
	paginator := pagination.New(&store, maxPages, true)
	opts = append([]Option{WithWorkers(2), WithMaxTasks(0)}, opts...)
	c, err := New(browser, &store, config.Timeouts{}, paginator, extract.New(&store), opts...)
	require.NoError(t, err)
	return c, site, browser, paginator
}

func seeds(p *pagination.Paginator) []param.CrawlTask {
	return SeedTasks([]category.Seed{{Url: listingURL, CategoryName: "Audio"}}, p)
}

func TestController_ListingsAndProducts(t *testing.T) {
	t.Parallel()
	data := &memoryDataset{}
	syncer := new(MockSyncer)
	syncer.On("SyncProduct", mock.Anything, mock.Anything).Return(nil)

	c, site, browser, p := fixture(t, 5, WithSyncer(syncer), WithDataset(data), WithPodSink(data))
	site.Pages[listingURL] = listingPage(true, 1, 2)
	site.Pages[listingURL+"?page=2"] = listingPage(false, 2, 3)
	for id := 1; id <= 3; id++ {
		site.Pages[fmt.Sprintf(productFmt, id)] = productPage(id)
	}

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.True(t, browser.Balanced())

	assert.Equal(t, 2, stats.ListingsVisited)
	assert.Equal(t, 3, stats.ProductsExtracted)
	assert.Equal(t, 5, stats.Dispatched)
	assert.Equal(t, 3, stats.ByStrategy[extract.StrategyJSONLD])
	assert.Equal(t, 4, stats.ListingPods)
	assert.Equal(t, []string{
		fmt.Sprintf(productFmt, 1),
		fmt.Sprintf(productFmt, 2),
		fmt.Sprintf(productFmt, 3),
	}, data.urls())
	syncer.AssertNumberOfCalls(t, "SyncProduct", 3)

	for _, pr := range data.products {
		assert.Equal(t, "Audio", pr.Product.CategoryName)
		assert.True(t, pr.Product.PriceDetermined)
	}
	require.NotEmpty(t, data.pods)
	assert.Equal(t, "Parlante 1", data.pods[0].Title)
	assert.Equal(t, int64(1990), data.pods[0].Price)
	assert.Equal(t, 1, data.pods[0].Page)
}

func TestController_StopsAtMaxPages(t *testing.T) {
	t.Parallel()
	c, site, _, p := fixture(t, 3)
	site.Pages[listingURL] = listingPage(true, 1)
	for n := 2; n <= 6; n++ {
		site.Pages[fmt.Sprintf("%s?page=%d", listingURL, n)] = listingPage(true, 1)
	}

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ListingsVisited)
	var listings []string
	for _, v := range site.Visits() {
		if strings.HasPrefix(v, listingURL) {
			listings = append(listings, v)
		}
	}
	sort.Strings(listings)
	assert.Equal(t, []string{listingURL, listingURL + "?page=2", listingURL + "?page=3"}, listings)
}

func TestController_EmptyListingEndsCategory(t *testing.T) {
	t.Parallel()
	c, site, _, p := fixture(t, 5)
	site.Pages[listingURL] = `<html><body>` + nextArrow + `</body></html>`

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EmptyListings)
	assert.Equal(t, []string{listingURL}, site.Visits())
}

func TestController_SyncFailureStillReachesDataset(t *testing.T) {
	t.Parallel()
	data := &memoryDataset{}
	syncer := new(MockSyncer)
	syncer.On("SyncProduct", mock.Anything, mock.Anything).Return(errors.New("backend down"))

	c, site, _, p := fixture(t, 1, WithSyncer(syncer), WithDataset(data))
	site.Pages[listingURL] = listingPage(false, 7)
	site.Pages[fmt.Sprintf(productFmt, 7)] = productPage(7)

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SyncFailures)
	assert.Len(t, data.urls(), 1)
}

func TestController_NavigationFailureIsCounted(t *testing.T) {
	t.Parallel()
	c, site, _, p := fixture(t, 1)
	site.Pages[listingURL] = listingPage(false, 8)

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NavigationFailures)
	assert.Equal(t, 0, stats.ProductsExtracted)
}

func TestController_MaxTasks(t *testing.T) {
	t.Parallel()
	c, site, _, p := fixture(t, 5, WithMaxTasks(3), WithWorkers(1))
	site.Pages[listingURL] = listingPage(true, 1, 2, 3, 4)
	for id := 1; id <= 4; id++ {
		site.Pages[fmt.Sprintf(productFmt, id)] = productPage(id)
	}

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Dispatched)
	assert.Equal(t, 2, stats.ProductsExtracted)
	assert.Equal(t, 3, stats.Dropped)
}

func TestController_CancelledContext(t *testing.T) {
	t.Parallel()
	c, site, _, p := fixture(t, 5)
	site.Pages[listingURL] = listingPage(false, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Run(ctx, seeds(p))
		assert.ErrorIs(t, err, context.Canceled)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSeedTasks_ReadsPage(t *testing.T) {
	t.Parallel()
	store := config.Falabella()
	p := pagination.New(&store, 5, true)
	tasks := SeedTasks([]category.Seed{{Url: listingURL + "?page=3", CategoryName: "Audio"}}, p)
	require.Len(t, tasks, 1)
	lt, ok := tasks[0].(*param.ListingTask)
	require.True(t, ok)
	assert.Equal(t, 3, lt.Page)
}

func TestController_StampsCrawlTime(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &memoryDataset{}
	c, site, _, p := fixture(t, 1, WithDataset(data), WithPodSink(data), withClock(func() time.Time { return fixed }))
	site.Pages[listingURL] = listingPage(false, 7)
	site.Pages[fmt.Sprintf(productFmt, 7)] = productPage(7)

	stats, err := c.Run(context.Background(), seeds(p))
	require.NoError(t, err)
	assert.Equal(t, fixed, stats.Started)
	assert.Equal(t, fixed, stats.Finished)
	assert.Zero(t, stats.Duration())

	require.Len(t, data.products, 1)
	assert.Equal(t, fixed, data.products[0].CrawledAt)
	require.Len(t, data.pods, 1)
	assert.Equal(t, fixed, data.pods[0].CrawledAt)
}
