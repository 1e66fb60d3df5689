package extract

import (
	"testing"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productURL = "https://www.falabella.com/falabella-cl/product/123/X"

func snapshot(t *testing.T, html string) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(productURL, html)
	require.NoError(t, err)
	return s
}

func taskContext() TaskContext {
	return TaskContext{Url: productURL, CategoryName: "Audio"}
}

func falabella() *config.Store {
	s := config.Falabella()
	return &s
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panic" }
func (panicStrategy) Attempt(*Snapshot, TaskContext) (*model.ScrapedProduct, error) {
	panic("boom")
}

func TestPipeline_JSONLDWins(t *testing.T) {
	t.Parallel()
	store := falabella()
	html := `<html><head><title>Page</title>
<script type="application/ld+json">{"@type":"Product","sku":"881","name":"Parlante","offers":{"price":"19990","priceCurrency":"CLP"},"brand":{"name":"JBL"},"image":["a.jpg","b.jpg"]}</script>
</head><body><span class="copy10">$ 1.000</span></body></html>`

	res, ok := New(store).Extract(snapshot(t, html), taskContext())
	require.True(t, ok)
	assert.Equal(t, StrategyJSONLD, res.Strategy)

	p := res.Product
	assert.Equal(t, store.ID, p.StoreID)
	assert.Equal(t, "881", p.ExternalID)
	assert.Equal(t, "Parlante", p.Title)
	assert.Equal(t, 19990.0, p.Price)
	assert.True(t, p.PriceDetermined)
	assert.Equal(t, "CLP", p.Currency)
	assert.Equal(t, "JBL", p.BrandName)
	assert.Equal(t, "Audio", p.CategoryName)
	assert.Equal(t, productURL, p.Url)
	assert.Equal(t, []model.ScrapedImage{
		{ImageUrl: "a.jpg", Main: true},
		{ImageUrl: "b.jpg", Main: false},
	}, p.Images)
	assert.Contains(t, p.AdditionalData, "raw_json_ld")
}

func TestPipeline_DOMFallback(t *testing.T) {
	t.Parallel()
	store := falabella()
	html := `<html><head><title>  Audífonos X  </title></head>
<body><span class="copy10">$ 24.990</span><span class="copy10">$ 1</span></body></html>`

	res, ok := New(store).Extract(snapshot(t, html), taskContext())
	require.True(t, ok)
	assert.Equal(t, StrategyDOM, res.Strategy)
	assert.Equal(t, "Audífonos X", res.Product.Title)
	assert.Equal(t, 24990.0, res.Product.Price)
	assert.True(t, res.Product.PriceDetermined)
	assert.Equal(t, model.UnknownExternalID, res.Product.ExternalID)
	assert.Equal(t, "CLP", res.Product.Currency)
	assert.NotNil(t, res.Product.Images)
	assert.Empty(t, res.Product.Images)
}

func TestPipeline_DOMWithoutPrice(t *testing.T) {
	t.Parallel()
	res, ok := New(falabella()).Extract(snapshot(t, `<html><head><title>T</title></head></html>`), taskContext())
	require.True(t, ok)
	assert.Equal(t, 0.0, res.Product.Price)
	assert.False(t, res.Product.PriceDetermined)
}

func TestPipeline_MalformedJSONLDFallsThrough(t *testing.T) {
	t.Parallel()
	html := `<html><head><title>Roto</title>
<script type="application/ld+json">{"@type": "Product",</script>
<script id="__NEXT_DATA__" type="application/json">{not json</script>
</head></html>`
	res, ok := New(falabella()).Extract(snapshot(t, html), taskContext())
	require.True(t, ok)
	assert.Equal(t, StrategyDOM, res.Strategy)
	assert.Equal(t, "Roto", res.Product.Title)
}

func TestPipeline_PanicIsContained(t *testing.T) {
	t.Parallel()
	store := falabella()
	p := New(store, WithStrategies(panicStrategy{}, NewDOM(store.Selectors.Price, "CLP")))
	res, ok := p.Extract(snapshot(t, `<title>ok</title>`), taskContext())
	require.True(t, ok)
	assert.Equal(t, StrategyDOM, res.Strategy)
}

func TestPipeline_NoStrategySucceeds(t *testing.T) {
	t.Parallel()
	p := New(falabella(), WithStrategies(NewJSONLD("CLP"), NewAppState()))
	_, ok := p.Extract(snapshot(t, `<title>nada</title>`), taskContext())
	assert.False(t, ok)

	_, ok = New(falabella()).Extract(&Snapshot{Url: productURL}, taskContext())
	assert.False(t, ok)
}

func TestPipeline_DefaultOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{StrategyJSONLD, StrategyAppState, StrategyDOM}, New(falabella()).Strategies())
}
