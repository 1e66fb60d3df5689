package extract

import (
	"testing"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ldPage(blocks ...string) string {
	html := "<html><head>"
	for _, b := range blocks {
		html += `<script type="application/ld+json">` + b + `</script>`
	}
	return html + "</head></html>"
}

func TestJSONLD_Shapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		page      string
		wantID    string
		wantPrice float64
		wantOK    bool
		wantCur   string
		wantBrand string
		wantImgs  []model.ScrapedImage
	}{
		{
			name:      "graph container with typed array",
			page:      ldPage(`{"@graph":[{"@type":"BreadcrumbList"},{"@type":["Product","Thing"],"productID":4455,"name":"TV","offers":[{"lowPrice":"299990.5"}],"brand":"Samsung","image":"tv.jpg"}]}`),
			wantID:    "4455",
			wantPrice: 299990.5,
			wantOK:    true,
			wantCur:   "CLP",
			wantBrand: "Samsung",
			wantImgs:  []model.ScrapedImage{{ImageUrl: "tv.jpg", Main: true}},
		},
		{
			name:      "top level array and second block",
			page:      ldPage(`{"@type":"Organization"}`, `[{"@type":"WebPage"},{"@type":"Product","name":"Cam","offers":{"price":0,"lowPrice":15000,"priceCurrency":"USD"}}]`),
			wantID:    model.UnknownExternalID,
			wantPrice: 15000,
			wantOK:    true,
			wantCur:   "USD",
			wantImgs:  []model.ScrapedImage{},
		},
		{
			name:      "unparseable price",
			page:      ldPage(`{"@type":"Product","sku":"1","offers":{"price":"consultar"},"image":{"url":"x.jpg"}}`),
			wantID:    "1",
			wantPrice: 0,
			wantOK:    false,
			wantCur:   "CLP",
			wantImgs:  []model.ScrapedImage{{ImageUrl: "x.jpg", Main: true}},
		},
		{
			name:      "price with trailing text",
			page:      ldPage(`{"@type":"Product","sku":"2","offers":{"price":"19990 CLP"}}`),
			wantID:    "2",
			wantPrice: 19990,
			wantOK:    true,
			wantCur:   "CLP",
			wantImgs:  []model.ScrapedImage{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewJSONLD("CLP").Attempt(snapshot(t, tt.page), taskContext())
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantID, p.ExternalID)
			assert.Equal(t, tt.wantPrice, p.Price)
			assert.Equal(t, tt.wantOK, p.PriceDetermined)
			assert.Equal(t, tt.wantCur, p.Currency)
			assert.Equal(t, tt.wantBrand, p.BrandName)
			assert.Equal(t, tt.wantImgs, p.Images)
		})
	}
}

func TestJSONLD_NoProduct(t *testing.T) {
	t.Parallel()
	p, err := NewJSONLD("CLP").Attempt(snapshot(t, ldPage(`{"@type":"Organization"}`)), taskContext())
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestJSONLD_MalformedOnlyErrorsWithoutProduct(t *testing.T) {
	t.Parallel()
	_, err := NewJSONLD("CLP").Attempt(snapshot(t, ldPage(`{broken`)), taskContext())
	assert.Error(t, err)

	p, err := NewJSONLD("CLP").Attempt(snapshot(t, ldPage(`{broken`, `{"@type":"Product","sku":"9"}`)), taskContext())
	require.NoError(t, err)
	assert.Equal(t, "9", p.ExternalID)
}

func TestLeadingFloat(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]float64{
		"19990":    19990,
		" 12.5abc": 12.5,
		".5":       0.5,
		"-3":       -3,
		"1e3":      1000,
	} {
		got, ok := leadingFloat(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := leadingFloat("abc")
	assert.False(t, ok)
}

func TestAppState_ParsesButYieldsNothing(t *testing.T) {
	t.Parallel()
	page := `<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{}}}</script>`
	p, err := NewAppState().Attempt(snapshot(t, page), taskContext())
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewAppState().Attempt(snapshot(t, `<script id="__NEXT_DATA__">{x</script>`), taskContext())
	assert.Error(t, err)
}
