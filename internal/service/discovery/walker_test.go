package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/chrome/chrometest"
	"github.com/LouYuanbo1/storecrawler/internal/infra/crawler/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const home = `<html><body>
<button id="testId-HamburgerBtn-toggle">menu</button>
<div class="x-categoryTitle">  Tecnología </div>
<div class="x-categoryTitle">Vende con nosotros</div>
<div class="x-categoryTitle">Moda</div>
<div class="x-categoryTitle">Hogar</div>
</body></html>`

func panel(links string) string {
	return `<html><body><div class="scrollContainer-1">` + links + `</div></body></html>`
}

func link(href, text string) string {
	return `<a class="SecondLevelCategories-module_link" href="` + href + `">` + text + `</a>`
}

func newSite(t *testing.T) (*chrometest.Site, *config.Store) {
	t.Helper()
	store := config.Falabella()
	site := chrometest.NewSite()
	site.Pages[store.HomeURL] = home
	site.Clicks["Tecnología"] = panel(
		link("/falabella-cl/category/cat1/TV", "TV\n  y Video") +
			link("/falabella-cl/category/cat1/TV#top", "TV duplicate") +
			link("/falabella-cl/category/cat2/Audio", "Ver todo") +
			link("https://www.falabella.com/falabella-cl/category/cat3/Gamer", "Gamer") +
			`<a class="SecondLevelCategories-module_link" hidden href="/hidden">Oculto</a>`)
	site.Clicks["Moda"] = panel(
		link("/falabella-cl/category/cat9/Moda-Mujer", "Mujer") +
			link("/falabella-cl/category/cat10/All", "Ver todo Moda"))
	site.Failures["click-at"] = errors.New("no overlay")
	return site, &store
}

func TestWalker_Discover(t *testing.T) {
	t.Parallel()
	site, store := newSite(t)
	var seen []string
	w := NewWalker(chrometest.NewPage(site), store, config.Timeouts{},
		WithProgress(func(label string, _, _ int) { seen = append(seen, label) }))

	tree, err := w.Discover(context.Background())
	require.NoError(t, err)
	require.NoError(t, model.ValidateTree(tree))

	// Hogar 没有面板,点击失败后被跳过
	require.Len(t, tree, 2)
	assert.Equal(t, []string{"Tecnología", "Moda", "Hogar"}, seen)

	tech := tree[0]
	assert.Equal(t, "Tecnología", tech.Name)
	assert.Equal(t, "", tech.Url)
	assert.Equal(t, model.RootDepth, tech.Depth)
	assert.Equal(t, []model.CategoryNode{
		{Name: "TV y Video", Url: "https://www.falabella.com/falabella-cl/category/cat1/TV", Children: []model.CategoryNode{}, Depth: 2},
		{Name: "Gamer", Url: "https://www.falabella.com/falabella-cl/category/cat3/Gamer", Children: []model.CategoryNode{}, Depth: 2},
	}, tech.Children)

	// "Ver todo Moda" 包含查看全部的文本,不是子分类
	assert.Equal(t, "Moda", tree[1].Name)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "Mujer", tree[1].Children[0].Name)
}

func TestWalker_ViewAllLabel(t *testing.T) {
	t.Parallel()
	store := config.Falabella()
	w := NewWalker(chrometest.NewPage(chrometest.NewSite()), &store, config.Timeouts{})
	children := w.children([]types.Link{
		{Href: "/a", Text: "Ver todo"},
		{Href: "/b", Text: "VER TODO Tecnología"},
		{Href: "/c", Text: "Tecnología: ver todo"},
		{Href: "/d", Text: "Audio"},
	})
	require.Len(t, children, 1)
	assert.Equal(t, "Audio", children[0].Name)
}

func TestWalker_StalledLabelSkipped(t *testing.T) {
	t.Parallel()
	site, store := newSite(t)
	site.Stalls["Moda"] = true
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tree, err := NewWalker(chrometest.NewPage(site), store, config.Timeouts{Action: 20}).Discover(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "Tecnología", tree[0].Name)
	assert.NoError(t, ctx.Err())
}

func TestWalker_DiscoverIsRepeatable(t *testing.T) {
	t.Parallel()
	site, store := newSite(t)
	w := NewWalker(chrometest.NewPage(site), store, config.Timeouts{})

	pairs := func() map[string]string {
		tree, err := w.Discover(context.Background())
		require.NoError(t, err)
		out := map[string]string{}
		model.Walk(tree, func(n *model.CategoryNode) bool {
			if n.Depth == model.RootDepth+1 {
				out[n.Name] = n.Url
			}
			return true
		})
		return out
	}
	first := pairs()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, pairs())
}

func TestWalker_HomeFailure(t *testing.T) {
	t.Parallel()
	site, store := newSite(t)
	site.Failures["navigate:"+store.HomeURL] = errors.New("timeout")
	_, err := NewWalker(chrometest.NewPage(site), store, config.Timeouts{}).Discover(context.Background())
	assert.Error(t, err)
}

func TestWalker_MissingMenu(t *testing.T) {
	t.Parallel()
	site, store := newSite(t)
	site.Pages[store.HomeURL] = `<html><body>nothing</body></html>`
	_, err := NewWalker(chrometest.NewPage(site), store, config.Timeouts{}).Discover(context.Background())
	assert.Error(t, err)
}

func TestWalker_OnlyExcludedLabels(t *testing.T) {
	t.Parallel()
	site, store := newSite(t)
	site.Pages[store.HomeURL] = `<html><body><button id="testId-HamburgerBtn-toggle"></button>
<div class="categoryTitle">SEGUROS</div></body></html>`
	_, err := NewWalker(chrometest.NewPage(site), store, config.Timeouts{}).Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoMenu)
}
