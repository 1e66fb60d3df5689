package crawl

import (
	"sync"
	"time"
)

// Stats 一次爬取的计数
type Stats struct {
	Dispatched         int            `json:"dispatched"`
	Dropped            int            `json:"dropped"`
	ListingsVisited    int            `json:"listings_visited"`
	EmptyListings      int            `json:"empty_listings"`
	ProductsQueued     int            `json:"products_queued"`
	ProductsExtracted  int            `json:"products_extracted"`
	ExtractionFailures int            `json:"extraction_failures"`
	NavigationFailures int            `json:"navigation_failures"`
	SyncFailures       int            `json:"sync_failures"`
	DatasetFailures    int            `json:"dataset_failures"`
	ListingPods        int            `json:"listing_pods"`
	ByStrategy         map[string]int `json:"by_strategy"`
	Started            time.Time      `json:"started"`
	Finished           time.Time      `json:"finished"`
}

func (s Stats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

type counter struct {
	mu    sync.Mutex
	stats Stats
}

func newCounter(started time.Time) *counter {
	return &counter{stats: Stats{ByStrategy: map[string]int{}, Started: started}}
}

func (c *counter) add(fn func(s *Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

func (c *counter) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.ByStrategy = make(map[string]int, len(c.stats.ByStrategy))
	for k, v := range c.stats.ByStrategy {
		s.ByStrategy[k] = v
	}
	return s
}
