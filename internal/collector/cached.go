package collector

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/marketbias/internal/core"
)

// TTLs holds cache lifetimes per kind of data.
type TTLs struct {
	Candles     time.Duration
	PreviousDay time.Duration
	News        time.Duration
}

type cacheEntry[T any] struct {
	value T
	at    time.Time
}

// CachedSource wraps a data source with per-kind TTL caching.
type CachedSource struct {
	source DataSource
	ttl    TTLs
	now    func() time.Time

	mu       sync.Mutex
	candles  map[string]cacheEntry[[]core.Candle]
	previous map[core.Index]cacheEntry[core.PreviousDayData]
	news     *cacheEntry[[]core.RawNewsItem]
}

// NewCachedSource creates a cached data source.
func NewCachedSource(source DataSource, ttl TTLs) *CachedSource {
	return &CachedSource{
		source:   source,
		ttl:      ttl,
		now:      time.Now,
		candles:  make(map[string]cacheEntry[[]core.Candle]),
		previous: make(map[core.Index]cacheEntry[core.PreviousDayData]),
	}
}

// Name reports the wrapped source name.
func (c *CachedSource) Name() string {
	return c.source.Name()
}

// FetchOHLC returns cached candles or fetches from the underlying source.
func (c *CachedSource) FetchOHLC(ctx context.Context, index core.Index, tf core.Timeframe) ([]core.Candle, error) {
	key := string(index) + "/" + string(tf)

	c.mu.Lock()
	if e, ok := c.candles[key]; ok && c.fresh(e.at, c.ttl.Candles) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	candles, err := c.source.FetchOHLC(ctx, index, tf)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.candles[key] = cacheEntry[[]core.Candle]{value: candles, at: c.now()}
	c.mu.Unlock()
	return candles, nil
}

// FetchPreviousDay returns the cached previous session or fetches it.
func (c *CachedSource) FetchPreviousDay(ctx context.Context, index core.Index) (core.PreviousDayData, error) {
	c.mu.Lock()
	if e, ok := c.previous[index]; ok && c.fresh(e.at, c.ttl.PreviousDay) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	prev, err := c.source.FetchPreviousDay(ctx, index)
	if err != nil {
		return core.PreviousDayData{}, err
	}

	c.mu.Lock()
	c.previous[index] = cacheEntry[core.PreviousDayData]{value: prev, at: c.now()}
	c.mu.Unlock()
	return prev, nil
}

// FetchNews returns cached headlines or fetches them.
func (c *CachedSource) FetchNews(ctx context.Context) ([]core.RawNewsItem, error) {
	c.mu.Lock()
	if c.news != nil && c.fresh(c.news.at, c.ttl.News) {
		news := c.news.value
		c.mu.Unlock()
		return news, nil
	}
	c.mu.Unlock()

	news, err := c.source.FetchNews(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.news = &cacheEntry[[]core.RawNewsItem]{value: news, at: c.now()}
	c.mu.Unlock()
	return news, nil
}

// Invalidate drops every cached entry.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candles = make(map[string]cacheEntry[[]core.Candle])
	c.previous = make(map[core.Index]cacheEntry[core.PreviousDayData])
	c.news = nil
}

func (c *CachedSource) fresh(at time.Time, ttl time.Duration) bool {
	return c.now().Sub(at) < ttl
}
