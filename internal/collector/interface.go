package collector

import (
	"context"
	"time"

	"github.com/newthinker/marketbias/internal/core"
)

// Config holds data source configuration
type Config struct {
	Provider string
	Seed     int64
	BaseURL  string
	Retries  int
	Timeout  time.Duration // per request
}

// DataSource supplies the raw inputs for bias scoring
type DataSource interface {
	// Metadata
	Name() string

	// Data fetching
	FetchOHLC(ctx context.Context, index core.Index, tf core.Timeframe) ([]core.Candle, error)
	FetchPreviousDay(ctx context.Context, index core.Index) (core.PreviousDayData, error)
	// FetchNews returns headlines without sentiment attached
	FetchNews(ctx context.Context) ([]core.RawNewsItem, error)
}
