// Package live reads index candles from the Yahoo Finance chart API and
// falls back to another source whenever that fails.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/newthinker/marketbias/internal/collector"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/levels"
	"go.uber.org/zap"
)

const (
	// Name is the registry name of the live source.
	Name = "live"

	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultBackoff = 500 * time.Millisecond
	defaultTimeout = 10 * time.Second
)

var symbols = map[core.Index]string{
	core.IndexNifty:     "^NSEI",
	core.IndexBankNifty: "^NSEBANK",
}

type chartQuery struct {
	interval string
	rng      string
}

var queries = map[core.Timeframe]chartQuery{
	core.Timeframe1D:  {"1d", "3mo"},
	core.Timeframe4H:  {"60m", "1mo"},
	core.Timeframe1H:  {"60m", "5d"},
	core.Timeframe15m: {"15m", "5d"},
}

// Source implements collector.DataSource over the Yahoo chart endpoint.
type Source struct {
	client   *http.Client
	baseURL  string
	retries  int
	backoff  time.Duration
	fallback collector.DataSource
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a live source. fallback serves every request the chart API
// cannot, and always serves news.
func New(cfg collector.Config, fallback collector.DataSource, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Source{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:  base,
		retries:  max(cfg.Retries, 0),
		backoff:  defaultBackoff,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Source) Name() string {
	return Name
}

// FetchOHLC fetches candles, building 4H bars from hourly ones.
func (s *Source) FetchOHLC(ctx context.Context, index core.Index, tf core.Timeframe) ([]core.Candle, error) {
	candles, err := s.fetchCandles(ctx, index, tf)
	if err != nil {
		s.logger.Warn("live candles unavailable, using fallback",
			zap.String("index", string(index)),
			zap.String("timeframe", string(tf)),
			zap.Error(err),
		)
		return s.fallback.FetchOHLC(ctx, index, tf)
	}
	return candles, nil
}

// FetchPreviousDay returns the last daily bar that opened before today's session.
func (s *Source) FetchPreviousDay(ctx context.Context, index core.Index) (core.PreviousDayData, error) {
	prev, err := s.previousDay(ctx, index)
	if err != nil {
		s.logger.Warn("live previous day unavailable, using fallback",
			zap.String("index", string(index)),
			zap.Error(err),
		)
		return s.fallback.FetchPreviousDay(ctx, index)
	}
	return prev, nil
}

// FetchNews is served by the fallback; there is no live headline feed.
func (s *Source) FetchNews(ctx context.Context) ([]core.RawNewsItem, error) {
	return s.fallback.FetchNews(ctx)
}

func (s *Source) fetchCandles(ctx context.Context, index core.Index, tf core.Timeframe) ([]core.Candle, error) {
	q, ok := queries[tf]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("unsupported timeframe %q", tf))
	}
	candles, err := s.fetchChart(ctx, index, q)
	if err != nil {
		return nil, err
	}
	if tf == core.Timeframe4H {
		candles = Aggregate4H(candles)
	}
	if len(candles) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", index, tf))
	}
	return candles, nil
}

func (s *Source) previousDay(ctx context.Context, index core.Index) (core.PreviousDayData, error) {
	daily, err := s.fetchCandles(ctx, index, core.Timeframe1D)
	if err != nil {
		return core.PreviousDayData{}, err
	}

	today := levels.SessionOpen(s.now())
	for i := len(daily) - 1; i >= 0; i-- {
		if daily[i].Time.Before(today) {
			c := daily[i]
			return core.PreviousDayData{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Time: c.Time}, nil
		}
	}
	return core.PreviousDayData{}, core.WrapError(core.ErrNoData, fmt.Errorf("no completed session for %s", index))
}

// fetchChart retries with exponential backoff until the context ends.
func (s *Source) fetchChart(ctx context.Context, index core.Index, q chartQuery) ([]core.Candle, error) {
	symbol, ok := symbols[index]
	if !ok {
		return nil, core.WrapError(core.ErrUnknownIndex, fmt.Errorf("%q", index))
	}
	endpoint := fmt.Sprintf("%s/%s?interval=%s&range=%s",
		s.baseURL, url.PathEscape(symbol), q.interval, q.rng)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			wait := s.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, core.WrapError(core.ErrSourceTimeout, ctx.Err())
			case <-time.After(wait):
			}
		}

		candles, err := s.get(ctx, endpoint)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		s.logger.Debug("chart request failed",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, core.WrapError(core.ErrSourceFailed, lastErr)
}

func (s *Source) get(ctx context.Context, endpoint string) ([]core.Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "marketbias/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.ErrNoData
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	n := len(r.Timestamp)
	if len(quotes.Open) != n || len(quotes.High) != n || len(quotes.Low) != n || len(quotes.Close) != n {
		return nil, fmt.Errorf("quote arrays do not match %d timestamps", n)
	}

	data := make([]core.Candle, 0, n)
	for i, ts := range r.Timestamp {
		if quotes.Open[i] == nil || quotes.High[i] == nil || quotes.Low[i] == nil || quotes.Close[i] == nil {
			continue // Skip missing data
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}
		c := core.Candle{
			Time:   time.Unix(ts, 0),
			Open:   *quotes.Open[i],
			High:   *quotes.High[i],
			Low:    *quotes.Low[i],
			Close:  *quotes.Close[i],
			Volume: volume,
		}
		if !c.Valid() {
			s.logger.Debug("dropping malformed bar", zap.Time("time", c.Time))
			continue
		}
		data = append(data, c)
	}

	return data, nil
}

// Aggregate4H folds hourly bars into 4H buckets anchored at the 09:15 IST open.
func Aggregate4H(hourly []core.Candle) []core.Candle {
	var out []core.Candle
	var bucket time.Time

	for _, c := range hourly {
		open := levels.SessionOpen(c.Time)
		offset := c.Time.Sub(open)
		if offset < 0 {
			offset = 0
		}
		start := open.Add(offset.Truncate(4 * time.Hour))

		if len(out) == 0 || !start.Equal(bucket) {
			bucket = start
			out = append(out, core.Candle{
				Time: start, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
			})
			continue
		}

		last := &out[len(out)-1]
		last.High = math.Max(last.High, c.High)
		last.Low = math.Min(last.Low, c.Low)
		last.Close = c.Close
		last.Volume += c.Volume
	}
	return out
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
