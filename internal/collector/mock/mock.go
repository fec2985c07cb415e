// Package mock fabricates deterministic market data for the dashboard.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/levels"
)

// Name is the registry name of the mock source.
const Name = "mock"

var basePrices = map[core.Index]float64{
	core.IndexNifty:     22000,
	core.IndexBankNifty: 47000,
}

var barCounts = map[core.Timeframe]int{
	core.Timeframe1D:  30,
	core.Timeframe4H:  40,
	core.Timeframe1H:  50,
	core.Timeframe15m: 75,
}

// slot offsets from the 09:15 open for each intraday timeframe
var intradaySlots = map[core.Timeframe][]time.Duration{
	core.Timeframe4H:  {0, 4 * time.Hour},
	core.Timeframe1H:  hourly(7, time.Hour),
	core.Timeframe15m: hourly(25, 15*time.Minute),
}

func hourly(n int, step time.Duration) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(i) * step
	}
	return out
}

// Source generates random-walk candles seeded per index and timeframe, so
// the same seed and clock always produce the same series.
type Source struct {
	seed int64
	now  func() time.Time
}

// New creates a mock source.
func New(seed int64) *Source {
	return &Source{seed: seed, now: time.Now}
}

// WithClock returns a copy of the source using the given clock.
func (s *Source) WithClock(now func() time.Time) *Source {
	return &Source{seed: s.seed, now: now}
}

func (s *Source) Name() string {
	return Name
}

// FetchOHLC returns fabricated candles ordered oldest to newest.
func (s *Source) FetchOHLC(ctx context.Context, index core.Index, tf core.Timeframe) ([]core.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, ok := basePrices[index]
	if !ok {
		return nil, core.WrapError(core.ErrUnknownIndex, fmt.Errorf("%q", index))
	}
	count, ok := barCounts[tf]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("unsupported timeframe %q", tf))
	}

	times := s.barTimes(tf, count)
	rng := rand.New(rand.NewSource(s.seed ^ int64(key(index, tf))))
	return walk(rng, base, times, volatility(tf)), nil
}

// FetchPreviousDay returns the last daily candle that closed before today.
func (s *Source) FetchPreviousDay(ctx context.Context, index core.Index) (core.PreviousDayData, error) {
	daily, err := s.FetchOHLC(ctx, index, core.Timeframe1D)
	if err != nil {
		return core.PreviousDayData{}, err
	}

	today := levels.SessionOpen(s.now())
	prev := daily[len(daily)-1]
	if !prev.Time.Before(today) && len(daily) > 1 {
		prev = daily[len(daily)-2]
	}
	return core.PreviousDayData{
		Open:  prev.Open,
		High:  prev.High,
		Low:   prev.Low,
		Close: prev.Close,
		Time:  prev.Time,
	}, nil
}

var headlines = []struct {
	title  string
	source string
	age    time.Duration
}{
	{"NIFTY surges as FII inflows return", "Economic Times", 2 * time.Hour},
	{"Bank Nifty gains on strong credit growth", "Moneycontrol", 4 * time.Hour},
	{"IT stocks slump on weak US demand outlook", "Business Standard", 6 * time.Hour},
	{"RBI keeps repo rate unchanged, signals caution", "Mint", 9 * time.Hour},
	{"Auto sales rise for third straight month", "Reuters", 14 * time.Hour},
	{"Metal index declines as China data disappoints", "CNBC-TV18", 20 * time.Hour},
	{"Crude oil prices climb on supply fears", "Bloomberg", 30 * time.Hour},
	{"Global markets mixed ahead of Fed meeting", "Reuters", 40 * time.Hour},
}

// FetchNews returns a fixed set of recent headlines.
func (s *Source) FetchNews(ctx context.Context) ([]core.RawNewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]core.RawNewsItem, len(headlines))
	for i, h := range headlines {
		out[i] = core.RawNewsItem{
			Title:   h.title,
			Link:    fmt.Sprintf("https://news.example.com/markets/%d", i+1),
			PubDate: now.Add(-h.age),
			Source:  h.source,
		}
	}
	return out, nil
}

// barTimes lists the start times of the last count bars up to now,
// skipping weekends.
func (s *Source) barTimes(tf core.Timeframe, count int) []time.Time {
	now := s.now()
	times := make([]time.Time, 0, count)

	day := levels.SessionOpen(now)
	for len(times) < count {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			slots := intradaySlots[tf]
			if tf == core.Timeframe1D {
				slots = []time.Duration{0}
			}
			for i := len(slots) - 1; i >= 0 && len(times) < count; i-- {
				t := day.Add(slots[i])
				if !t.After(now) {
					times = append(times, t)
				}
			}
		}
		day = day.AddDate(0, 0, -1)
	}

	for i, j := 0, len(times)-1; i < j; i, j = i+1, j-1 {
		times[i], times[j] = times[j], times[i]
	}
	return times
}

func walk(rng *rand.Rand, price float64, times []time.Time, vol float64) []core.Candle {
	out := make([]core.Candle, len(times))
	for i, t := range times {
		open := price
		closePrice := open * (1 + rng.NormFloat64()*vol)
		high := math.Max(open, closePrice) * (1 + rng.Float64()*vol/2)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*vol/2)
		out[i] = core.Candle{
			Time:   t,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(closePrice),
			Volume: 100000 + rng.Int63n(900000),
		}
		price = closePrice
	}
	return out
}

func volatility(tf core.Timeframe) float64 {
	switch tf {
	case core.Timeframe1D:
		return 0.008
	case core.Timeframe4H:
		return 0.004
	case core.Timeframe1H:
		return 0.002
	}
	return 0.001
}

func key(index core.Index, tf core.Timeframe) uint64 {
	h := fnv.New64a()
	h.Write([]byte(index))
	h.Write([]byte(tf))
	return h.Sum64()
}

// round2 keeps prices to paise.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
