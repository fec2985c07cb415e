// Package bias scores the daily directional bias of an index.
package bias

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/trend"
	"go.uber.org/zap"
)

// Sub-score weights and windows.
const (
	dailyTrendPoints    = 30
	fourHourTrendPoints = 15
	structurePoints     = 10
	rangePoints         = 10
	gapPoints           = 10
	momentumPoints      = 10
	newsItemPoints      = 3
	newsCap             = 20

	dailyTrendWindow    = 10
	fourHourTrendWindow = 20
	structureWindow     = 20
	momentumWindow      = 5

	gapThresholdPct = 0.5
	newsLookback    = 24 * time.Hour

	biasThreshold = 15
	scoreLimit    = 100
)

// Input is everything the engine needs to score one index.
type Input struct {
	Index       core.Index
	Daily       []core.Candle
	FourHour    []core.Candle
	OneHour     []core.Candle
	PreviousDay core.PreviousDayData
	News        []core.ScoredNewsItem
	// CurrentPrice defaults to the previous close when nil.
	CurrentPrice *float64
}

// Breakdown holds the individual sub-scores behind a bias.
type Breakdown struct {
	HTF      int
	Range    int
	Gap      int
	Momentum int
	News     int
	Context  core.HTFContext
	GapPct   float64
	Impacts  int
}

// Total returns the clamped composite score.
func (b Breakdown) Total() int {
	return clamp(b.HTF+b.Range+b.Gap+b.Momentum+b.News, -scoreLimit, scoreLimit)
}

// Engine computes MarketBias records. It keeps no state between calls.
type Engine struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for LastUpdated and the news window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a bias engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate scores one index. Daily candles must be non-empty; callers are
// expected to substitute Fallback when an error is returned.
func (e *Engine) Calculate(in Input) (core.MarketBias, error) {
	if len(in.Daily) == 0 {
		return core.MarketBias{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("no daily candles for %s", in.Index))
	}

	now := e.now()
	b := e.Score(in, now)
	total := b.Total()
	direction := classify(total)

	result := core.MarketBias{
		Index:             in.Index,
		Bias:              direction,
		Confidence:        abs(total),
		Score:             total,
		LastUpdated:       now,
		Rationale:         rationale(b),
		InvalidationLevel: invalidation(direction, in.PreviousDay),
		PrimaryTrigger:    primaryTrigger(direction, in.PreviousDay),
	}

	e.logger.Debug("bias calculated",
		zap.String("index", string(in.Index)),
		zap.String("bias", string(direction)),
		zap.Int("score", total),
		zap.Int("htf", b.HTF),
		zap.Int("range", b.Range),
		zap.Int("gap", b.Gap),
		zap.Int("momentum", b.Momentum),
		zap.Int("news", b.News),
	)

	return result, nil
}

// Score computes every sub-score as of now.
func (e *Engine) Score(in Input, now time.Time) Breakdown {
	price := in.PreviousDay.Close
	if in.CurrentPrice != nil {
		price = *in.CurrentPrice
	}

	htf := core.HTFContext{
		DailyTrend:    trend.Analyze(trend.Tail(in.Daily, dailyTrendWindow)),
		FourHourTrend: trend.Analyze(trend.Tail(in.FourHour, fourHourTrendWindow)),
		Structure:     trend.Structure(trend.Tail(in.Daily, structureWindow)),
	}

	gapPct := gapPercent(in.PreviousDay)
	news, impacts := newsScore(in.News, now)

	return Breakdown{
		HTF:      htfScore(htf),
		Range:    rangeScore(price, in.PreviousDay),
		Gap:      gapScore(gapPct),
		Momentum: momentumScore(trend.Tail(in.OneHour, momentumWindow)),
		News:     news,
		Context:  htf,
		GapPct:   gapPct,
		Impacts:  impacts,
	}
}

func htfScore(htf core.HTFContext) int {
	return directionPoints(htf.DailyTrend, dailyTrendPoints) +
		directionPoints(htf.FourHourTrend, fourHourTrendPoints) +
		structureScore(htf.Structure)
}

func directionPoints(d core.Direction, points int) int {
	switch d {
	case core.Bullish:
		return points
	case core.Bearish:
		return -points
	}
	return 0
}

func structureScore(s core.Structure) int {
	switch s {
	case core.StructureHHHL:
		return structurePoints
	case core.StructureLHLL:
		return -structurePoints
	}
	return 0
}

func rangeScore(price float64, prev core.PreviousDayData) int {
	switch {
	case price > prev.High:
		return rangePoints
	case price < prev.Low:
		return -rangePoints
	}
	return 0
}

// gapPercent measures the previous session's open against its own close.
func gapPercent(prev core.PreviousDayData) float64 {
	if prev.Close == 0 {
		return 0
	}
	return (prev.Open - prev.Close) / prev.Close * 100
}

func gapScore(pct float64) int {
	switch {
	case pct > gapThresholdPct:
		return gapPoints
	case pct < -gapThresholdPct:
		return -gapPoints
	}
	return 0
}

func momentumScore(candles []core.Candle) int {
	if len(candles) == 0 {
		return 0
	}

	high, low := math.Inf(-1), math.Inf(1)
	for _, c := range candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	mid := (high + low) / 2
	last := candles[len(candles)-1].Close

	switch {
	case last > mid:
		return momentumPoints
	case last < mid:
		return -momentumPoints
	}
	return 0
}

// newsScore sums bias-impacting headlines published in the last 24 hours.
func newsScore(items []core.ScoredNewsItem, now time.Time) (score, impacts int) {
	cutoff := now.Add(-newsLookback)
	for _, item := range items {
		if !item.PubDate.After(cutoff) || !item.BiasImpact {
			continue
		}
		impacts++
		switch item.Sentiment {
		case core.SentimentPositive:
			score += newsItemPoints
		case core.SentimentNegative:
			score -= newsItemPoints
		}
	}
	return clamp(score, -newsCap, newsCap), impacts
}

func classify(score int) core.Direction {
	switch {
	case score > biasThreshold:
		return core.Bullish
	case score < -biasThreshold:
		return core.Bearish
	}
	return core.Neutral
}

func invalidation(d core.Direction, prev core.PreviousDayData) *float64 {
	var level float64
	switch d {
	case core.Bullish:
		level = prev.Low
	case core.Bearish:
		level = prev.High
	default:
		level = prev.Mid()
	}
	return &level
}

func primaryTrigger(d core.Direction, prev core.PreviousDayData) string {
	switch d {
	case core.Bullish:
		return fmt.Sprintf("Break above PDH %.2f with retest", prev.High)
	case core.Bearish:
		return fmt.Sprintf("Break below PDL %.2f with retest", prev.Low)
	}
	return fmt.Sprintf("Wait for breakout above PDH %.2f or below PDL %.2f", prev.High, prev.Low)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
