package bias

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// series builds n candles whose lows move by step per bar.
func series(start, step float64, n int, every time.Duration) []core.Candle {
	out := make([]core.Candle, n)
	t0 := fixedNow.Add(-time.Duration(n) * every)
	for i := range out {
		low := start + float64(i)*step
		high := low + 50
		out[i] = core.Candle{
			Time:   t0.Add(time.Duration(i) * every),
			Open:   low + 10,
			High:   high,
			Low:    low,
			Close:  high - 10,
			Volume: 1000,
		}
	}
	return out
}

func flat(price float64, n int, every time.Duration) []core.Candle {
	return series(price, 0, n, every)
}

func headline(title string, s core.Sentiment, impact bool, age time.Duration) core.ScoredNewsItem {
	return core.ScoredNewsItem{
		RawNewsItem: core.RawNewsItem{Title: title, PubDate: fixedNow.Add(-age), Source: "test"},
		Sentiment:   s,
		BiasImpact:  impact,
	}
}

func price(v float64) *float64 { return &v }

func bullishInput() Input {
	return Input{
		Index:    core.IndexNifty,
		Daily:    series(21000, 100, 12, 24*time.Hour),
		FourHour: series(21800, 20, 20, 4*time.Hour),
		OneHour:  series(22200, 10, 8, time.Hour),
		PreviousDay: core.PreviousDayData{
			Open: 22220, High: 22300, Low: 21900, Close: 22000,
		},
		News: []core.ScoredNewsItem{
			headline("NIFTY surges", core.SentimentPositive, true, time.Hour),
			headline("Bank stocks rally", core.SentimentPositive, true, 3*time.Hour),
		},
		CurrentPrice: price(22400),
	}
}

func TestEngine_BullishScenario(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))

	result, err := engine.Calculate(bullishInput())
	require.NoError(t, err)

	// 30 + 15 + 10 (HTF) + 10 range + 10 gap + 10 momentum + 6 news
	assert.Equal(t, 91, result.Score)
	assert.Equal(t, core.Bullish, result.Bias)
	assert.Equal(t, 91, result.Confidence)
	assert.Equal(t, core.IndexNifty, result.Index)
	assert.Equal(t, fixedNow, result.LastUpdated)
	assert.False(t, result.Fallback)

	require.Len(t, result.Rationale, 5)
	assert.Equal(t, "HTF: daily Bullish, 4H Bullish, structure HH_HL (+55)", result.Rationale[0])
	assert.Equal(t, "Range: price above PDH (+10)", result.Rationale[1])
	assert.Equal(t, "Gap: gap up 1.00% (+10)", result.Rationale[2])
	assert.Equal(t, "Momentum: 1H close above mid-band (+10)", result.Rationale[3])
	assert.Equal(t, "News: 2 impactful headlines in 24h (+6)", result.Rationale[4])

	require.NotNil(t, result.InvalidationLevel)
	assert.Equal(t, 21900.0, *result.InvalidationLevel)
	assert.Equal(t, "Break above PDH 22300.00 with retest", result.PrimaryTrigger)
}

func TestEngine_BearishScenario(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))

	in := Input{
		Index:    core.IndexBankNifty,
		Daily:    series(48000, -100, 12, 24*time.Hour),
		FourHour: series(47500, -20, 20, 4*time.Hour),
		OneHour:  series(47000, -10, 8, time.Hour),
		PreviousDay: core.PreviousDayData{
			Open: 46530, High: 47200, Low: 46800, Close: 47000,
		},
		News: []core.ScoredNewsItem{
			headline("Banking stocks slump", core.SentimentNegative, true, time.Hour),
		},
		CurrentPrice: price(46700),
	}

	result, err := engine.Calculate(in)
	require.NoError(t, err)

	// -55 HTF -10 range -10 gap -10 momentum -3 news
	assert.Equal(t, -88, result.Score)
	assert.Equal(t, core.Bearish, result.Bias)
	assert.Equal(t, 88, result.Confidence)
	require.NotNil(t, result.InvalidationLevel)
	assert.Equal(t, 47200.0, *result.InvalidationLevel)
	assert.Equal(t, "Break below PDL 46800.00 with retest", result.PrimaryTrigger)
	assert.Contains(t, result.Rationale, "Range: price below PDL (-10)")
	assert.Contains(t, result.Rationale, "Momentum: 1H close below mid-band (-10)")
}

func TestEngine_NeutralScenario(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))

	in := Input{
		Index:       core.IndexNifty,
		Daily:       flat(22000, 10, 24*time.Hour),
		FourHour:    flat(22000, 10, 4*time.Hour),
		PreviousDay: core.PreviousDayData{Open: 22010, High: 22100, Low: 21900, Close: 22000},
	}

	result, err := engine.Calculate(in)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, core.Neutral, result.Bias)
	assert.Equal(t, []string{"HTF: daily Neutral, 4H Neutral, structure Neutral (+0)"}, result.Rationale)
	require.NotNil(t, result.InvalidationLevel)
	assert.Equal(t, 22000.0, *result.InvalidationLevel)
	assert.Equal(t, "Wait for breakout above PDH 22100.00 or below PDL 21900.00", result.PrimaryTrigger)
}

func TestEngine_ThresholdIsExclusive(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))

	// 15 from the 4H trend alone sits exactly on the threshold
	in := Input{
		Index:       core.IndexNifty,
		Daily:       flat(22000, 10, 24*time.Hour),
		FourHour:    series(21800, 20, 20, 4*time.Hour),
		PreviousDay: core.PreviousDayData{Open: 22000, High: 22100, Low: 21900, Close: 22000},
	}

	result, err := engine.Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, 15, result.Score)
	assert.Equal(t, core.Neutral, result.Bias)
}

func TestEngine_EmptyDailyIsPreconditionError(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Calculate(Input{Index: core.IndexNifty})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestEngine_ScoreClampedAndConfidenceMatches(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))

	in := bullishInput()
	for i := 0; i < 10; i++ {
		in.News = append(in.News, headline("NIFTY record high", core.SentimentPositive, true, time.Minute))
	}

	result, err := engine.Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 100, result.Confidence)
}

func TestEngine_RandomInputsStayInRange(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))
	rng := rand.New(rand.NewSource(42))

	randomSeries := func(n int, every time.Duration) []core.Candle {
		return series(20000+rng.Float64()*1000, rng.Float64()*200-100, n, every)
	}

	sentiments := []core.Sentiment{core.SentimentPositive, core.SentimentNegative, core.SentimentNeutral}
	for i := 0; i < 200; i++ {
		in := Input{
			Index:    core.IndexNifty,
			Daily:    randomSeries(1+rng.Intn(25), 24*time.Hour),
			FourHour: randomSeries(rng.Intn(25), 4*time.Hour),
			OneHour:  randomSeries(rng.Intn(8), time.Hour),
			PreviousDay: core.PreviousDayData{
				Open:  20000 + rng.Float64()*1000,
				High:  21000 + rng.Float64()*500,
				Low:   19500 + rng.Float64()*500,
				Close: 20000 + rng.Float64()*1000,
			},
			CurrentPrice: price(19000 + rng.Float64()*3000),
		}
		for j := rng.Intn(15); j > 0; j-- {
			in.News = append(in.News, headline("x", sentiments[rng.Intn(3)], rng.Intn(2) == 0,
				time.Duration(rng.Intn(48))*time.Hour))
		}

		result, err := engine.Calculate(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Score, -100)
		assert.LessOrEqual(t, result.Score, 100)
		assert.Equal(t, abs(result.Score), result.Confidence)
		assert.NotEmpty(t, result.Rationale)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	engine := NewEngine(WithClock(fixedClock))

	first, err := engine.Calculate(bullishInput())
	require.NoError(t, err)
	second, err := engine.Calculate(bullishInput())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	later := NewEngine(WithClock(func() time.Time { return fixedNow.Add(time.Minute) }))
	third, err := later.Calculate(bullishInput())
	require.NoError(t, err)
	assert.Equal(t, first.Score, third.Score)
	assert.Equal(t, first.Bias, third.Bias)
	assert.Equal(t, first.Confidence, third.Confidence)
	assert.Equal(t, first.Rationale, third.Rationale)
	assert.NotEqual(t, first.LastUpdated, third.LastUpdated)
}

func TestEngine_HTFMonotonicInRisingPairs(t *testing.T) {
	engine := NewEngine()

	prev := -1000
	for rising := 0; rising < 10; rising++ {
		daily := flat(22000, 10, 24*time.Hour)
		for i := 1; i <= rising; i++ {
			// lift every bar from i onward so pair (i-1, i) is a higher high and higher low
			for j := i; j < len(daily); j++ {
				daily[j].High += 10
				daily[j].Low += 10
				daily[j].Open += 10
				daily[j].Close += 10
			}
		}

		b := engine.Score(Input{Daily: daily}, fixedNow)
		assert.GreaterOrEqual(t, b.HTF, prev, "rising pairs %d", rising)
		prev = b.HTF
	}
}

func TestGapScore_SignConvention(t *testing.T) {
	prev := core.PreviousDayData{Open: 105, Close: 100, High: 110, Low: 95}

	assert.InDelta(t, 5.0, gapPercent(prev), 1e-9)
	assert.Equal(t, 10, gapScore(gapPercent(prev)))

	prev = core.PreviousDayData{Open: 99, Close: 100}
	assert.Equal(t, -10, gapScore(gapPercent(prev)))

	prev = core.PreviousDayData{Open: 100.4, Close: 100}
	assert.Equal(t, 0, gapScore(gapPercent(prev)))

	assert.Equal(t, 0.0, gapPercent(core.PreviousDayData{Open: 10}))
}

func TestRangeScore_DefaultsToPreviousClose(t *testing.T) {
	engine := NewEngine()
	prev := core.PreviousDayData{High: 110, Low: 90, Close: 100}

	b := engine.Score(Input{Daily: flat(100, 3, time.Hour), PreviousDay: prev}, fixedNow)
	assert.Equal(t, 0, b.Range)

	b = engine.Score(Input{Daily: flat(100, 3, time.Hour), PreviousDay: prev, CurrentPrice: price(85)}, fixedNow)
	assert.Equal(t, -10, b.Range)
}

func TestMomentumScore(t *testing.T) {
	assert.Equal(t, 0, momentumScore(nil))

	c := []core.Candle{{High: 110, Low: 90, Close: 100}}
	assert.Equal(t, 0, momentumScore(c), "close on the mid-band scores nothing")

	c = []core.Candle{{High: 110, Low: 90, Close: 95}, {High: 108, Low: 96, Close: 101}}
	assert.Equal(t, 10, momentumScore(c))

	c = []core.Candle{{High: 110, Low: 90, Close: 105}, {High: 104, Low: 92, Close: 97}}
	assert.Equal(t, -10, momentumScore(c))
}

func TestNewsScore(t *testing.T) {
	items := make([]core.ScoredNewsItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, headline("NIFTY up", core.SentimentPositive, true, time.Hour))
	}
	score, impacts := newsScore(items, fixedNow)
	assert.Equal(t, 20, score, "raw +30 is capped at +20")
	assert.Equal(t, 10, impacts)

	items = []core.ScoredNewsItem{
		headline("stale", core.SentimentNegative, true, 25*time.Hour),
		headline("no impact", core.SentimentNegative, false, time.Hour),
		headline("neutral", core.SentimentNeutral, true, time.Hour),
		headline("negative", core.SentimentNegative, true, time.Hour),
	}
	score, impacts = newsScore(items, fixedNow)
	assert.Equal(t, -3, score)
	assert.Equal(t, 2, impacts)
}

func TestFallback(t *testing.T) {
	fb := Fallback(core.IndexBankNifty, fixedNow)

	assert.Equal(t, core.IndexBankNifty, fb.Index)
	assert.Equal(t, core.Bullish, fb.Bias)
	assert.Equal(t, 80, fb.Confidence)
	assert.Equal(t, 80, fb.Score)
	assert.True(t, fb.Fallback)
	require.Len(t, fb.Rationale, 1)
	assert.Contains(t, fb.Rationale[0], "fallback")
}
