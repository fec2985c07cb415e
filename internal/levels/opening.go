package levels

import (
	"math"

	"github.com/newthinker/marketbias/internal/core"
)

// FirstFifteen aggregates the candles that start inside the first fifteen
// minutes of the newest session. It reports false when none do.
func FirstFifteen(candles []core.Candle) (core.OpeningRange, bool) {
	if len(candles) == 0 {
		return core.OpeningRange{}, false
	}

	open := SessionOpen(candles[len(candles)-1].Time)
	end := open.Add(openingWindow)

	or := core.OpeningRange{
		SessionDate: open.Format("2006-01-02"),
		High:        math.Inf(-1),
		Low:         math.Inf(1),
	}
	for _, c := range candles {
		if c.Time.Before(open) || !c.Time.Before(end) {
			continue
		}
		if or.Candles == 0 {
			or.Open = c.Open
		}
		or.Close = c.Close
		or.High = math.Max(or.High, c.High)
		or.Low = math.Min(or.Low, c.Low)
		or.Candles++
	}

	if or.Candles == 0 {
		return core.OpeningRange{}, false
	}

	or.Range = or.High - or.Low
	switch {
	case or.Close > or.Open:
		or.Direction = core.Bullish
	case or.Close < or.Open:
		or.Direction = core.Bearish
	default:
		or.Direction = core.Neutral
	}
	return or, true
}
