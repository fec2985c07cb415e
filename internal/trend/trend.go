// Package trend reads direction and swing structure from candle sequences.
package trend

import (
	"math"

	"github.com/newthinker/marketbias/internal/core"
)

const (
	minTrendCandles     = 3
	minStructureCandles = 4
	structureWindow     = 3
)

// Analyze labels the trend of candles ordered oldest to newest.
// Fewer than three candles yield Neutral; equal counts resolve to Neutral.
func Analyze(candles []core.Candle) core.Direction {
	if len(candles) < minTrendCandles {
		return core.Neutral
	}

	var higherHighs, higherLows, lowerHighs, lowerLows int
	for i := 1; i < len(candles); i++ {
		prev, curr := candles[i-1], candles[i]
		if curr.High > prev.High {
			higherHighs++
		}
		if curr.Low > prev.Low {
			higherLows++
		}
		if curr.High < prev.High {
			lowerHighs++
		}
		if curr.Low < prev.Low {
			lowerLows++
		}
	}

	switch {
	case higherHighs > lowerHighs && higherLows > lowerLows:
		return core.Bullish
	case lowerHighs > higherHighs && lowerLows > higherLows:
		return core.Bearish
	default:
		return core.Neutral
	}
}

// Structure compares the last three candles against the three before them.
// Fewer than four candles yield Neutral.
func Structure(candles []core.Candle) core.Structure {
	n := len(candles)
	if n < minStructureCandles {
		return core.StructureNeutral
	}

	recent := candles[n-structureWindow:]
	previous := candles[max(0, n-2*structureWindow) : n-structureWindow]

	recentHigh, recentLow := extremes(recent)
	prevHigh, prevLow := extremes(previous)

	switch {
	case recentHigh > prevHigh && recentLow > prevLow:
		return core.StructureHHHL
	case recentHigh < prevHigh && recentLow < prevLow:
		return core.StructureLHLL
	default:
		return core.StructureNeutral
	}
}

// Tail returns the last n candles, or all of them when there are fewer.
func Tail(candles []core.Candle, n int) []core.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

func extremes(candles []core.Candle) (high, low float64) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, c := range candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low
}
