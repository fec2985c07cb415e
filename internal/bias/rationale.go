package bias

import (
	"fmt"
	"time"

	"github.com/newthinker/marketbias/internal/core"
)

const (
	fallbackScore     = 80
	fallbackRationale = "fallback: live scoring unavailable, showing default bias"
)

// rationale lists one line per sub-score in fixed order. The HTF line is
// always present; the others only when they contributed points.
func rationale(b Breakdown) []string {
	lines := []string{
		fmt.Sprintf("HTF: daily %s, 4H %s, structure %s (%+d)",
			b.Context.DailyTrend, b.Context.FourHourTrend, b.Context.Structure, b.HTF),
	}

	if b.Range > 0 {
		lines = append(lines, fmt.Sprintf("Range: price above PDH (%+d)", b.Range))
	} else if b.Range < 0 {
		lines = append(lines, fmt.Sprintf("Range: price below PDL (%+d)", b.Range))
	}

	if b.Gap > 0 {
		lines = append(lines, fmt.Sprintf("Gap: gap up %.2f%% (%+d)", b.GapPct, b.Gap))
	} else if b.Gap < 0 {
		lines = append(lines, fmt.Sprintf("Gap: gap down %.2f%% (%+d)", b.GapPct, b.Gap))
	}

	if b.Momentum > 0 {
		lines = append(lines, fmt.Sprintf("Momentum: 1H close above mid-band (%+d)", b.Momentum))
	} else if b.Momentum < 0 {
		lines = append(lines, fmt.Sprintf("Momentum: 1H close below mid-band (%+d)", b.Momentum))
	}

	if b.News != 0 {
		lines = append(lines, fmt.Sprintf("News: %d impactful headlines in 24h (%+d)", b.Impacts, b.News))
	}

	return lines
}

// Fallback is the record served when an index cannot be scored.
func Fallback(index core.Index, now time.Time) core.MarketBias {
	return core.MarketBias{
		Index:       index,
		Bias:        core.Bullish,
		Confidence:  fallbackScore,
		Score:       fallbackScore,
		LastUpdated: now,
		Rationale:   []string{fallbackRationale},
		Fallback:    true,
	}
}
