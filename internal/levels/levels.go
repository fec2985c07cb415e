// Package levels derives display levels and opening range statistics.
package levels

import (
	"math"
	"time"

	"github.com/newthinker/marketbias/internal/core"
)

const (
	roundStep       = 100.0
	roundSpan       = 5
	maxRoundNumbers = 5

	// Weekly bounds are placeholders scaled off the previous day, not weekly aggregates.
	weeklyHighFactor = 1.02
	weeklyLowFactor  = 0.98
)

// KeyLevels derives PDH/PDL, the pivot mid and nearby round numbers.
func KeyLevels(prev core.PreviousDayData) core.KeyLevels {
	return core.KeyLevels{
		PDH:          prev.High,
		PDL:          prev.Low,
		Mid:          (prev.High + prev.Low + prev.Close) / 3,
		WeeklyHigh:   prev.High * weeklyHighFactor,
		WeeklyLow:    prev.Low * weeklyLowFactor,
		RoundNumbers: RoundNumbers(prev.Close),
	}
}

// RoundNumbers returns up to five positive hundreds around price, in
// ascending generation order starting five steps below the base.
// Halfway prices round to even rather than half up, so 22050 uses a
// base of 22000 where half-up rounding would pick 22100.
func RoundNumbers(price float64) []float64 {
	base := math.RoundToEven(price/roundStep) * roundStep

	out := make([]float64, 0, maxRoundNumbers)
	for i := -roundSpan; i <= roundSpan && len(out) < maxRoundNumbers; i++ {
		level := base + float64(i)*roundStep
		if level > 0 {
			out = append(out, level)
		}
	}
	return out
}

// IST is the exchange time zone.
var IST = time.FixedZone("IST", 5*3600+30*60)

const (
	sessionOpenHour   = 9
	sessionOpenMinute = 15
	openingWindow     = 15 * time.Minute
)

// SessionOpen returns the 09:15 IST open on the IST calendar day of t.
func SessionOpen(t time.Time) time.Time {
	local := t.In(IST)
	return time.Date(local.Year(), local.Month(), local.Day(),
		sessionOpenHour, sessionOpenMinute, 0, 0, IST)
}
