package core

import (
	"fmt"
	"strings"
	"time"
)

// Index represents a tracked market index
type Index string

const (
	IndexNifty     Index = "NIFTY"
	IndexBankNifty Index = "BANKNIFTY"
)

// Indices lists every supported index in display order
var Indices = []Index{IndexNifty, IndexBankNifty}

// ParseIndex normalizes a user supplied index name
func ParseIndex(s string) (Index, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "_", "")
	switch Index(name) {
	case IndexNifty:
		return IndexNifty, nil
	case IndexBankNifty:
		return IndexBankNifty, nil
	}
	return "", WrapError(ErrUnknownIndex, fmt.Errorf("%q", s))
}

// Timeframe is the bucket size of a candle series
type Timeframe string

const (
	Timeframe1D  Timeframe = "1D"
	Timeframe4H  Timeframe = "4H"
	Timeframe1H  Timeframe = "1H"
	Timeframe15m Timeframe = "15m"
)

// Duration returns the length of one bucket
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1D:
		return 24 * time.Hour
	case Timeframe4H:
		return 4 * time.Hour
	case Timeframe1H:
		return time.Hour
	case Timeframe15m:
		return 15 * time.Minute
	}
	return 0
}

// Direction is a directional label shared by trends and biases
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

// ParseDirection accepts a direction label in any letter case.
func ParseDirection(s string) (Direction, error) {
	for _, v := range []Direction{Bullish, Bearish, Neutral} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", WrapError(ErrBadRequest, fmt.Errorf("unknown direction %q", s))
}

// Structure describes swing structure over recent candles
type Structure string

const (
	StructureHHHL    Structure = "HH_HL"
	StructureLHLL    Structure = "LH_LL"
	StructureNeutral Structure = "Neutral"
)

// Sentiment is the keyword classification of a headline
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// ParseSentiment accepts a label in any letter case.
func ParseSentiment(s string) (Sentiment, error) {
	for _, v := range []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", WrapError(ErrBadRequest, fmt.Errorf("unknown sentiment %q", s))
}

// Candle is one OHLCV observation for a fixed timeframe bucket
type Candle struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Valid checks the OHLC ordering invariant
func (c Candle) Valid() bool {
	bodyLow, bodyHigh := c.Open, c.Close
	if bodyLow > bodyHigh {
		bodyLow, bodyHigh = bodyHigh, bodyLow
	}
	return c.Low <= bodyLow && bodyHigh <= c.High && c.Volume >= 0
}

// PreviousDayData describes the prior completed session
type PreviousDayData struct {
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Time  time.Time `json:"timestamp"`
}

// Mid returns the midpoint of the previous day range
func (p PreviousDayData) Mid() float64 {
	return (p.High + p.Low) / 2
}

// RawNewsItem is a headline as fetched, before classification
type RawNewsItem struct {
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	PubDate time.Time `json:"pubDate"`
	Source  string    `json:"source"`
}

// ScoredNewsItem is a headline after sentiment classification
type ScoredNewsItem struct {
	RawNewsItem
	Sentiment  Sentiment `json:"sentiment"`
	BiasImpact bool      `json:"biasImpact"`
}

// HTFContext holds the higher timeframe reading used by the scorer
type HTFContext struct {
	DailyTrend    Direction
	FourHourTrend Direction
	Structure     Structure
}

// MarketBias is the scored daily bias for one index
type MarketBias struct {
	Index             Index     `json:"index"`
	Bias              Direction `json:"bias"`
	Confidence        int       `json:"confidence"`
	Score             int       `json:"score"`
	LastUpdated       time.Time `json:"lastUpdated"`
	Rationale         []string  `json:"rationale"`
	InvalidationLevel *float64  `json:"invalidationLevel,omitempty"`
	PrimaryTrigger    string    `json:"primaryTrigger,omitempty"`
	Fallback          bool      `json:"fallback,omitempty"`
}

// KeyLevels are display levels derived from the previous session
type KeyLevels struct {
	PDH          float64   `json:"pdh"`
	PDL          float64   `json:"pdl"`
	Mid          float64   `json:"mid"`
	WeeklyHigh   float64   `json:"weeklyHigh"`
	WeeklyLow    float64   `json:"weeklyLow"`
	RoundNumbers []float64 `json:"roundNumbers"`
}

// OpeningRange summarizes the first 15 minutes of a session
type OpeningRange struct {
	SessionDate string    `json:"sessionDate"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Range       float64   `json:"range"`
	Candles     int       `json:"candles"`
	Direction   Direction `json:"direction"`
}
