package sentiment

import (
	"strings"

	"github.com/newthinker/marketbias/internal/core"
	"go.uber.org/zap"
)

// Classifier labels headlines by substring keyword matching.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	lex    Lexicon
	logger *zap.Logger
}

// New creates a classifier over the given lexicon.
func New(lex Lexicon, logger ...*zap.Logger) *Classifier {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Classifier{lex: lex.normalized(), logger: l}
}

// Score returns the raw keyword score of text.
//
// Every term found as a substring adds its weight, so overlapping stems such
// as "rise" and "rises" both count. The relevance boost is added whatever the
// sign of the term score.
func (c *Classifier) Score(text string) int {
	lower := strings.ToLower(text)

	score := 0
	for _, t := range c.lex.Terms {
		if strings.Contains(lower, t.Phrase) {
			score += t.Weight
		}
	}
	return score + c.relevance(lower)
}

// Analyze classifies text as Positive, Negative or Neutral.
func (c *Classifier) Analyze(text string) core.Sentiment {
	score := c.Score(text)
	switch {
	case score > c.lex.PositiveAbove:
		return core.SentimentPositive
	case score < c.lex.NegativeBelow:
		return core.SentimentNegative
	default:
		return core.SentimentNeutral
	}
}

// HasBiasImpact reports whether text mentions any sector or index keyword.
func (c *Classifier) HasBiasImpact(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, c.lex.Indices) || containsAny(lower, c.lex.Sectors)
}

// Classify attaches sentiment and bias impact to a raw headline.
func (c *Classifier) Classify(item core.RawNewsItem) core.ScoredNewsItem {
	return core.ScoredNewsItem{
		RawNewsItem: item,
		Sentiment:   c.Analyze(item.Title),
		BiasImpact:  c.HasBiasImpact(item.Title),
	}
}

// ClassifyAll classifies every item, preserving order.
func (c *Classifier) ClassifyAll(items []core.RawNewsItem) []core.ScoredNewsItem {
	out := make([]core.ScoredNewsItem, len(items))
	for i, item := range items {
		out[i] = c.Classify(item)
	}
	return out
}

// Correct records a user supplied label for text. Nothing is learned from it yet.
func (c *Classifier) Correct(text string, label core.Sentiment) {
	c.logger.Debug("sentiment correction received",
		zap.String("text", text),
		zap.String("label", string(label)),
		zap.String("predicted", string(c.Analyze(text))),
	)
}

func (c *Classifier) relevance(lower string) int {
	n := 0
	for _, words := range [][]string{c.lex.Sectors, c.lex.Indices} {
		for _, w := range words {
			if strings.Contains(lower, w) {
				n++
			}
		}
	}
	if n > c.lex.RelevanceCap {
		n = c.lex.RelevanceCap
	}
	return n
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
