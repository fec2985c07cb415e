package sentiment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Term is a keyword or phrase and the points it contributes when present.
type Term struct {
	Phrase string `yaml:"phrase"`
	Weight int    `yaml:"weight"`
}

// Lexicon is the keyword table driving the classifier.
//
// Terms carry signed weights. Sectors and Indices mark a headline as relevant
// to index bias; each one present adds a point of relevance, up to
// RelevanceCap, regardless of the sign of the term score.
type Lexicon struct {
	Terms         []Term   `yaml:"terms"`
	Sectors       []string `yaml:"sectors"`
	Indices       []string `yaml:"indices"`
	RelevanceCap  int      `yaml:"relevance_cap"`
	PositiveAbove int      `yaml:"positive_above"`
	NegativeBelow int      `yaml:"negative_below"`
}

const (
	positiveWeight = 2
	negativeWeight = -2
)

var positiveWords = []string{
	"surge", "surges", "surging", "rally", "rallies", "gain", "gains",
	"rise", "rises", "rising", "jump", "jumps", "soar", "soars", "climb",
	"climbs", "bullish", "record high", "strong", "growth", "profit",
	"upgrade", "beat", "beats", "outperform", "optimism", "optimistic",
	"recovery", "rebound", "boost", "inflows", "buying", "rate cut",
}

var negativeWords = []string{
	"fall", "falls", "falling", "drop", "drops", "decline", "declines",
	"slump", "crash", "plunge", "plunges", "tumble", "tumbles", "bearish",
	"weak", "loss", "losses", "selloff", "sell-off", "downgrade", "miss",
	"misses", "fear", "fears", "concern", "concerns", "outflows", "slowdown",
	"recession", "uncertainty", "rate hike", "volatile",
}

var sectorWords = []string{
	"bank", "banking", "financial", "auto", "pharma", "fmcg", "metal",
	"realty", "energy", "psu", "infra", "media", "oil", "telecom",
}

var indexWords = []string{
	"nifty", "bank nifty", "banknifty", "sensex", "nse", "bse", "index",
	"indices",
}

// DefaultLexicon returns the built-in keyword table.
func DefaultLexicon() Lexicon {
	terms := make([]Term, 0, len(positiveWords)+len(negativeWords))
	for _, w := range positiveWords {
		terms = append(terms, Term{Phrase: w, Weight: positiveWeight})
	}
	for _, w := range negativeWords {
		terms = append(terms, Term{Phrase: w, Weight: negativeWeight})
	}
	return Lexicon{
		Terms:         terms,
		Sectors:       append([]string(nil), sectorWords...),
		Indices:       append([]string(nil), indexWords...),
		RelevanceCap:  3,
		PositiveAbove: 2,
		NegativeBelow: -2,
	}
}

// LoadLexicon reads a YAML keyword table. Lists left empty and a zero
// relevance cap are taken from the defaults; thresholds are taken as written
// once either one is set.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("reading lexicon: %w", err)
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("parsing lexicon: %w", err)
	}

	def := DefaultLexicon()
	if len(lex.Terms) == 0 {
		lex.Terms = def.Terms
	}
	if len(lex.Sectors) == 0 {
		lex.Sectors = def.Sectors
	}
	if len(lex.Indices) == 0 {
		lex.Indices = def.Indices
	}
	if lex.RelevanceCap == 0 {
		lex.RelevanceCap = def.RelevanceCap
	}
	if lex.PositiveAbove == 0 && lex.NegativeBelow == 0 {
		lex.PositiveAbove = def.PositiveAbove
		lex.NegativeBelow = def.NegativeBelow
	}

	return lex.normalized(), lex.validate()
}

func (l Lexicon) normalized() Lexicon {
	out := l
	out.Terms = make([]Term, len(l.Terms))
	for i, t := range l.Terms {
		out.Terms[i] = Term{Phrase: strings.ToLower(t.Phrase), Weight: t.Weight}
	}
	out.Sectors = lowerAll(l.Sectors)
	out.Indices = lowerAll(l.Indices)
	return out
}

func (l Lexicon) validate() error {
	if l.PositiveAbove < l.NegativeBelow {
		return fmt.Errorf("positive_above (%d) must not be below negative_below (%d)",
			l.PositiveAbove, l.NegativeBelow)
	}
	for _, t := range l.Terms {
		if strings.TrimSpace(t.Phrase) == "" {
			return fmt.Errorf("lexicon term with empty phrase")
		}
	}
	return nil
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
