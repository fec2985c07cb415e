package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseIndex(t *testing.T) {
	tests := []struct {
		input   string
		want    Index
		wantErr bool
	}{
		{"NIFTY", IndexNifty, false},
		{"nifty", IndexNifty, false},
		{"BANKNIFTY", IndexBankNifty, false},
		{"Bank Nifty", IndexBankNifty, false},
		{"bank_nifty", IndexBankNifty, false},
		{"SENSEX", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIndex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIndex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownIndex) {
				t.Errorf("expected ErrUnknownIndex, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseIndex(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestCandle_Valid(t *testing.T) {
	tests := []struct {
		name string
		c    Candle
		want bool
	}{
		{"bullish body", Candle{Open: 100, High: 105, Low: 99, Close: 104}, true},
		{"bearish body", Candle{Open: 104, High: 105, Low: 99, Close: 100}, true},
		{"doji at extremes", Candle{Open: 100, High: 100, Low: 100, Close: 100}, true},
		{"high below close", Candle{Open: 100, High: 103, Low: 99, Close: 104}, false},
		{"low above open", Candle{Open: 100, High: 105, Low: 101, Close: 104}, false},
		{"negative volume", Candle{Open: 100, High: 105, Low: 99, Close: 104, Volume: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreviousDayData_Mid(t *testing.T) {
	p := PreviousDayData{High: 110, Low: 90, Close: 100, Time: time.Now()}
	if p.Mid() != 100 {
		t.Errorf("expected mid 100, got %f", p.Mid())
	}
}

func TestTimeframe_Duration(t *testing.T) {
	if Timeframe4H.Duration() != 4*time.Hour {
		t.Errorf("unexpected 4H duration: %v", Timeframe4H.Duration())
	}
	if Timeframe15m.Duration() != 15*time.Minute {
		t.Errorf("unexpected 15m duration: %v", Timeframe15m.Duration())
	}
	if Timeframe("2W").Duration() != 0 {
		t.Error("unknown timeframe should have zero duration")
	}
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		input string
		want  Sentiment
	}{
		{" negative ", SentimentNegative},
		{"POSITIVE", SentimentPositive},
		{"Neutral", SentimentNeutral},
	}
	for _, tt := range tests {
		got, err := ParseSentiment(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseSentiment(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}

	if _, err := ParseSentiment("meh"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected bad request, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	for input, want := range map[string]Direction{"bullish": Bullish, " BEARISH": Bearish, "Neutral": Neutral} {
		got, err := ParseDirection(input)
		if err != nil || got != want {
			t.Errorf("ParseDirection(%q) = %q, %v; want %q", input, got, err, want)
		}
	}

	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected bad request, got %v", err)
	}
}
