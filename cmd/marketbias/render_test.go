package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/store"
)

func TestRenderSnapshot(t *testing.T) {
	level := 21900.0
	snap := store.Snapshot{
		Bias: core.MarketBias{
			Index:             core.IndexNifty,
			Bias:              core.Bullish,
			Score:             45,
			Confidence:        45,
			LastUpdated:       time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
			Rationale:         []string{"Daily trend bullish"},
			PrimaryTrigger:    "Break above PDH 22200.00 with retest",
			InvalidationLevel: &level,
		},
		Levels: &core.KeyLevels{
			PDH: 22200, PDL: 21900, Mid: 22050,
			RoundNumbers: []float64{21500, 21600},
		},
		OpeningRange: &core.OpeningRange{SessionDate: "2024-03-14", High: 22060, Low: 21980, Range: 80, Direction: core.Bullish},
	}

	out := renderSnapshot(snap)
	for _, want := range []string{
		"NIFTY", "BULLISH", "score +45", "confidence 45%",
		"Break above PDH", "21900.00", "H 22200.00", "21500 21600",
		"2024-03-14", "Daily trend bullish",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "fallback") {
		t.Error("non-fallback snapshot should not be flagged")
	}
}

func TestRenderSnapshot_FallbackStale(t *testing.T) {
	snap := store.Snapshot{
		Bias:  core.MarketBias{Index: core.IndexBankNifty, Bias: core.Neutral, Fallback: true},
		Stale: true,
	}

	out := renderSnapshot(snap)
	if !strings.Contains(out, "fallback") || !strings.Contains(out, "stale") {
		t.Errorf("expected fallback and stale markers:\n%s", out)
	}
}

func TestLoadEnv(t *testing.T) {
	if err := loadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MARKETBIAS_TEST_VAR=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MARKETBIAS_TEST_VAR", "")
	os.Unsetenv("MARKETBIAS_TEST_VAR")

	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv failed: %v", err)
	}
	if got := os.Getenv("MARKETBIAS_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("expected from-dotenv, got %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(buf.String(), "marketbias dev") {
		t.Errorf("unexpected version output %q", buf.String())
	}
}

func TestSentimentCommand(t *testing.T) {
	var buf bytes.Buffer
	sentimentCmd.SetOut(&buf)

	if err := runSentiment(sentimentCmd, []string{"RBI", "rate", "cut", "boosts", "rally"}); err != nil {
		t.Fatalf("runSentiment failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Sentiment") || !strings.Contains(buf.String(), "Bias impact") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
