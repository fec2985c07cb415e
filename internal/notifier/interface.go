// Package notifier delivers bias change alerts to external channels.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/marketbias/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Alert reports that an index changed direction between two refreshes.
type Alert struct {
	Index    core.Index      `json:"index"`
	Previous core.Direction  `json:"previous"`
	Bias     core.MarketBias `json:"bias"`
	RunID    string          `json:"run_id"`
}

// Summary is a one-line description shared by the text channels.
func (a Alert) Summary() string {
	return fmt.Sprintf("%s bias %s -> %s (score %+d)", a.Index, a.Previous, a.Bias.Bias, a.Bias.Score)
}

// Time is when the new bias was computed.
func (a Alert) Time() time.Time {
	return a.Bias.LastUpdated
}

// Notifier defines the interface for alert delivery
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init applies configuration parameters
	Init(cfg Config) error

	// Send delivers a single alert
	Send(ctx context.Context, alert Alert) error

	// SendBatch delivers several alerts as one message
	SendBatch(ctx context.Context, alerts []Alert) error
}
