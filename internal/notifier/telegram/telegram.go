package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/notifier"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.apiBase == "" {
		t.apiBase = defaultAPIBase
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (t *Telegram) Send(ctx context.Context, alert notifier.Alert) error {
	return t.sendMessage(ctx, formatAlert(alert))
}

func (t *Telegram) SendBatch(ctx context.Context, alerts []notifier.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *%d Bias Changes*\n\n", len(alerts))

	for i, a := range alerts {
		sb.WriteString(formatAlert(a))
		if i < len(alerts)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return t.sendMessage(ctx, sb.String())
}

func directionEmoji(d core.Direction) string {
	switch d {
	case core.Bullish:
		return "📈"
	case core.Bearish:
		return "📉"
	}
	return "⏸️"
}

func formatAlert(a notifier.Alert) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s *%s* - %s (was %s)\n", directionEmoji(a.Bias.Bias), a.Index, a.Bias.Bias, a.Previous)
	fmt.Fprintf(&sb, "📊 Score: %+d, confidence %d%%\n", a.Bias.Score, a.Bias.Confidence)

	if a.Bias.PrimaryTrigger != "" {
		fmt.Fprintf(&sb, "🎯 Trigger: %s\n", a.Bias.PrimaryTrigger)
	}
	if a.Bias.InvalidationLevel != nil {
		fmt.Fprintf(&sb, "🛑 Invalidation: %.2f\n", *a.Bias.InvalidationLevel)
	}

	fmt.Fprintf(&sb, "⏰ Time: %s", a.Time().Format("2006-01-02 15:04:05 MST"))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
