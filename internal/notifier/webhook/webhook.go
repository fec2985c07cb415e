// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/marketbias/internal/notifier"
)

// Webhook posts alerts as JSON to a configured URL.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url, ok := cfg.Params["url"].(string); ok {
		w.url = url
	}
	if headers, ok := cfg.Params["headers"].(map[string]string); ok {
		w.headers = headers
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}

	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (w *Webhook) Send(ctx context.Context, alert notifier.Alert) error {
	return w.post(ctx, alertToPayload(alert))
}

func (w *Webhook) SendBatch(ctx context.Context, alerts []notifier.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	payloads := make([]map[string]any, len(alerts))
	for i, a := range alerts {
		payloads[i] = alertToPayload(a)
	}

	return w.post(ctx, map[string]any{
		"type":   "batch",
		"count":  len(alerts),
		"alerts": payloads,
	})
}

func alertToPayload(a notifier.Alert) map[string]any {
	payload := map[string]any{
		"type":            "bias_change",
		"index":           a.Index,
		"previous":        a.Previous,
		"bias":            a.Bias.Bias,
		"score":           a.Bias.Score,
		"confidence":      a.Bias.Confidence,
		"primary_trigger": a.Bias.PrimaryTrigger,
		"rationale":       a.Bias.Rationale,
		"run_id":          a.RunID,
		"updated_at":      a.Time().Format(time.RFC3339),
	}
	if a.Bias.InvalidationLevel != nil {
		payload["invalidation_level"] = *a.Bias.InvalidationLevel
	}
	return payload
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
