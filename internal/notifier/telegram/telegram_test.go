package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/notifier"
)

func TestTelegram_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Telegram)(nil)
}

func TestTelegram_Name(t *testing.T) {
	tg := New("token", "chatid")
	if tg.Name() != "telegram" {
		t.Errorf("expected 'telegram', got '%s'", tg.Name())
	}
}

func TestTelegram_Init(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"bot_token": "test-token",
			"chat_id":   "test-chat",
		},
	}

	if err := tg.Init(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tg.botToken != "test-token" {
		t.Errorf("expected bot_token 'test-token', got '%s'", tg.botToken)
	}
	if tg.chatID != "test-chat" {
		t.Errorf("expected chat_id 'test-chat', got '%s'", tg.chatID)
	}
	if tg.apiBase != defaultAPIBase {
		t.Errorf("expected default api base, got '%s'", tg.apiBase)
	}
}

func TestTelegram_Init_MissingToken(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"chat_id": "test-chat"}})
	if err == nil {
		t.Error("expected error for missing bot_token")
	}
}

func TestTelegram_Init_MissingChatID(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"bot_token": "test-token"}})
	if err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func alert(index core.Index, prev, bias core.Direction) notifier.Alert {
	level := 47000.0
	return notifier.Alert{
		Index:    index,
		Previous: prev,
		Bias: core.MarketBias{
			Index:             index,
			Bias:              bias,
			Score:             -40,
			Confidence:        40,
			LastUpdated:       time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			PrimaryTrigger:    "Break below PDL 47000.00 with retest",
			InvalidationLevel: &level,
		},
	}
}

func TestTelegram_Send(t *testing.T) {
	var receivedPayload map[string]any
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	tg := New("test-token", "test-chat")
	tg.apiBase = server.URL

	if err := tg.Send(context.Background(), alert(core.IndexBankNifty, core.Neutral, core.Bearish)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/bottest-token/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if receivedPayload["chat_id"] != "test-chat" {
		t.Errorf("expected chat_id test-chat, got %v", receivedPayload["chat_id"])
	}
	text, _ := receivedPayload["text"].(string)
	if !strings.Contains(text, "BANKNIFTY") {
		t.Error("message should contain index")
	}
}

func TestTelegram_Send_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer server.Close()

	tg := New("test-token", "test-chat")
	tg.apiBase = server.URL

	err := tg.Send(context.Background(), alert(core.IndexNifty, core.Neutral, core.Bullish))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected API error with status, got %v", err)
	}
}

func TestFormatAlert(t *testing.T) {
	formatted := formatAlert(alert(core.IndexBankNifty, core.Bullish, core.Bearish))

	for _, want := range []string{"📉", "BANKNIFTY", "Bearish", "was Bullish", "-40", "40%", "Break below PDL", "47000.00", "2024-01-15 10:30:00"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted message should contain %q:\n%s", want, formatted)
		}
	}
}

func TestFormatAlert_Neutral(t *testing.T) {
	formatted := formatAlert(alert(core.IndexNifty, core.Bullish, core.Neutral))

	if !strings.Contains(formatted, "⏸️") {
		t.Error("neutral alert should have ⏸️ emoji")
	}
}

func TestTelegram_SendBatch_Empty(t *testing.T) {
	tg := New("token", "chat")

	if err := tg.SendBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch should not return error: %v", err)
	}
}

func TestTelegram_SendBatch(t *testing.T) {
	var text string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		text, _ = payload["text"].(string)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tg := New("token", "chat")
	tg.apiBase = server.URL

	alerts := []notifier.Alert{
		alert(core.IndexNifty, core.Neutral, core.Bullish),
		alert(core.IndexBankNifty, core.Neutral, core.Bearish),
	}
	if err := tg.SendBatch(context.Background(), alerts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(text, "2 Bias Changes") {
		t.Errorf("batch header missing:\n%s", text)
	}
	if strings.Count(text, "---") != 1 {
		t.Errorf("expected one separator:\n%s", text)
	}
}
