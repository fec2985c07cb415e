// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/notifier"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	if port, ok := cfg.Params["port"].(int); ok {
		e.port = port
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	if to, ok := cfg.Params["to"].([]string); ok {
		e.to = to
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}
	return nil
}

// Send mails one alert. smtp has no context support, so ctx is only checked before dialing.
func (e *Email) Send(ctx context.Context, alert notifier.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := "marketbias: " + alert.Summary()
	return e.sendEmail(subject, formatAlert(alert))
}

func (e *Email) SendBatch(ctx context.Context, alerts []notifier.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("marketbias digest: %d bias changes", len(alerts))

	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString("<h2>Bias changes</h2>")
	fmt.Fprintf(&sb, "<p>Generated at: %s</p>", time.Now().Format("2006-01-02 15:04:05"))
	sb.WriteString("<hr>")

	for _, a := range alerts {
		sb.WriteString(formatAlertHTML(a))
		sb.WriteString("<hr>")
	}

	sb.WriteString("</body></html>")

	return e.sendEmail(subject, sb.String())
}

func formatAlert(a notifier.Alert) string {
	invalidation := "n/a"
	if a.Bias.InvalidationLevel != nil {
		invalidation = fmt.Sprintf("%.2f", *a.Bias.InvalidationLevel)
	}
	return fmt.Sprintf(`
Bias change

Index: %s
Bias: %s (was %s)
Score: %+d
Confidence: %d%%
Trigger: %s
Invalidation: %s
Rationale:
  - %s
Time: %s
`,
		a.Index,
		a.Bias.Bias,
		a.Previous,
		a.Bias.Score,
		a.Bias.Confidence,
		a.Bias.PrimaryTrigger,
		invalidation,
		strings.Join(a.Bias.Rationale, "\n  - "),
		a.Time().Format("2006-01-02 15:04:05 MST"),
	)
}

func biasColor(d core.Direction) string {
	switch d {
	case core.Bullish:
		return "#28a745"
	case core.Bearish:
		return "#dc3545"
	}
	return "#6c757d"
}

func formatAlertHTML(a notifier.Alert) string {
	return fmt.Sprintf(`
<div style="margin: 10px 0;">
  <h3 style="color: %s;">%s - %s</h3>
  <p><strong>Previous:</strong> %s</p>
  <p><strong>Score:</strong> %+d (confidence %d%%)</p>
  <p><strong>Trigger:</strong> %s</p>
  <p><small>%s</small></p>
</div>
`,
		biasColor(a.Bias.Bias),
		a.Index,
		a.Bias.Bias,
		a.Previous,
		a.Bias.Score,
		a.Bias.Confidence,
		html.EscapeString(a.Bias.PrimaryTrigger),
		a.Time().Format("2006-01-02 15:04:05 MST"),
	)
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	contentType := "text/plain"
	if strings.Contains(body, "<html>") {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		contentType,
		body,
	)

	if err := e.send(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}
