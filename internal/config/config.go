package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Indices   []string        `mapstructure:"indices"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// SourceConfig selects and tunes the market data source.
type SourceConfig struct {
	Provider string        `mapstructure:"provider"` // "mock" or "live"
	Seed     int64         `mapstructure:"seed"`
	BaseURL  string        `mapstructure:"base_url"`
	Retries  int           `mapstructure:"retries"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds per data kind cache lifetimes. Zero disables caching for that kind.
type CacheConfig struct {
	CandlesTTL     time.Duration `mapstructure:"candles_ttl"`
	PreviousDayTTL time.Duration `mapstructure:"previous_day_ttl"`
	NewsTTL        time.Duration `mapstructure:"news_ttl"`
}

// RefreshConfig controls the scheduled recomputation of biases.
type RefreshConfig struct {
	Schedule     string        `mapstructure:"schedule"` // cron with seconds, evaluated in IST
	RunOnStart   bool          `mapstructure:"run_on_start"`
	IndexTimeout time.Duration `mapstructure:"index_timeout"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
}

type SentimentConfig struct {
	LexiconPath string `mapstructure:"lexicon_path"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

// AlertsConfig controls bias change notifications.
type AlertsConfig struct {
	Enabled       bool                      `mapstructure:"enabled"`
	MinConfidence int                       `mapstructure:"min_confidence"`
	Cooldown      time.Duration             `mapstructure:"cooldown"`
	Biases        []string                  `mapstructure:"biases"` // empty means all
	Notifiers     map[string]NotifierConfig `mapstructure:"notifiers"`
}

type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	URL      string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

const (
	NotifierTelegram = "telegram"
	NotifierWebhook  = "webhook"
	NotifierEmail    = "email"
)

const (
	ProviderMock = "mock"
	ProviderLive = "live"
)

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("MARKETBIAS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if v.IsSet("indices") {
		cfg.Indices = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Source: SourceConfig{
			Provider: ProviderMock,
			Seed:     42,
			Retries:  2,
			Timeout:  10 * time.Second,
		},
		Cache: CacheConfig{
			CandlesTTL:     5 * time.Minute,
			PreviousDayTTL: 15 * time.Minute,
			NewsTTL:        10 * time.Minute,
		},
		Refresh: RefreshConfig{
			// every five minutes through the trading session, weekdays
			Schedule:     "0 */5 9-15 * * 1-5",
			RunOnStart:   true,
			IndexTimeout: 15 * time.Second,
			StaleAfter:   15 * time.Minute,
		},
		Indices: []string{string(core.IndexNifty), string(core.IndexBankNifty)},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Alerts: AlertsConfig{
			Cooldown: 30 * time.Minute,
		},
	}
}

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// Source validation
	switch c.Source.Provider {
	case ProviderMock, ProviderLive:
	case "":
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("source provider required"))
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown source provider %q", c.Source.Provider))
	}
	if c.Source.Retries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("retries cannot be negative, got %d", c.Source.Retries))
	}
	if c.Source.Timeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("source timeout must be positive, got %s", c.Source.Timeout))
	}

	if c.Cache.CandlesTTL < 0 || c.Cache.PreviousDayTTL < 0 || c.Cache.NewsTTL < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("cache ttl cannot be negative"))
	}

	// Refresh validation
	if c.Refresh.Schedule != "" {
		if _, err := scheduleParser.Parse(c.Refresh.Schedule); err != nil {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("refresh schedule %q: %w", c.Refresh.Schedule, err))
		}
	}
	if c.Refresh.IndexTimeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("index_timeout must be positive, got %s", c.Refresh.IndexTimeout))
	}
	if c.Refresh.StaleAfter < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stale_after cannot be negative, got %s", c.Refresh.StaleAfter))
	}

	if _, err := c.IndexList(); err != nil {
		return err
	}

	if err := c.Alerts.validate(); err != nil {
		return err
	}

	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	return nil
}

// IndexList parses the configured indices, dropping duplicates.
func (c *Config) IndexList() ([]core.Index, error) {
	if len(c.Indices) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one index required"))
	}

	seen := make(map[core.Index]struct{}, len(c.Indices))
	out := make([]core.Index, 0, len(c.Indices))
	for _, s := range c.Indices {
		idx, err := core.ParseIndex(s)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out, nil
}

func (a AlertsConfig) validate() error {
	if a.MinConfidence < 0 || a.MinConfidence > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("alerts min_confidence must be between 0 and 100, got %d", a.MinConfidence))
	}
	if a.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("alerts cooldown cannot be negative, got %s", a.Cooldown))
	}
	if _, err := a.BiasList(); err != nil {
		return err
	}
	for name, n := range a.Notifiers {
		if !n.Enabled {
			continue
		}
		var missing string
		switch name {
		case NotifierTelegram:
			if n.BotToken == "" || n.ChatID == "" {
				missing = "bot_token and chat_id"
			}
		case NotifierWebhook:
			if n.URL == "" {
				missing = "url"
			}
		case NotifierEmail:
			if n.Host == "" || n.From == "" || len(n.To) == 0 {
				missing = "host, from and to"
			}
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
		}
		if missing != "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("notifier %s requires %s", name, missing))
		}
	}
	return nil
}

// BiasList parses the directions that may raise alerts.
func (a AlertsConfig) BiasList() ([]core.Direction, error) {
	out := make([]core.Direction, 0, len(a.Biases))
	for _, s := range a.Biases {
		d, err := core.ParseDirection(s)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		out = append(out, d)
	}
	return out, nil
}
