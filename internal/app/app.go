// Package app wires configuration into a running bias service.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/marketbias/internal/bias"
	"github.com/newthinker/marketbias/internal/collector"
	"github.com/newthinker/marketbias/internal/collector/live"
	"github.com/newthinker/marketbias/internal/collector/mock"
	"github.com/newthinker/marketbias/internal/config"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/metrics"
	"github.com/newthinker/marketbias/internal/notifier"
	"github.com/newthinker/marketbias/internal/notifier/email"
	"github.com/newthinker/marketbias/internal/notifier/telegram"
	"github.com/newthinker/marketbias/internal/notifier/webhook"
	"github.com/newthinker/marketbias/internal/router"
	"github.com/newthinker/marketbias/internal/scheduler"
	"github.com/newthinker/marketbias/internal/sentiment"
	"github.com/newthinker/marketbias/internal/store"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	sources    *collector.Registry
	source     *collector.CachedSource
	classifier *sentiment.Classifier
	engine     *bias.Engine
	metrics    *metrics.Registry
	store      *store.Store
	scheduler  *scheduler.Scheduler
	notifiers  *notifier.Registry
	router     *router.Router

	mu         sync.Mutex
	running    bool
	stopAlerts func()
}

// New builds every component from cfg. cfg must already be valid.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	indices, err := cfg.IndexList()
	if err != nil {
		return nil, err
	}

	lex := sentiment.DefaultLexicon()
	if cfg.Sentiment.LexiconPath != "" {
		lex, err = sentiment.LoadLexicon(cfg.Sentiment.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("loading lexicon: %w", err)
		}
	}

	sources := NewRegistry(cfg.Source, logger)
	selected, err := sources.MustGet(cfg.Source.Provider)
	if err != nil {
		return nil, err
	}
	cached := collector.NewCachedSource(selected, collector.TTLs{
		Candles:     cfg.Cache.CandlesTTL,
		PreviousDay: cfg.Cache.PreviousDayTTL,
		News:        cfg.Cache.NewsTTL,
	})

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	classifier := sentiment.New(lex, logger.Named("sentiment"))
	engine := bias.NewEngine(bias.WithLogger(logger.Named("bias")))

	opts := []store.Option{store.WithLogger(logger.Named("store"))}
	if reg != nil {
		opts = append(opts, store.WithMetrics(reg))
	}
	st := store.New(store.Config{
		Indices:      indices,
		IndexTimeout: cfg.Refresh.IndexTimeout,
		StaleAfter:   cfg.Refresh.StaleAfter,
	}, cached, classifier, engine, opts...)

	sched := scheduler.New(st, scheduler.Config{
		Schedule:   cfg.Refresh.Schedule,
		RunOnStart: cfg.Refresh.RunOnStart,
		Timeout:    cfg.Refresh.IndexTimeout * 2,
	}, logger.Named("scheduler"))

	a := &App{
		cfg:        cfg,
		logger:     logger,
		sources:    sources,
		source:     cached,
		classifier: classifier,
		engine:     engine,
		metrics:    reg,
		store:      st,
		scheduler:  sched,
	}

	if cfg.Alerts.Enabled {
		notifiers, err := NewNotifiers(cfg.Alerts)
		if err != nil {
			return nil, err
		}
		biases, err := cfg.Alerts.BiasList()
		if err != nil {
			return nil, err
		}
		a.notifiers = notifiers
		a.router = router.New(router.Config{
			MinConfidence:    cfg.Alerts.MinConfidence,
			CooldownDuration: cfg.Alerts.Cooldown,
			EnabledBiases:    biases,
		}, notifiers, logger.Named("router"))
		if reg != nil {
			a.router.SetMetrics(reg)
		}
	}

	return a, nil
}

// NewNotifiers builds the enabled notifiers in name order.
func NewNotifiers(cfg config.AlertsConfig) (*notifier.Registry, error) {
	names := make([]string, 0, len(cfg.Notifiers))
	for name := range cfg.Notifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := notifier.NewRegistry()
	for _, name := range names {
		nc := cfg.Notifiers[name]
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		switch name {
		case config.NotifierTelegram:
			n = telegram.New(nc.BotToken, nc.ChatID)
		case config.NotifierWebhook:
			n = webhook.New(nc.URL, nc.Headers)
		case config.NotifierEmail:
			n = email.New(nc.Host, nc.Port, nc.Username, nc.Password, nc.From, nc.To)
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
		}

		if err := n.Init(notifier.Config{Type: name}); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewRegistry registers every known data source. The live source falls
// back to a mock seeded from the same config.
func NewRegistry(cfg config.SourceConfig, logger *zap.Logger) *collector.Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := mock.New(cfg.Seed)

	reg := collector.NewRegistry()
	reg.Register(fallback)
	reg.Register(live.New(collector.Config{
		Provider: cfg.Provider,
		Seed:     cfg.Seed,
		BaseURL:  cfg.BaseURL,
		Retries:  cfg.Retries,
		Timeout:  cfg.Timeout,
	}, fallback, logger.Named("live")))
	return reg
}

// NewSource returns the configured provider's data source.
func NewSource(cfg config.SourceConfig, logger *zap.Logger) (collector.DataSource, error) {
	return NewRegistry(cfg, logger).MustGet(cfg.Provider)
}

// Start launches the refresh scheduler.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("app already running")
	}

	// Subscribe before the first refresh so it sets the alert baseline.
	if a.router != nil {
		alertCtx, cancel := context.WithCancel(ctx)
		updates, unsubscribe := a.store.Subscribe()
		go a.router.Run(alertCtx, updates)
		a.router.StartCleanupRoutine(alertCtx, cleanupInterval(a.cfg.Alerts.Cooldown))
		a.stopAlerts = func() {
			cancel()
			unsubscribe()
		}
	}

	if err := a.scheduler.Start(ctx); err != nil {
		a.haltAlerts()
		return err
	}
	a.running = true

	a.logger.Info("marketbias started",
		zap.String("source", a.source.Name()),
		zap.Int("indices", len(a.store.Indices())),
		zap.Time("next_refresh", a.scheduler.Next()),
	)
	return nil
}

// Stop halts the scheduler and waits for an in-flight refresh.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.scheduler.Stop()
	a.haltAlerts()
	a.running = false
	a.logger.Info("marketbias stopped")
}

func (a *App) haltAlerts() {
	if a.stopAlerts != nil {
		a.stopAlerts()
		a.stopAlerts = nil
	}
}

func cleanupInterval(cooldown time.Duration) time.Duration {
	if cooldown <= 0 {
		return 10 * time.Minute
	}
	return cooldown
}

// RunOnce refreshes every index immediately.
func (a *App) RunOnce(ctx context.Context) (store.Run, error) {
	return a.store.Refresh(ctx)
}

// InvalidateCache drops cached source data so the next refresh refetches.
func (a *App) InvalidateCache() {
	a.source.Invalidate()
}

func (a *App) Store() *store.Store               { return a.store }
func (a *App) Classifier() *sentiment.Classifier { return a.classifier }
func (a *App) Metrics() *metrics.Registry        { return a.metrics }
func (a *App) Source() collector.DataSource      { return a.source }
func (a *App) Router() *router.Router            { return a.router }

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	stats := map[string]any{
		"running": running,
		"source":  a.source.Name(),
		"sources": a.sources.Names(),
		"indices": a.store.Indices(),
	}
	if run, ok := a.store.LastRun(); ok {
		stats["last_run"] = run.ID
		stats["last_run_at"] = run.StartedAt
	}
	if a.router != nil {
		stats["alerts"] = a.router.GetStats()
	}
	if next := a.scheduler.Next(); !next.IsZero() {
		stats["next_refresh"] = next
	}
	return stats
}
