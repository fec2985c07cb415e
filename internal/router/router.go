// Package router turns refreshed snapshots into bias change alerts.
package router

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/metrics"
	"github.com/newthinker/marketbias/internal/notifier"
	"github.com/newthinker/marketbias/internal/store"
	"go.uber.org/zap"
)

// Config holds router configuration
type Config struct {
	MinConfidence    int              `mapstructure:"min_confidence"`
	CooldownDuration time.Duration    `mapstructure:"cooldown_duration"`
	EnabledBiases    []core.Direction `mapstructure:"enabled_biases"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		MinConfidence:    0,
		CooldownDuration: 30 * time.Minute,
		EnabledBiases:    []core.Direction{core.Bullish, core.Bearish, core.Neutral},
	}
}

// Router watches per-index direction and forwards changes to notifiers.
// The first snapshot seen for an index only sets the baseline.
type Router struct {
	cfg      Config
	registry *notifier.Registry
	metrics  *metrics.Registry
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.RWMutex
	cooldowns  map[core.Index]time.Time // index -> last alert time
	last       map[core.Index]core.Direction
	routed     int
	suppressed int
}

// New creates a new alert router
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
		cooldowns: make(map[core.Index]time.Time),
		last:      make(map[core.Index]core.Direction),
	}
}

// SetMetrics enables delivery metrics.
func (r *Router) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// Run routes every snapshot set from updates until ctx is done or updates closes.
func (r *Router) Run(ctx context.Context, updates <-chan []store.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snaps, ok := <-updates:
			if !ok {
				return
			}
			r.Observe(ctx, snaps)
		}
	}
}

// Observe detects direction changes in snaps and routes them. It returns the
// alerts that passed the filters.
func (r *Router) Observe(ctx context.Context, snaps []store.Snapshot) []notifier.Alert {
	changes := r.detect(snaps)
	if len(changes) == 0 {
		return nil
	}
	return r.RouteBatch(ctx, changes)
}

// detect compares snaps against the last known direction per index.
// Fallback records never move the baseline.
func (r *Router) detect(snaps []store.Snapshot) []notifier.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []notifier.Alert
	for _, snap := range snaps {
		b := snap.Bias
		if b.Fallback {
			continue
		}
		prev, seen := r.last[b.Index]
		r.last[b.Index] = b.Bias
		if !seen || prev == b.Bias {
			continue
		}
		changes = append(changes, notifier.Alert{
			Index:    b.Index,
			Previous: prev,
			Bias:     b,
			RunID:    snap.RunID,
		})
	}
	return changes
}

// RouteBatch filters alerts and delivers the survivors in one message per notifier.
func (r *Router) RouteBatch(ctx context.Context, alerts []notifier.Alert) []notifier.Alert {
	var filtered []notifier.Alert

	for _, alert := range alerts {
		if !r.passesFilters(alert) {
			r.logger.Debug("alert filtered out",
				zap.String("index", string(alert.Index)),
				zap.String("bias", string(alert.Bias.Bias)),
				zap.Int("confidence", alert.Bias.Confidence),
			)
			r.mu.Lock()
			r.suppressed++
			r.mu.Unlock()
			continue
		}
		filtered = append(filtered, alert)

		// Update cooldown
		r.mu.Lock()
		r.cooldowns[alert.Index] = r.now()
		r.routed++
		r.mu.Unlock()
	}

	if len(filtered) == 0 {
		return nil
	}

	// Nil registry is allowed
	if r.registry == nil || r.registry.Len() == 0 {
		return filtered
	}

	var errors map[string]error
	if len(filtered) == 1 {
		errors = r.registry.NotifyAll(ctx, filtered[0])
	} else {
		errors = r.registry.NotifyAllBatch(ctx, filtered)
	}

	for _, name := range r.registry.Names() {
		status := "sent"
		if err, failed := errors[name]; failed {
			status = "failed"
			r.logger.Error("notifier failed",
				zap.String("notifier", name),
				zap.Error(err),
			)
		}
		if r.metrics != nil {
			r.metrics.RecordAlert(name, status)
		}
	}

	r.logger.Info("alerts routed",
		zap.Int("total", len(alerts)),
		zap.Int("filtered", len(filtered)),
		zap.Int("notifiers", r.registry.Len()),
		zap.Int("errors", len(errors)),
	)

	return filtered
}

// passesFilters checks if an alert passes all configured filters
func (r *Router) passesFilters(alert notifier.Alert) bool {
	if alert.Bias.Confidence < r.cfg.MinConfidence {
		return false
	}

	if len(r.cfg.EnabledBiases) > 0 && !slices.Contains(r.cfg.EnabledBiases, alert.Bias.Bias) {
		return false
	}

	// Check cooldown
	r.mu.RLock()
	lastAlert, exists := r.cooldowns[alert.Index]
	r.mu.RUnlock()

	if exists && r.now().Sub(lastAlert) < r.cfg.CooldownDuration {
		return false
	}

	return true
}

// CleanupExpiredCooldowns removes cooldown entries older than 2x the cooldown duration.
func (r *Router) CleanupExpiredCooldowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	expiry := r.cfg.CooldownDuration * 2
	removed := 0

	for index, lastTime := range r.cooldowns {
		if now.Sub(lastTime) > expiry {
			delete(r.cooldowns, index)
			removed++
		}
	}

	return removed
}

// StartCleanupRoutine starts a background goroutine that periodically cleans up expired cooldowns.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := r.CleanupExpiredCooldowns()
				if removed > 0 {
					r.logger.Debug("cleaned up expired cooldowns", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notifiers := 0
	if r.registry != nil {
		notifiers = r.registry.Len()
	}

	return map[string]any{
		"cooldowns_active": len(r.cooldowns),
		"tracked_indices":  len(r.last),
		"routed":           r.routed,
		"suppressed":       r.suppressed,
		"notifiers":        notifiers,
		"min_confidence":   r.cfg.MinConfidence,
		"cooldown_seconds": r.cfg.CooldownDuration.Seconds(),
		"enabled_biases":   r.cfg.EnabledBiases,
	}
}
