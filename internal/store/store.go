// Package store refreshes and caches the bias snapshot of every tracked index.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/marketbias/internal/bias"
	"github.com/newthinker/marketbias/internal/collector"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/levels"
	"github.com/newthinker/marketbias/internal/metrics"
	"github.com/newthinker/marketbias/internal/sentiment"
	"go.uber.org/zap"
)

// Snapshot is the latest scored state of one index.
type Snapshot struct {
	Bias         core.MarketBias    `json:"bias"`
	Levels       *core.KeyLevels    `json:"levels,omitempty"`
	OpeningRange *core.OpeningRange `json:"opening_range,omitempty"`
	RunID        string             `json:"run_id"`
	Stale        bool               `json:"stale"`
}

// Run describes one completed refresh.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Snapshots []Snapshot    `json:"snapshots"`
}

// Config controls refresh behavior.
type Config struct {
	Indices      []core.Index
	IndexTimeout time.Duration
	StaleAfter   time.Duration
}

// Store owns the snapshot cache. All methods are safe for concurrent use.
type Store struct {
	cfg        Config
	source     collector.DataSource
	classifier *sentiment.Classifier
	engine     *bias.Engine
	metrics    *metrics.Registry
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	snapshots map[core.Index]Snapshot
	lastRun   *Run
	subs      map[int]chan []Snapshot
	nextSub   int

	refreshMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records refresh metrics into reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Store) { s.metrics = reg }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for fallbacks and staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store.
func New(cfg Config, source collector.DataSource, classifier *sentiment.Classifier, engine *bias.Engine, opts ...Option) *Store {
	s := &Store{
		cfg:        cfg,
		source:     source,
		classifier: classifier,
		engine:     engine,
		logger:     zap.NewNop(),
		now:        time.Now,
		snapshots:  make(map[core.Index]Snapshot),
		subs:       make(map[int]chan []Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Indices returns the tracked indices in configured order.
func (s *Store) Indices() []core.Index {
	out := make([]core.Index, len(s.cfg.Indices))
	copy(out, s.cfg.Indices)
	return out
}

// Refresh scores every index in parallel. An index that fails or exceeds
// its timeout gets the fallback record; Refresh itself only fails when ctx
// is already done.
func (s *Store) Refresh(ctx context.Context) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	run := Run{ID: uuid.NewString(), StartedAt: s.now()}
	start := time.Now()

	results := make([]Snapshot, len(s.cfg.Indices))
	var wg sync.WaitGroup
	for i, index := range s.cfg.Indices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.refreshIndex(ctx, run.ID, index)
		}()
	}
	wg.Wait()

	run.Duration = time.Since(start)
	run.Snapshots = results

	s.mu.Lock()
	for _, snap := range results {
		s.snapshots[snap.Bias.Index] = snap
	}
	s.lastRun = &run
	s.mu.Unlock()

	s.publish(results)

	if s.metrics != nil {
		s.metrics.RecordRefresh(run.Duration.Seconds())
	}
	s.logger.Info("refresh completed",
		zap.String("run_id", run.ID),
		zap.Int("indices", len(results)),
		zap.Duration("duration", run.Duration),
	)

	return run, nil
}

type outcome struct {
	snap Snapshot
	err  error
}

func (s *Store) refreshIndex(ctx context.Context, runID string, index core.Index) Snapshot {
	if s.cfg.IndexTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.IndexTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: core.WrapError(core.ErrScoringFailed, fmt.Errorf("panic: %v", p))}
			}
		}()
		snap, err := s.compute(ctx, index)
		done <- outcome{snap, err}
	}()

	var (
		snap   Snapshot
		err    error
		reason string
	)
	select {
	case o := <-done:
		snap, err = o.snap, o.err
		reason = "error"
	case <-ctx.Done():
		err = core.WrapError(core.ErrSourceTimeout, ctx.Err())
		reason = "timeout"
	}

	if err != nil {
		s.logger.Warn("bias calculation failed, serving fallback",
			zap.String("index", string(index)),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		snap = s.fallback(index)
		if s.metrics != nil {
			s.metrics.RecordFallback(string(index), reason)
		}
	} else if s.metrics != nil {
		s.metrics.RecordBias(string(index), string(snap.Bias.Bias), snap.Bias.Score)
	}

	snap.RunID = runID
	return snap
}

// compute fetches everything for one index and scores it.
func (s *Store) compute(ctx context.Context, index core.Index) (Snapshot, error) {
	daily, err := s.fetch(ctx, index, core.Timeframe1D)
	if err != nil {
		return Snapshot{}, err
	}
	if len(daily) == 0 {
		return Snapshot{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("no daily candles for %s", index))
	}

	fourHour, err := s.fetch(ctx, index, core.Timeframe4H)
	if err != nil {
		return Snapshot{}, err
	}
	oneHour, err := s.fetch(ctx, index, core.Timeframe1H)
	if err != nil {
		return Snapshot{}, err
	}

	prev, err := s.source.FetchPreviousDay(ctx, index)
	if err != nil {
		s.recordSourceError("previous_day")
		return Snapshot{}, err
	}

	raw, err := s.source.FetchNews(ctx)
	if err != nil {
		s.recordSourceError("news")
		return Snapshot{}, err
	}

	in := bias.Input{
		Index:       index,
		Daily:       daily,
		FourHour:    fourHour,
		OneHour:     oneHour,
		PreviousDay: prev,
		News:        s.classifier.ClassifyAll(raw),
	}

	snap := Snapshot{}

	// The opening range and current price are optional extras.
	intraday, err := s.fetch(ctx, index, core.Timeframe15m)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Snapshot{}, err
		}
		s.logger.Debug("no intraday candles", zap.String("index", string(index)), zap.Error(err))
	} else if len(intraday) > 0 {
		price := intraday[len(intraday)-1].Close
		in.CurrentPrice = &price
		if or, ok := levels.FirstFifteen(intraday); ok {
			snap.OpeningRange = &or
		}
	}

	result, err := s.engine.Calculate(in)
	if err != nil {
		return Snapshot{}, core.WrapError(core.ErrScoringFailed, err)
	}

	kl := levels.KeyLevels(prev)
	snap.Bias = result
	snap.Levels = &kl
	return snap, nil
}

func (s *Store) fetch(ctx context.Context, index core.Index, tf core.Timeframe) ([]core.Candle, error) {
	candles, err := s.source.FetchOHLC(ctx, index, tf)
	if err != nil {
		s.recordSourceError("ohlc")
		return nil, err
	}
	return candles, nil
}

func (s *Store) recordSourceError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordSourceError(s.source.Name(), kind)
	}
}

// fallback keeps the last known levels so clients still see a price map.
func (s *Store) fallback(index core.Index) Snapshot {
	snap := Snapshot{Bias: bias.Fallback(index, s.now())}

	s.mu.RLock()
	if prev, ok := s.snapshots[index]; ok {
		snap.Levels = prev.Levels
		snap.OpeningRange = prev.OpeningRange
	}
	s.mu.RUnlock()

	return snap
}

// Get returns the latest snapshot of one index.
func (s *Store) Get(index core.Index) (Snapshot, bool) {
	s.mu.RLock()
	snap, ok := s.snapshots[index]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	snap.Stale = s.stale(snap)
	return snap, true
}

// Snapshots returns the latest snapshot of every index that has one, in configured order.
func (s *Store) Snapshots() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.cfg.Indices))
	for _, index := range s.cfg.Indices {
		if snap, ok := s.snapshots[index]; ok {
			snap.Stale = s.stale(snap)
			out = append(out, snap)
		}
	}
	return out
}

// LastRun returns the most recent refresh, if any.
func (s *Store) LastRun() (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return Run{}, false
	}
	return *s.lastRun, true
}

func (s *Store) stale(snap Snapshot) bool {
	if s.cfg.StaleAfter <= 0 {
		return false
	}
	return s.now().Sub(snap.Bias.LastUpdated) > s.cfg.StaleAfter
}

// Subscribe returns a channel that receives every refreshed snapshot set.
// Slow subscribers only see the newest set. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan []Snapshot, func()) {
	ch := make(chan []Snapshot, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publish(snaps []Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		set := make([]Snapshot, len(snaps))
		copy(set, snaps)
		select {
		case ch <- set:
		default:
			// Drop the unread set and replace it with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- set:
			default:
			}
		}
	}
}
