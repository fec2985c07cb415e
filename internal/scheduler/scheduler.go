// Package scheduler triggers bias refreshes on a cron schedule in exchange time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/marketbias/internal/levels"
	"github.com/newthinker/marketbias/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recomputes every tracked index.
type Refresher interface {
	Refresh(ctx context.Context) (store.Run, error)
}

// Config controls when refreshes run.
type Config struct {
	Schedule   string // six-field cron with seconds; empty disables scheduling
	RunOnStart bool
	Timeout    time.Duration // bound on a single refresh; zero means none
}

// Scheduler manages the refresh cron job.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entry   cron.EntryID
	running bool
	wg      sync.WaitGroup
}

// New creates a scheduler. Schedules are evaluated in IST.
func New(r Refresher, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(levels.IST),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		refresher: r,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the refresh job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if s.cfg.Schedule != "" {
		id, err := s.cron.AddFunc(s.cfg.Schedule, s.RunNow)
		if err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
		s.entry = id
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Bool("run_on_start", s.cfg.RunOnStart),
	)

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunNow()
		}()
	}
	return nil
}

// Stop halts the cron loop and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunNow executes one refresh immediately.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	run, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Error("scheduled refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled refresh done", zap.String("run_id", run.ID))
}

// Next returns the next scheduled run, or zero when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	*zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, append(keysAndValues, "error", err)...)
}
