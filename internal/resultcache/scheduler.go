package resultcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/storage"
)

// SchedulerStatus describes the most recent sweep.
type SchedulerStatus struct {
	Running   bool        `json:"running"`
	Last      SweepReport `json:"last_report"`
	LastAt    time.Time   `json:"last_finished_at"`
	LastError string      `json:"last_error,omitempty"`
}

// Scheduler runs checkpointed sweeps on an interval and on demand, never more than one
// at a time.
type Scheduler struct {
	cache       *Cache
	cp          storage.Checkpoints
	interval    time.Duration
	opts        SweepOptions
	resetWindow bool
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	status  SchedulerStatus
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. When resetWindow is set, each scheduled sweep that
// completes also zeroes the windowed hit counters, so the window spans one interval.
func NewScheduler(cache *Cache, cp storage.Checkpoints, interval time.Duration, opts SweepOptions, resetWindow bool) *Scheduler {
	return &Scheduler{
		cache:       cache,
		cp:          cp,
		interval:    interval,
		opts:        opts,
		resetWindow: resetWindow,
		logger:      cache.logger,
	}
}

// Run sweeps every interval until ctx is done. A sweep still in progress when a tick
// arrives causes that tick to be skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-ticker.C:
			if !s.acquire() {
				s.logger.Info("skipping scheduled sweep, previous sweep still running")
				continue
			}
			s.sweep(ctx, s.opts, s.resetWindow)
		}
	}
}

// Trigger starts a sweep in the background unless one is already running. Zero fields
// of opts fall back to the scheduler's options.
func (s *Scheduler) Trigger(ctx context.Context, opts SweepOptions) bool {
	if !s.acquire() {
		return false
	}
	if opts.PageSize == 0 {
		opts.PageSize = s.opts.PageSize
	}
	if opts.MinSpacing == 0 {
		opts.MinSpacing = s.opts.MinSpacing
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx, opts, false)
	}()
	return true
}

// Wait blocks until any triggered sweep has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status returns the state of the most recent sweep.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Running = s.running
	return st
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) sweep(ctx context.Context, opts SweepOptions, resetWindow bool) {
	report, err := s.cache.Sweep(ctx, s.cp, opts)
	if err == nil && report.Completed && resetWindow {
		if _, rerr := s.cache.ResetWindow(ctx); rerr != nil {
			s.logger.Error("failed to reset hit window", zap.Error(rerr))
		}
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Error("refresh sweep failed", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.status.Last = report
	s.status.LastAt = time.Now().UTC()
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}
