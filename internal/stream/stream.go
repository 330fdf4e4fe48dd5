// Package stream delivers the result-cache change outbox to the coordinator as change
// signals, asynchronously from the writes that produced them.
package stream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/coordinator"
	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultBatchSize    = 100

	// OffsetCheckpoint is the checkpoint name holding the last delivered sequence number.
	OffsetCheckpoint = "change_stream"
)

// Handler receives the signals drained from the outbox.
type Handler interface {
	Handle(ctx context.Context, inv coordinator.Invocation) coordinator.Response
}

// Options configures a Stream.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
}

// Stream drains the change outbox in sequence order. Delivery is at-least-once: the
// offset is saved after each batch is handled.
type Stream struct {
	feed    storage.ChangeFeed
	cp      storage.Checkpoints
	handler Handler
	opts    Options
	wake    chan struct{}
	logger  *zap.Logger
}

// New creates a Stream. A nil logger disables logging.
func New(feed storage.ChangeFeed, cp storage.Checkpoints, handler Handler, opts Options, logger *zap.Logger) *Stream {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		feed:    feed,
		cp:      cp,
		handler: handler,
		opts:    opts,
		wake:    make(chan struct{}, 1),
		logger:  logger,
	}
}

// Notify asks a running stream to drain now. It never blocks.
func (s *Stream) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Drain delivers every pending change and returns how many were delivered.
func (s *Stream) Drain(ctx context.Context) (int, error) {
	offset, err := s.loadOffset(ctx)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for {
		changes, err := s.feed.Changes(ctx, offset, s.opts.BatchSize)
		if err != nil {
			return delivered, fmt.Errorf("failed to read changes: %w", err)
		}
		if len(changes) == 0 {
			return delivered, nil
		}
		for _, c := range changes {
			if err := ctx.Err(); err != nil {
				return delivered, err
			}
			s.deliver(ctx, c)
			offset = c.Seq
			delivered++
		}
		if err := s.cp.SaveCheckpoint(ctx, OffsetCheckpoint, strconv.FormatInt(offset, 10)); err != nil {
			return delivered, fmt.Errorf("failed to save stream offset: %w", err)
		}
	}
}

func (s *Stream) deliver(ctx context.Context, c models.Change) {
	resp := s.handler.Handle(ctx, coordinator.ChangeSignal{Key: c.Key, Kind: c.Kind})
	if resp.Status >= 300 {
		s.logger.Warn("change signal not applied",
			zap.Int64("seq", c.Seq),
			zap.String("query", c.Key.Query),
			zap.Int("page_start", c.Key.PageStart),
			zap.Int("status", resp.Status))
	}
}

func (s *Stream) loadOffset(ctx context.Context) (int64, error) {
	v, err := s.cp.LoadCheckpoint(ctx, OffsetCheckpoint)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.logger.Warn("invalid stream offset, starting from the beginning", zap.String("offset", v))
		return 0, nil
	}
	return offset, nil
}

// Run drains on every Notify and every poll interval until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		if n, err := s.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("change stream drain failed", zap.Error(err))
		} else if n > 0 {
			s.logger.Debug("change stream drained", zap.Int("changes", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
	}
}
