// Package sweeper periodically expires overdue assignments and re-dispatches
// chains left without an active assignment.
package sweeper

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/lead-dispatch/internal/config"
	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/observability"
	"github.com/spec-kit/lead-dispatch/internal/service"
)

// Expirer is the slice of the dispatch service the sweeper drives.
type Expirer interface {
	Overdue(ctx context.Context, limit int) ([]domain.Assignment, error)
	HandleExpiry(ctx context.Context, assignmentID string) (service.ExpiryOutcome, error)
	RecoverStalled(ctx context.Context, grace time.Duration, limit int) (int, error)
}

// Locker hands out a lease so only one replica sweeps per cycle.
type Locker interface {
	TryLock(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, holder string) error
}

// Options tunes a sweeper.
type Options struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	BatchSize    int
	Concurrency  int
	StalledGrace time.Duration
	LockKey      string
}

// OptionsFromConfig maps environment configuration onto Options.
func OptionsFromConfig(cfg config.SweeperConfig) Options {
	return Options{
		Interval:     cfg.Interval(),
		CycleTimeout: cfg.CycleTimeout(),
		BatchSize:    cfg.BatchSize,
		Concurrency:  cfg.Concurrency,
		StalledGrace: cfg.StalledGrace(),
		LockKey:      cfg.LockKey,
	}
}

// CycleResult summarises one sweep.
type CycleResult struct {
	Skipped   bool
	Overdue   int
	Expired   int
	Failed    int
	Recovered int
}

// Sweeper scans for overdue assignments on a fixed interval.
type Sweeper struct {
	expirer Expirer
	locker  Locker
	opts    Options
	holder  string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New builds a sweeper. locker may be nil for single-replica deployments.
func New(expirer Expirer, locker Locker, opts Options, logger *zap.Logger, metrics *observability.Metrics) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.CycleTimeout <= 0 || opts.CycleTimeout > opts.Interval {
		opts.CycleTimeout = opts.Interval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	host, _ := os.Hostname()
	return &Sweeper{
		expirer: expirer,
		locker:  locker,
		opts:    opts,
		holder:  fmt.Sprintf("%s/%s", host, uuid.NewString()),
		logger:  logger,
		metrics: metrics,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.expirer == nil {
		return
	}
	s.logger.Info("sweeper started", zap.Duration("interval", s.opts.Interval))
	s.sweep(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Warn("sweep cycle failed", zap.Error(err))
		return
	}
	if result.Expired > 0 || result.Failed > 0 || result.Recovered > 0 {
		s.logger.Info("sweep cycle finished",
			zap.Int("overdue", result.Overdue),
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed),
			zap.Int("recovered", result.Recovered))
	}
}

// RunOnce performs a single bounded cycle.
func (s *Sweeper) RunOnce(ctx context.Context) (CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CycleTimeout)
	defer cancel()
	started := time.Now()

	if s.locker != nil && s.opts.LockKey != "" {
		held, err := s.locker.TryLock(ctx, s.opts.LockKey, s.holder, s.opts.CycleTimeout)
		switch {
		case err != nil:
			s.logger.Warn("sweeper lease unavailable, sweeping without it", zap.Error(err))
		case !held:
			s.logger.Debug("sweeper lease held elsewhere, skipping cycle")
			return CycleResult{Skipped: true}, nil
		default:
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), s.opts.LockKey, s.holder); err != nil {
					s.logger.Warn("failed to release sweeper lease", zap.Error(err))
				}
			}()
		}
	}

	overdue, err := s.expirer.Overdue(ctx, s.opts.BatchSize)
	if err != nil {
		return CycleResult{}, err
	}
	result := CycleResult{Overdue: len(overdue)}

	var expired, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, a := range overdue {
		assignmentID := a.ID
		g.Go(func() error {
			outcome, err := s.expirer.HandleExpiry(gctx, assignmentID)
			if outcome.Expired {
				expired.Add(1)
			}
			if err != nil {
				failed.Add(1)
				s.logger.Warn("expiry handling failed", zap.String("assignment_id", assignmentID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	result.Expired = int(expired.Load())
	result.Failed = int(failed.Load())

	recovered, err := s.expirer.RecoverStalled(ctx, s.opts.StalledGrace, s.opts.BatchSize)
	if err != nil {
		s.logger.Warn("stalled chain recovery failed", zap.Error(err))
	}
	result.Recovered = recovered

	s.metrics.RecordSweep(ctx, result.Expired, time.Since(started))
	return result, nil
}
