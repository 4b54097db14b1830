package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tiered-cache/internal/core/ports"
)

// ErrSweeperRunning is returned by Start on a sweeper that is already running.
var ErrSweeperRunning = errors.New("sweeper already running")

// SweeperConfig groups configuration parameters for the sweeper.
type SweeperConfig struct {
	Interval time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

// Sweeper periodically removes expired entries nobody reads any more.
type Sweeper struct {
	store    ports.LocalStore
	interval time.Duration
	now      func() time.Time
	metrics  ports.CacheMetrics
	logger   *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(store ports.LocalStore, cfg *SweeperConfig, metrics ports.CacheMetrics, logger *logrus.Logger) *Sweeper {
	interval := 30 * time.Second
	now := time.Now
	if cfg != nil {
		if cfg.Interval > 0 {
			interval = cfg.Interval
		}
		if cfg.Now != nil {
			now = cfg.Now
		}
	}
	if metrics == nil {
		metrics = ports.NoopCacheMetrics{}
	}
	return &Sweeper{store: store, interval: interval, now: now, metrics: metrics, logger: logger}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrSweeperRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"interval": s.interval.String()}).Info("expiry sweeper started")
	}
	return nil
}

// Stop halts the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if s.logger != nil {
		s.logger.Info("expiry sweeper stopped")
	}
}

// RunOnce sweeps the store immediately and returns how many entries it removed.
func (s *Sweeper) RunOnce() int {
	removed := s.store.Sweep(s.now())
	if removed > 0 {
		s.metrics.Swept(removed)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"removed": removed, "remaining": s.store.Len()}).Debug("expiry sweep finished")
	}
	return removed
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}
