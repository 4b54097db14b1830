package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/tiered-cache/internal/core/domain/cache"
	"github.com/avatarctic/tiered-cache/internal/core/ports"
)

// CacheServiceConfig groups the coordinator's tunables.
type CacheServiceConfig struct {
	// RepopulationTTL is used for values read through from the remote tier
	// when the backend cannot report their remaining TTL.
	RepopulationTTL time.Duration
	// RepopulationTTLMax caps a reported remaining TTL. Zero means no cap.
	RepopulationTTLMax time.Duration
	// RemoteTimeout bounds every call to the remote tier.
	RemoteTimeout time.Duration
}

// CacheService coordinates the local and remote tiers: read-through on Get,
// write-through on Set and Delete. The local tier is written first and is
// never rolled back; remote failures are swallowed on reads and reported as
// *cache.PartialFailure on writes.
type CacheService struct {
	local           ports.LocalStore
	remote          ports.RemoteCache
	ttlReader       ports.RemoteTTLReader
	repopulationTTL time.Duration
	repopulationMax time.Duration
	remoteTimeout   time.Duration
	metrics         ports.CacheMetrics
	logger          *logrus.Logger

	reads singleflight.Group
	loads singleflight.Group
}

var _ ports.CacheService = (*CacheService)(nil)

func NewCacheService(local ports.LocalStore, remote ports.RemoteCache, cfg *CacheServiceConfig, metrics ports.CacheMetrics, logger *logrus.Logger) *CacheService {
	// Apply defaults
	rt := time.Minute
	var rm time.Duration
	to := 500 * time.Millisecond
	if cfg != nil {
		if cfg.RepopulationTTL > 0 {
			rt = cfg.RepopulationTTL
		}
		if cfg.RepopulationTTLMax > 0 {
			rm = cfg.RepopulationTTLMax
		}
		if cfg.RemoteTimeout > 0 {
			to = cfg.RemoteTimeout
		}
	}
	if metrics == nil {
		metrics = ports.NoopCacheMetrics{}
	}
	s := &CacheService{
		local:           local,
		remote:          remote,
		repopulationTTL: rt,
		repopulationMax: rm,
		remoteTimeout:   to,
		metrics:         metrics,
		logger:          logger,
	}
	if r, ok := remote.(ports.RemoteTTLReader); ok {
		s.ttlReader = r
	}
	return s
}

type remoteValue struct {
	value     string
	remaining time.Duration
	found     bool
}

// Get returns the value for key from the local tier, falling back to the
// remote tier on a local miss. Remote failures are reported as a miss.
func (s *CacheService) Get(ctx context.Context, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	// Taken before the remote read so a Set or Delete racing with it wins
	// over the value we are about to fetch. Callers only share a remote read
	// when they saw the same snapshot.
	snapshot := s.local.Snapshot(key)
	if v, ok := s.local.Get(key); ok {
		s.metrics.LocalHit()
		return v, true
	}

	flight := strconv.FormatUint(snapshot, 10) + "/" + key
	res, err, _ := s.reads.Do(flight, func() (any, error) {
		// Followers must not fail because the leading caller went away.
		rv, err := s.readRemote(context.WithoutCancel(ctx), key)
		if err != nil {
			return remoteValue{}, err
		}
		if rv.found {
			s.local.Fill(key, rv.value, s.repopulationTTLFor(rv.remaining), snapshot)
		}
		return rv, nil
	})
	if err != nil {
		s.metrics.RemoteError(cache.OpGet)
		s.metrics.Miss()
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"key": key, "timeout": isTimeout(err)}).WithError(err).Warn("remote cache read failed; serving as miss")
		}
		return "", false
	}

	rv := res.(remoteValue)
	if !rv.found {
		s.metrics.Miss()
		return "", false
	}
	s.metrics.RemoteHit()
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"key": key}).Debug("local cache repopulated from remote")
	}
	return rv.value, true
}

// Set writes key to the local tier, then to the remote tier.
func (s *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if err := cache.ValidateTTL(ttl); err != nil {
		return err
	}
	if err := s.local.Set(key, value, ttl); err != nil {
		return fmt.Errorf("local cache set: %w", err)
	}

	_, err := withTimeout(ctx, s.remoteTimeout, cache.OpSet, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.remote.Set(ctx, key, value, ttl)
	})
	if err != nil {
		return s.partialFailure(cache.OpSet, key, err)
	}
	return nil
}

// Delete removes key from the local tier, then from the remote tier.
func (s *CacheService) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	s.local.Delete(key)

	_, err := withTimeout(ctx, s.remoteTimeout, cache.OpDelete, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.remote.Delete(ctx, key)
	})
	if err != nil {
		return s.partialFailure(cache.OpDelete, key, err)
	}
	return nil
}

// Resolve returns the cached value for key. On a miss in both tiers it calls
// load once per key across concurrent callers and writes the result through.
// When the remote write fails the loaded value is returned together with the
// *cache.PartialFailure.
func (s *CacheService) Resolve(ctx context.Context, key string, ttl time.Duration, load ports.Loader) (string, error) {
	if err := cache.ValidateKey(key); err != nil {
		return "", err
	}
	if err := cache.ValidateTTL(ttl); err != nil {
		return "", err
	}
	if load == nil {
		return "", errors.New("resolve: nil loader")
	}
	if v, ok := s.Get(ctx, key); ok {
		return v, nil
	}

	res, err, _ := s.loads.Do(key, func() (any, error) {
		if v, ok := s.local.Get(key); ok {
			return v, nil
		}
		// Coalesced callers share this load; the leader leaving must not fail them.
		ctx := context.WithoutCancel(ctx)
		v, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", key, err)
		}
		return v, s.Set(ctx, key, v, ttl)
	})
	v, _ := res.(string)
	return v, err
}

func (s *CacheService) readRemote(ctx context.Context, key string) (remoteValue, error) {
	return withTimeout(ctx, s.remoteTimeout, cache.OpGet, key, func(ctx context.Context) (remoteValue, error) {
		if s.ttlReader != nil {
			v, remaining, found, err := s.ttlReader.GetWithTTL(ctx, key)
			return remoteValue{value: v, remaining: remaining, found: found}, err
		}
		v, found, err := s.remote.Get(ctx, key)
		return remoteValue{value: v, found: found}, err
	})
}

func (s *CacheService) repopulationTTLFor(remaining time.Duration) time.Duration {
	ttl := s.repopulationTTL
	if remaining > 0 {
		ttl = remaining
	}
	if s.repopulationMax > 0 && ttl > s.repopulationMax {
		ttl = s.repopulationMax
	}
	return ttl
}

func (s *CacheService) partialFailure(op, key string, err error) error {
	s.metrics.RemoteError(op)
	s.metrics.PartialFailure(op)
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"key": key, "op": op, "timeout": isTimeout(err)}).WithError(err).Warn("remote cache write failed; local tier kept")
	}
	return &cache.PartialFailure{Op: op, Key: key, Err: err}
}

// withTimeout runs fn against the remote tier and gives up once timeout
// passes, even if fn ignores its context. Every failure comes back as a
// *cache.RemoteError.
func withTimeout[T any](ctx context.Context, timeout time.Duration, op, key string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			return zero, asRemoteError(op, key, r.err)
		}
		return r.v, nil
	case <-ctx.Done():
		return zero, cache.NewRemoteError(op, key, ctx.Err())
	}
}

func asRemoteError(op, key string, err error) error {
	var re *cache.RemoteError
	if errors.As(err, &re) {
		return err
	}
	return cache.NewRemoteError(op, key, err)
}

func isTimeout(err error) bool {
	var re *cache.RemoteError
	return errors.As(err, &re) && re.Timeout()
}
