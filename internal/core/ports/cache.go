package ports

import (
	"context"
	"time"
)

// RemoteCache is the distributed tier contract.
// A missing key is reported as found=false with a nil error; any error means
// the request itself failed and must not be read as a miss.
type RemoteCache interface {
	// Get returns the value for key. found=false if absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value for key, expiring after ttl.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete removes the key; absence is not an error.
	Delete(ctx context.Context, key string) error
}

// RemoteTTLReader is implemented by backends that can report the remaining
// TTL of a key alongside its value.
type RemoteTTLReader interface {
	// GetWithTTL returns the value and its remaining TTL. remaining<=0 means unknown.
	GetWithTTL(ctx context.Context, key string) (value string, remaining time.Duration, found bool, err error)
}

// LocalStore is the in-process TTL entry store.
// Implementations must be safe for concurrent use.
type LocalStore interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration) error
	Delete(key string) bool
	Sweep(now time.Time) int
	// Snapshot returns a token that Fill compares against to detect
	// writes to key made after the snapshot was taken.
	Snapshot(key string) uint64
	// Fill inserts value only if key holds no live entry and no Set or
	// Delete touched it since snapshot. Reports whether it inserted.
	Fill(key, value string, ttl time.Duration, snapshot uint64) bool
	Len() int
}

// Loader computes a value on a full cache miss.
type Loader func(ctx context.Context) (string, error)

// CacheService is the two-tier cache entry point.
type CacheService interface {
	// Get never fails: remote errors degrade to a miss.
	Get(ctx context.Context, key string) (string, bool)
	// Set writes both tiers. A remote failure yields a *cache.PartialFailure.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes from both tiers. A remote failure yields a *cache.PartialFailure.
	Delete(ctx context.Context, key string) error
	// Resolve returns the cached value or loads, stores and returns it.
	Resolve(ctx context.Context, key string, ttl time.Duration, load Loader) (string, error)
}

// CacheMetrics records cache activity. Implementations must be safe for concurrent use.
type CacheMetrics interface {
	LocalHit()
	RemoteHit()
	Miss()
	RemoteError(op string)
	PartialFailure(op string)
	Expired(n int)
	Swept(n int)
}

// NoopCacheMetrics discards everything.
type NoopCacheMetrics struct{}

func (NoopCacheMetrics) LocalHit()             {}
func (NoopCacheMetrics) RemoteHit()            {}
func (NoopCacheMetrics) Miss()                 {}
func (NoopCacheMetrics) RemoteError(string)    {}
func (NoopCacheMetrics) PartialFailure(string) {}
func (NoopCacheMetrics) Expired(int)           {}
func (NoopCacheMetrics) Swept(int)             {}
