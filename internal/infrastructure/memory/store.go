package memory

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/avatarctic/tiered-cache/internal/core/domain/cache"
	"github.com/avatarctic/tiered-cache/internal/core/ports"
)

const (
	// DefaultShards is the shard count used when none is configured.
	DefaultShards = 32
	// DefaultSweepEvery is how many writes a shard takes before it sweeps itself.
	DefaultSweepEvery = 50000
)

// Clock returns the current instant.
type Clock func() time.Time

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.now = c
		}
	}
}

// WithShards sets the number of independently locked shards.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithSweepEvery makes every n-th write on a shard sweep that shard.
// Zero disables opportunistic sweeping.
func WithSweepEvery(n uint64) Option {
	return func(s *Store) { s.sweepEvery = n }
}

// WithMetrics reports lazy expirations and opportunistic sweeps.
func WithMetrics(m ports.CacheMetrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// slot is a stored entry tagged with the write that produced it.
type slot struct {
	cache.Entry
	seq uint64
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]slot
	// tombstones keep the sequence of removed keys until the next sweep so
	// their snapshot does not change when an entry goes away.
	tombstones map[string]uint64
	// seq is the last write sequence handed out in this shard.
	seq uint64
	// floor is the snapshot of keys with neither an entry nor a tombstone.
	// It only grows, to at least every sequence a sweep forgets.
	floor  uint64
	writes uint64
}

func (sh *shard) versionLocked(key string) uint64 {
	if e, ok := sh.entries[key]; ok {
		return e.seq
	}
	if seq, ok := sh.tombstones[key]; ok {
		return seq
	}
	return sh.floor
}

func (sh *shard) putLocked(key string, e cache.Entry) {
	sh.seq++
	sh.entries[key] = slot{Entry: e, seq: sh.seq}
	delete(sh.tombstones, key)
}

// Store is a sharded in-process TTL entry store.
// Expired entries are never returned: they are removed by the access that
// finds them and, for entries nobody reads again, by Sweep.
type Store struct {
	shards     []*shard
	shardCount int
	sweepEvery uint64
	now        Clock
	metrics    ports.CacheMetrics
}

var _ ports.LocalStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		shardCount: DefaultShards,
		sweepEvery: DefaultSweepEvery,
		now:        time.Now,
		metrics:    ports.NoopCacheMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]slot), tombstones: make(map[string]uint64)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Get returns the value for key if it is present and live.
func (s *Store) Get(key string) (string, bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return "", false
	}

	now := s.now()
	if e.Live(now) {
		return e.Value, true
	}

	// Dead on read: take the write lock and look again, a writer may have
	// replaced the entry in between.
	sh.mu.Lock()
	cur, ok := sh.entries[key]
	if ok && cur.Live(now) {
		sh.mu.Unlock()
		return cur.Value, true
	}
	if ok {
		delete(sh.entries, key)
		sh.tombstones[key] = cur.seq
	}
	sh.mu.Unlock()

	if ok {
		s.metrics.Expired(1)
	}
	return "", false
}

// Set inserts or overwrites key. The entry expires ttl after now.
func (s *Store) Set(key, value string, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if err := cache.ValidateTTL(ttl); err != nil {
		return err
	}

	now := s.now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.putLocked(key, cache.Entry{Value: value, ExpiresAt: now.Add(ttl)})
	swept := s.afterWriteLocked(sh, now)
	sh.mu.Unlock()

	if swept > 0 {
		s.metrics.Swept(swept)
	}
	return nil
}

// Delete removes key and reports whether an entry, live or not, was stored.
func (s *Store) Delete(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.entries[key]
	delete(sh.entries, key)
	sh.seq++
	sh.tombstones[key] = sh.seq
	sh.mu.Unlock()
	return ok
}

// Sweep removes every entry with ExpiresAt <= now and returns how many it removed.
// Shards are locked one at a time.
func (s *Store) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += sweepLocked(sh, now)
		sh.mu.Unlock()
	}
	return removed
}

// Snapshot returns the write version of key. It changes whenever key is Set,
// Deleted or filled, and when a sweep forgets removed keys of its shard.
// Writes to other keys leave it alone.
func (s *Store) Snapshot(key string) uint64 {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.versionLocked(key)
}

// Fill stores value unless key is live or was written since snapshot.
func (s *Store) Fill(key, value string, ttl time.Duration, snapshot uint64) bool {
	if cache.ValidateKey(key) != nil || cache.ValidateTTL(ttl) != nil {
		return false
	}

	now := s.now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	if sh.versionLocked(key) != snapshot {
		sh.mu.Unlock()
		return false
	}
	if e, ok := sh.entries[key]; ok && e.Live(now) {
		sh.mu.Unlock()
		return false
	}
	sh.putLocked(key, cache.Entry{Value: value, ExpiresAt: now.Add(ttl)})
	swept := s.afterWriteLocked(sh, now)
	sh.mu.Unlock()

	if swept > 0 {
		s.metrics.Swept(swept)
	}
	return true
}

// Len returns the number of stored entries, including dead ones not yet removed.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) afterWriteLocked(sh *shard, now time.Time) int {
	sh.writes++
	if s.sweepEvery == 0 || sh.writes%s.sweepEvery != 0 {
		return 0
	}
	return sweepLocked(sh, now)
}

// sweepLocked removes dead entries and forgets tombstones, raising the
// floor past every sequence it drops.
func sweepLocked(sh *shard, now time.Time) int {
	removed := 0
	for k, e := range sh.entries {
		if !e.Live(now) {
			delete(sh.entries, k)
			sh.floor = max(sh.floor, e.seq)
			removed++
		}
	}
	for k, seq := range sh.tombstones {
		delete(sh.tombstones, k)
		sh.floor = max(sh.floor, seq)
	}
	return removed
}
