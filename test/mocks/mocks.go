package mocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avatarctic/tiered-cache/internal/core/domain/cache"
	"github.com/avatarctic/tiered-cache/internal/core/ports"
)

// ErrRemoteDown is returned by FakeRemote while it is failing.
var ErrRemoteDown = errors.New("fake remote: connection refused")

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeEntry struct {
	value     string
	expiresAt time.Time
}

// FakeRemote is an in-memory RemoteCache with call counters and a failure switch.
type FakeRemote struct {
	mu      sync.Mutex
	data    map[string]fakeEntry
	now     func() time.Time
	failing atomic.Bool

	GetCalls    atomic.Int64
	SetCalls    atomic.Int64
	DeleteCalls atomic.Int64
}

var _ ports.RemoteCache = (*FakeRemote)(nil)

// NewFakeRemote creates an empty fake. A nil now uses time.Now.
func NewFakeRemote(now func() time.Time) *FakeRemote {
	if now == nil {
		now = time.Now
	}
	return &FakeRemote{data: make(map[string]fakeEntry), now: now}
}

// SetFailing makes every following call fail (or succeed again).
func (f *FakeRemote) SetFailing(v bool) { f.failing.Store(v) }

// Seed stores a value without counting a call.
func (f *FakeRemote) Seed(key, value string, ttl time.Duration) {
	f.mu.Lock()
	f.data[key] = fakeEntry{value: value, expiresAt: f.now().Add(ttl)}
	f.mu.Unlock()
}

// Peek reads a value without counting a call.
func (f *FakeRemote) Peek(key string) (string, bool) {
	v, _, ok := f.lookup(key)
	return v, ok
}

func (f *FakeRemote) lookup(key string) (string, time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data[key]
	if !ok {
		return "", 0, false
	}
	now := f.now()
	if !now.Before(e.expiresAt) {
		delete(f.data, key)
		return "", 0, false
	}
	return e.value, e.expiresAt.Sub(now), true
}

func (f *FakeRemote) Get(ctx context.Context, key string) (string, bool, error) {
	f.GetCalls.Add(1)
	if f.failing.Load() {
		return "", false, cache.NewRemoteError(cache.OpGet, key, ErrRemoteDown)
	}
	v, _, ok := f.lookup(key)
	return v, ok, nil
}

func (f *FakeRemote) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.SetCalls.Add(1)
	if f.failing.Load() {
		return cache.NewRemoteError(cache.OpSet, key, ErrRemoteDown)
	}
	f.Seed(key, value, ttl)
	return nil
}

func (f *FakeRemote) Delete(ctx context.Context, key string) error {
	f.DeleteCalls.Add(1)
	if f.failing.Load() {
		return cache.NewRemoteError(cache.OpDelete, key, ErrRemoteDown)
	}
	f.mu.Lock()
	delete(f.data, key)
	f.mu.Unlock()
	return nil
}

// FakeTTLRemote additionally reports remaining TTLs.
type FakeTTLRemote struct {
	*FakeRemote
}

var _ ports.RemoteTTLReader = FakeTTLRemote{}

func NewFakeTTLRemote(now func() time.Time) FakeTTLRemote {
	return FakeTTLRemote{FakeRemote: NewFakeRemote(now)}
}

func (f FakeTTLRemote) GetWithTTL(ctx context.Context, key string) (string, time.Duration, bool, error) {
	f.GetCalls.Add(1)
	if f.failing.Load() {
		return "", 0, false, cache.NewRemoteError(cache.OpGet, key, ErrRemoteDown)
	}
	v, remaining, ok := f.lookup(key)
	return v, remaining, ok, nil
}

// RemoteCacheMock is a lightweight mock for RemoteCache
type RemoteCacheMock struct {
	GetFn    func(ctx context.Context, key string) (string, bool, error)
	SetFn    func(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteFn func(ctx context.Context, key string) error
}

func (m *RemoteCacheMock) Get(ctx context.Context, key string) (string, bool, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	return "", false, nil
}
func (m *RemoteCacheMock) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, key, value, ttl)
	}
	return nil
}
func (m *RemoteCacheMock) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	return nil
}

// CacheServiceMock is a lightweight mock for CacheService
type CacheServiceMock struct {
	GetFn     func(ctx context.Context, key string) (string, bool)
	SetFn     func(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteFn  func(ctx context.Context, key string) error
	ResolveFn func(ctx context.Context, key string, ttl time.Duration, load ports.Loader) (string, error)
}

func (m *CacheServiceMock) Get(ctx context.Context, key string) (string, bool) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	return "", false
}
func (m *CacheServiceMock) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, key, value, ttl)
	}
	return nil
}
func (m *CacheServiceMock) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	return nil
}
func (m *CacheServiceMock) Resolve(ctx context.Context, key string, ttl time.Duration, load ports.Loader) (string, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, key, ttl, load)
	}
	return load(ctx)
}

// RateLimitRepositoryMock is a lightweight mock for RateLimitRepository
type RateLimitRepositoryMock struct {
	IncrementWindowFn func(ctx context.Context, clientID string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error)
}

func (m *RateLimitRepositoryMock) IncrementWindow(ctx context.Context, clientID string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
	if m.IncrementWindowFn != nil {
		return m.IncrementWindowFn(ctx, clientID, window, keyPrefix, ttl)
	}
	return 1, time.Now().Truncate(window), nil
}

// RateLimiterServiceMock is a lightweight mock for RateLimiterService
type RateLimiterServiceMock struct {
	AllowFn func(ctx context.Context, clientID string) (bool, int, int, time.Time, error)
}

func (m *RateLimiterServiceMock) Allow(ctx context.Context, clientID string) (bool, int, int, time.Time, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, clientID)
	}
	return true, 1, 1, time.Now(), nil
}

// HealthCheckerMock is a lightweight mock for HealthChecker
type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}
