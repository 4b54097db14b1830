package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/tiered-cache/internal/application/services"
	tmocks "github.com/avatarctic/tiered-cache/test/mocks"
)

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	repo := &tmocks.RateLimitRepositoryMock{IncrementWindowFn: func(ctx context.Context, clientID string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
		require.Equal(t, "10.0.0.1", clientID)
		require.Equal(t, "rl", keyPrefix)
		require.Equal(t, 2*window, ttl)
		return 3, epoch, nil
	}}
	svc := impl.NewRateLimiterService(repo, &impl.RateLimiterConfig{RequestsPerMinute: 5, BurstMultiplier: 1, KeyPrefix: "rl"}, nil)

	allowed, remaining, limit, reset, err := svc.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 2, remaining)
	require.Equal(t, 5, limit)
	require.Equal(t, epoch.Add(time.Minute), reset)
}

func TestRateLimiter_DeniesOverBurst(t *testing.T) {
	repo := &tmocks.RateLimitRepositoryMock{IncrementWindowFn: func(ctx context.Context, clientID string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
		return 11, epoch, nil
	}}
	svc := impl.NewRateLimiterService(repo, &impl.RateLimiterConfig{RequestsPerMinute: 5, BurstMultiplier: 2}, nil)

	allowed, remaining, _, _, err := svc.Allow(context.Background(), "c")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	repo := &tmocks.RateLimitRepositoryMock{IncrementWindowFn: func(ctx context.Context, clientID string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
		return 0, epoch, errors.New("redis down")
	}}
	svc := impl.NewRateLimiterService(repo, nil, nil)

	allowed, _, _, _, err := svc.Allow(context.Background(), "c")
	require.Error(t, err)
	require.True(t, allowed)
}
