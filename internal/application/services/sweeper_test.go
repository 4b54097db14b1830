package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/tiered-cache/internal/application/services"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/memory"
	tmocks "github.com/avatarctic/tiered-cache/test/mocks"
)

func TestSweeper_RunOnceRemovesDeadEntries(t *testing.T) {
	clock := tmocks.NewClock(epoch)
	store := memory.NewStore(memory.WithClock(clock.Now))
	require.NoError(t, store.Set("written-once", "v", time.Second))
	require.NoError(t, store.Set("long", "v", time.Hour))

	sw := impl.NewSweeper(store, &impl.SweeperConfig{Now: clock.Now}, nil, logrus.New())
	require.Equal(t, 0, sw.RunOnce())

	clock.Advance(2 * time.Second)
	require.Equal(t, 1, sw.RunOnce())
	require.Equal(t, 1, store.Len())
}

func TestSweeper_BackgroundLoop(t *testing.T) {
	clock := tmocks.NewClock(epoch)
	store := memory.NewStore(memory.WithClock(clock.Now))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(k, "v", time.Second))
	}
	clock.Advance(time.Minute)

	sw := impl.NewSweeper(store, &impl.SweeperConfig{Interval: 5 * time.Millisecond, Now: clock.Now}, nil, nil)
	require.NoError(t, sw.Start(context.Background()))
	defer sw.Stop()

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSweeper_StartTwiceFails(t *testing.T) {
	sw := impl.NewSweeper(memory.NewStore(), &impl.SweeperConfig{Interval: time.Hour}, nil, nil)
	require.NoError(t, sw.Start(context.Background()))
	require.ErrorIs(t, sw.Start(context.Background()), impl.ErrSweeperRunning)

	sw.Stop()
	sw.Stop()

	require.NoError(t, sw.Start(context.Background()), "a stopped sweeper can be restarted")
	sw.Stop()
}

func TestSweeper_StopsWithContext(t *testing.T) {
	clock := tmocks.NewClock(epoch)
	store := memory.NewStore(memory.WithClock(clock.Now))
	ctx, cancel := context.WithCancel(context.Background())

	sw := impl.NewSweeper(store, &impl.SweeperConfig{Interval: 5 * time.Millisecond, Now: clock.Now}, nil, nil)
	require.NoError(t, sw.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
