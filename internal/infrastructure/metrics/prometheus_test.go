package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tiered-cache/internal/infrastructure/metrics"
)

func TestCacheMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCacheMetrics(reg)

	m.LocalHit()
	m.LocalHit()
	m.RemoteHit()
	m.Miss()
	m.RemoteError("set")
	m.PartialFailure("set")
	m.Expired(2)
	m.Swept(5)

	expected := `
# HELP cache_lookups_total Cache reads by the tier that answered them (local, remote, miss)
# TYPE cache_lookups_total counter
cache_lookups_total{result="local"} 2
cache_lookups_total{result="miss"} 1
cache_lookups_total{result="remote"} 1
# HELP cache_expired_entries_total Expired local entries removed, by mechanism (lazy, sweep)
# TYPE cache_expired_entries_total counter
cache_expired_entries_total{mechanism="lazy"} 2
cache_expired_entries_total{mechanism="sweep"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cache_lookups_total", "cache_expired_entries_total"))
	n, err := testutil.GatherAndCount(reg, "cache_lookups_total", "cache_remote_errors_total", "cache_partial_failures_total")
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestCacheMetrics_NilRegistererDoesNotPanic(t *testing.T) {
	m := metrics.NewCacheMetrics(nil)
	require.NotPanics(t, func() { m.Miss() })
}
