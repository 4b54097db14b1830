package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarctic/tiered-cache/internal/core/ports"
)

// CacheMetrics implements ports.CacheMetrics with Prometheus collectors.
type CacheMetrics struct {
	lookups         *prometheus.CounterVec
	remoteErrors    *prometheus.CounterVec
	partialFailures *prometheus.CounterVec
	evictions       *prometheus.CounterVec
}

var _ ports.CacheMetrics = (*CacheMetrics)(nil)

// NewCacheMetrics creates the cache collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Cache reads by the tier that answered them (local, remote, miss)",
			},
			[]string{"result"},
		),
		remoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_remote_errors_total",
				Help: "Failed requests to the distributed tier by operation",
			},
			[]string{"op"},
		),
		partialFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_partial_failures_total",
				Help: "Writes applied locally whose remote write failed, by operation",
			},
			[]string{"op"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_expired_entries_total",
				Help: "Expired local entries removed, by mechanism (lazy, sweep)",
			},
			[]string{"mechanism"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.remoteErrors, m.partialFailures, m.evictions)
	}
	return m
}

func (m *CacheMetrics) LocalHit()  { m.lookups.WithLabelValues("local").Inc() }
func (m *CacheMetrics) RemoteHit() { m.lookups.WithLabelValues("remote").Inc() }
func (m *CacheMetrics) Miss()      { m.lookups.WithLabelValues("miss").Inc() }

func (m *CacheMetrics) RemoteError(op string) { m.remoteErrors.WithLabelValues(op).Inc() }

func (m *CacheMetrics) PartialFailure(op string) { m.partialFailures.WithLabelValues(op).Inc() }

func (m *CacheMetrics) Expired(n int) { m.evictions.WithLabelValues("lazy").Add(float64(n)) }

func (m *CacheMetrics) Swept(n int) { m.evictions.WithLabelValues("sweep").Add(float64(n)) }
