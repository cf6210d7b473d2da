// Package metrics exposes prometheus instruments for the cache and the remote
// client. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docfiler"

// Metrics groups every instrument registered by docfiler.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups    *prometheus.CounterVec
	remoteFetches   *prometheus.CounterVec
	remoteDuration  *prometheus.HistogramVec
	remoteRetries   prometheus.Counter
	sharedFetches   prometheus.Counter
	discardedMerges prometheus.Counter
	persistFailures prometheus.Counter
	expansionRuns   prometheus.Counter
	snapshotRecords *prometheus.GaugeVec
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Lookups served by the cache, by source and result (hit or miss).",
		}, []string{"source", "result"}),
		remoteFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_fetches_total",
			Help:      "Remote list fetches, by list key and outcome.",
		}, []string{"list", "outcome"}),
		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_fetch_seconds",
			Help:      "Duration of complete, paginated remote list fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"list"}),
		remoteRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "HTTP requests retried after a retryable failure.",
		}),
		sharedFetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_shared_fetches_total",
			Help:      "Callers that joined an in-flight fetch instead of starting one.",
		}),
		discardedMerges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_discarded_merges_total",
			Help:      "Fetch results dropped because the cache was cleared while they ran.",
		}),
		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_persist_failures_total",
			Help:      "Snapshot writes rejected by the local store.",
		}),
		expansionRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expansion_runs_total",
			Help:      "Background expansion passes started.",
		}),
		snapshotRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_snapshot_records",
			Help:      "Records held in the current snapshot, by partition.",
		}, []string{"partition"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CacheLookup(source string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(source, result).Inc()
}

func (m *Metrics) RemoteFetch(list string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteFetches.WithLabelValues(list, outcome).Inc()
	m.remoteDuration.WithLabelValues(list).Observe(took.Seconds())
}

func (m *Metrics) RemoteRetry() {
	if m == nil {
		return
	}
	m.remoteRetries.Inc()
}

func (m *Metrics) SharedFetch() {
	if m == nil {
		return
	}
	m.sharedFetches.Inc()
}

func (m *Metrics) DiscardedMerge() {
	if m == nil {
		return
	}
	m.discardedMerges.Inc()
}

func (m *Metrics) PersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ExpansionRun() {
	if m == nil {
		return
	}
	m.expansionRuns.Inc()
}

// SnapshotSize records the size of each snapshot partition.
func (m *Metrics) SnapshotSize(partition string, n int) {
	if m == nil {
		return
	}
	m.snapshotRecords.WithLabelValues(partition).Set(float64(n))
}
