package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the tracker.
type Metrics struct {
	// Feed fetching.
	FeedFetches       *prometheus.CounterVec   // labels: feed={tracking,weather}, outcome={success,error}
	FeedFetchDuration *prometheus.HistogramVec // labels: feed
	FeedCache         *prometheus.CounterVec   // labels: feed, result={hit,miss,stale}
	FeedDiscarded     *prometheus.CounterVec   // labels: feed; completions older than the applied snapshot
	SnapshotAge       *prometheus.GaugeVec     // labels: feed; seconds since the applied snapshot was fetched

	// Refresh loop.
	RefresherRunning prometheus.Gauge
	RefreshErrors    prometheus.Counter

	// Derived state.
	RidersByStatus    *prometheus.GaugeVec // labels: status (display status, DNF inference applied)
	ArrivalsPublished prometheus.Counter
	PublishErrors     prometheus.Counter
}

// NewMetrics creates and registers all tracker metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.FeedCache,
		m.FeedDiscarded,
		m.SnapshotAge,
		m.RefresherRunning,
		m.RefreshErrors,
		m.RidersByStatus,
		m.ArrivalsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics that are never exported. One-shot
// tools use it to run instrumented components without a /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brevet_tracker",
			Name:      "feed_fetches_total",
			Help:      "Remote feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brevet_tracker",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Remote feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		FeedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brevet_tracker",
			Name:      "feed_cache_total",
			Help:      "Snapshot cache lookups by feed and result.",
		}, []string{"feed", "result"}),
		FeedDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brevet_tracker",
			Name:      "feed_discarded_total",
			Help:      "Fetch completions discarded because a newer request already completed.",
		}, []string{"feed"}),
		SnapshotAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "brevet_tracker",
			Name:      "snapshot_age_seconds",
			Help:      "Age of the snapshot currently served, by feed.",
		}, []string{"feed"}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brevet_tracker",
			Name:      "refresher_running",
			Help:      "1 when the periodic refresh loop is active, 0 when stopped.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brevet_tracker",
			Name:      "refresh_errors_total",
			Help:      "Periodic or manual refreshes that failed.",
		}),
		RidersByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "brevet_tracker",
			Name:      "riders",
			Help:      "Riders in the latest snapshot by display status.",
		}, []string{"status"}),
		ArrivalsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brevet_tracker",
			Name:      "arrivals_published_total",
			Help:      "Checkpoint arrival events written to the broker.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brevet_tracker",
			Name:      "publish_errors_total",
			Help:      "Failed arrival event batch writes.",
		}),
	}
}
