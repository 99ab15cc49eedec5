// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Oracle metrics
	OracleCalls       *prometheus.CounterVec // labels: chain, outcome
	OracleCallLatency prometheus.Histogram
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter

	// Annotation metrics
	MessagesFetched   prometheus.Counter
	MessagesDropped   prometheus.Counter
	MentionsAnnotated prometheus.Counter
	AnnotateDuration  prometheus.Histogram

	// Job metrics
	JobsStarted  prometheus.Counter
	JobsFinished *prometheus.CounterVec // label: state

	// Aggregation metrics
	AggregationsRun prometheus.Counter
	SnapshotsStored prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tickerpulse"
	}

	return &Metrics{
		OracleCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Price oracle lookups by chain and outcome.",
		}, []string{"chain", "outcome"}),
		OracleCallLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Price oracle lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_hits_total",
			Help:      "Price cache hits.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_misses_total",
			Help:      "Price cache misses.",
		}),
		MessagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_fetched_total",
			Help:      "Raw messages fetched from the message source.",
		}),
		MessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages dropped for empty text or no valid tickers.",
		}),
		MentionsAnnotated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_annotated_total",
			Help:      "Annotated (message, ticker) records produced.",
		}),
		AnnotateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotate_batch_duration_seconds",
			Help:      "End-to-end annotation batch duration.",
			Buckets:   []float64{1, 5, 15, 60, 300, 600},
		}),
		JobsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Background ingestion jobs started.",
		}),
		JobsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Background ingestion jobs finished by state.",
		}, []string{"state"}),
		AggregationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_run_total",
			Help:      "Aggregation passes executed.",
		}),
		SnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_snapshots_stored_total",
			Help:      "Aggregate snapshot rows persisted.",
		}),
	}
}

// defaultMetrics is the package-level instance used by the Record
// helpers below, so call sites do not need metrics plumbing.
var defaultMetrics = NewMetrics("tickerpulse")

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOracleCall records one price oracle lookup.
func RecordOracleCall(chain, outcome string, seconds float64) {
	defaultMetrics.OracleCalls.WithLabelValues(chain, outcome).Inc()
	defaultMetrics.OracleCallLatency.Observe(seconds)
}

// RecordCacheHit records a price cache hit.
func RecordCacheHit() {
	defaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss records a price cache miss.
func RecordCacheMiss() {
	defaultMetrics.CacheMisses.Inc()
}

// RecordMessagesFetched records raw messages fetched from the source.
func RecordMessagesFetched(n int) {
	defaultMetrics.MessagesFetched.Add(float64(n))
}

// RecordMessagesDropped records messages excluded before annotation.
func RecordMessagesDropped(n int) {
	defaultMetrics.MessagesDropped.Add(float64(n))
}

// RecordAnnotateBatch records one completed annotation batch.
func RecordAnnotateBatch(mentions int, seconds float64) {
	defaultMetrics.MentionsAnnotated.Add(float64(mentions))
	defaultMetrics.AnnotateDuration.Observe(seconds)
}

// RecordJobStarted records a background job start.
func RecordJobStarted() {
	defaultMetrics.JobsStarted.Inc()
}

// RecordJobFinished records a background job completion by state.
func RecordJobFinished(state string) {
	defaultMetrics.JobsFinished.WithLabelValues(state).Inc()
}

// RecordAggregation records one aggregation pass.
func RecordAggregation() {
	defaultMetrics.AggregationsRun.Inc()
}

// RecordSnapshotsStored records persisted snapshot rows.
func RecordSnapshotsStored(n int) {
	defaultMetrics.SnapshotsStored.Add(float64(n))
}
