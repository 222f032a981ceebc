package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Operation latency for the datastore's hot paths.
	InsertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdb_insert_time_seconds",
			Help:    "Time taken by Locking.Insert, by table_id",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table_id"},
	)

	DeleteByRelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdb_delete_by_rel_time_seconds",
			Help:    "Time taken by Locking.Delete, by table_id",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table_id"},
	)

	IterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdb_iter_time_seconds",
			Help:    "Time taken to fully drain an Iter call, by table_id",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table_id"},
	)

	DropTableDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rdb_drop_table_time_seconds",
			Help:    "Time taken by Locking.DropTable, including cascade cleanup of st_indexes/st_sequences/st_constraints",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rdb_commit_time_seconds",
			Help:    "Time taken to append a committed transaction to the commit log",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Structural gauges. They are registered, but no package in this
	// module sets them.
	PagesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rdb_table_pages_total",
			Help: "Number of flat.Page buffers backing a table, by table_id",
		},
		[]string{"table_id"},
	)

	SegmentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rdb_commitlog_segments_total",
			Help: "Number of commit log segment files on disk",
		},
	)

	SequenceHighWater = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rdb_sequence_high_water",
			Help: "Last allocated value of a sequence, by sequence name",
		},
		[]string{"sequence"},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdb_transactions_total",
			Help: "Total transactions by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(InsertDuration)
	prometheus.MustRegister(DeleteByRelDuration)
	prometheus.MustRegister(IterDuration)
	prometheus.MustRegister(DropTableDuration)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(PagesTotal)
	prometheus.MustRegister(SegmentsTotal)
	prometheus.MustRegister(SequenceHighWater)
	prometheus.MustRegister(TransactionsTotal)
}

// Handler returns the Prometheus HTTP handler, for a host process that
// wants to expose /metrics; pkg/rdb itself never listens on a socket.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
