// Package metrics exposes Prometheus collectors for the enrichment
// subsystem.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal         *prometheus.CounterVec
	acquisitionsTotal *prometheus.CounterVec
	fetchBytesTotal   prometheus.Counter
	batchDuration     prometheus.Histogram
	brokenLinks       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_jobs_total",
				Help: "Total jobs resolved, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		acquisitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_thumbnail_acquisitions_total",
				Help: "Thumbnails acquired, labeled by winning strategy.",
			},
			[]string{"method"},
		)

		fetchBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrich_fetch_bytes_total",
				Help: "Total bytes downloaded from third-party origins.",
			},
		)

		batchDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrich_batch_duration_seconds",
				Help:    "Duration of one runner batch pass.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		)

		brokenLinks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrich_broken_links",
				Help: "Subjects currently flagged as broken.",
			},
		)
	})
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJob counts a resolved job. Outcome is one of completed, retry or
// failed.
func RecordJob(kind, outcome string) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordAcquisition counts a won thumbnail strategy.
func RecordAcquisition(method string) {
	if acquisitionsTotal == nil {
		return
	}
	acquisitionsTotal.WithLabelValues(method).Inc()
}

// RecordFetchBytes counts downloaded bytes.
func RecordFetchBytes(n int) {
	if fetchBytesTotal == nil || n <= 0 {
		return
	}
	fetchBytesTotal.Add(float64(n))
}

// RecordBatch records the duration of one runner pass.
func RecordBatch(elapsed time.Duration) {
	if batchDuration == nil {
		return
	}
	batchDuration.Observe(elapsed.Seconds())
}

// SetBrokenLinks refreshes the broken-subject gauge.
func SetBrokenLinks(n int) {
	if brokenLinks == nil {
		return
	}
	brokenLinks.Set(float64(n))
}
