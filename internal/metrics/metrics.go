package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_page_requests_total",
			Help: "Total number of catalog page requests executed",
		},
		[]string{"status"},
	)

	PageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogsync_page_duration_seconds",
			Help:    "Duration of catalog page requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	PageBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_page_bytes_total",
			Help: "Total bytes downloaded across all catalog pages",
		},
	)

	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_cycles_total",
			Help: "Scrape cycles by outcome (saved, empty, failed)",
		},
		[]string{"outcome"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogsync_cycle_duration_seconds",
			Help:    "Duration of whole scrape cycles in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ProductsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_products_stored",
			Help: "Number of products written by the last successful replace",
		},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_subscribers",
			Help: "Currently connected notification subscribers",
		},
	)

	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_broadcast_failures_total",
			Help: "Deliveries that failed and removed their subscriber",
		},
	)
)

// RecordPage records one page request. status is the HTTP code or "error".
func RecordPage(status string, d time.Duration, bytes int) {
	PageRequestsTotal.WithLabelValues(status).Inc()
	PageDuration.Observe(d.Seconds())
	PageBytesTotal.Add(float64(bytes))
}

// RecordCycle records a finished scrape cycle.
func RecordCycle(outcome string, d time.Duration) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(d.Seconds())
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
