package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diffly",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Health server request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffly",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total health server requests",
		},
		[]string{"method", "path", "status"},
	)

	CrawlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diffly",
			Subsystem: "crawl",
			Name:      "request_duration_seconds",
			Help:      "Upstream storefront request latency",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"host", "method", "status"},
	)

	CrawlRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffly",
			Subsystem: "crawl",
			Name:      "requests_total",
			Help:      "Upstream storefront requests by outcome",
		},
		[]string{"host", "method", "status"},
	)

	CrawlRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffly",
			Subsystem: "crawl",
			Name:      "retries_total",
			Help:      "Upstream requests retried after a transient failure",
		},
		[]string{"host", "reason"},
	)

	CrawlDelay = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "diffly",
			Subsystem: "crawl",
			Name:      "throttle_delay_seconds",
			Help:      "Current adaptive delay between requests per host",
		},
		[]string{"host"},
	)

	PagesScraped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffly",
			Subsystem: "crawl",
			Name:      "pages_total",
			Help:      "Catalog pages received per region",
		},
		[]string{"region"},
	)

	IngestedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffly",
			Subsystem: "ingest",
			Name:      "items_total",
			Help:      "Catalog items processed by the pipeline",
		},
		[]string{"region", "outcome"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "diffly",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Items waiting in the ingestion queue",
		},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers every collector with the default registry once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpDuration, HttpRequests,
			CrawlDuration, CrawlRequests, CrawlRetries, CrawlDelay,
			PagesScraped, IngestedItems, QueueDepth,
		)
	})
}
