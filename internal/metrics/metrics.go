package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pisoprint",
			Name:      "uploads_total",
			Help:      "Uploaded documents by result (ok, rejected, malformed, error)",
		},
		[]string{"result"},
	)

	pagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pisoprint",
			Name:      "pages_rendered_total",
			Help:      "Pages rasterized into the cache by paper size",
		},
		[]string{"paper"},
	)

	stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pisoprint",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages (normalize, rasterize, estimate) by paper size",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "paper"},
	)

	estimates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pisoprint",
			Name:      "estimates_total",
			Help:      "Cost estimates by color mode and result",
		},
		[]string{"color", "result"},
	)

	missingPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pisoprint",
			Name:      "estimate_missing_pages_total",
			Help:      "Requested pages that had no cached raster at estimate time",
		},
	)

	cacheDeletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pisoprint",
			Name:      "cache_deletions_total",
			Help:      "Cache file deletions by result (removed, error)",
		},
		[]string{"result"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pisoprint",
			Name:      "orders_total",
			Help:      "Ledger operations by action and result",
		},
		[]string{"action", "result"},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(uploads, pagesRendered, stageLatency, estimates, missingPages, cacheDeletions, orders)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncUpload(result string)              { uploads.WithLabelValues(result).Inc() }
func AddPagesRendered(paper string, n int) { pagesRendered.WithLabelValues(paper).Add(float64(n)) }

func ObserveStage(stage, paper string, dur time.Duration) {
	stageLatency.WithLabelValues(stage, paper).Observe(dur.Seconds())
}

func IncEstimate(color, result string) { estimates.WithLabelValues(color, result).Inc() }
func AddMissingPages(n int)            { missingPages.Add(float64(n)) }
func IncCacheDeletion(result string)   { cacheDeletions.WithLabelValues(result).Inc() }
func IncOrder(action, result string)   { orders.WithLabelValues(action, result).Inc() }
