package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the API.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	SheetsProcessed prometheus.Counter
	SheetsFailed    prometheus.Counter
	RecordsEmitted  prometheus.Counter
	TotalMismatches prometheus.Counter
	UnpivotDuration prometheus.Histogram
}

// NewMetrics creates and registers the API instruments on a fresh
// registry, so tests can instantiate them without collisions.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depivot",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		}, []string{"endpoint", "status"}),
		SheetsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "depivot",
			Name:      "sheets_processed_total",
			Help:      "Sheets successfully reshaped.",
		}),
		SheetsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "depivot",
			Name:      "sheets_failed_total",
			Help:      "Sheets that failed reshaping.",
		}),
		RecordsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "depivot",
			Name:      "records_emitted_total",
			Help:      "Long records emitted across all runs.",
		}),
		TotalMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "depivot",
			Name:      "total_mismatches_total",
			Help:      "Validation records whose totals did not match.",
		}),
		UnpivotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "depivot",
			Name:      "unpivot_duration_seconds",
			Help:      "Wall time of one unpivot run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
