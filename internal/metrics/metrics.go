// Package metrics defines Prometheus metrics for the event log.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_api_errors_total",
			Help: "Worker API error responses by code",
		},
		[]string{"code"},
	)

	EventsCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_events_captured_total",
			Help: "Events persisted by capture type",
		},
		[]string{"type"},
	)

	CaptureSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_capture_skipped_total",
			Help: "Requests not captured, by reason",
		},
		[]string{"reason"},
	)

	CaptureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_capture_failures_total",
			Help: "Events that failed to persist, by capture type",
		},
		[]string{"type"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_deliveries_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventlog_delivery_duration_seconds",
			Help:    "Event Hub POST duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventlog_sweep_duration_seconds",
			Help:    "Duration of one delivery sweep",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	EventsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventlog_events",
			Help: "Stored events by delivery state, refreshed after each sweep",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		EventsCaptured, CaptureSkipped, CaptureFailures,
		DeliveriesTotal, DeliveryDuration, SweepDuration,
		EventsByState,
	)
}
