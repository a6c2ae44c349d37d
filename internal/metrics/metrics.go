// Package metrics holds the Prometheus collectors of the import service.
// They register with the default registry and are served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Imports
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gedimport_imports_total",
			Help: "GEDCOM file imports by final status",
		},
		[]string{"status"}, // complete, failed, cancelled
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gedimport_import_duration_seconds",
			Help:    "Duration of GEDCOM file imports in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	ImportsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gedimport_imports_active",
			Help: "Imports currently holding a limiter slot",
		},
	)

	// Records
	RecordsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gedimport_records_imported_total",
			Help: "Records stored, by record type",
		},
		[]string{"type"},
	)

	RecordsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gedimport_records_failed_total",
			Help: "Records rolled back because they could not be stored",
		},
	)

	RecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gedimport_records_skipped_total",
			Help: "Records of types that are not stored",
		},
	)

	MediaHoisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gedimport_media_hoisted_total",
			Help: "Inline media objects converted to media records",
		},
	)

	// Changes
	ChangesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gedimport_changes_resolved_total",
			Help: "Pending changes resolved, by outcome",
		},
		[]string{"outcome"}, // accepted, rejected
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gedimport_api_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gedimport_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordImport records the outcome of a finished import.
func RecordImport(status string, duration time.Duration) {
	ImportsTotal.WithLabelValues(status).Inc()
	ImportDuration.Observe(duration.Seconds())
}

// RecordStored counts one stored record and the media it hoisted.
func RecordStored(recordType string, mediaHoisted int) {
	RecordsImported.WithLabelValues(recordType).Inc()
	if mediaHoisted > 0 {
		MediaHoisted.Add(float64(mediaHoisted))
	}
}

// RecordChanges counts resolved changes.
func RecordChanges(outcome string, n int) {
	if n > 0 {
		ChangesResolved.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveImport moves the active imports gauge.
func TrackActiveImport(inc bool) {
	if inc {
		ImportsActive.Inc()
	} else {
		ImportsActive.Dec()
	}
}
