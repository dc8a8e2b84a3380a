// Package metrics declares the Prometheus collectors of the exchange service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spares_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spares_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ExchangeActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spares_exchange_actions_total",
		Help: "Exchange endpoint dispatches by action.",
	}, []string{"action"})

	ExportJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spares_export_jobs_total",
		Help: "Export jobs reaching a terminal state.",
	}, []string{"data_type", "format", "status"})

	ExportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spares_export_duration_seconds",
		Help:    "Time from claim to terminal state of export jobs.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"data_type", "format"})

	ExportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spares_export_records_total",
		Help: "Records written into export payloads.",
	}, []string{"data_type"})

	ImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spares_import_records_total",
		Help: "Imported records by kind and outcome.",
	}, []string{"kind", "outcome"})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spares_export_workers_busy",
		Help: "Export workers currently executing a job.",
	})

	StaleJobsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spares_export_stale_jobs_total",
		Help: "Processing jobs failed by the stale job reaper.",
	})
)
