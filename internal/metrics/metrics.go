package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ReadingsIngested *prometheus.CounterVec
	ReadingsRejected *prometheus.CounterVec
	BatchesStored    prometheus.Counter
	BatchErrors      *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	BandAlerts       *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartline_readings_ingested_total",
			Help: "Readings accepted for storage, by transport.",
		}, []string{"source"}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartline_readings_rejected_total",
			Help: "Device messages rejected at ingestion, by transport and reason.",
		}, []string{"source", "reason"}),
		BatchesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heartline_batches_stored_total",
			Help: "Reading batches written to the store.",
		}),
		BatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartline_batch_errors_total",
			Help: "Reading batches that failed, by stage.",
		}, []string{"stage"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "heartline_batch_duration_seconds",
			Help:    "Time spent storing and forwarding a batch.",
			Buckets: prometheus.DefBuckets,
		}),
		BandAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartline_band_alerts_total",
			Help: "Readings outside the fixed vital bands.",
		}, []string{"metric", "band"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartline_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heartline_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.ReadingsIngested,
		m.ReadingsRejected,
		m.BatchesStored,
		m.BatchErrors,
		m.BatchDuration,
		m.BandAlerts,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}
