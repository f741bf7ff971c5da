package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpenAQAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_openaq_api_calls_total",
			Help: "Total air-quality API calls",
		},
		[]string{"city", "status"},
	)

	OpenAQAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airwatch_openaq_api_latency_seconds",
			Help:    "Air-quality API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"city"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_readings_ingested_total",
			Help: "Total realtime readings successfully stored",
		},
		[]string{"city"},
	)

	RowsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_normalize_rows_total",
			Help: "Source rows seen by the normalizer, by outcome",
		},
		[]string{"outcome"},
	)

	TrainingLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airwatch_training_loss",
			Help: "Mean squared error of the most recent training epoch",
		},
	)

	DashboardRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_dashboard_requests_total",
			Help: "Dashboard requests by route",
		},
		[]string{"route"},
	)
)
