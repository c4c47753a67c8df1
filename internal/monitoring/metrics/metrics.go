package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthrisk_predictions_total",
		Help: "Total number of predictions served, by outcome.",
	}, []string{"status"})

	PredictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "healthrisk_prediction_duration_seconds",
		Help:    "Latency of a single prediction including preprocessing.",
		Buckets: prometheus.DefBuckets,
	})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "healthrisk_batch_size",
		Help:    "Distribution of batch prediction request sizes.",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "healthrisk_cache_hits_total",
		Help: "Predictions answered from the cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "healthrisk_cache_misses_total",
		Help: "Predictions that required model inference.",
	})

	RiskLevelCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthrisk_risk_level_total",
		Help: "Served predictions by overall risk level.",
	}, []string{"level"})
)
