package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_provider_calls_total",
			Help: "Calls made to the storage provider, by operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_provider_call_duration_seconds",
			Help:    "Time spent waiting on the storage provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
)
