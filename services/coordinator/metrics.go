package coordinator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the coordinator's three externally visible
// operations, labelled by outcome.
var (
	prometheusCoordinatorBuild   *prometheus.CounterVec
	prometheusCoordinatorWitness *prometheus.CounterVec
	prometheusCoordinatorSubmit  *prometheus.CounterVec

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusCoordinatorBuild = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "build_total",
			Help:      "Number of session build attempts",
		},
		[]string{"result"},
	)

	prometheusCoordinatorWitness = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "witness_total",
			Help:      "Number of witness ingestion attempts",
		},
		[]string{"result"},
	)

	prometheusCoordinatorSubmit = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coordinator",
			Name:      "submit_total",
			Help:      "Number of transaction submission attempts",
		},
		[]string{"result"},
	)
}
