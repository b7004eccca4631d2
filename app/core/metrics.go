package core

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evergreensystems/evergreen-ai/pkg/metrics"
)

type Metrics struct {
	apiResponseTime   *prometheus.HistogramVec
	apiErrorCounter   *prometheus.CounterVec
	generationTime    *prometheus.HistogramVec
	generationError   *prometheus.CounterVec
	retrievalTime     *prometheus.HistogramVec
	retrievalFailures *prometheus.CounterVec
}

func NewMetrics(ns, system string) *Metrics {
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	m := &Metrics{
		apiResponseTime:   metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter:   metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),
		generationTime:    metrics.NewHistogramVec("generation_time", nil),
		generationError:   metrics.NewCounterVec("generation_error", []string{"type"}),
		retrievalTime:     metrics.NewHistogramVec("retrieval_time", []string{"stage"}),
		retrievalFailures: metrics.NewCounterVec("retrieval_scope_failure", nil),
	}

	return m
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) GenerationTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.generationTime.WithLabelValues())
}

func (m *Metrics) GenerationErrorInc(types string) {
	m.generationError.WithLabelValues(types).Inc()
}

func (m *Metrics) RetrievalTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(m.retrievalTime.WithLabelValues(stage))
}

func (m *Metrics) RetrievalScopeFailureInc() {
	m.retrievalFailures.WithLabelValues().Inc()
}
