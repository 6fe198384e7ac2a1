package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightx_http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "insightx_http_request_duration_seconds",
			Help: "HTTP request latency by route.",
			// /v1/ask waits on the model, so the tail reaches past a minute.
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightx_translations_total",
			Help: "Total number of question translations by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	translationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightx_translation_latency_ms",
			Help:    "Backend round trip for one translation in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		},
	)
	parseDegradationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightx_parse_degradations_total",
			Help: "Total number of backend replies that carried no query.",
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightx_query_executions_total",
			Help: "Total number of generated queries executed, by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightx_query_duration_ms",
			Help:    "Generated query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		translationsTotal,
		translationLatencyMs,
		parseDegradationsTotal,
		queryExecutionsTotal,
		queryDurationMs,
	)
}

func ObserveTranslation(provider string, err error, elapsed time.Duration) {
	translationsTotal.WithLabelValues(provider, outcome(err)).Inc()
	translationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementParseDegradation() {
	parseDegradationsTotal.Inc()
}

// ObserveQueryExecution counts every attempt; only successful runs feed the
// latency histogram.
func ObserveQueryExecution(err error, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
