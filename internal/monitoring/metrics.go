// Package monitoring exposes Prometheus metrics for collectors, scoring and
// the remote services the CLI talks to.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	CollectorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landuse_collector_runs_total",
			Help: "Layer collector invocations by outcome.",
		},
		[]string{"collector", "status"},
	)

	CollectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landuse_collector_duration_seconds",
			Help:    "Layer collector duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"collector"},
	)

	NullStatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landuse_profile_null_stats_total",
			Help: "Statistics assembled as null, by key.",
		},
		[]string{"stat"},
	)

	BestUseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landuse_best_use_total",
			Help: "Scored profiles by best-use decision.",
		},
		[]string{"best_use"},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landuse_llm_requests_total",
			Help: "Advisor completion requests by provider and outcome.",
		},
		[]string{"provider", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landuse_llm_request_duration_seconds",
			Help:    "Advisor completion latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"provider"},
	)

	ExternalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landuse_external_requests_total",
			Help: "HTTP requests to external services by outcome.",
		},
		[]string{"service", "status"},
	)
)

func status(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}

// RecordCollector records one collector run.
func RecordCollector(name string, d time.Duration, success bool) {
	CollectorRunsTotal.WithLabelValues(name, status(success)).Inc()
	CollectorDuration.WithLabelValues(name).Observe(d.Seconds())
}

// RecordNullStats counts each null statistic of an assembled profile.
func RecordNullStats(keys []string) {
	for _, k := range keys {
		NullStatsTotal.WithLabelValues(k).Inc()
	}
}

// RecordBestUse counts a scoring decision.
func RecordBestUse(bestUse string) {
	BestUseTotal.WithLabelValues(bestUse).Inc()
}

// RecordLLMRequest records one advisor completion call.
func RecordLLMRequest(provider string, d time.Duration, success bool) {
	LLMRequestsTotal.WithLabelValues(provider, status(success)).Inc()
	LLMRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordExternalRequest records one HTTP request to service.
func RecordExternalRequest(service string, success bool) {
	ExternalRequestsTotal.WithLabelValues(service, status(success)).Inc()
}
