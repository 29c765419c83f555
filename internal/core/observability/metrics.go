package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~80s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"upstream", "outcome"},
	)

	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractions_total",
			Help: "Extractions by output format and outcome.",
		},
		[]string{"format", "outcome"},
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_stage_duration_seconds",
			Help:    "Duration of each extraction stage in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 17),
		},
		[]string{"stage"},
	)

	featuresWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "features_written_total",
			Help: "Features written to output files.",
		},
		[]string{"format"},
	)

	schemaCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_cache_total",
			Help: "Layer schema cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	jobStoreOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_store_op_total",
			Help: "Job store operations by op and result.",
		},
		[]string{"op", "result"},
	)

	jobStoreOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_store_operation_duration_seconds",
			Help:    "Job store operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	queueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_queue_messages_total",
			Help: "Queued extraction requests by result.",
		},
		[]string{"result"},
	)
)

// Collectors returns every collector of this package so another registry
// can expose them.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		extractionsTotal, stageDurationSeconds, featuresWrittenTotal, schemaCacheTotal,
		jobStoreOpTotal, jobStoreOpSeconds, queueMessagesTotal,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, result(err)).Observe(durationSeconds)
}

func ObserveExtraction(format, outcome string) {
	if format == "" {
		format = "unknown"
	}
	extractionsTotal.WithLabelValues(format, outcome).Inc()
}

func ObserveStage(stage string, durationSeconds float64) {
	stageDurationSeconds.WithLabelValues(stage).Observe(durationSeconds)
}

func AddFeaturesWritten(format string, n int) {
	if n <= 0 {
		return
	}
	featuresWrittenTotal.WithLabelValues(format).Add(float64(n))
}

func IncSchemaCache(hit bool) {
	if hit {
		schemaCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	schemaCacheTotal.WithLabelValues("miss").Inc()
}

func ObserveJobStoreOp(op string, err error, durationSeconds float64) {
	jobStoreOpTotal.WithLabelValues(op, result(err)).Inc()
	jobStoreOpSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncQueueMessage(res string) {
	queueMessagesTotal.WithLabelValues(res).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
