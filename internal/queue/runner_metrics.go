package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	proc     prometheus.Histogram
	lagGauge prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		proc: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "extract_queue_processing_seconds",
				Help:    "Time spent on one queued extraction request.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
			},
		),
		lagGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "extract_queue_lag_seconds",
				Help: "Approximate lag: now - message.timestamp.",
			},
		),
	}
	if r != nil {
		r.MustRegister(m.proc, m.lagGauge)
	}
	return m
}
