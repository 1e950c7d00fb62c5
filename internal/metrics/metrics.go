// Package metrics exposes the Prometheus instruments for previewd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Previews   *prometheus.CounterVec
	Generation prometheus.Histogram
	QueueDepth prometheus.Gauge
	WSClients  prometheus.Gauge

	registry *prometheus.Registry
}

// New builds the instrument set on a private registry so tests can hold
// independent instances.
func New() *Metrics {
	m := &Metrics{
		Previews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "previewd_previews_total",
				Help: "Preview requests by terminal result",
			},
			[]string{"result"},
		),
		Generation: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "previewd_generation_seconds",
				Help:    "Wall time from queue admission to completion",
				Buckets: prometheus.DefBuckets,
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "previewd_queue_depth",
				Help: "Requests currently queued or running",
			},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "previewd_ws_clients",
				Help: "Connected websocket clients",
			},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.Previews, m.Generation, m.QueueDepth, m.WSClients)
	return m
}

// Handler serves the /metrics endpoint for this instrument set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
