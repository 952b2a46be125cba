package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	allocations     *prometheus.CounterVec
	negativeSavings prometheus.Counter
	reloads         *prometheus.CounterVec
	modelsLoaded    *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budgetopt_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budgetopt_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		allocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budgetopt_allocations_total",
				Help: "Total number of budget allocations served",
			},
			[]string{"area", "source"},
		),
		negativeSavings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "budgetopt_negative_savings_total",
				Help: "Predictions that produced a negative savings amount",
			},
		),
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budgetopt_model_reloads_total",
				Help: "Model re-warm attempts by area and result",
			},
			[]string{"area", "result"},
		),
		modelsLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "budgetopt_model_loaded",
				Help: "Whether a model is currently loadable for the area (1) or not (0)",
			},
			[]string{"area"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
