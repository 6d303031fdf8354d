package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics mirrors the in-memory metrics as Prometheus collectors.
type promMetrics struct {
	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	originUp         *prometheus.GaugeVec
}

func newPromMetrics(registry *prometheus.Registry) *promMetrics {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)
	return &promMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Name:      "requests_total",
				Help:      "Total number of forwarded requests by route, method, outcome and status code.",
			},
			[]string{"route", "method", "outcome", "code"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Name:      "upstream_duration_seconds",
				Help:      "Duration of upstream calls by route.",
				Buckets: []float64{
					.005, .01, .025, .05, .1, .25, .5,
					1, 2.5, 5, 10, 30, 60, 120,
				},
			},
			[]string{"route"},
		),
		originUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Name:      "origin_up",
				Help:      "Whether the last health check of an origin succeeded (1) or not (0).",
			},
			[]string{"origin"},
		),
	}
}

func (p *promMetrics) observe(event MetricEvent) {
	switch event.Type {
	case EventResponseCompleted:
		code := ""
		if event.StatusCode != 0 {
			code = strconv.Itoa(event.StatusCode)
		}
		p.requestsTotal.WithLabelValues(event.Route, event.Method, event.Outcome, code).Inc()
		if event.Duration > 0 {
			p.upstreamDuration.WithLabelValues(event.Route).Observe(event.Duration.Seconds())
		}

	case EventHealthChanged:
		up := 0.0
		if event.Healthy {
			up = 1
		}
		p.originUp.WithLabelValues(event.Origin).Set(up)
	}
}
