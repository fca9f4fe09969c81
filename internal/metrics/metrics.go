// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Registrations    prometheus.Counter
	AttemptsRecorded prometheus.Counter
	AttemptWPM       prometheus.Histogram
	FeedClients      prometheus.Gauge
	StoreUp          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speedtype",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "speedtype",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speedtype",
			Name:      "registrations_total",
			Help:      "Accounts created.",
		}),
		AttemptsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speedtype",
			Name:      "attempts_recorded_total",
			Help:      "Attempt results stored.",
		}),
		AttemptWPM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "speedtype",
			Name:      "attempt_wpm",
			Help:      "Words per minute of recorded attempts.",
			Buckets:   prometheus.LinearBuckets(10, 10, 15),
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speedtype",
			Name:      "leaderboard_feed_clients",
			Help:      "Connected leaderboard websocket clients.",
		}),
		StoreUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speedtype",
			Name:      "store_up",
			Help:      "1 when the last store health probe succeeded.",
		}),
	}
	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Registrations,
		m.AttemptsRecorded,
		m.AttemptWPM,
		m.FeedClients,
		m.StoreUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
