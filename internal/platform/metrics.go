package platform

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records store API calls by endpoint and outcome. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_api_requests_total",
			Help: "Store admin API calls by endpoint and outcome.",
		}, []string{"call", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_api_request_duration_seconds",
			Help:    "Store admin API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

func (m *Metrics) observe(call, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(call, outcome).Inc()
	m.latency.WithLabelValues(call).Observe(d.Seconds())
}
