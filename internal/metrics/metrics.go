// Package metrics holds the Prometheus collectors shared by the gateway components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ibmid_login"

// Metrics holds all Prometheus metrics for the gateway.
// Pass to components that need to record metrics; a nil *Metrics records nothing.
type Metrics struct {
	UpstreamRequests   *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	ProxyResolutions   *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		UpstreamRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Outbound requests by upstream service and status class",
			},
			[]string{"service", "status"}, // status=2xx/4xx/5xx/error
		),
		UpstreamDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Outbound request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		CacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"}, // result=hit/miss
		),
		ProxyResolutions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_resolutions_total",
				Help:      "Proxy target resolutions by resource kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		SessionTransitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Session state machine transitions by target state",
			},
			[]string{"state"},
		),
	}
}

func (m *Metrics) ObserveUpstream(service, status string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, status).Inc()
	m.UpstreamDuration.WithLabelValues(service).Observe(seconds)
}

func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) ObserveResolution(kind, outcome string) {
	if m == nil {
		return
	}
	m.ProxyResolutions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveSession(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state).Inc()
}
