package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "workshop_api"

// APIMetrics holds all Prometheus metrics for the workshop API.
type APIMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	AuthRejections     *prometheus.CounterVec
	RecordsServed      *prometheus.CounterVec
	UsageIncrements    *prometheus.CounterVec
	UsageJournalQueued prometheus.Counter
	APIKeyCacheHits    prometheus.Counter
	APIKeyCacheMisses  prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	BreakerState       *prometheus.GaugeVec
}

// NewAPIMetrics registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	f := promauto.With(reg)
	return &APIMetrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		AuthRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "rejections_total",
			Help:      "Total number of rejected API key authentications by reason.",
		}, []string{"reason"}),
		RecordsServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "records_served_total",
			Help:      "Total number of billable records returned by resource.",
		}, []string{"resource"}),
		UsageIncrements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "increments_total",
			Help:      "Total number of usage counter updates by path.",
		}, []string{"path"}), // path: rpc, fallback, journal, replay, dropped
		UsageJournalQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "journal_appends_total",
			Help:      "Total number of increments written to the usage journal.",
		}),
		APIKeyCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "unknown_key_cache_hits_total",
			Help:      "Total number of unknown API keys answered from the negative cache.",
		}),
		APIKeyCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "unknown_key_cache_misses_total",
			Help:      "Total number of API key lookups that went to the datastore.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "workshop_hits_total",
			Help:      "Total number of workshop cache hits.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "workshop_misses_total",
			Help:      "Total number of workshop cache misses.",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
}
