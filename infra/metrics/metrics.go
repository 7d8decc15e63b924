package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exchange holds the rate engine counters. A nil *Exchange is valid and
// records nothing.
type Exchange struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	Fetches        *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	CoalescedWaits *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
}

// NewExchange registers the engine metrics on reg.
func NewExchange(reg prometheus.Registerer) *Exchange {
	f := promauto.With(reg)
	return &Exchange{
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_rate_cache_hits_total",
				Help: "Rate table lookups served from cache",
			},
			[]string{"base"},
		),
		CacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_rate_cache_misses_total",
				Help: "Rate table lookups that required a provider fetch",
			},
			[]string{"base"},
		),
		Fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_provider_fetches_total",
				Help: "Provider fetches started",
			},
			[]string{"provider", "base"},
		),
		FetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_provider_fetch_errors_total",
				Help: "Provider fetches that failed",
			},
			[]string{"provider", "kind"},
		),
		CoalescedWaits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_provider_coalesced_total",
				Help: "Requests that shared an in-flight fetch",
			},
			[]string{"base"},
		),
		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxdate_provider_fetch_duration_seconds",
				Help:    "Provider fetch latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}
}

func (m *Exchange) CacheHit(base string) {
	if m != nil {
		m.CacheHits.WithLabelValues(base).Inc()
	}
}

func (m *Exchange) CacheMiss(base string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(base).Inc()
	}
}

func (m *Exchange) Fetch(provider, base string) {
	if m != nil {
		m.Fetches.WithLabelValues(provider, base).Inc()
	}
}

func (m *Exchange) FetchError(provider, kind string) {
	if m != nil {
		m.FetchErrors.WithLabelValues(provider, kind).Inc()
	}
}

func (m *Exchange) Coalesced(base string) {
	if m != nil {
		m.CoalescedWaits.WithLabelValues(base).Inc()
	}
}

func (m *Exchange) ObserveFetch(provider string, seconds float64) {
	if m != nil {
		m.FetchDuration.WithLabelValues(provider).Observe(seconds)
	}
}
