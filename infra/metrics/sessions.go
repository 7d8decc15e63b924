package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sessions counts conversion session activity observed on the event bus.
type Sessions struct {
	Events      *prometheus.CounterVec
	LoadFailure *prometheus.CounterVec
}

// NewSessions registers the session metrics on reg.
func NewSessions(reg prometheus.Registerer) *Sessions {
	f := promauto.With(reg)
	return &Sessions{
		Events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_session_events_total",
				Help: "Conversion session events handled",
			},
			[]string{"type"},
		),
		LoadFailure: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxdate_session_load_failures_total",
				Help: "Session rate loads that failed",
			},
			[]string{"base"},
		),
	}
}

func (m *Sessions) Event(eventType string) {
	if m != nil {
		m.Events.WithLabelValues(eventType).Inc()
	}
}

func (m *Sessions) LoadFailed(base string) {
	if m != nil {
		m.LoadFailure.WithLabelValues(base).Inc()
	}
}
