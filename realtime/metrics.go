package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks realtime delivery health.
type Metrics struct {
	// EventsApplied counts successfully reconciled events by kind.
	EventsApplied *prometheus.CounterVec

	// EventsDropped counts malformed or unappliable events.
	EventsDropped prometheus.Counter

	// ActiveChannels tracks the number of live per-post subscriptions.
	ActiveChannels prometheus.Gauge
}

// NewMetrics registers the realtime metrics with reg. A nil registerer
// falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedsync",
			Subsystem: "realtime",
			Name:      "events_applied_total",
			Help:      "Bus events applied to the local feed cache.",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "feedsync",
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Bus events dropped as malformed or unappliable.",
		}),
		ActiveChannels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedsync",
			Subsystem: "realtime",
			Name:      "active_channels",
			Help:      "Live per-post bus subscriptions.",
		}),
	}
}
