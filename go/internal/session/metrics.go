package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "quizlive"

// Metrics holds the coordinator's Prometheus instruments.
type Metrics struct {
	Connections prometheus.Gauge
	Rooms       prometheus.Gauge
	Countdowns  prometheus.Gauge
	Messages    *prometheus.CounterVec
	Broadcasts  *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Evictions   prometheus.Counter

	JournalDropped prometheus.Counter
}

// NewMetrics registers the instruments with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Connections currently tracked by the registry.",
		}),
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rooms",
			Help:      "Game rooms with at least one member.",
		}),
		Countdowns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "countdowns_active",
			Help:      "Running countdown timers.",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_received_total",
			Help:      "Inbound client messages by event.",
		}, []string{"event"}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by event.",
		}, []string{"event"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handler_errors_total",
			Help:      "Error replies by kind.",
		}, []string{"kind"}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evictions_total",
			Help:      "Connections evicted by the heartbeat monitor.",
		}),
		JournalDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "journal_dropped_total",
			Help:      "Events not journaled because the buffer was full.",
		}),
	}
}
