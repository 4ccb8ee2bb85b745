package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics defines our Prometheus metrics
type Metrics struct {
	BusListeners    prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	ActiveStreams   *prometheus.GaugeVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		BusListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_bus_listeners",
			Help: "Number of registered event bus listeners.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_bus_events_published_total",
			Help: "Events published to the bus, by event type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_bus_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		}),
		ActiveStreams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_active_streams",
			Help: "Open delivery streams, by transport.",
		}, []string{"transport"}),
	}

	reg.MustRegister(
		m.BusListeners,
		m.EventsPublished,
		m.EventsDropped,
		m.ActiveStreams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// NewForTesting registers against a throwaway registry.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}
