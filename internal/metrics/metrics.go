// Package metrics exposes Prometheus metrics about the event channel.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "rvlink"
)

// Metrics holds the collectors of one channel together with the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	Connected              prometheus.Gauge
	StatusTransitionsTotal *prometheus.CounterVec
	EventsTotal            *prometheus.CounterVec
	EventApplyErrorsTotal  *prometheus.CounterVec
	LastEventTimestamp     prometheus.Gauge
	LightsOn               prometheus.Gauge
}

// New creates the collectors and registers them, along with the Go and process collectors, in a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the event stream is currently connected (1) or not (0)",
		}),
		StatusTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Number of connectivity changes reported by the channel",
		}, []string{"connected"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Number of events received, by type",
		}, []string{"type"}),
		EventApplyErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_apply_errors_total",
			Help:      "Number of events that could not be applied to the vehicle state, by type",
		}, []string{"type"}),
		LastEventTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_timestamp_seconds",
			Help:      "Unix time of the last event received",
		}),
		LightsOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lights_on",
			Help:      "Number of lights currently switched on",
		}),
	}

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.registry.MustRegister(
		m.Connected,
		m.StatusTransitionsTotal,
		m.EventsTotal,
		m.EventApplyErrorsTotal,
		m.LastEventTimestamp,
		m.LightsOn,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStatus records a connectivity change.
func (m *Metrics) ObserveStatus(connected bool) {
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
	m.StatusTransitionsTotal.WithLabelValues(strconv.FormatBool(connected)).Inc()
}

// ObserveEvent records an event of the given type. applyErr is the result of applying it to the vehicle state.
func (m *Metrics) ObserveEvent(eventType string, applyErr error) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
	m.LastEventTimestamp.SetToCurrentTime()
	if applyErr != nil {
		m.EventApplyErrorsTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) ObserveLightsOn(n int) {
	m.LightsOn.Set(float64(n))
}
