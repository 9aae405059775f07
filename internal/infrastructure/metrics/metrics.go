package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	restCalls       *prometheus.CounterVec
	realtimeEvents  *prometheus.CounterVec
	outboxMessages  *prometheus.CounterVec
	mutationResults *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		restCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faindi",
			Name:      "rest_calls_total",
			Help:      "Backend REST calls by endpoint and status code (0 for transport errors).",
		}, []string{"endpoint", "status"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faindi",
			Name:      "realtime_events_total",
			Help:      "Inbound realtime events by event name.",
		}, []string{"event"}),
		outboxMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faindi",
			Name:      "outbox_transitions_total",
			Help:      "Outbox delivery state transitions.",
		}, []string{"state"}),
		mutationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faindi",
			Name:      "tentative_mutations_total",
			Help:      "Tentative local mutations by entity and final status.",
		}, []string{"entity", "status"}),
	}
	m.registry.MustRegister(m.restCalls, m.realtimeEvents, m.outboxMessages, m.mutationResults)
	return m
}

func (m *Metrics) ObserveREST(endpoint string, status int) {
	m.restCalls.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveEvent(event string) {
	m.realtimeEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveOutbox(state string) {
	m.outboxMessages.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveMutation(entity, status string) {
	m.mutationResults.WithLabelValues(entity, status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
