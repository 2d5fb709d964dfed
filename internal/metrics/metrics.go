// Package metrics exposes Prometheus instrumentation for sessions, chat turns
// and completion calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trailblazer"

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated    prometheus.Counter
	sessionsEvicted    prometheus.Counter
	chatTurns          *prometheus.CounterVec
	personaSwitches    *prometheus.CounterVec
	completions        *prometheus.CounterVec
	completionDuration prometheus.Histogram
}

// New registers every collector. activeSessions is sampled on scrape.
func New(activeSessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Chat sessions started.",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the sweep.",
		}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Completed chat exchanges by persona.",
		}, []string{"persona"}),
		personaSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_switches_total",
			Help:      "Persona switches by target persona.",
		}, []string{"persona"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Calls to the completion backend by outcome.",
		}, []string{"status"}),
		completionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Latency of completion backend calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsCreated,
		m.sessionsEvicted,
		m.chatTurns,
		m.personaSwitches,
		m.completions,
		m.completionDuration,
	)

	if activeSessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}, func() float64 { return float64(activeSessions()) }))
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionsEvicted(n int) {
	if m == nil {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

func (m *Metrics) ChatTurn(persona string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(persona).Inc()
}

func (m *Metrics) PersonaSwitched(persona string) {
	if m == nil {
		return
	}
	m.personaSwitches.WithLabelValues(persona).Inc()
}

// ObserveCompletion implements ai.Observer.
func (m *Metrics) ObserveCompletion(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(status).Inc()
	m.completionDuration.Observe(elapsed.Seconds())
}
