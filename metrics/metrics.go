// Package metrics exposes Prometheus counters for calls, intents and bookings.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "salescaller"

// ActiveCallsProvider exposes the number of tracked calls
type ActiveCallsProvider interface {
	Count() int
}

// Metrics holds every counter the service records
type Metrics struct {
	registry *prometheus.Registry

	CallsPlaced    *prometheus.CounterVec
	Intents        *prometheus.CounterVec
	Bookings       *prometheus.CounterVec
	Confirmations  *prometheus.CounterVec
	WebhookLatency *prometheus.HistogramVec
}

// New registers the collectors on a private registry
func New(calls ActiveCallsProvider) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		CallsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_placed_total",
			Help:      "Outbound call attempts by result.",
		}, []string{"result"}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Caller utterances by matched intent.",
		}, []string{"intent"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Date-stage outcomes by status.",
		}, []string{"status"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation text messages by result.",
		}, []string{"result"}),
		WebhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Time spent answering Twilio callbacks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}

	reg.MustRegister(
		m.CallsPlaced,
		m.Intents,
		m.Bookings,
		m.Confirmations,
		m.WebhookLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if calls != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Calls with a live session in this process.",
		}, func() float64 { return float64(calls.Count()) }))
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
