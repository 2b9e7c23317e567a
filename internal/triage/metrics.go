package triage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem. All observer
// methods are safe on a nil receiver so tests can skip wiring.
type Metrics struct {
	IngestsTotal       *prometheus.CounterVec
	IncidentsOpened    *prometheus.CounterVec
	ClassifierCalls    *prometheus.CounterVec
	ClassifierDuration *prometheus.HistogramVec
	StreamPublishes    prometheus.Counter
	NotifyFailures     prometheus.Counter
	CommandsTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertflow_ingests_total",
			Help: "Total webhook ingests by alert source and outcome.",
		}, []string{"source", "outcome"}),
		IncidentsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertflow_incidents_opened_total",
			Help: "Total incidents opened by creation path.",
		}, []string{"path"}),
		ClassifierCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertflow_classifier_calls_total",
			Help: "Total classifier invocations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ClassifierDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alertflow_classifier_call_duration_seconds",
			Help:    "Duration of classifier invocations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"kind"}),
		StreamPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertflow_stream_publishes_total",
			Help: "Total streaming relay republishes to Slack.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertflow_notify_failures_total",
			Help: "Total failed best-effort Slack deliveries.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertflow_commands_total",
			Help: "Total slash command dispatches by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.IncidentsOpened,
		m.ClassifierCalls,
		m.ClassifierDuration,
		m.StreamPublishes,
		m.NotifyFailures,
		m.CommandsTotal,
	)

	return m
}

// ObserveIngest records one webhook ingest.
func (m *Metrics) ObserveIngest(source, outcome string) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveIncidentOpened records an incident creation by path.
func (m *Metrics) ObserveIncidentOpened(path string) {
	if m == nil {
		return
	}
	m.IncidentsOpened.WithLabelValues(path).Inc()
}

// ObserveClassifier records one classifier invocation.
func (m *Metrics) ObserveClassifier(kind string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ClassifierCalls.WithLabelValues(kind, outcome).Inc()
	m.ClassifierDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

// ObserveStreamPublish records one streaming republish.
func (m *Metrics) ObserveStreamPublish() {
	if m == nil {
		return
	}
	m.StreamPublishes.Inc()
}

// ObserveNotifyFailure records one failed Slack delivery.
func (m *Metrics) ObserveNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

// ObserveCommand records one slash command dispatch.
func (m *Metrics) ObserveCommand(outcome string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(outcome).Inc()
}
