// Package prommetrics implements obs.Metrics on top of Prometheus.
package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements obs.Metrics using Prometheus.
type Metrics struct {
	usageTotal                 *prometheus.CounterVec
	gateTotal                  *prometheus.CounterVec
	storageOpsDuration         *prometheus.HistogramVec
	storageOpsErrors           *prometheus.CounterVec
	libraryChangesTotal        *prometheus.CounterVec
	workflowTotal              *prometheus.CounterVec
	workflowDuration           *prometheus.HistogramVec
	providerCallDuration       *prometheus.HistogramVec
	providerCallErrors         *prometheus.CounterVec
	circuitBreakerStateChanges *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		usageTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_units_total",
			Help:      "Total number of quota units recorded per resource kind.",
		}, []string{"kind"}),

		gateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_gate_checks_total",
			Help:      "Total number of availability checks by outcome.",
		}, []string{"kind", "allowed"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),

		libraryChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_changes_total",
			Help:      "Total number of content library mutations.",
		}, []string{"collection", "operation"}),

		workflowTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs by outcome.",
		}, []string{"workflow", "outcome"}),

		workflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Latency of workflow runs.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"workflow"}),

		providerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of generative provider calls.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),

		providerCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_call_errors_total",
			Help:      "Total number of failed generative provider calls.",
		}, []string{"operation"}),

		circuitBreakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Total number of circuit breaker state changes.",
		}, []string{"state"}),
	}
}

func (m *Metrics) RecordUsage(kind string, amount int) {
	m.usageTotal.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) RecordGate(kind string, allowed bool) {
	m.gateTotal.WithLabelValues(kind, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordLibraryChange(collection, operation string) {
	m.libraryChangesTotal.WithLabelValues(collection, operation).Inc()
}

func (m *Metrics) RecordWorkflow(workflow, outcome string, duration time.Duration) {
	m.workflowTotal.WithLabelValues(workflow, outcome).Inc()
	m.workflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

func (m *Metrics) RecordProviderCall(operation string, duration time.Duration, err error) {
	m.providerCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.providerCallErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordCircuitBreakerStateChange(state string) {
	m.circuitBreakerStateChanges.WithLabelValues(state).Inc()
}
