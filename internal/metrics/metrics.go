// Package metrics exposes Prometheus metrics for the tool pipeline and
// implements the executor's metrics sink.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Stage rejection metrics
	SecurityDenialsTotal      *prometheus.CounterVec
	RateLimitRejectionsTotal  *prometheus.CounterVec
	ConfirmationOutcomesTotal *prometheus.CounterVec
	RetryAttemptsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		SecurityDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_security_denials_total",
				Help: "Total number of security validator denials",
			},
			[]string{"reason"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_rate_limit_rejections_total",
				Help: "Total number of rate limited tool calls",
			},
			[]string{"tool_name"},
		),
		ConfirmationOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_confirmation_outcomes_total",
				Help: "Total confirmation gate outcomes",
			},
			[]string{"outcome"},
		),
		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_retry_attempts_total",
				Help: "Total transient failures that triggered a retry",
			},
			[]string{"tool_name"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ToolExecutionsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)
	m.registry.MustRegister(m.SecurityDenialsTotal)
	m.registry.MustRegister(m.RateLimitRejectionsTotal)
	m.registry.MustRegister(m.ConfirmationOutcomesTotal)
	m.registry.MustRegister(m.RetryAttemptsTotal)
}

// ObserveExecution records one completed or failed tool execution
func (m *Metrics) ObserveExecution(tool, status string, duration time.Duration) {
	m.ToolExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// SecurityDenial records one validator denial by reason
func (m *Metrics) SecurityDenial(reason string) {
	m.SecurityDenialsTotal.WithLabelValues(reason).Inc()
}

// RateLimited records one rate limited tool call
func (m *Metrics) RateLimited(tool string) {
	m.RateLimitRejectionsTotal.WithLabelValues(tool).Inc()
}

// ConfirmationOutcome records one confirmation gate resolution
func (m *Metrics) ConfirmationOutcome(outcome string) {
	m.ConfirmationOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RetryAttempt records one retried transient failure
func (m *Metrics) RetryAttempt(tool string) {
	m.RetryAttemptsTotal.WithLabelValues(tool).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
