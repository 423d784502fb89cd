package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for a deployment run. Every recorder is
// safe to call on a nil or disabled instance.
type Metrics struct {
	config MetricsConfig

	// Deployment metrics
	deploymentsStarted   prometheus.Counter
	deploymentsCompleted *prometheus.CounterVec
	deploymentDuration   *prometheus.HistogramVec

	// Convention metrics
	conventionsExecuted *prometheus.CounterVec
	conventionDuration  *prometheus.HistogramVec

	// Script metrics
	scriptsExecuted *prometheus.CounterVec
	scriptDuration  *prometheus.HistogramVec

	// Service message metrics
	serviceMessages          *prometheus.CounterVec
	malformedServiceMessages prometheus.Counter

	// File system metrics
	fileOperationRetries  *prometheus.CounterVec
	fileOperationFailures *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		deploymentsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_started_total",
				Help:      "Total number of deployments started",
			},
		),
		deploymentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_completed_total",
				Help:      "Total number of deployments completed",
			},
			[]string{"status"},
		),
		deploymentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deployment_duration_seconds",
				Help:      "Duration of deployments in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		conventionsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conventions_executed_total",
				Help:      "Total number of conventions executed",
			},
			[]string{"convention", "status"},
		),
		conventionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "convention_duration_seconds",
				Help:      "Duration of convention execution in seconds",
				Buckets:   buckets,
			},
			[]string{"convention"},
		),

		scriptsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scripts_executed_total",
				Help:      "Total number of scripts executed",
			},
			[]string{"engine", "status"},
		),
		scriptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "script_duration_seconds",
				Help:      "Duration of script execution in seconds",
				Buckets:   buckets,
			},
			[]string{"engine"},
		),

		serviceMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_messages_total",
				Help:      "Total number of service messages received from scripts",
			},
			[]string{"tag"},
		),
		malformedServiceMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_messages_malformed_total",
				Help:      "Lines that looked like service messages but could not be decoded",
			},
		),

		fileOperationRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_operation_retries_total",
				Help:      "Total number of retried file operations",
			},
			[]string{"operation"},
		),
		fileOperationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_operation_failures_total",
				Help:      "Total number of file operations that failed",
			},
			[]string{"operation", "code"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.deploymentsStarted,
		m.deploymentsCompleted,
		m.deploymentDuration,
		m.conventionsExecuted,
		m.conventionDuration,
		m.scriptsExecuted,
		m.scriptDuration,
		m.serviceMessages,
		m.malformedServiceMessages,
		m.fileOperationRetries,
		m.fileOperationFailures,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Deployment Metrics

// RecordDeploymentStarted increments the counter for started deployments.
func (m *Metrics) RecordDeploymentStarted() {
	if m == nil || m.deploymentsStarted == nil {
		return
	}
	m.deploymentsStarted.Inc()
}

// RecordDeploymentCompleted records a finished deployment with its status and duration.
func (m *Metrics) RecordDeploymentCompleted(status string, duration time.Duration) {
	if m == nil || m.deploymentsCompleted == nil {
		return
	}
	m.deploymentsCompleted.WithLabelValues(status).Inc()
	m.deploymentDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Convention Metrics

// RecordConvention records one convention execution.
func (m *Metrics) RecordConvention(convention, status string, duration time.Duration) {
	if m == nil || m.conventionsExecuted == nil {
		return
	}
	m.conventionsExecuted.WithLabelValues(convention, status).Inc()
	m.conventionDuration.WithLabelValues(convention).Observe(duration.Seconds())
}

// Script Metrics

// RecordScriptExecution records one script run through an engine.
func (m *Metrics) RecordScriptExecution(engine, status string, duration time.Duration) {
	if m == nil || m.scriptsExecuted == nil {
		return
	}
	m.scriptsExecuted.WithLabelValues(engine, status).Inc()
	m.scriptDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// Service Message Metrics

// RecordServiceMessage counts a decoded service message by tag.
func (m *Metrics) RecordServiceMessage(tag string) {
	if m == nil || m.serviceMessages == nil {
		return
	}
	m.serviceMessages.WithLabelValues(tag).Inc()
}

// RecordMalformedServiceMessage counts a line that was treated as plain output
// because its attributes could not be decoded.
func (m *Metrics) RecordMalformedServiceMessage() {
	if m == nil || m.malformedServiceMessages == nil {
		return
	}
	m.malformedServiceMessages.Inc()
}

// File System Metrics

// RecordFileOperationRetry counts one retried file operation.
func (m *Metrics) RecordFileOperationRetry(operation string) {
	if m == nil || m.fileOperationRetries == nil {
		return
	}
	m.fileOperationRetries.WithLabelValues(operation).Inc()
}

// RecordFileOperationFailure counts a file operation that gave up.
func (m *Metrics) RecordFileOperationFailure(operation, code string) {
	if m == nil || m.fileOperationFailures == nil {
		return
	}
	m.fileOperationFailures.WithLabelValues(operation, code).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// WriteToTextfile writes all collected metrics to path in the Prometheus text
// format, atomically. It is a no-op when metrics are disabled.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil || m.registry == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
