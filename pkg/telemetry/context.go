package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer and metrics of one run.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes pending spans, writes the metrics textfile if configured,
// and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.Tracer.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush spans: %w", err))
	}
	if err := t.Metrics.WriteToTextfile(t.Config.Metrics.TextfilePath); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// classified is implemented by errors that carry a class and a code.
type classified interface {
	Classification() (class, code string)
}

func asClassified(err error) (classified, bool) {
	var c classified
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

func recordClassifiedError(m *Metrics, err error) {
	if c, ok := asClassified(err); ok {
		class, code := c.Classification()
		m.RecordError(class, code)
		return
	}
	m.RecordError("unknown", "")
}

func statusOf(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

type deploymentSpanKey struct{}

type deploymentTimerKey struct{}

// WithDeploymentContext starts the deployment span, attaches a deployment logger
// and counts the deployment as started.
func WithDeploymentContext(ctx context.Context, deploymentID string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartDeploymentSpan(ctx, deploymentID)

	logger := tel.Logger.WithDeploymentID(deploymentID)
	if traceID := TraceID(spanCtx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordDeploymentStarted()

	spanCtx = context.WithValue(spanCtx, deploymentSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, deploymentTimerKey{}, NewTimer())
	return spanCtx
}

// EndDeploymentContext completes the deployment span and records its outcome.
func EndDeploymentContext(ctx context.Context, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(deploymentSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(deploymentTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordDeploymentCompleted(statusOf(err), duration)
	if err != nil {
		recordClassifiedError(tel.Metrics, err)
	}
}

type conventionSpanKey struct{}

type conventionTimerKey struct{}

// ConventionObserver traces, times and logs each convention of a pipeline.
type ConventionObserver struct {
	tel *Telemetry
}

// NewConventionObserver creates an observer reporting into tel.
func NewConventionObserver(tel *Telemetry) *ConventionObserver {
	return &ConventionObserver{tel: tel}
}

// BeforeConvention starts the convention span.
func (o *ConventionObserver) BeforeConvention(ctx context.Context, index int, name string) context.Context {
	spanCtx, span := o.tel.Tracer.StartConventionSpan(ctx, index, name)

	logger := FromContext(ctx).WithConvention(index, name)
	logger.Debugf("running convention %s", name)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, conventionSpanKey{}, span)
	return context.WithValue(spanCtx, conventionTimerKey{}, NewTimer())
}

// AfterConvention ends the span started by BeforeConvention and records the outcome.
func (o *ConventionObserver) AfterConvention(ctx context.Context, index int, name string, err error) {
	if span, ok := ctx.Value(conventionSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(conventionTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}
	o.tel.Metrics.RecordConvention(name, statusOf(err), duration)

	if err != nil {
		FromContext(ctx).WithError(err).Debugf("convention %s (step %d) failed after %s", name, index, duration)
	}
}

// RecordScriptExecution wraps one script run with a span and script metrics.
func RecordScriptExecution(ctx context.Context, scriptPath, engine string, fn func(ctx context.Context) (int, error)) (int, error) {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartScriptSpan(ctx, scriptPath, engine)
		defer span.End()
	}

	timer := NewTimer()
	exitCode, err := fn(ctx)

	if tel != nil {
		status := statusOf(err)
		if err == nil && exitCode != 0 {
			status = "failed"
		}
		tel.Metrics.RecordScriptExecution(engine, status, timer.Duration())
		span.SetAttributes(AttrExitCode.Int(exitCode))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
	}
	return exitCode, err
}
