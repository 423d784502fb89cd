// Package telemetry provides logging, tracing and metrics for deployment runs.
//
// Logging is structured with zerolog. The Logger also implements the severity
// methods script output is routed to (Verbose, Info, Warn, Error).
//
// Tracing uses OpenTelemetry with a stdout or OTLP/gRPC exporter. A run produces
// one deployment span, one span per convention and one per executed script.
//
// Metrics are collected in a private Prometheus registry. A deployment is a
// short-lived process, so instead of serving /metrics the registry is written to
// a node-exporter textfile when the run shuts down:
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = telemetry.WithDeploymentContext(tel.WithContext(ctx), deploymentID)
//	defer telemetry.EndDeploymentContext(ctx, err)
//
// All Metrics recorders tolerate a nil or disabled receiver.
package telemetry
