// Package engine provides the core types of the deployment executor.
//
// # Overview
//
// A deployment is carried out by a Pipeline: an ordered list of Conventions that
// each mutate one shared RunningDeployment (current directory, variable store,
// artifacts, output variables). Conventions run strictly in registration order
// and the first failure stops the pipeline. Nothing is rolled back.
//
// # Errors
//
// Failures are reported as *EngineError values carrying a class (transient or
// permanent) and a code. Transient errors are retried locally by the file system
// gateway; everything else unwinds out of the pipeline wrapped in a
// *ConventionError naming the failing step:
//
//	err := pipeline.Run(ctx, deployment)
//	var convErr *engine.ConventionError
//	if errors.As(err, &convErr) {
//	    log.Errorf("step %s failed: %v", convErr.Convention, convErr.Err)
//	}
//	if code, ok := engine.ExitCodeOf(err); ok {
//	    log.Errorf("script exited with %d", code)
//	}
//
// # Observers
//
// PipelineObserver hooks run around every convention. Telemetry uses them for
// spans and metrics, the report journal for progress messages.
package engine
