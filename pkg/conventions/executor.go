package conventions

import (
	"context"
	"io"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/scripting"
	"github.com/openfroyo/conveyor/pkg/servicemessages"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// RunnerFactory creates the process runner for one script, given the writers
// receiving its standard output and error.
type RunnerFactory func(stdout, stderr io.Writer) scripting.CommandLineRunner

// ScriptExecutor runs one script against a running deployment, parsing its
// output for service messages while it runs.
type ScriptExecutor struct {
	engine    scripting.Engine
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
	newRunner RunnerFactory
}

// ExecutorOption configures a ScriptExecutor.
type ExecutorOption func(*ScriptExecutor)

// WithMetrics records service message metrics.
func WithMetrics(m *telemetry.Metrics) ExecutorOption {
	return func(x *ScriptExecutor) {
		x.metrics = m
	}
}

// WithRunnerFactory overrides how processes are launched.
func WithRunnerFactory(f RunnerFactory) ExecutorOption {
	return func(x *ScriptExecutor) {
		x.newRunner = f
	}
}

// NewScriptExecutor creates an executor. Script output is logged through log.
func NewScriptExecutor(eng scripting.Engine, log *telemetry.Logger, opts ...ExecutorOption) *ScriptExecutor {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	x := &ScriptExecutor{
		engine: eng,
		log:    log,
		newRunner: func(stdout, stderr io.Writer) scripting.CommandLineRunner {
			return scripting.NewProcessRunner(stdout, stderr)
		},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// SupportedExtensions returns the extensions the underlying engine runs.
func (x *ScriptExecutor) SupportedExtensions() []string {
	return x.engine.SupportedExtensions()
}

// Run executes scriptPath. A non-zero exit code is returned as a script
// execution failure naming the script and code.
func (x *ScriptExecutor) Run(ctx context.Context, d *engine.RunningDeployment, scriptPath string) error {
	log := telemetry.FromContextOr(ctx, x.log)
	processor := servicemessages.NewDeploymentProcessor(d, log, servicemessages.WithMetrics(x.metrics))
	runner := x.newRunner(processor.StdoutWriter(), processor.StderrWriter())

	log.Infof("Executing script %s", scriptPath)
	result, err := x.engine.Execute(ctx, scriptPath, d.Variables, runner)
	if err != nil {
		return err
	}
	return result.VerifySuccess(scriptPath)
}
