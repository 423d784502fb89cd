package scripting

import (
	"context"
	"path/filepath"

	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/secrets"
	"github.com/openfroyo/conveyor/pkg/telemetry"
	"github.com/openfroyo/conveyor/pkg/variables"
)

// wrapperEngine holds what bash and PowerShell share: render a bootstrap next
// to the script, launch the interpreter on it, delete it afterwards.
type wrapperEngine struct {
	name       string
	extensions []string
	wrapperExt string
	fs         filesystem.FileSystem
	key        *secrets.AESEncryption
	renderer   *BootstrapRenderer
	log        *telemetry.Logger

	// command returns the interpreter and arguments for a wrapper file.
	command func(wrapperPath, keyHex string) (string, []string)
}

// Option configures a script engine.
type Option func(*wrapperEngine)

// WithLogger sets the engine logger.
func WithLogger(log *telemetry.Logger) Option {
	return func(e *wrapperEngine) {
		if log != nil {
			e.log = log.NewComponentLogger("scripting").WithField("engine", e.name)
		}
	}
}

// WithExecutable overrides the interpreter executable.
func WithExecutable(executable string) Option {
	return func(e *wrapperEngine) {
		next := e.command
		e.command = func(wrapperPath, keyHex string) (string, []string) {
			_, args := next(wrapperPath, keyHex)
			return executable, args
		}
	}
}

func newWrapperEngine(e *wrapperEngine, template string, dialect Dialect, opts []Option) (*wrapperEngine, error) {
	e.log = telemetry.NewNopLogger()
	for _, opt := range opts {
		opt(e)
	}
	renderer, err := NewBootstrapRenderer(template, dialect, e.key)
	if err != nil {
		return nil, err
	}
	e.renderer = renderer
	return e, nil
}

// SupportedExtensions implements Engine.
func (e *wrapperEngine) SupportedExtensions() []string {
	return append([]string(nil), e.extensions...)
}

// Execute implements Engine. The wrapper is written into the script's
// directory, which is also the working directory of the process.
func (e *wrapperEngine) Execute(ctx context.Context, scriptPath string, vars *variables.Store, runner CommandLineRunner) (*CommandResult, error) {
	workDir := filepath.Dir(scriptPath)

	text, err := e.renderer.Render(scriptPath, vars)
	if err != nil {
		return nil, err
	}

	wrapper := e.fs.NewTemporaryFilePath(workDir, "Bootstrap", e.wrapperExt)
	if err := e.fs.WriteAllText(wrapper, text, 0o600); err != nil {
		return nil, err
	}
	defer func() {
		_ = e.fs.DeleteFile(wrapper, filesystem.IgnoreFailure)
	}()

	keyHex := e.key.KeyHex()
	executable, args := e.command(wrapper, keyHex)
	inv := Invocation{
		Executable:       executable,
		Args:             args,
		WorkingDirectory: workDir,
		Secrets:          []string{keyHex},
	}
	e.log.Debugf("executing %s", inv)

	var result *CommandResult
	_, err = telemetry.RecordScriptExecution(ctx, scriptPath, e.name, func(ctx context.Context) (int, error) {
		var runErr error
		result, runErr = runner.Run(ctx, inv)
		if runErr != nil {
			return -1, runErr
		}
		return result.ExitCode, nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}
