package scripting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/conveyor/pkg/engine"
)

// flusher is implemented by output sinks that buffer a trailing partial line.
type flusher interface {
	Flush() error
}

// DefaultWaitDelay is how long output is drained after the process exits
// before the pipes are closed. Background children that inherit the pipes
// would otherwise hold the run open until they exit.
const DefaultWaitDelay = 2 * time.Second

// ProcessRunner launches processes and streams their output to Stdout and
// Stderr while they run.
type ProcessRunner struct {
	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay bounds output draining once the process has exited or the
	// context is done. Zero means DefaultWaitDelay.
	WaitDelay time.Duration
}

// NewProcessRunner creates a runner. Nil writers discard output.
func NewProcessRunner(stdout, stderr io.Writer) *ProcessRunner {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &ProcessRunner{Stdout: stdout, Stderr: stderr, WaitDelay: DefaultWaitDelay}
}

// Run starts the process and drains stdout and stderr concurrently so the child
// never blocks on a full pipe. Once the process exits, output is drained for at
// most WaitDelay before the pipes are closed. A process that cannot be started
// is a permanent error and is not retried.
func (r *ProcessRunner) Run(ctx context.Context, inv Invocation) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Dir = inv.WorkingDirectory
	cmd.Env = append(os.Environ(), inv.Env...)

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, launchError(inv, err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, launchError(inv, err)
	}
	defer outR.Close()
	defer errR.Close()
	cmd.Stdout = outW
	cmd.Stderr = errW

	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	outW.Close()
	errW.Close()
	if startErr != nil {
		return nil, launchError(inv, startErr)
	}

	drained := make(chan error, 1)
	go func() {
		var g errgroup.Group
		g.Go(func() error {
			_, err := io.Copy(r.Stdout, outR)
			return err
		})
		g.Go(func() error {
			_, err := io.Copy(r.Stderr, errR)
			return err
		})
		drained <- g.Wait()
	}()

	waitErr := cmd.Wait()
	cancelled := ctx.Err()

	delay := r.WaitDelay
	if delay <= 0 {
		delay = DefaultWaitDelay
	}
	timer := time.NewTimer(delay)
	var drainErr error
	select {
	case drainErr = <-drained:
		timer.Stop()
	case <-timer.C:
		outR.Close()
		errR.Close()
		drainErr = <-drained
	}

	for _, w := range []io.Writer{r.Stdout, r.Stderr} {
		if f, ok := w.(flusher); ok {
			if err := f.Flush(); err != nil && drainErr == nil {
				drainErr = err
			}
		}
	}

	result := &CommandResult{
		Command:          inv.String(),
		WorkingDirectory: inv.WorkingDirectory,
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	if cancelled != nil {
		return result, engine.NewPermanentError("script cancelled", cancelled).
			WithCode(engine.ErrCodeCancelled).
			WithResource(inv.Executable)
	}
	if waitErr != nil && exitErr == nil {
		return nil, engine.NewPermanentError("failed waiting for process", waitErr).
			WithCode(engine.ErrCodeInternal).
			WithResource(inv.Executable)
	}
	if drainErr != nil && !errors.Is(drainErr, fs.ErrClosed) {
		return result, engine.NewPermanentError("failed reading process output", drainErr).
			WithCode(engine.ErrCodeInternal).
			WithResource(inv.Executable)
	}
	return result, nil
}

func launchError(inv Invocation, err error) error {
	msg := fmt.Sprintf("unable to launch %s", inv.Executable)
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		msg = fmt.Sprintf("interpreter %s was not found", inv.Executable)
	case errors.Is(err, fs.ErrPermission):
		msg = fmt.Sprintf("permission denied launching %s", inv.Executable)
	}
	return engine.NewPermanentError(msg, err).
		WithCode(engine.ErrCodeScriptLaunch).
		WithResource(inv.Executable).
		WithOperation("launch")
}
