// Package scripting runs user scripts through per-platform interpreters.
//
// Every execution renders a bootstrap wrapper that declares the deployment's
// variables and then sources the user script. Sensitive values are embedded
// encrypted; the key travels to the interpreter as a launch argument and never
// appears in the wrapper text. The wrapper is deleted on every exit path.
package scripting

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/variables"
)

// Engine executes scripts of the extensions it supports.
type Engine interface {
	// SupportedExtensions returns lower-case extensions including the dot.
	SupportedExtensions() []string

	// Execute runs scriptPath with vars declared, through runner.
	Execute(ctx context.Context, scriptPath string, vars *variables.Store, runner CommandLineRunner) (*CommandResult, error)
}

// Invocation describes one process launch.
type Invocation struct {
	Executable       string
	Args             []string
	WorkingDirectory string

	// Env is appended to the parent's environment.
	Env []string

	// Secrets are argument values masked when the command line is displayed.
	Secrets []string
}

// String renders the command line with secrets masked.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, i.Executable)
	for _, arg := range i.Args {
		for _, secret := range i.Secrets {
			if secret != "" {
				arg = strings.ReplaceAll(arg, secret, variables.MaskedValue)
			}
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// CommandLineRunner launches processes.
type CommandLineRunner interface {
	Run(ctx context.Context, inv Invocation) (*CommandResult, error)
}

// CommandResult is the outcome of a finished process.
type CommandResult struct {
	Command          string
	ExitCode         int
	WorkingDirectory string
}

// VerifySuccess returns a script execution failure for a non-zero exit code.
func (r *CommandResult) VerifySuccess(scriptPath string) error {
	if r.ExitCode != 0 {
		return engine.NewScriptExecutionError(scriptPath, r.ExitCode)
	}
	return nil
}

// Supports reports whether e handles the extension of scriptPath.
func Supports(e Engine, scriptPath string) bool {
	ext := strings.ToLower(filepath.Ext(scriptPath))
	for _, supported := range e.SupportedExtensions() {
		if supported == ext {
			return true
		}
	}
	return false
}
