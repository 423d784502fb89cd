package conventions

import (
	"context"
	"os"
	"strings"

	"github.com/openfroyo/conveyor/pkg/engine"
)

// ContributeEnvironmentVariablesConvention exposes the process environment as
// env:NAME variables and records the machine's host name.
type ContributeEnvironmentVariablesConvention struct {
	environ  func() []string
	hostname func() (string, error)
}

// NewContributeEnvironmentVariablesConvention reads the real process environment.
func NewContributeEnvironmentVariablesConvention() *ContributeEnvironmentVariablesConvention {
	return &ContributeEnvironmentVariablesConvention{environ: os.Environ, hostname: os.Hostname}
}

// Name implements engine.Convention.
func (c *ContributeEnvironmentVariablesConvention) Name() string {
	return "contribute-environment-variables"
}

// Install implements engine.Convention. Variables already present are kept.
func (c *ContributeEnvironmentVariablesConvention) Install(_ context.Context, d *engine.RunningDeployment) error {
	for _, kv := range c.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		key := "env:" + name
		if !d.Variables.Contains(key) {
			d.Variables.Set(key, value)
		}
	}

	if !d.Variables.Contains(MachineHostnameVariable) {
		if host, err := c.hostname(); err == nil {
			d.Variables.Set(MachineHostnameVariable, host)
		}
	}
	return nil
}
