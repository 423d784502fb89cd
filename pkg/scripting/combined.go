package scripting

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/variables"
)

// CombinedEngine dispatches to the first engine supporting a script's extension.
type CombinedEngine struct {
	engines []Engine
}

// NewCombinedEngine creates a dispatcher over engines, in priority order.
func NewCombinedEngine(engines ...Engine) *CombinedEngine {
	return &CombinedEngine{engines: engines}
}

// SupportedExtensions returns the union of the engines' extensions.
func (c *CombinedEngine) SupportedExtensions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.engines {
		for _, ext := range e.SupportedExtensions() {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	return out
}

// Execute implements Engine. A script no engine supports fails with an
// engine selection error.
func (c *CombinedEngine) Execute(ctx context.Context, scriptPath string, vars *variables.Store, runner CommandLineRunner) (*CommandResult, error) {
	for _, e := range c.engines {
		if Supports(e, scriptPath) {
			return e.Execute(ctx, scriptPath, vars, runner)
		}
	}
	return nil, engine.NewEngineSelectionError(scriptPath, strings.ToLower(filepath.Ext(scriptPath)))
}
