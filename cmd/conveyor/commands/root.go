package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/conveyor/pkg/engine"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to the process exit code. A failed script
// propagates its own exit code.
func ExitCode(err error) int {
	if code, ok := engine.ExitCodeOf(err); ok && code > 0 && code < 256 {
		return code
	}
	return 1
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conveyor",
		Short: "Conveyor - deployment execution engine",
		Long: `Conveyor runs one deployment on a target machine.

It applies an ordered pipeline of conventions to an unpacked package:
  - Environment and disk space checks
  - PreDeploy, Deploy and PostDeploy scripts (bash or PowerShell)
  - Inline scripts supplied through variables
  - Optional copy into a custom installation directory

Scripts report output variables and artifacts back through service
messages written to standard output.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "run configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newEncryptVariablesCommand())

	return rootCmd
}
