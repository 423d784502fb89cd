package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/conveyor/pkg/config"
	"github.com/openfroyo/conveyor/pkg/conventions"
	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/report"
	"github.com/openfroyo/conveyor/pkg/retry"
	"github.com/openfroyo/conveyor/pkg/scripting"
	"github.com/openfroyo/conveyor/pkg/secrets"
	"github.com/openfroyo/conveyor/pkg/telemetry"
	"github.com/openfroyo/conveyor/pkg/variables"
)

const shutdownTimeout = 10 * time.Second

type runFlags struct {
	packageDir        string
	variableFiles     []string
	sensitiveFile     string
	sensitivePassword string
	reportPath        string
	metricsFile       string
	freeSpaceMB       int64
}

func newRunCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a deployment against an unpacked package",
		Long: `Execute the deployment pipeline against an unpacked package directory.

Variables are loaded from YAML, JSON, TOML or CUE files in the order given;
later files override earlier ones. An encrypted variable file marks all of
its values sensitive: they are never logged and reach scripts encrypted.

The result is written as a line-delimited JSON journal when --report is set.`,
		Example: `  # Deploy with two variable files
  conveyor run --package-dir /srv/staging/web-1.2.0 --variables vars.yaml --variables prod.toml

  # Include encrypted variables and write the journal to stdout
  conveyor run --package-dir ./pkg --sensitive-variables secrets.enc --sensitive-password p --report -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveRunConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runDeployment(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.packageDir, "package-dir", "p", "", "unpacked package directory")
	cmd.Flags().StringArrayVar(&flags.variableFiles, "variables", nil, "variable file (repeatable)")
	cmd.Flags().StringVar(&flags.sensitiveFile, "sensitive-variables", "", "encrypted sensitive variable file")
	cmd.Flags().StringVar(&flags.sensitivePassword, "sensitive-password", "", "password for the sensitive variable file")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "write the result journal to a file, or - for stdout")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().Int64Var(&flags.freeSpaceMB, "free-space-mb", 0, "required free disk space in megabytes")

	return cmd
}

// resolveRunConfig loads the configuration file, if any, and applies the
// flags that were set on top of it.
func resolveRunConfig(cmd *cobra.Command, flags runFlags) (*config.RunConfig, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("package-dir") {
		cfg.PackageDirectory = flags.packageDir
	}
	if changed("variables") {
		cfg.VariableFiles = append(cfg.VariableFiles, flags.variableFiles...)
	}
	if changed("sensitive-variables") {
		cfg.SensitiveVariables.File = flags.sensitiveFile
	}
	if changed("sensitive-password") {
		cfg.SensitiveVariables.Password = flags.sensitivePassword
	}
	if changed("report") {
		cfg.Report = flags.reportPath
	}
	if changed("metrics-file") {
		cfg.Telemetry.Metrics.TextfilePath = flags.metricsFile
	}
	if changed("free-space-mb") {
		cfg.FreeSpaceOverrideMB = flags.freeSpaceMB
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(cfg.PackageDirectory); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("package directory %s does not exist", cfg.PackageDirectory)
	}
	return cfg, nil
}

// loadVariables builds the deployment's variable store from the configured files.
func loadVariables(cfg *config.RunConfig) (*variables.Store, error) {
	vars := variables.NewStore()
	for _, path := range cfg.VariableFiles {
		if err := variables.LoadFile(vars, path); err != nil {
			return nil, err
		}
	}
	if cfg.SensitiveVariables.File != "" {
		if err := variables.LoadSensitiveFile(vars, cfg.SensitiveVariables.File, cfg.SensitivePassword()); err != nil {
			return nil, err
		}
	}
	if cfg.FreeSpaceOverrideMB > 0 && !vars.Contains(conventions.FreeDiskSpaceOverrideVariable) {
		vars.Set(conventions.FreeDiskSpaceOverrideVariable, strconv.FormatInt(cfg.FreeSpaceOverrideMB, 10))
	}
	return vars, nil
}

func openReport(path string, stdout io.Writer) (io.Writer, func() error, error) {
	switch path {
	case "":
		return nil, func() error { return nil }, nil
	case "-":
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}

// runDeployment wires the gateway, script engines and conventions together
// and runs one deployment.
func runDeployment(ctx context.Context, cfg *config.RunConfig, stdout io.Writer) (err error) {
	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
			tel.Logger.WithError(shutdownErr).Warn("Telemetry shutdown failed")
		}
	}()
	ctx = tel.WithContext(ctx)
	log := tel.Logger.NewComponentLogger("deployment")

	vars, err := loadVariables(cfg)
	if err != nil {
		return err
	}

	key, err := secrets.NewRandomEncryption()
	if err != nil {
		return err
	}

	fsys := filesystem.New(
		filesystem.WithLogger(tel.Logger.NewComponentLogger("filesystem")),
		filesystem.WithMetrics(tel.Metrics),
		filesystem.WithRetryPolicy(cfg.Retry.MaxRetries, cfg.Retry.TimeLimit, retry.DefaultInterval()),
	)

	platform, err := scripting.NewPlatformEngine(runtime.GOOS, fsys, key, exec.LookPath, scripting.WithLogger(log))
	if err != nil {
		return err
	}
	scripts := scripting.NewCredentialEngine(platform, scripting.NewSharedCredentialsInstaller(fsys), log)
	executor := conventions.NewScriptExecutor(scripts, log, conventions.WithMetrics(tel.Metrics))

	d := engine.NewRunningDeployment(cfg.PackageDirectory, vars)
	pipeline := engine.NewPipeline(conventions.Default(fsys, executor, log)...).
		Observe(telemetry.NewConventionObserver(tel))

	reportWriter, closeReport, err := openReport(cfg.Report, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeReport(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close report: %w", closeErr)
		}
	}()

	var journal *report.Journal
	if reportWriter != nil {
		journal = report.NewJournal(report.NewEncoder(reportWriter))
		pipeline.Observe(journal)
		journal.Start(d, pipeline)
	}

	ctx = telemetry.WithDeploymentContext(ctx, d.ID)
	log.WithDeploymentID(d.ID).Infof("Starting deployment of %s (%d variables)", cfg.PackageDirectory, vars.Len())

	runErr := pipeline.Run(ctx, d)
	telemetry.EndDeploymentContext(ctx, runErr)

	if journal != nil {
		journal.Finish(d, runErr)
		if journalErr := journal.Err(); journalErr != nil {
			log.WithError(journalErr).Warn("Failed to write the result journal")
		}
	}

	if runErr != nil {
		return runErr
	}
	log.WithDeploymentID(d.ID).Infof("Deployment completed: %d artifacts, %d output variables",
		len(d.Artifacts()), len(d.OutputVariables()))
	return nil
}
