package conventions

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// ExecuteScriptsByConvention runs the package scripts named after a stage, such
// as Deploy.sh or PreDeploy.ps1, found in the current directory.
type ExecuteScriptsByConvention struct {
	prefix   string
	fs       filesystem.FileSystem
	executor *ScriptExecutor
	log      *telemetry.Logger
}

// NewExecuteScriptsByConvention creates the convention for scripts whose base
// name equals prefix, case-insensitively.
func NewExecuteScriptsByConvention(prefix string, fsys filesystem.FileSystem, executor *ScriptExecutor, log *telemetry.Logger) *ExecuteScriptsByConvention {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	return &ExecuteScriptsByConvention{prefix: prefix, fs: fsys, executor: executor, log: log}
}

// Name implements engine.Convention.
func (c *ExecuteScriptsByConvention) Name() string {
	return "package-scripts-" + strings.ToLower(c.prefix)
}

// FindScripts returns the matching scripts of dir in discovery order.
func (c *ExecuteScriptsByConvention) FindScripts(dir string) ([]string, error) {
	files, err := c.fs.EnumerateFiles(dir, false)
	if err != nil {
		return nil, err
	}

	supported := make(map[string]bool)
	for _, ext := range c.executor.SupportedExtensions() {
		supported[ext] = true
	}

	var scripts []string
	for _, file := range files {
		base := filepath.Base(file)
		ext := filepath.Ext(base)
		if !supported[strings.ToLower(ext)] {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(base, ext), c.prefix) {
			scripts = append(scripts, file)
		}
	}
	return scripts, nil
}

// Install implements engine.Convention. Scripts are deleted once all of them
// succeeded; a failed deletion is logged and ignored.
func (c *ExecuteScriptsByConvention) Install(ctx context.Context, d *engine.RunningDeployment) error {
	scripts, err := c.FindScripts(d.CurrentDirectory())
	if err != nil {
		return err
	}
	if len(scripts) == 0 {
		c.log.Debugf("no %s scripts found in %s", c.prefix, d.CurrentDirectory())
		return nil
	}

	for _, script := range scripts {
		if err := c.executor.Run(ctx, d, script); err != nil {
			return err
		}
	}

	for _, script := range scripts {
		_ = c.fs.DeleteFile(script, filesystem.IgnoreFailure)
	}
	return nil
}

// ConfiguredScriptConvention runs inline scripts supplied through variables
// named Octopus.Action.CustomScripts.<Stage><ext>.
type ConfiguredScriptConvention struct {
	stage    string
	fs       filesystem.FileSystem
	executor *ScriptExecutor
	log      *telemetry.Logger
}

// NewConfiguredScriptConvention creates the convention for stage.
func NewConfiguredScriptConvention(stage string, fsys filesystem.FileSystem, executor *ScriptExecutor, log *telemetry.Logger) *ConfiguredScriptConvention {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	return &ConfiguredScriptConvention{stage: stage, fs: fsys, executor: executor, log: log}
}

// Name implements engine.Convention.
func (c *ConfiguredScriptConvention) Name() string {
	return "configured-script-" + strings.ToLower(c.stage)
}

// Install implements engine.Convention. Each configured script is written to a
// uniquely named file in the current directory, so it never replaces a package
// script of the same stage, then executed and removed again. A body that
// interpolates a sensitive variable holds the plaintext on disk while it runs,
// so the file is readable by the owner only.
func (c *ConfiguredScriptConvention) Install(ctx context.Context, d *engine.RunningDeployment) error {
	for _, ext := range c.executor.SupportedExtensions() {
		body, ok := d.Variables.Get(CustomScriptVariable(c.stage, ext))
		if !ok || strings.TrimSpace(body) == "" {
			continue
		}

		text, sensitive := d.Variables.EvaluateTextSensitive(body)
		mode := fs.FileMode(0o644)
		if sensitive {
			mode = 0o600
			c.log.Warnf("configured %s script %s references sensitive variables; their values are written to a temporary script file",
				c.stage, CustomScriptVariable(c.stage, ext))
		}
		path := c.fs.NewTemporaryFilePath(d.CurrentDirectory(), "Configured"+c.stage, ext)
		if err := c.run(ctx, d, path, text, mode); err != nil {
			return fmt.Errorf("configured %s script: %w", c.stage, err)
		}
	}
	return nil
}

func (c *ConfiguredScriptConvention) run(ctx context.Context, d *engine.RunningDeployment, path, body string, mode fs.FileMode) error {
	if err := c.fs.WriteAllText(path, body, mode); err != nil {
		return err
	}
	defer func() {
		_ = c.fs.DeleteFile(path, filesystem.IgnoreFailure)
	}()
	return c.executor.Run(ctx, d, path)
}
