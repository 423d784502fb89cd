package conventions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// CopyPackageToCustomInstallationDirectoryConvention copies the package into a
// user-chosen directory, optionally purging it first, and moves the deployment
// there.
type CopyPackageToCustomInstallationDirectoryConvention struct {
	fs  filesystem.FileSystem
	log *telemetry.Logger
}

// NewCopyPackageToCustomInstallationDirectoryConvention creates the convention.
func NewCopyPackageToCustomInstallationDirectoryConvention(fsys filesystem.FileSystem, log *telemetry.Logger) *CopyPackageToCustomInstallationDirectoryConvention {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	return &CopyPackageToCustomInstallationDirectoryConvention{fs: fsys, log: log}
}

// Name implements engine.Convention.
func (c *CopyPackageToCustomInstallationDirectoryConvention) Name() string {
	return "copy-to-custom-installation-directory"
}

// Install implements engine.Convention.
func (c *CopyPackageToCustomInstallationDirectoryConvention) Install(ctx context.Context, d *engine.RunningDeployment) error {
	target, ok := d.Variables.Evaluate(CustomInstallationDirectoryVariable)
	target = strings.TrimSpace(target)
	if !ok || target == "" {
		return nil
	}

	if !filepath.IsAbs(target) {
		return engine.NewPermanentError(
			fmt.Sprintf("the custom installation directory %q must be an absolute path", target), nil).
			WithCode(engine.ErrCodeValidation).
			WithResource(target)
	}
	source := filepath.Clean(d.CurrentDirectory())
	target = filepath.Clean(target)
	sep := string(filepath.Separator)
	if target == source || strings.HasPrefix(source, target+sep) || strings.HasPrefix(target, source+sep) {
		return engine.NewPermanentError(
			"the custom installation directory must not overlap the package directory", nil).
			WithCode(engine.ErrCodeValidation).
			WithResource(target)
	}

	if err := c.fs.EnsureDirectoryExists(target); err != nil {
		return err
	}

	if d.Variables.GetFlag(PurgeCustomDirectoryVariable, false) {
		exclusions := nonEmptyLines(d.Variables.EvaluateText(d.Variables.GetOrDefault(PurgeExclusionsVariable, "")))
		include, err := filesystem.ExcludeGlobs(target, exclusions)
		if err != nil {
			return err
		}
		c.log.Infof("Purging %s (%d exclusions)", target, len(exclusions))
		if err := c.fs.PurgeDirectory(ctx, target, include, filesystem.ThrowOnFailure); err != nil {
			return err
		}
	}

	copied, err := c.fs.CopyDirectory(ctx, source, target)
	if err != nil {
		return err
	}
	c.log.Infof("Copied %d files to custom installation directory %s", copied, target)

	d.SetCurrentDirectory(target)
	d.Variables.Set(OriginalPackageDirectoryVariable, target)
	return nil
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
