package conventions

import (
	"context"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// EnsureDiskSpaceConvention fails the deployment early when the volume holding
// the current directory is low on space.
type EnsureDiskSpaceConvention struct {
	fs  filesystem.FileSystem
	log *telemetry.Logger
}

// NewEnsureDiskSpaceConvention creates the convention.
func NewEnsureDiskSpaceConvention(fsys filesystem.FileSystem, log *telemetry.Logger) *EnsureDiskSpaceConvention {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	return &EnsureDiskSpaceConvention{fs: fsys, log: log}
}

// Name implements engine.Convention.
func (c *EnsureDiskSpaceConvention) Name() string { return "ensure-disk-space" }

// Install implements engine.Convention. The override raises the requirement in
// megabytes; it cannot go below the gateway's floor.
func (c *EnsureDiskSpaceConvention) Install(_ context.Context, d *engine.RunningDeployment) error {
	if d.Variables.GetFlag(SkipFreeDiskSpaceCheckVariable, false) {
		c.log.Infof("%s is set, skipping the free disk space check", SkipFreeDiskSpaceCheckVariable)
		return nil
	}

	required := filesystem.MinimumFreeSpaceBytes
	if mb := d.Variables.GetInt64(FreeDiskSpaceOverrideVariable, 0); mb > 0 {
		required = mb * 1024 * 1024
	}
	return c.fs.EnsureDiskHasEnoughFreeSpace(d.CurrentDirectory(), required)
}
