package conventions

import (
	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// Default returns the standard package deployment conventions in order.
func Default(fsys filesystem.FileSystem, executor *ScriptExecutor, log *telemetry.Logger) []engine.Convention {
	var steps []engine.Convention
	steps = append(steps,
		NewContributeEnvironmentVariablesConvention(),
		NewEnsureDiskSpaceConvention(fsys, log),
	)
	steps = append(steps, stage(StagePreDeploy, fsys, executor, log)...)
	steps = append(steps, NewCopyPackageToCustomInstallationDirectoryConvention(fsys, log))
	steps = append(steps, stage(StageDeploy, fsys, executor, log)...)
	steps = append(steps, stage(StagePostDeploy, fsys, executor, log)...)
	return steps
}

func stage(name string, fsys filesystem.FileSystem, executor *ScriptExecutor, log *telemetry.Logger) []engine.Convention {
	return []engine.Convention{
		NewConfiguredScriptConvention(name, fsys, executor, log),
		NewExecuteScriptsByConvention(name, fsys, executor, log),
	}
}
