package conventions

// Variables read or written by the conventions.
const (
	SkipFreeDiskSpaceCheckVariable      = "OctopusSkipFreeDiskSpaceCheck"
	FreeDiskSpaceOverrideVariable       = "OctopusFreeDiskSpaceOverrideInMegaBytes"
	CustomInstallationDirectoryVariable = "Octopus.Action.Package.CustomInstallationDirectory"
	PurgeCustomDirectoryVariable        = "Octopus.Action.Package.CustomInstallationDirectoryShouldBePurgedBeforeDeployment"
	PurgeExclusionsVariable             = "Octopus.Action.Package.CustomInstallationDirectoryPurgeExclusions"
	OriginalPackageDirectoryVariable    = "OctopusOriginalPackageDirectoryPath"
	MachineHostnameVariable             = "Octopus.Machine.Hostname"
	customScriptsVariablePrefix         = "Octopus.Action.CustomScripts."
)

// Deployment stages with script hooks.
const (
	StagePreDeploy  = "PreDeploy"
	StageDeploy     = "Deploy"
	StagePostDeploy = "PostDeploy"
)

// CustomScriptVariable returns the variable holding the inline script for stage
// and extension, e.g. Octopus.Action.CustomScripts.PreDeploy.sh.
func CustomScriptVariable(stage, extension string) string {
	return customScriptsVariablePrefix + stage + extension
}
