package engine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/openfroyo/conveyor/pkg/variables"
)

// Log is the console sink for deployment output. Script output is forwarded to
// it under the severity selected by service messages.
type Log interface {
	Verbose(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Artifact is a file registered as deployment output.
type Artifact struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Length int64  `json:"length"`
}

// RunningDeployment is the mutable context threaded through every convention.
//
// It has a single writer at any instant: the pipeline between script
// executions, or the service message processor while one script runs.
type RunningDeployment struct {
	// ID uniquely identifies this deployment invocation.
	ID string

	// PackageDirectory is the staging directory holding the unpacked package.
	PackageDirectory string

	// Variables is the deployment's variable store.
	Variables *variables.Store

	currentDirectory string
	artifacts        []Artifact
	outputVariables  []string
}

// NewRunningDeployment creates a deployment whose current directory starts at
// the package directory.
func NewRunningDeployment(packageDirectory string, vars *variables.Store) *RunningDeployment {
	if vars == nil {
		vars = variables.NewStore()
	}
	return &RunningDeployment{
		ID:               uuid.NewString(),
		PackageDirectory: packageDirectory,
		Variables:        vars,
		currentDirectory: packageDirectory,
	}
}

// CurrentDirectory returns the working directory conventions operate in.
func (d *RunningDeployment) CurrentDirectory() string {
	return d.currentDirectory
}

// SetCurrentDirectory advances the working directory, e.g. after the package
// has been copied to its installation directory.
func (d *RunningDeployment) SetCurrentDirectory(dir string) {
	d.currentDirectory = dir
}

// AddArtifact appends an artifact. Duplicates are kept.
func (d *RunningDeployment) AddArtifact(a Artifact) {
	d.artifacts = append(d.artifacts, a)
}

// Artifacts returns the registered artifacts in registration order.
func (d *RunningDeployment) Artifacts() []Artifact {
	out := make([]Artifact, len(d.artifacts))
	copy(out, d.artifacts)
	return out
}

// RecordOutputVariable marks name as set by a script during this deployment.
func (d *RunningDeployment) RecordOutputVariable(name string) {
	for _, existing := range d.outputVariables {
		if strings.EqualFold(existing, name) {
			return
		}
	}
	d.outputVariables = append(d.outputVariables, name)
}

// OutputVariables returns the names of variables set by scripts, in first-set order.
func (d *RunningDeployment) OutputVariables() []string {
	out := make([]string, len(d.outputVariables))
	copy(out, d.outputVariables)
	return out
}
