package servicemessages

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// Severity is the level plain output is currently logged at.
type Severity int

const (
	SeverityDefault Severity = iota
	SeverityVerbose
	SeverityWarning
)

// DeploymentProcessor applies service messages to a running deployment and
// routes plain output to the deployment log.
type DeploymentProcessor struct {
	deployment *engine.RunningDeployment
	log        engine.Log
	metrics    *telemetry.Metrics
	mode       Severity
}

// ProcessorOption configures a DeploymentProcessor.
type ProcessorOption func(*DeploymentProcessor)

// WithMetrics counts service messages by tag and malformed lines.
func WithMetrics(m *telemetry.Metrics) ProcessorOption {
	return func(p *DeploymentProcessor) {
		p.metrics = m
	}
}

// NewDeploymentProcessor creates a processor for d.
func NewDeploymentProcessor(d *engine.RunningDeployment, log engine.Log, opts ...ProcessorOption) *DeploymentProcessor {
	p := &DeploymentProcessor{deployment: d, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StdoutWriter returns a fresh parser for one script's standard output. The
// severity mode starts at default for every script.
func (p *DeploymentProcessor) StdoutWriter() *Parser {
	p.mode = SeverityDefault
	return NewParser(p, WithMalformedHook(func(string) {
		p.metrics.RecordMalformedServiceMessage()
	}))
}

// StderrWriter returns a writer logging each line of standard error as an error.
func (p *DeploymentProcessor) StderrWriter() *LineWriter {
	return NewLineWriter(p.log.Error)
}

// Mode returns the current severity mode.
func (p *DeploymentProcessor) Mode() Severity {
	return p.mode
}

// Output implements Handler.
func (p *DeploymentProcessor) Output(line string) {
	switch p.mode {
	case SeverityVerbose:
		p.log.Verbose(line)
	case SeverityWarning:
		p.log.Warn(line)
	default:
		p.log.Info(line)
	}
}

// ServiceMessage implements Handler.
func (p *DeploymentProcessor) ServiceMessage(msg Message) {
	p.metrics.RecordServiceMessage(msg.Name)

	switch msg.Name {
	case TagSetVariable:
		p.setVariable(msg)
	case TagCreateArtifact:
		p.createArtifact(msg)
	case TagStdoutVerbose:
		p.mode = SeverityVerbose
	case TagStdoutWarning:
		p.mode = SeverityWarning
	case TagStdoutDefault:
		p.mode = SeverityDefault
	default:
		p.log.Verbose(fmt.Sprintf("Ignoring unrecognized service message %q", msg.Name))
	}
}

func (p *DeploymentProcessor) setVariable(msg Message) {
	name, _ := msg.Get("name")
	if name == "" {
		p.log.Warn("Ignoring setVariable service message without a name")
		return
	}
	value, _ := msg.Get("value")

	vars := p.deployment.Variables
	sensitive, _ := msg.Get("sensitive")
	if strings.EqualFold(sensitive, "true") {
		vars.SetSensitive(name, value)
	} else {
		vars.Set(name, value)
	}
	p.deployment.RecordOutputVariable(name)
	p.log.Verbose(fmt.Sprintf("Setting output variable %s to %s", name, vars.Masked(name)))
}

func (p *DeploymentProcessor) createArtifact(msg Message) {
	path, _ := msg.Get("path")
	if path == "" {
		p.log.Warn("Ignoring createArtifact service message without a path")
		return
	}
	name, _ := msg.Get("name")
	if name == "" {
		name = filepath.Base(path)
	}

	var length int64
	if raw, ok := msg.Get("length"); ok && raw != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			p.log.Warn(fmt.Sprintf("Artifact %s has an invalid length %q", name, raw))
		} else {
			length = n
		}
	}

	p.deployment.AddArtifact(engine.Artifact{Path: path, Name: name, Length: length})
	p.log.Verbose(fmt.Sprintf("Artifact %s registered (%d bytes)", name, length))
}
