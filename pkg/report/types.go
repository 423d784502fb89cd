// Package report defines the line-delimited JSON journal through which a
// deployment reports its progress and result to the orchestrating process.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openfroyo/conveyor/pkg/engine"
)

// MessageType represents the type of message in the journal.
type MessageType string

const (
	// MessageTypeStarted is written once when the deployment begins
	MessageTypeStarted MessageType = "STARTED"
	// MessageTypeConventionStarted is written before each convention
	MessageTypeConventionStarted MessageType = "CONVENTION_STARTED"
	// MessageTypeConventionFinished is written after each convention
	MessageTypeConventionFinished MessageType = "CONVENTION_FINISHED"
	// MessageTypeResult is the last message of a deployment
	MessageTypeResult MessageType = "RESULT"
)

// Message is the envelope of every journal line.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StartedMessage describes the deployment being executed.
type StartedMessage struct {
	DeploymentID     string   `json:"deployment_id"`
	PackageDirectory string   `json:"package_directory"`
	Conventions      []string `json:"conventions"`
	Platform         string   `json:"platform"`
	PID              int      `json:"pid"`
}

// ConventionMessage reports one convention boundary.
type ConventionMessage struct {
	DeploymentID string  `json:"deployment_id"`
	Index        int     `json:"index"`
	Name         string  `json:"name"`
	Success      bool    `json:"success,omitempty"`
	Error        string  `json:"error,omitempty"`
	Duration     float64 `json:"duration,omitempty"` // seconds
}

// OutputVariable is a variable set by a script. Sensitive values are masked.
type OutputVariable struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// ErrorInfo describes the failure that stopped the deployment.
type ErrorInfo struct {
	Convention string `json:"convention,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	ExitCode   *int   `json:"exit_code,omitempty"`
}

// ResultMessage is the outcome of the deployment.
type ResultMessage struct {
	DeploymentID    string            `json:"deployment_id"`
	Success         bool              `json:"success"`
	Error           *ErrorInfo        `json:"error,omitempty"`
	Artifacts       []engine.Artifact `json:"artifacts"`
	OutputVariables []OutputVariable  `json:"output_variables"`
	Duration        float64           `json:"duration"` // seconds
}

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeStarted, MessageTypeConventionStarted,
		MessageTypeConventionFinished, MessageTypeResult:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks if the convention message is valid.
func (m *ConventionMessage) Validate() error {
	if m.DeploymentID == "" {
		return fmt.Errorf("deployment ID is required")
	}
	if m.Name == "" {
		return fmt.Errorf("convention name is required")
	}
	if m.Index < 0 {
		return fmt.Errorf("invalid convention index: %d", m.Index)
	}
	return nil
}

// Validate checks if the result message is consistent.
func (m *ResultMessage) Validate() error {
	if m.DeploymentID == "" {
		return fmt.Errorf("deployment ID is required")
	}
	if m.Success && m.Error != nil {
		return fmt.Errorf("successful result must not carry an error")
	}
	if !m.Success && m.Error == nil {
		return fmt.Errorf("failed result requires an error")
	}
	return nil
}

// NewResult builds the result of d from the pipeline error err. Output
// variables are reported with their current values, masked when sensitive.
func NewResult(d *engine.RunningDeployment, err error, duration time.Duration) *ResultMessage {
	result := &ResultMessage{
		DeploymentID:    d.ID,
		Success:         err == nil,
		Artifacts:       d.Artifacts(),
		OutputVariables: []OutputVariable{},
		Duration:        duration.Seconds(),
	}
	for _, name := range d.OutputVariables() {
		result.OutputVariables = append(result.OutputVariables, OutputVariable{
			Name:      name,
			Value:     d.Variables.Masked(name),
			Sensitive: d.Variables.IsSensitive(name),
		})
	}
	if result.Artifacts == nil {
		result.Artifacts = []engine.Artifact{}
	}
	if err != nil {
		result.Error = errorInfo(err)
	}
	return result
}

func errorInfo(err error) *ErrorInfo {
	info := &ErrorInfo{Message: err.Error()}
	var convErr *engine.ConventionError
	if errors.As(err, &convErr) {
		info.Convention = convErr.Convention
	}
	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		info.Code = engErr.Code
	}
	if code, ok := engine.ExitCodeOf(err); ok {
		info.ExitCode = &code
	}
	return info
}
