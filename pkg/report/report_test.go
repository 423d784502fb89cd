package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/openfroyo/conveyor/pkg/engine"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "encode started message",
			msgType: MessageTypeStarted,
			data:    &StartedMessage{DeploymentID: "d-1", PackageDirectory: "/pkg", Conventions: []string{"a"}},
		},
		{
			name:    "encode convention message",
			msgType: MessageTypeConventionFinished,
			data:    &ConventionMessage{DeploymentID: "d-1", Name: "ensure-disk-space", Success: true},
		},
		{
			name:    "invalid message type",
			msgType: MessageType("INVALID"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewEncoder(&buf).Encode(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			var msg Message
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &msg); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("type = %v, want %v", msg.Type, tt.msgType)
			}
		})
	}
}

func TestEncoderRejectsInvalidPayloads(t *testing.T) {
	enc := NewEncoder(io.Discard)
	if err := enc.EncodeConvention(MessageTypeConventionStarted, &ConventionMessage{DeploymentID: "d-1"}); err == nil {
		t.Error("convention without name accepted")
	}
	if err := enc.EncodeConvention(MessageTypeResult, &ConventionMessage{DeploymentID: "d-1", Name: "x"}); err == nil {
		t.Error("convention message with RESULT type accepted")
	}
	if err := enc.EncodeResult(&ResultMessage{DeploymentID: "d-1", Success: false}); err == nil {
		t.Error("failed result without error accepted")
	}
	if err := enc.EncodeStarted(&StartedMessage{}); err == nil {
		t.Error("started message without deployment id accepted")
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		msgType MessageType
	}{
		{
			name:    "decode result message",
			input:   `{"type":"RESULT","timestamp":"2026-01-01T00:00:00Z","data":{"deployment_id":"d-1","success":true}}`,
			msgType: MessageTypeResult,
		},
		{
			name:    "unknown type",
			input:   `{"type":"CMD","timestamp":"2026-01-01T00:00:00Z"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			input:   `{invalid json`,
			wantErr: true,
		},
		{
			name:    "empty line",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewDecoder(strings.NewReader(tt.input + "\n")).Decode()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && msg.Type != tt.msgType {
				t.Errorf("type = %v, want %v", msg.Type, tt.msgType)
			}
		})
	}
}

func decodeAll(t *testing.T, r io.Reader) []*Message {
	t.Helper()
	dec := NewDecoder(r)
	var msgs []*Message
	for {
		msg, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return msgs
		}
		if err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg)
	}
}

func TestJournalSuccessfulDeployment(t *testing.T) {
	var buf bytes.Buffer
	journal := NewJournal(NewEncoder(&buf))

	d := engine.NewRunningDeployment(t.TempDir(), nil)
	p := engine.NewPipeline(engine.ConventionFunc{
		ConventionName: "set-outputs",
		Fn: func(_ context.Context, d *engine.RunningDeployment) error {
			d.Variables.Set("Color", "blue")
			d.RecordOutputVariable("Color")
			d.Variables.SetSensitive("Token", "s3cr3t")
			d.RecordOutputVariable("Token")
			d.AddArtifact(engine.Artifact{Path: "/tmp/out.log", Name: "out.log", Length: 3})
			return nil
		},
	}).Observe(journal)

	journal.Start(d, p)
	journal.Finish(d, p.Run(context.Background(), d))
	if err := journal.Err(); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Fatalf("sensitive value written to the journal:\n%s", buf.String())
	}

	msgs := decodeAll(t, bytes.NewReader(buf.Bytes()))
	var types []string
	for _, m := range msgs {
		types = append(types, string(m.Type))
	}
	if got := strings.Join(types, ","); got != "STARTED,CONVENTION_STARTED,CONVENTION_FINISHED,RESULT" {
		t.Fatalf("message sequence = %s", got)
	}

	result, err := NewDecoder(bytes.NewReader(buf.Bytes())).DecodeResult()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.DeploymentID != d.ID {
		t.Errorf("result = %+v", result)
	}
	want := []OutputVariable{
		{Name: "Color", Value: "blue"},
		{Name: "Token", Value: "********", Sensitive: true},
	}
	if len(result.OutputVariables) != len(want) {
		t.Fatalf("output variables = %+v", result.OutputVariables)
	}
	for i := range want {
		if result.OutputVariables[i] != want[i] {
			t.Errorf("output variable %d = %+v, want %+v", i, result.OutputVariables[i], want[i])
		}
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].Name != "out.log" {
		t.Errorf("artifacts = %+v", result.Artifacts)
	}
}

func TestJournalFailedDeployment(t *testing.T) {
	var buf bytes.Buffer
	journal := NewJournal(NewEncoder(&buf))

	d := engine.NewRunningDeployment(t.TempDir(), nil)
	p := engine.NewPipeline(engine.ConventionFunc{
		ConventionName: "package-scripts-deploy",
		Fn: func(context.Context, *engine.RunningDeployment) error {
			return engine.NewScriptExecutionError("/pkg/Deploy.sh", 4)
		},
	}).Observe(journal)

	journal.Start(d, p)
	journal.Finish(d, p.Run(context.Background(), d))

	result, err := NewDecoder(&buf).DecodeResult()
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Error == nil {
		t.Fatalf("result = %+v", result)
	}
	if result.Error.Convention != "package-scripts-deploy" || result.Error.Code != engine.ErrCodeScriptFailed {
		t.Errorf("error = %+v", result.Error)
	}
	if result.Error.ExitCode == nil || *result.Error.ExitCode != 4 {
		t.Errorf("exit code = %v", result.Error.ExitCode)
	}
	if !strings.Contains(result.Error.Message, "/pkg/Deploy.sh") {
		t.Errorf("message should name the script: %s", result.Error.Message)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJournalKeepsFirstWriteError(t *testing.T) {
	journal := NewJournal(NewEncoder(failingWriter{}))
	d := engine.NewRunningDeployment(t.TempDir(), nil)
	journal.Start(d, engine.NewPipeline())
	journal.Finish(d, nil)

	if err := journal.Err(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Err() = %v", err)
	}
}
