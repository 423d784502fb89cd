package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestEngineErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantCode      string
	}{
		{
			name:          "transient",
			err:           NewTransientError("file locked", nil),
			wantTransient: true,
			wantCode:      ErrCodeIOTransient,
		},
		{
			name:     "script failure",
			err:      NewScriptExecutionError("Deploy.sh", 2),
			wantCode: ErrCodeScriptFailed,
		},
		{
			name:     "engine selection",
			err:      NewEngineSelectionError("Deploy.py", ".py"),
			wantCode: ErrCodeEngineSelection,
		},
		{
			name:     "wrapped",
			err:      fmt.Errorf("outer: %w", NewPermanentError("denied", fs.ErrPermission).WithCode(ErrCodePermissionDenied)),
			wantCode: ErrCodePermissionDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v", got)
			}
			if got := IsRetryable(tt.err); got != tt.wantTransient {
				t.Errorf("IsRetryable() = %v", got)
			}
			if IsPermanent(tt.err) == tt.wantTransient {
				t.Error("IsPermanent() should be the opposite of IsTransient()")
			}
			if !HasCode(tt.err, tt.wantCode) {
				t.Errorf("HasCode(%s) = false for %v", tt.wantCode, tt.err)
			}
		})
	}
}

func TestEngineErrorMessage(t *testing.T) {
	err := NewPermanentError("delete failed", fs.ErrPermission).
		WithResource("/opt/app/file").
		WithOperation("delete file")
	msg := err.Error()
	for _, want := range []string{"[permanent]", "/opt/app/file", "delete file", "permission denied"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	class, code := err.Classification()
	if class != "permanent" || code != "" {
		t.Errorf("Classification() = %s, %s", class, code)
	}
}

func TestExitCodeOf(t *testing.T) {
	if code, ok := ExitCodeOf(NewScriptExecutionError("x.sh", 127)); !ok || code != 127 {
		t.Errorf("ExitCodeOf() = %d, %v", code, ok)
	}
	if _, ok := ExitCodeOf(NewTransientError("x", nil)); ok {
		t.Error("ExitCodeOf() should ignore other errors")
	}
	if _, ok := ExitCodeOf(errors.New("plain")); ok {
		t.Error("ExitCodeOf() should ignore plain errors")
	}
}
