package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	content := `
package_directory: pkg
variable_files:
  - vars.yaml
  - /etc/deploy/overrides.toml
sensitive_variables:
  file: secrets.enc
  password_env: TEST_CONVEYOR_PASSWORD
retry:
  max_retries: 3
telemetry:
  logging:
    level: debug
    format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_CONVEYOR_PASSWORD", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PackageDirectory != filepath.Join(dir, "pkg") {
		t.Errorf("PackageDirectory = %s", cfg.PackageDirectory)
	}
	if cfg.VariableFiles[0] != filepath.Join(dir, "vars.yaml") || cfg.VariableFiles[1] != "/etc/deploy/overrides.toml" {
		t.Errorf("VariableFiles = %v", cfg.VariableFiles)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.TimeLimit != DefaultTimeLimit {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.ServiceName != "conveyor" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.SensitivePassword() != "hunter2" {
		t.Errorf("SensitivePassword() = %q", cfg.SensitivePassword())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("retry: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
	if _, err := Load(bad); err == nil {
		t.Error("Load() of malformed YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*RunConfig) {}},
		{name: "missing package directory", mutate: func(c *RunConfig) { c.PackageDirectory = "" }, wantErr: "PackageDirectory"},
		{name: "blank variable file", mutate: func(c *RunConfig) { c.VariableFiles = []string{""} }, wantErr: "VariableFiles"},
		{name: "negative retries", mutate: func(c *RunConfig) { c.Retry.MaxRetries = -1 }, wantErr: "MaxRetries"},
		{name: "negative override", mutate: func(c *RunConfig) { c.FreeSpaceOverrideMB = -5 }, wantErr: "FreeSpaceOverrideMB"},
		{name: "sensitive file without password", mutate: func(c *RunConfig) { c.SensitiveVariables.File = "s.enc" }, wantErr: "requires a password"},
		{name: "bad telemetry", mutate: func(c *RunConfig) { c.Telemetry.Logging.Level = "loud" }, wantErr: "telemetry"},
		{name: "retry time limit", mutate: func(c *RunConfig) { c.Retry.TimeLimit = 5 * time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.PackageDirectory = "/pkg"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
