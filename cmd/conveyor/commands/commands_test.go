package commands

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/openfroyo/conveyor/pkg/report"
	"github.com/openfroyo/conveyor/pkg/variables"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEncryptVariables(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "secrets.yaml")
	out := filepath.Join(dir, "secrets.enc")
	writeFile(t, in, "ApiKey: abc123\nDbPassword: hunter2\n")

	if _, err := execute(t, "encrypt-variables", "--in", in, "--out", out, "--password", "p@ss"); err != nil {
		t.Fatalf("encrypt-variables error = %v", err)
	}

	vars := variables.NewStore()
	if err := variables.LoadSensitiveFile(vars, out, "p@ss"); err != nil {
		t.Fatal(err)
	}
	if got, _ := vars.Get("DbPassword"); got != "hunter2" || !vars.IsSensitive("DbPassword") {
		t.Errorf("DbPassword = %q, sensitive = %v", got, vars.IsSensitive("DbPassword"))
	}
}

func TestRunWritesResultJournal(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "pkg")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	vars := filepath.Join(dir, "vars.yaml")
	writeFile(t, vars, "OctopusSkipFreeDiskSpaceCheck: \"True\"\nGreeting: hello\n")
	metrics := filepath.Join(dir, "conveyor.prom")

	out, err := execute(t, "run", "--package-dir", pkg, "--variables", vars, "--report", "-", "--metrics-file", metrics)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	result, err := report.NewDecoder(bytes.NewBufferString(out)).DecodeResult()
	if err != nil {
		t.Fatalf("DecodeResult() error = %v\n%s", err, out)
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
	if _, err := os.Stat(metrics); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestRunRejectsMissingPackageDirectory(t *testing.T) {
	if _, err := execute(t, "run", "--package-dir", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("run with a missing package directory should fail")
	}
	if _, err := execute(t, "run"); err == nil {
		t.Error("run without a package directory should fail")
	}
}

func TestRunPropagatesScriptExitCode(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Deploy.sh"), "echo deploying\nexit 3\n")
	vars := filepath.Join(t.TempDir(), "vars.json")
	writeFile(t, vars, `{"OctopusSkipFreeDiskSpaceCheck": "true"}`)

	_, err := execute(t, "run", "--package-dir", dir, "--variables", vars)
	if err == nil {
		t.Fatal("run should fail when a script fails")
	}
	if code := ExitCode(err); code != 3 {
		t.Errorf("ExitCode() = %d, want 3 (%v)", code, err)
	}
}
