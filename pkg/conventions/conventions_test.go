package conventions

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/conveyor/pkg/engine"
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/retry"
	"github.com/openfroyo/conveyor/pkg/scripting"
	"github.com/openfroyo/conveyor/pkg/secrets"
	"github.com/openfroyo/conveyor/pkg/telemetry"
	"github.com/openfroyo/conveyor/pkg/variables"
)

// Scripted runner standing in for a real interpreter
type scriptedRunner struct {
	stdout   io.Writer
	output   string
	exitCode int
	onRun    func(inv scripting.Invocation)
}

func (r *scriptedRunner) Run(ctx context.Context, inv scripting.Invocation) (*scripting.CommandResult, error) {
	if r.onRun != nil {
		r.onRun(inv)
	}
	if _, err := io.WriteString(r.stdout, r.output); err != nil {
		return nil, err
	}
	if f, ok := r.stdout.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	return &scripting.CommandResult{Command: inv.String(), ExitCode: r.exitCode, WorkingDirectory: inv.WorkingDirectory}, nil
}

func newTestFS(opts ...filesystem.Option) *filesystem.PhysicalFileSystem {
	base := []filesystem.Option{
		filesystem.WithSleep(func(time.Duration) {}),
		filesystem.WithRetryPolicy(2, time.Second, retry.FixedInterval(time.Millisecond)),
	}
	return filesystem.New(append(base, opts...)...)
}

func newBash(t *testing.T, fsys filesystem.FileSystem) scripting.Engine {
	t.Helper()
	key, err := secrets.NewRandomEncryption()
	if err != nil {
		t.Fatal(err)
	}
	bash, err := scripting.NewBashEngine(fsys, key)
	if err != nil {
		t.Fatal(err)
	}
	return bash
}

func scriptedExecutor(t *testing.T, fsys filesystem.FileSystem, output string, exitCode int, onRun func(scripting.Invocation)) *ScriptExecutor {
	t.Helper()
	return NewScriptExecutor(newBash(t, fsys), nil, WithRunnerFactory(func(stdout, _ io.Writer) scripting.CommandLineRunner {
		return &scriptedRunner{stdout: stdout, output: output, exitCode: exitCode, onRun: onRun}
	}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const setFooBar = "##octopus[setVariable name='Rm9v' value='QmFy']\n"

func TestExecuteScriptsByConventionDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Deploy.sh"), "")
	writeFile(t, filepath.Join(dir, "deploy.SH"), "")
	writeFile(t, filepath.Join(dir, "Deploy.txt"), "")
	writeFile(t, filepath.Join(dir, "PreDeploy.sh"), "")
	writeFile(t, filepath.Join(dir, "Deploy.ps1"), "")

	fsys := newTestFS()
	c := NewExecuteScriptsByConvention(StageDeploy, fsys, scriptedExecutor(t, fsys, "", 0, nil), nil)

	scripts, err := c.FindScripts(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range scripts {
		names = append(names, filepath.Base(s))
	}
	if got := strings.Join(names, ","); got != "Deploy.sh,deploy.SH" {
		t.Errorf("FindScripts() = %s", got)
	}
}

func TestPipelineAppliesServiceMessages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Deploy.sh"), "echo hi")

	fsys := newTestFS()
	executor := scriptedExecutor(t, fsys, "plain output\n"+setFooBar, 0, nil)
	d := engine.NewRunningDeployment(dir, variables.NewStore())

	p := engine.NewPipeline(NewExecuteScriptsByConvention(StageDeploy, fsys, executor, nil))
	if err := p.Run(context.Background(), d); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got, _ := d.Variables.Get("foo"); got != "Bar" {
		t.Errorf("Foo = %q, want Bar", got)
	}
	if fsys.FileExists(filepath.Join(dir, "Deploy.sh")) {
		t.Error("executed script should be deleted after success")
	}
}

func TestPipelineAbortsOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "Deploy.sh")
	writeFile(t, script, "exit 2")
	writeFile(t, filepath.Join(dir, "PostDeploy.sh"), "")

	fsys := newTestFS()
	var ran []string
	executor := scriptedExecutor(t, fsys, "", 2, func(inv scripting.Invocation) {
		ran = append(ran, inv.WorkingDirectory)
	})
	d := engine.NewRunningDeployment(dir, nil)

	p := engine.NewPipeline(
		NewExecuteScriptsByConvention(StageDeploy, fsys, executor, nil),
		NewExecuteScriptsByConvention(StagePostDeploy, fsys, executor, nil),
	)
	err := p.Run(context.Background(), d)

	var convErr *engine.ConventionError
	if !errors.As(err, &convErr) || convErr.Convention != "package-scripts-deploy" {
		t.Fatalf("Run() error = %v", err)
	}
	if code, ok := engine.ExitCodeOf(err); !ok || code != 2 {
		t.Errorf("ExitCodeOf() = %d, %v", code, ok)
	}
	if !strings.Contains(err.Error(), script) {
		t.Errorf("error should name the script: %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("PostDeploy must not run after a failure, ran %d scripts", len(ran))
	}
	if !fsys.FileExists(script) {
		t.Error("failed script should be left in place")
	}
}

func TestConfiguredScriptConvention(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Deploy.sh"), "package script")

	fsys := newTestFS()
	var body string
	executor := scriptedExecutor(t, fsys, setFooBar, 0, func(inv scripting.Invocation) {
		matches, _ := filepath.Glob(filepath.Join(inv.WorkingDirectory, "ConfiguredDeploy.*.sh"))
		if len(matches) == 1 {
			data, _ := os.ReadFile(matches[0])
			body = string(data)
		}
	})

	vars := variables.NewStore()
	vars.Set("Greeting", "hello")
	vars.Set(CustomScriptVariable(StageDeploy, ".sh"), "echo #{Greeting}")
	d := engine.NewRunningDeployment(dir, vars)

	if err := NewConfiguredScriptConvention(StageDeploy, fsys, executor, nil).Install(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if body != "echo hello" {
		t.Errorf("configured script body = %q", body)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "Configured*")); len(matches) != 0 {
		t.Errorf("configured script left behind: %v", matches)
	}
	if got, _ := os.ReadFile(filepath.Join(dir, "Deploy.sh")); string(got) != "package script" {
		t.Error("package script must not be overwritten")
	}
	if got, _ := d.Variables.Get("Foo"); got != "Bar" {
		t.Errorf("Foo = %q", got)
	}
}

func TestConfiguredScriptWithSensitiveValue(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := t.TempDir()
	fsys := newTestFS()
	var mode os.FileMode
	executor := scriptedExecutor(t, fsys, "", 0, func(inv scripting.Invocation) {
		matches, _ := filepath.Glob(filepath.Join(inv.WorkingDirectory, "ConfiguredDeploy.*.sh"))
		if len(matches) == 1 {
			if info, err := os.Stat(matches[0]); err == nil {
				mode = info.Mode().Perm()
			}
		}
	})

	vars := variables.NewStore()
	vars.SetSensitive("DbPassword", "hunter2")
	vars.Set(CustomScriptVariable(StageDeploy, ".sh"), "connect --password '#{DbPassword}'")
	d := engine.NewRunningDeployment(dir, vars)

	var logs bytes.Buffer
	log := telemetry.NewWriterLogger(&logs, "info")
	if err := NewConfiguredScriptConvention(StageDeploy, fsys, executor, log).Install(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if mode != 0o600 {
		t.Errorf("configured script mode = %v, want 0600", mode)
	}
	if !strings.Contains(logs.String(), "sensitive") {
		t.Errorf("expected a warning about sensitive values, got %q", logs.String())
	}
	if strings.Contains(logs.String(), "hunter2") {
		t.Error("sensitive value leaked into the log")
	}
}

func TestEnsureDiskSpaceConvention(t *testing.T) {
	const mb = 1024 * 1024
	tests := []struct {
		name    string
		free    uint64
		vars    map[string]string
		wantErr bool
	}{
		{name: "enough", free: 600 * mb},
		{name: "below floor", free: 400 * mb, wantErr: true},
		{name: "skipped", free: 1, vars: map[string]string{SkipFreeDiskSpaceCheckVariable: "True"}},
		{name: "override raises requirement", free: 600 * mb, vars: map[string]string{FreeDiskSpaceOverrideVariable: "1024"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTestFS(filesystem.WithFreeSpaceFunc(func(string) (uint64, error) { return tt.free, nil }))
			vars := variables.NewStore()
			for k, v := range tt.vars {
				vars.Set(k, v)
			}
			err := NewEnsureDiskSpaceConvention(fsys, nil).Install(context.Background(), engine.NewRunningDeployment(t.TempDir(), vars))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Install() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !engine.HasCode(err, engine.ErrCodeInsufficientSpace) {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestContributeEnvironmentVariables(t *testing.T) {
	c := &ContributeEnvironmentVariablesConvention{
		environ:  func() []string { return []string{"PATH=/usr/bin", "EMPTY=", "BROKEN", "HOME=/root"} },
		hostname: func() (string, error) { return "web-01", nil },
	}
	vars := variables.NewStore()
	vars.Set("env:HOME", "/custom")

	if err := c.Install(context.Background(), engine.NewRunningDeployment(t.TempDir(), vars)); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"env:PATH":              "/usr/bin",
		"env:EMPTY":             "",
		"env:HOME":              "/custom",
		MachineHostnameVariable: "web-01",
	}
	for name, want := range tests {
		if got, ok := vars.Get(name); !ok || got != want {
			t.Errorf("%s = %q, %v; want %q", name, got, ok, want)
		}
	}
	if vars.Contains("env:BROKEN") {
		t.Error("entries without '=' should be skipped")
	}
}

func TestCopyPackageToCustomInstallationDirectory(t *testing.T) {
	pkg := t.TempDir()
	target := filepath.Join(t.TempDir(), "app")
	writeFile(t, filepath.Join(pkg, "app.dll"), "new")
	writeFile(t, filepath.Join(pkg, "config", "app.json"), "{}")
	writeFile(t, filepath.Join(target, "stale.dll"), "old")
	writeFile(t, filepath.Join(target, "logs", "keep.log"), "log")

	vars := variables.NewStore()
	vars.Set("Root", filepath.Dir(target))
	vars.Set(CustomInstallationDirectoryVariable, "#{Root}/app")
	vars.Set(PurgeCustomDirectoryVariable, "true")
	vars.Set(PurgeExclusionsVariable, "logs/**\n\n")
	d := engine.NewRunningDeployment(pkg, vars)

	fsys := newTestFS()
	if err := NewCopyPackageToCustomInstallationDirectoryConvention(fsys, nil).Install(context.Background(), d); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		path   string
		exists bool
	}{
		{"app.dll", true},
		{filepath.Join("config", "app.json"), true},
		{"stale.dll", false},
		{filepath.Join("logs", "keep.log"), true},
	}
	for _, c := range checks {
		if got := fsys.FileExists(filepath.Join(target, c.path)); got != c.exists {
			t.Errorf("%s exists = %v, want %v", c.path, got, c.exists)
		}
	}
	if d.CurrentDirectory() != filepath.Clean(target) {
		t.Errorf("CurrentDirectory() = %s, want %s", d.CurrentDirectory(), target)
	}
	if got, _ := vars.Get(OriginalPackageDirectoryVariable); got != filepath.Clean(target) {
		t.Errorf("%s = %s", OriginalPackageDirectoryVariable, got)
	}
}

func TestCopyPackageRejectsBadTargets(t *testing.T) {
	pkg := t.TempDir()
	tests := map[string]string{
		"relative":       "relative/dir",
		"same as source": pkg,
		"parent":         filepath.Dir(pkg),
		"child":          filepath.Join(pkg, "install"),
	}
	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			vars := variables.NewStore()
			vars.Set(CustomInstallationDirectoryVariable, target)
			err := NewCopyPackageToCustomInstallationDirectoryConvention(newTestFS(), nil).
				Install(context.Background(), engine.NewRunningDeployment(pkg, vars))
			if !engine.HasCode(err, engine.ErrCodeValidation) {
				t.Errorf("Install() error = %v, want validation error", err)
			}
		})
	}
}

func TestDefaultConventionOrder(t *testing.T) {
	fsys := newTestFS()
	steps := Default(fsys, scriptedExecutor(t, fsys, "", 0, nil), nil)
	var names []string
	for _, s := range steps {
		names = append(names, s.Name())
	}
	want := []string{
		"contribute-environment-variables",
		"ensure-disk-space",
		"configured-script-predeploy",
		"package-scripts-predeploy",
		"copy-to-custom-installation-directory",
		"configured-script-deploy",
		"package-scripts-deploy",
		"configured-script-postdeploy",
		"package-scripts-postdeploy",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Default() = %v", names)
	}
}

func TestEndToEndWithBash(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	tests := []struct {
		name     string
		script   string
		wantErr  bool
		wantCode int
	}{
		{name: "sets variable", script: "echo \"" + strings.TrimSpace(setFooBar) + "\"\n"},
		{name: "fails", script: "echo \"" + strings.TrimSpace(setFooBar) + "\"\nexit 7\n", wantErr: true, wantCode: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			script := filepath.Join(dir, "Deploy.sh")
			writeFile(t, script, tt.script)

			fsys := newTestFS()
			executor := NewScriptExecutor(newBash(t, fsys), nil)
			d := engine.NewRunningDeployment(dir, variables.NewStore())

			err := engine.NewPipeline(NewExecuteScriptsByConvention(StageDeploy, fsys, executor, nil)).
				Run(context.Background(), d)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				if got, _ := d.Variables.Get("Foo"); got != "Bar" {
					t.Errorf("Foo = %q, want Bar", got)
				}
				return
			}

			if code, ok := engine.ExitCodeOf(err); !ok || code != tt.wantCode {
				t.Errorf("ExitCodeOf(%v) = %d, %v", err, code, ok)
			}
			if !strings.Contains(err.Error(), script) {
				t.Errorf("error should name %s: %v", script, err)
			}
		})
	}
}
