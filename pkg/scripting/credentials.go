package scripting

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-ini/ini"

	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/telemetry"
	"github.com/openfroyo/conveyor/pkg/variables"
)

// CredentialInstaller establishes short-lived credentials for one script run.
// It returns environment entries for the process and a cleanup function that
// removes whatever was installed. A nil cleanup means nothing was installed.
type CredentialInstaller interface {
	Install(ctx context.Context, vars *variables.Store) (env []string, cleanup func() error, err error)
}

// CredentialEngine decorates an engine with a credential context. Cleanup runs
// on every exit path of the inner Execute, including panics.
type CredentialEngine struct {
	inner     Engine
	installer CredentialInstaller
	log       *telemetry.Logger
}

// NewCredentialEngine wraps inner.
func NewCredentialEngine(inner Engine, installer CredentialInstaller, log *telemetry.Logger) *CredentialEngine {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	return &CredentialEngine{inner: inner, installer: installer, log: log.NewComponentLogger("credentials")}
}

// SupportedExtensions implements Engine.
func (c *CredentialEngine) SupportedExtensions() []string {
	return c.inner.SupportedExtensions()
}

// Execute implements Engine.
func (c *CredentialEngine) Execute(ctx context.Context, scriptPath string, vars *variables.Store, runner CommandLineRunner) (*CommandResult, error) {
	env, cleanup, err := c.installer.Install(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to install credentials: %w", err)
	}
	if cleanup != nil {
		defer func() {
			if err := cleanup(); err != nil {
				c.log.Warnf("failed to remove credentials: %v", err)
			}
		}()
	}
	return c.inner.Execute(ctx, scriptPath, vars, envRunner{inner: runner, env: env})
}

// envRunner appends environment entries to every invocation.
type envRunner struct {
	inner CommandLineRunner
	env   []string
}

func (r envRunner) Run(ctx context.Context, inv Invocation) (*CommandResult, error) {
	inv.Env = append(append([]string(nil), inv.Env...), r.env...)
	return r.inner.Run(ctx, inv)
}

// Variables read by SharedCredentialsInstaller.
const (
	AccessKeyVariable    = "Octopus.Account.AccessKey"
	SecretKeyVariable    = "Octopus.Account.SecretKey"
	SessionTokenVariable = "Octopus.Account.SessionToken"
	RegionVariable       = "Octopus.Action.Aws.Region"
)

// SharedCredentialsInstaller writes an AWS-style shared credentials file into a
// fresh private directory and points AWS_SHARED_CREDENTIALS_FILE at it. It does
// nothing when the access key variables are absent.
type SharedCredentialsInstaller struct {
	fs filesystem.FileSystem
}

// NewSharedCredentialsInstaller creates an installer using fsys.
func NewSharedCredentialsInstaller(fsys filesystem.FileSystem) *SharedCredentialsInstaller {
	return &SharedCredentialsInstaller{fs: fsys}
}

// Install implements CredentialInstaller.
func (s *SharedCredentialsInstaller) Install(_ context.Context, vars *variables.Store) ([]string, func() error, error) {
	accessKey, ok := vars.Evaluate(AccessKeyVariable)
	if !ok || accessKey == "" {
		return nil, nil, nil
	}
	secretKey, ok := vars.Evaluate(SecretKeyVariable)
	if !ok || secretKey == "" {
		return nil, nil, fmt.Errorf("variable %s is set but %s is missing", AccessKeyVariable, SecretKeyVariable)
	}

	cfg := ini.Empty()
	section, err := cfg.NewSection("default")
	if err != nil {
		return nil, nil, err
	}
	keys := [][2]string{
		{"aws_access_key_id", accessKey},
		{"aws_secret_access_key", secretKey},
	}
	if token, ok := vars.Evaluate(SessionTokenVariable); ok && token != "" {
		keys = append(keys, [2]string{"aws_session_token", token})
	}
	if region, ok := vars.Evaluate(RegionVariable); ok && region != "" {
		keys = append(keys, [2]string{"region", region})
	}
	for _, kv := range keys {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return nil, nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, nil, err
	}

	dir, err := s.fs.CreateTemporaryDirectory()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error {
		return s.fs.DeleteDirectory(dir, filesystem.ThrowOnFailure)
	}

	path := filepath.Join(dir, "credentials")
	if err := s.fs.WriteAllText(path, buf.String(), 0o600); err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	env := []string{
		"AWS_SHARED_CREDENTIALS_FILE=" + path,
		"AWS_PROFILE=default",
	}
	return env, cleanup, nil
}
