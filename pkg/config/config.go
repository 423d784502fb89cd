package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/conveyor/pkg/telemetry"
)

// Defaults applied to unset fields.
const (
	DefaultMaxRetries = 10000
	DefaultTimeLimit  = time.Minute
)

// RunConfig is the configuration of one deployment run.
type RunConfig struct {
	// PackageDirectory is the staging directory holding the unpacked package.
	PackageDirectory string `yaml:"package_directory" validate:"required"`

	// VariableFiles are loaded in order; later files override earlier ones.
	VariableFiles []string `yaml:"variable_files" validate:"dive,required"`

	// SensitiveVariables is an optional encrypted variable file.
	SensitiveVariables SensitiveConfig `yaml:"sensitive_variables"`

	// Report is where the result journal is written: a file path, "-" for
	// standard output, or empty to disable it.
	Report string `yaml:"report"`

	// FreeSpaceOverrideMB raises the required free disk space.
	FreeSpaceOverrideMB int64 `yaml:"free_space_override_mb" validate:"gte=0"`

	// Retry controls the file-system gateway's retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// SensitiveConfig locates an encrypted variable file and its password.
type SensitiveConfig struct {
	File string `yaml:"file"`

	// Password may be given inline, or read from the environment variable
	// named by PasswordEnv.
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

// RetryConfig bounds retries of transient file-system failures.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
	TimeLimit  time.Duration `yaml:"time_limit" validate:"gte=0"`
}

// Default returns a configuration with every default applied.
func Default() *RunConfig {
	return &RunConfig{
		Retry: RetryConfig{
			MaxRetries: DefaultMaxRetries,
			TimeLimit:  DefaultTimeLimit,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads a YAML configuration file over the defaults. Relative variable
// file paths are resolved against the directory of the configuration file.
func Load(path string) (*RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultConfig()
	}

	base := filepath.Dir(path)
	for i, f := range cfg.VariableFiles {
		cfg.VariableFiles[i] = resolve(base, f)
	}
	if cfg.SensitiveVariables.File != "" {
		cfg.SensitiveVariables.File = resolve(base, cfg.SensitiveVariables.File)
	}
	if cfg.PackageDirectory != "" {
		cfg.PackageDirectory = resolve(base, cfg.PackageDirectory)
	}
	return cfg, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// SensitivePassword returns the password for the sensitive variable file.
func (c *RunConfig) SensitivePassword() string {
	if c.SensitiveVariables.Password != "" {
		return c.SensitiveVariables.Password
	}
	if c.SensitiveVariables.PasswordEnv != "" {
		return os.Getenv(c.SensitiveVariables.PasswordEnv)
	}
	return ""
}

// Validate checks the configuration.
func (c *RunConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.SensitiveVariables.File != "" && c.SensitivePassword() == "" {
		return fmt.Errorf("sensitive variable file %s requires a password", c.SensitiveVariables.File)
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("invalid telemetry configuration: %w", err)
		}
	}
	return nil
}
