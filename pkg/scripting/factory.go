package scripting

import (
	"os/exec"

	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/secrets"
)

// LookPath finds an executable, as exec.LookPath.
type LookPath func(file string) (string, error)

// NewPlatformEngine selects the script engines available on goos. It is called
// once at startup; everything downstream works with the returned Engine.
//
// On Windows only PowerShell is available. Elsewhere bash is always registered
// and PowerShell Core is added when pwsh is installed.
func NewPlatformEngine(goos string, fsys filesystem.FileSystem, key *secrets.AESEncryption, lookPath LookPath, opts ...Option) (*CombinedEngine, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if goos == "windows" {
		ps, err := NewPowerShellEngine(fsys, key, "powershell.exe", opts...)
		if err != nil {
			return nil, err
		}
		return NewCombinedEngine(ps), nil
	}

	bash, err := NewBashEngine(fsys, key, opts...)
	if err != nil {
		return nil, err
	}
	engines := []Engine{bash}
	if pwsh, err := lookPath("pwsh"); err == nil {
		ps, err := NewPowerShellEngine(fsys, key, pwsh, opts...)
		if err != nil {
			return nil, err
		}
		engines = append(engines, ps)
	}
	return NewCombinedEngine(engines...), nil
}
