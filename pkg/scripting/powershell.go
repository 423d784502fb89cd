package scripting

import (
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/secrets"
)

// PowerShellEngine runs .ps1 scripts. executable is "powershell.exe" on
// Windows and "pwsh" elsewhere.
type PowerShellEngine struct {
	*wrapperEngine
}

// NewPowerShellEngine creates a PowerShell engine launching executable.
func NewPowerShellEngine(fsys filesystem.FileSystem, key *secrets.AESEncryption, executable string, opts ...Option) (*PowerShellEngine, error) {
	e, err := newWrapperEngine(&wrapperEngine{
		name:       "powershell",
		extensions: []string{".ps1"},
		wrapperExt: ".ps1",
		fs:         fsys,
		key:        key,
		command: func(wrapperPath, keyHex string) (string, []string) {
			return executable, []string{
				"-NonInteractive",
				"-NoProfile",
				"-ExecutionPolicy", "Unrestricted",
				"-File", wrapperPath,
				"-OctopusKey", keyHex,
			}
		},
	}, loadTemplate("bootstrap.ps1"), PowerShellDialect{}, opts)
	if err != nil {
		return nil, err
	}
	return &PowerShellEngine{e}, nil
}
