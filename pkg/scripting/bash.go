package scripting

import (
	"github.com/openfroyo/conveyor/pkg/filesystem"
	"github.com/openfroyo/conveyor/pkg/secrets"
)

// BashEngine runs .sh scripts with bash. Sensitive values are decrypted in the
// wrapper with openssl, so openssl must be on the PATH of the target.
type BashEngine struct {
	*wrapperEngine
}

// NewBashEngine creates a bash engine encrypting sensitive values with key.
func NewBashEngine(fsys filesystem.FileSystem, key *secrets.AESEncryption, opts ...Option) (*BashEngine, error) {
	e, err := newWrapperEngine(&wrapperEngine{
		name:       "bash",
		extensions: []string{".sh"},
		wrapperExt: ".sh",
		fs:         fsys,
		key:        key,
		command: func(wrapperPath, keyHex string) (string, []string) {
			return "bash", []string{wrapperPath, keyHex}
		},
	}, loadTemplate("bootstrap.sh"), BashDialect{}, opts)
	if err != nil {
		return nil, err
	}
	return &BashEngine{e}, nil
}
