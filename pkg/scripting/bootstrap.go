package scripting

import (
	"embed"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/openfroyo/conveyor/pkg/secrets"
	"github.com/openfroyo/conveyor/pkg/variables"
)

//go:embed templates/bootstrap.sh templates/bootstrap.ps1
var templates embed.FS

const (
	declarationsPlaceholder = "{{VariableDeclarations}}"
	targetPlaceholder       = "{{TargetScriptFile}}"
)

// Dialect renders native statements for one script family.
type Dialect interface {
	// Declare assigns a plain value.
	Declare(name, value string) string

	// DeclareSensitive assigns the result of decrypting cipherText (base64)
	// with the initialization vector ivHex at run time.
	DeclareSensitive(name, cipherText, ivHex string) string

	// QuotePath quotes a file path for the source statement.
	QuotePath(path string) string
}

// BootstrapRenderer produces wrapper scripts from a template.
type BootstrapRenderer struct {
	template string
	dialect  Dialect
	key      *secrets.AESEncryption
}

// NewBootstrapRenderer validates that template holds exactly one of each
// placeholder. key encrypts sensitive values.
func NewBootstrapRenderer(template string, dialect Dialect, key *secrets.AESEncryption) (*BootstrapRenderer, error) {
	for _, placeholder := range []string{declarationsPlaceholder, targetPlaceholder} {
		if n := strings.Count(template, placeholder); n != 1 {
			return nil, fmt.Errorf("bootstrap template must contain %s exactly once, found %d", placeholder, n)
		}
	}
	if key == nil {
		return nil, fmt.Errorf("bootstrap renderer requires an encryption key")
	}
	return &BootstrapRenderer{template: template, dialect: dialect, key: key}, nil
}

func loadTemplate(name string) string {
	data, err := templates.ReadFile("templates/" + name)
	if err != nil {
		panic(fmt.Sprintf("embedded template %s missing: %v", name, err))
	}
	return string(data)
}

// Render returns the wrapper text for targetScript. Every variable is declared
// with its evaluated value. Sensitive values, and plain values that interpolate
// a sensitive one, are encrypted with a fresh IV each.
func (r *BootstrapRenderer) Render(targetScript string, vars *variables.Store) (string, error) {
	var decl strings.Builder
	for _, v := range vars.AllRaw() {
		value, tainted := vars.EvaluateTextSensitive(v.Value)
		if !v.Sensitive && !tainted {
			decl.WriteString(r.dialect.Declare(v.Name, value))
			decl.WriteByte('\n')
			continue
		}
		cipherText, iv, err := r.key.Encrypt([]byte(value))
		if err != nil {
			return "", fmt.Errorf("failed to encrypt variable %s: %w", v.Name, err)
		}
		decl.WriteString(r.dialect.DeclareSensitive(v.Name,
			base64.StdEncoding.EncodeToString(cipherText), hex.EncodeToString(iv)))
		decl.WriteByte('\n')
	}

	text := strings.Replace(r.template, declarationsPlaceholder, decl.String(), 1)
	text = strings.Replace(text, targetPlaceholder, r.dialect.QuotePath(targetScript), 1)
	return text, nil
}

// BashDialect renders bash associative-array assignments.
type BashDialect struct{}

func bashQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Declare implements Dialect.
func (BashDialect) Declare(name, value string) string {
	return fmt.Sprintf("octopus_parameters[%s]=%s", bashQuote(name), bashQuote(value))
}

// DeclareSensitive implements Dialect.
func (BashDialect) DeclareSensitive(name, cipherText, ivHex string) string {
	return fmt.Sprintf(`decrypt_into %s "%s" "%s"`, bashQuote(name), cipherText, ivHex)
}

// QuotePath implements Dialect.
func (BashDialect) QuotePath(path string) string {
	return bashQuote(path)
}

// PowerShellDialect renders dictionary assignments.
type PowerShellDialect struct{}

func powerShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Declare implements Dialect.
func (PowerShellDialect) Declare(name, value string) string {
	return fmt.Sprintf("$OctopusParameters[%s] = %s", powerShellQuote(name), powerShellQuote(value))
}

// DeclareSensitive implements Dialect.
func (PowerShellDialect) DeclareSensitive(name, cipherText, ivHex string) string {
	return fmt.Sprintf("$OctopusParameters[%s] = Decrypt-Variable '%s' '%s'", powerShellQuote(name), cipherText, ivHex)
}

// QuotePath implements Dialect.
func (PowerShellDialect) QuotePath(path string) string {
	return powerShellQuote(path)
}
