package variables

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/conveyor/pkg/secrets"
)

// LoadFile reads a flat name/value document into store. The format is chosen by
// extension: .yaml, .yml and .json use YAML (which preserves declaration order),
// .toml uses TOML and .cue uses CUE.
func LoadFile(store *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read variables file: %w", err)
	}

	var pairs []Variable
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", "":
		pairs, err = parseYAML(data)
	case ".toml":
		pairs, err = parseTOML(data)
	case ".cue":
		pairs, err = parseCUE(data, path)
	default:
		return fmt.Errorf("unsupported variables file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse variables file %s: %w", path, err)
	}

	for _, p := range pairs {
		store.Set(p.Name, p.Value)
	}
	return nil
}

// LoadSensitiveFile decrypts a sensitive-variables envelope with password and
// merges its JSON object into store. Every value it contributes is sensitive.
func LoadSensitiveFile(store *Store, path, password string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sensitive variables file: %w", err)
	}

	plaintext, err := secrets.NewPasswordEncryption(password).Open(string(data))
	if err != nil {
		return fmt.Errorf("failed to decrypt sensitive variables file %s: %w", path, err)
	}

	pairs, err := parseYAML(plaintext)
	if err != nil {
		return fmt.Errorf("failed to parse sensitive variables file %s: %w", path, err)
	}
	for _, p := range pairs {
		store.SetSensitive(p.Name, p.Value)
	}
	return nil
}

// EncryptSensitiveFile seals a flat JSON object of sensitive variables to path.
func EncryptSensitiveFile(path string, values map[string]string, password string) error {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal sensitive variables: %w", err)
	}
	envelope, err := secrets.NewPasswordEncryption(password).Seal(plaintext)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(envelope), 0o600); err != nil {
		return fmt.Errorf("failed to write sensitive variables file: %w", err)
	}
	return nil
}

func parseYAML(data []byte) ([]Variable, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of variable names to values")
	}

	pairs := make([]Variable, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("variable %q must have a scalar value", key.Value)
		}
		v := value.Value
		if value.Tag == "!!null" {
			v = ""
		}
		pairs = append(pairs, Variable{Name: key.Value, Value: v})
	}
	return pairs, nil
}

func parseTOML(data []byte) ([]Variable, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return sortedPairs(raw)
}

func parseCUE(data []byte, filename string) ([]Variable, error) {
	value := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, err
	}

	iter, err := value.Fields()
	if err != nil {
		return nil, err
	}

	var pairs []Variable
	for iter.Next() {
		var decoded interface{}
		if err := iter.Value().Decode(&decoded); err != nil {
			return nil, fmt.Errorf("variable %q: %w", iter.Selector().String(), err)
		}
		s, err := scalarString(decoded)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", iter.Selector().String(), err)
		}
		pairs = append(pairs, Variable{Name: iter.Selector().Unquoted(), Value: s})
	}
	return pairs, nil
}

func sortedPairs(raw map[string]interface{}) ([]Variable, error) {
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]Variable, 0, len(names))
	for _, name := range names {
		s, err := scalarString(raw[name])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		pairs = append(pairs, Variable{Name: name, Value: s})
	}
	return pairs, nil
}

func scalarString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case map[string]interface{}, []interface{}:
		return "", fmt.Errorf("value must be a scalar")
	default:
		return fmt.Sprint(t), nil
	}
}
