// Package variables provides the ordered, case-insensitive deployment variable store.
//
// Every running deployment owns exactly one Store. Conventions and parsed service
// messages mutate it; it is never persisted beyond the process lifetime.
package variables

import (
	"strconv"
	"strings"
)

// MaskedValue replaces sensitive values wherever a store is rendered for logs.
const MaskedValue = "********"

// Variable is a single named deployment value.
type Variable struct {
	Name      string
	Value     string
	Sensitive bool
}

// Store is an ordered, case-insensitive mapping of variable names to values.
// A Store is not safe for concurrent mutation; the running deployment guarantees
// a single writer at any instant.
type Store struct {
	entries []Variable
	index   map[string]int
}

// NewStore creates an empty variable store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

func normalize(name string) string {
	return strings.ToLower(name)
}

// Get returns the raw value of name and whether it exists. Lookup is exact and
// case-insensitive; it never partially matches.
func (s *Store) Get(name string) (string, bool) {
	i, ok := s.index[normalize(name)]
	if !ok {
		return "", false
	}
	return s.entries[i].Value, true
}

// GetOrDefault returns the raw value of name, or def when it is absent.
func (s *Store) GetOrDefault(name, def string) string {
	if v, ok := s.Get(name); ok {
		return v
	}
	return def
}

// Set upserts a plain variable. Updating an existing variable keeps its position
// and its sensitivity flag.
func (s *Store) Set(name, value string) {
	if i, ok := s.index[normalize(name)]; ok {
		s.entries[i].Value = value
		return
	}
	s.add(Variable{Name: name, Value: value})
}

// SetSensitive upserts a variable and marks it sensitive.
func (s *Store) SetSensitive(name, value string) {
	if i, ok := s.index[normalize(name)]; ok {
		s.entries[i].Value = value
		s.entries[i].Sensitive = true
		return
	}
	s.add(Variable{Name: name, Value: value, Sensitive: true})
}

func (s *Store) add(v Variable) {
	s.index[normalize(v.Name)] = len(s.entries)
	s.entries = append(s.entries, v)
}

// Remove deletes a variable. Removing an absent variable is a no-op.
func (s *Store) Remove(name string) {
	key := normalize(name)
	i, ok := s.index[key]
	if !ok {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, key)
	for j := i; j < len(s.entries); j++ {
		s.index[normalize(s.entries[j].Name)] = j
	}
}

// Contains reports whether name is present.
func (s *Store) Contains(name string) bool {
	_, ok := s.index[normalize(name)]
	return ok
}

// IsSensitive reports whether name is present and flagged sensitive.
func (s *Store) IsSensitive(name string) bool {
	i, ok := s.index[normalize(name)]
	return ok && s.entries[i].Sensitive
}

// AllRaw returns a copy of every variable in insertion order with raw values.
// It exists for bootstrap rendering; logging code must use Masked instead.
func (s *Store) AllRaw() []Variable {
	out := make([]Variable, len(s.entries))
	copy(out, s.entries)
	return out
}

// Names returns the variable names in insertion order.
func (s *Store) Names() []string {
	names := make([]string, len(s.entries))
	for i, v := range s.entries {
		names[i] = v.Name
	}
	return names
}

// Len returns the number of variables.
func (s *Store) Len() int {
	return len(s.entries)
}

// Masked returns the value of name suitable for logs: sensitive values are
// replaced by MaskedValue.
func (s *Store) Masked(name string) string {
	i, ok := s.index[normalize(name)]
	if !ok {
		return ""
	}
	if s.entries[i].Sensitive {
		return MaskedValue
	}
	return s.entries[i].Value
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := &Store{
		entries: make([]Variable, len(s.entries)),
		index:   make(map[string]int, len(s.index)),
	}
	copy(c.entries, s.entries)
	for k, v := range s.index {
		c.index[k] = v
	}
	return c
}

// GetFlag evaluates name as a boolean, returning def when absent or unparsable.
func (s *Store) GetFlag(name string, def bool) bool {
	v, ok := s.Get(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s.EvaluateText(v)))
	if err != nil {
		return def
	}
	return b
}

// GetInt64 evaluates name as an integer, returning def when absent or unparsable.
func (s *Store) GetInt64(name string, def int64) int64 {
	v, ok := s.Get(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s.EvaluateText(v)), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// GetStrings evaluates name and splits it on sep, dropping empty elements.
func (s *Store) GetStrings(name, sep string) []string {
	v, ok := s.Get(name)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s.EvaluateText(v), sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
