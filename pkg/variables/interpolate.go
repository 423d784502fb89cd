package variables

import (
	"regexp"
	"strings"
)

// MaxInterpolationPasses bounds repeated substitution so that mutually referential
// variables terminate. A cycle resolves to whatever the last pass produced.
const MaxInterpolationPasses = 10

var placeholderPattern = regexp.MustCompile(`#\{([^{}#]+)\}`)

// Evaluate returns the value of name with #{Name} placeholders resolved against
// the store. Unknown placeholders are left in place.
func (s *Store) Evaluate(name string) (string, bool) {
	v, ok := s.Get(name)
	if !ok {
		return "", false
	}
	return s.EvaluateText(v), true
}

// EvaluateText resolves #{Name} placeholders in text against the store.
func (s *Store) EvaluateText(text string) string {
	out, _ := s.evaluate(text)
	return out
}

// EvaluateTextSensitive resolves text like EvaluateText and also reports
// whether any sensitive variable was substituted into the result.
func (s *Store) EvaluateTextSensitive(text string) (string, bool) {
	return s.evaluate(text)
}

func (s *Store) evaluate(text string) (string, bool) {
	current := text
	sensitive := false
	for pass := 0; pass < MaxInterpolationPasses; pass++ {
		if !strings.Contains(current, "#{") {
			return current, sensitive
		}
		next := placeholderPattern.ReplaceAllStringFunc(current, func(token string) string {
			name := strings.TrimSpace(token[2 : len(token)-1])
			if v, ok := s.Get(name); ok {
				if s.IsSensitive(name) {
					sensitive = true
				}
				return v
			}
			return token
		})
		if next == current {
			return current, sensitive
		}
		current = next
	}
	return current, sensitive
}
