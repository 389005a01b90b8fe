// Package quality scores candidate part-number strings and holds the shared
// rejection rules (placeholder tokens, length bounds) used by the finders
// and the selector.
package quality

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules holds the data behind the evaluator and the rejection checks. One
// source of truth so the evaluator, the manual finder's safety net, and the
// selector's structural check never drift apart.
type Rules struct {
	// BannedTokens are case-insensitive substrings that mark a string as a
	// placeholder rather than a real identifier.
	BannedTokens []string `yaml:"banned_tokens"`
	// BadPrefixes mark known hallucination patterns (upstream models tend to
	// invent numbers starting with "101").
	BadPrefixes []string `yaml:"bad_prefixes"`
	MinLength   int      `yaml:"min_length"`
	MaxLength   int      `yaml:"max_length"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		BannedTokens: []string{
			"XXXX", "####", "UNKNOWN", "TBD",
			"SEE DRAWING", "CONTACT", "CONSULT",
		},
		BadPrefixes: []string{"101"},
		MinLength:   4,
		MaxLength:   20,
	}
}

// LoadRules reads rules from a YAML file, falling back to defaults for any
// field left unset.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "quality: read rules %s", path)
	}

	var loaded Rules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return rules, eris.Wrapf(err, "quality: parse rules %s", path)
	}

	if len(loaded.BannedTokens) > 0 {
		rules.BannedTokens = loaded.BannedTokens
	}
	if len(loaded.BadPrefixes) > 0 {
		rules.BadPrefixes = loaded.BadPrefixes
	}
	if loaded.MinLength > 0 {
		rules.MinLength = loaded.MinLength
	}
	if loaded.MaxLength > 0 {
		rules.MaxLength = loaded.MaxLength
	}

	return rules, nil
}

// ContainsBannedToken reports whether s contains any placeholder token,
// case-insensitively.
func (r Rules) ContainsBannedToken(s string) bool {
	upper := strings.ToUpper(s)
	for _, tok := range r.BannedTokens {
		if strings.Contains(upper, strings.ToUpper(tok)) {
			return true
		}
	}
	return false
}

// Evaluate scores how much a candidate string looks like a real part
// identifier. Rules apply in order, first match wins. Pure function.
func (r Rules) Evaluate(candidate string) float64 {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return 0.0
	}
	if r.ContainsBannedToken(candidate) {
		return 0.0
	}
	if len(candidate) < r.MinLength || len(candidate) > r.MaxLength {
		return 0.2
	}

	var hasLetter, hasDigit, hasOther bool
	for _, c := range candidate {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			hasLetter = true
		default:
			hasOther = true
		}
	}

	switch {
	case hasLetter && hasDigit:
		return 1.0
	case hasDigit && !hasLetter && !hasOther:
		return 0.8
	case hasLetter && !hasDigit && !hasOther:
		return 0.4
	default:
		return 0.5
	}
}

// RejectCandidate reports whether a returned part number must be discarded
// outright: placeholder token, known-bad prefix, or too short. This is the
// safety net applied after a nominally successful AI answer; the AI does not
// reliably follow its "never invent a number" instruction.
func (r Rules) RejectCandidate(partNumber string) bool {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return true
	}
	if r.ContainsBannedToken(partNumber) {
		return true
	}
	for _, prefix := range r.BadPrefixes {
		if strings.HasPrefix(partNumber, prefix) {
			return true
		}
	}
	return len(partNumber) < r.MinLength
}

// Evaluate scores a candidate with the default rules.
func Evaluate(candidate string) float64 {
	return DefaultRules().Evaluate(candidate)
}
