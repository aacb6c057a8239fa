// Package password validates candidate account secrets against a
// configurable rule set. Validation is pure: it never hashes or stores.
package password

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Rule is a single named requirement a secret must satisfy.
type Rule struct {
	Name      string
	Message   string
	Satisfied func(secret string) bool
}

// Violation describes one rule a secret failed.
type Violation struct {
	Rule    string
	Message string
}

// Policy is an ordered set of rules. The zero value accepts everything.
type Policy struct {
	rules []Rule
}

// New creates a Policy from the given rules, evaluated in order.
func New(rules ...Rule) *Policy {
	return &Policy{rules: append([]Rule(nil), rules...)}
}

// MaxSecretBytes is the longest secret bcrypt will hash.
const MaxSecretBytes = 72

// Default returns the standard policy: at least minLength characters, at most
// MaxSecretBytes bytes, and at least one digit, letter, uppercase letter,
// lowercase letter and non-alphanumeric character. minLength <= 0 falls back
// to 8.
func Default(minLength int) *Policy {
	if minLength <= 0 {
		minLength = 8
	}
	return New(
		MinLength(minLength),
		MaxBytes(MaxSecretBytes),
		HasDigit,
		HasLetter,
		HasUpper,
		HasLower,
		HasSymbol,
	)
}

// Validate returns one Violation per failed rule, in rule order.
// An empty result means the secret is acceptable.
func (p *Policy) Validate(secret string) []Violation {
	var violations []Violation
	for _, r := range p.rules {
		if !r.Satisfied(secret) {
			violations = append(violations, Violation{Rule: r.Name, Message: r.Message})
		}
	}
	return violations
}

// Rules returns the names of the configured rules.
func (p *Policy) Rules() []string {
	names := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names = append(names, r.Name)
	}
	return names
}

// Messages flattens violations into their messages.
func Messages(violations []Violation) []string {
	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// MinLength requires at least n characters (runes, not bytes).
func MinLength(n int) Rule {
	return Rule{
		Name:    "min_length",
		Message: fmt.Sprintf("must be at least %d characters long", n),
		Satisfied: func(s string) bool {
			return utf8.RuneCountInString(s) >= n
		},
	}
}

// MaxBytes caps the encoded length of a secret at n bytes.
func MaxBytes(n int) Rule {
	return Rule{
		Name:    "max_bytes",
		Message: fmt.Sprintf("must be at most %d bytes long", n),
		Satisfied: func(s string) bool {
			return len(s) <= n
		},
	}
}

var (
	HasDigit = Rule{
		Name:      "digit",
		Message:   "must contain at least one digit",
		Satisfied: func(s string) bool { return containsRune(s, unicode.IsDigit) },
	}
	HasLetter = Rule{
		Name:      "letter",
		Message:   "must contain at least one letter",
		Satisfied: func(s string) bool { return containsRune(s, unicode.IsLetter) },
	}
	HasUpper = Rule{
		Name:      "upper",
		Message:   "must contain at least one uppercase letter",
		Satisfied: func(s string) bool { return containsRune(s, unicode.IsUpper) },
	}
	HasLower = Rule{
		Name:      "lower",
		Message:   "must contain at least one lowercase letter",
		Satisfied: func(s string) bool { return containsRune(s, unicode.IsLower) },
	}
	HasSymbol = Rule{
		Name:    "symbol",
		Message: "must contain at least one non-alphanumeric character",
		Satisfied: func(s string) bool {
			return containsRune(s, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
		},
	}
)

func containsRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}
