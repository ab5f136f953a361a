// Package attack detects adversarial prompts: jailbreak attempts, instruction
// injection and system-prompt exfiltration.
//
// Signatures run against the raw, unmasked text. Every signature is evaluated
// (no short-circuit) in declaration order and every hit is reported, so a
// prompt that trips two jailbreak patterns yields two matches.
package attack

import (
	"fmt"
	"regexp"
)

// Category groups signatures by attack intent.
type Category string

const (
	CategoryJailbreak    Category = "jailbreak"
	CategoryInjection    Category = "injection"
	CategoryExfiltration Category = "exfiltration"
)

// SeverityHigh is the severity every built-in signature carries.
const SeverityHigh = "HIGH"

// Match is one signature hit. Pattern is the matcher's textual form.
type Match struct {
	Category Category `json:"type"`
	Severity string   `json:"severity"`
	Pattern  string   `json:"pattern"`
}

// Definition is the uncompiled form of a regex signature. Expressions are
// matched case-insensitively.
type Definition struct {
	Category Category
	Severity string
	Expr     string
}

type matcher interface {
	MatchString(s string) bool
	String() string
}

// Signature is a compiled attack signature.
type Signature struct {
	Category Category
	Severity string
	matcher  matcher
}

// Pattern returns the matcher's textual form.
func (s Signature) Pattern() string { return s.matcher.String() }

// caseless reports its source expression without the (?i) flag the scanner
// adds at compile time.
type caseless struct {
	re   *regexp.Regexp
	expr string
}

func (c caseless) MatchString(s string) bool { return c.re.MatchString(s) }
func (c caseless) String() string            { return c.expr }

// DefaultDefinitions is the built-in signature table.
var DefaultDefinitions = []Definition{
	{CategoryJailbreak, SeverityHigh, `(ignore|forget|disregard)\s+(previous|all|your)\s+(instructions|rules)`},
	{CategoryJailbreak, SeverityHigh, `DAN\s+mode`},
	{CategoryJailbreak, SeverityHigh, `developer\s+mode`},

	{CategoryInjection, SeverityHigh, `new\s+instruction:`},
	{CategoryInjection, SeverityHigh, `override:`},
	{CategoryInjection, SeverityHigh, `system:`},

	{CategoryExfiltration, SeverityHigh, `(show|reveal)\s+(me\s+)?your\s+(training\s+data|system\s+prompt)`},
}

// Scanner evaluates an immutable list of signatures.
type Scanner struct {
	signatures []Signature
}

// New compiles definitions into a scanner. A compile failure is an error;
// callers treat it as fatal at startup.
func New(defs []Definition) (*Scanner, error) {
	sigs := make([]Signature, 0, len(defs)+1)
	for i, d := range defs {
		switch d.Category {
		case CategoryJailbreak, CategoryInjection, CategoryExfiltration:
		default:
			return nil, fmt.Errorf("attack: signature %d: unknown category %q", i, d.Category)
		}
		re, err := regexp.Compile(`(?i)` + d.Expr)
		if err != nil {
			return nil, fmt.Errorf("attack: signature %d (%s): %w", i, d.Category, err)
		}
		sev := d.Severity
		if sev == "" {
			sev = SeverityHigh
		}
		sigs = append(sigs, Signature{
			Category: d.Category,
			Severity: sev,
			matcher:  caseless{re: re, expr: d.Expr},
		})
	}
	return &Scanner{signatures: sigs}, nil
}

// Default returns the built-in scanner, including the invisible Unicode
// smuggling check as a trailing injection signature.
func Default() *Scanner {
	s, err := New(DefaultDefinitions)
	if err != nil {
		panic(err)
	}
	s.signatures = append(s.signatures, Signature{
		Category: CategoryInjection,
		Severity: SeverityHigh,
		matcher:  smuggling{},
	})
	return s
}

// Signatures returns a copy of the compiled signatures in evaluation order.
func (s *Scanner) Signatures() []Signature {
	out := make([]Signature, len(s.signatures))
	copy(out, s.signatures)
	return out
}

// Scan evaluates every signature against text and returns all hits. A
// signature also hits when it matches the homoglyph-folded form of text.
func (s *Scanner) Scan(text string) []Match {
	folded := Fold(text)
	var matches []Match
	for _, sig := range s.signatures {
		if sig.matcher.MatchString(text) || (folded != text && sig.matcher.MatchString(folded)) {
			matches = append(matches, Match{
				Category: sig.Category,
				Severity: sig.Severity,
				Pattern:  sig.Pattern(),
			})
		}
	}
	return matches
}

// Categories returns the distinct categories of matches, in first-seen order.
func Categories(matches []Match) []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, m := range matches {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	return out
}
