// Package catalog holds the ordered table of sensitive-data detection rules.
//
// Declaration order is a priority order: the detector applies rules one after
// another against progressively masked text, so credentials are listed before
// identifiers and identifiers before broad numeric patterns. A coarse rule can
// never swallow a substring that a stricter rule earlier in the table already
// replaced.
package catalog

import (
	"fmt"
	"regexp"
)

// Level is a coarse severity tier assigned per detection kind.
type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelLow      Level = "LOW"
)

// Rank orders levels so callers can pick the most severe one.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 4
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool { return l.Rank() > 0 }

// Rule is one detection rule. Its level is not stored: it comes from the
// kind→level matrix so a kind can never carry two levels.
type Rule struct {
	Kind    string
	Matcher *regexp.Regexp
}

// Level returns the rule's risk level.
func (r Rule) Level() Level { return LevelFor(r.Kind) }

// Pattern is the uncompiled form of a rule.
type Pattern struct {
	Kind string
	Expr string
}

// Catalog is an immutable, ordered list of compiled rules.
type Catalog struct {
	rules []Rule
}

// levels is the kind→level matrix.
var levels = map[string]Level{
	"privateKey":       LevelCritical,
	"awsKey":           LevelCritical,
	"azureKey":         LevelCritical,
	"jwtToken":         LevelCritical,
	"bearerToken":      LevelCritical,
	"apiKey":           LevelCritical,
	"password":         LevelCritical,
	"connectionString": LevelCritical,

	"ssn":           LevelHigh,
	"creditCard":    LevelHigh,
	"iban":          LevelHigh,
	"swiftCode":     LevelHigh,
	"cryptoWallet":  LevelHigh,
	"aadhaar":       LevelHigh,
	"routingNumber": LevelHigh,

	"email":       LevelMedium,
	"ipAddress":   LevelMedium,
	"internalUrl": LevelMedium,
	"employeeId":  LevelMedium,
	"phone":       LevelMedium,

	"projectCodename": LevelLow,
	"salary":          LevelLow,
}

// LevelFor returns the risk level of a detection kind. Unknown kinds are LOW.
func LevelFor(kind string) Level {
	if l, ok := levels[kind]; ok {
		return l
	}
	return LevelLow
}

// DefaultPatterns is the built-in rule table in priority order.
var DefaultPatterns = []Pattern{
	// Credentials
	{"privateKey", `-----BEGIN (?:RSA |EC |)PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |)PRIVATE KEY-----`},
	{"awsKey", `\bAKIA[0-9A-Z]{16}\b`},
	{"azureKey", `[0-9a-zA-Z]{88}==`},
	{"jwtToken", `\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`},
	{"bearerToken", `Bearer\s+[A-Za-z0-9\-._~+/]+`},
	{"apiKey", `\b(?:sk|pk)-[a-zA-Z0-9]{20,}\b`},
	{"password", `(?i)password\s*[=:]\s*['"][^'"]*['"]`},
	{"connectionString", `(?:mongodb|mysql|postgres|redis)://[^\s]+`},

	// Structured identifiers
	{"email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
	{"internalUrl", `(?i)\b(?:internal|corp|intranet)\.[a-z0-9-]+\.com\b`},
	{"employeeId", `\bEMP-\d{6}\b`},
	{"ssn", `\b\d{3}-\d{2}-\d{4}\b`},
	{"creditCard", `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`},
	{"iban", `\b[A-Z]{2}\d{2}[A-Z0-9]{1,30}\b`},
	{"swiftCode", `\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`},
	{"ipAddress", `\b(?:\d{1,3}\.){3}\d{1,3}\b`},

	// Broad alphanumeric and numeric runs
	{"cryptoWallet", `\b(?:bc1)?[a-km-zA-HJ-NP-Z1-9]{25,39}\b`},
	{"aadhaar", `\b\d{4}\s?\d{4}\s?\d{4}\b`},
	{"phone", `(?:\+\d{1,3}[- ]?)?\b\d{10}\b`},
	{"routingNumber", `\b\d{9}\b`},

	// Corporate
	{"projectCodename", `(?i)\bProject\s+(?:Alpha|Beta|Phoenix|Titan)\b`},
	{"salary", `\$\d{1,3}(?:,\d{3})*(?:\.\d{2})?`},
}

// New compiles patterns into a catalog. Any compile failure or unknown kind
// is an error: an invalid rule set must not silently degrade detection.
func New(patterns []Pattern) (*Catalog, error) {
	rules := make([]Rule, 0, len(patterns))
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if p.Kind == "" {
			return nil, fmt.Errorf("catalog: pattern with empty kind")
		}
		if _, ok := levels[p.Kind]; !ok {
			return nil, fmt.Errorf("catalog: kind %q has no risk level", p.Kind)
		}
		if seen[p.Kind] {
			return nil, fmt.Errorf("catalog: duplicate kind %q", p.Kind)
		}
		seen[p.Kind] = true

		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("catalog: compile %s: %w", p.Kind, err)
		}
		if re.MatchString("") {
			return nil, fmt.Errorf("catalog: %s matches the empty string", p.Kind)
		}
		rules = append(rules, Rule{Kind: p.Kind, Matcher: re})
	}
	return &Catalog{rules: rules}, nil
}

// Default returns the built-in catalog. It panics if the built-in table is
// invalid, which can only happen through a programming error.
func Default() *Catalog {
	c, err := New(DefaultPatterns)
	if err != nil {
		panic(err)
	}
	return c
}

// Rules returns the rules in declaration order. The slice is a copy.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Kinds returns every kind in declaration order.
func (c *Catalog) Kinds() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Kind
	}
	return out
}
