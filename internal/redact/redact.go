// Package redact scrubs prompt text before it reaches operational logs.
//
// Unlike the vault, redaction is one-way: matches become [REDACTED_KIND] and
// nothing maps them back. Markers share the vault placeholder shape, so no
// later catalog rule can match inside one.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gzhole/promptshield/internal/catalog"
)

// extraSecrets are credential shapes the detection catalog does not carry but
// which must never show up in a log line.
var extraSecrets = []*regexp.Regexp{
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),
	regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`),
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|access_token|auth_token|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),
}

const redactedPlaceholder = "[REDACTED]"

var rules = catalog.Default().Rules()

// Redact replaces every catalog match and known secret shape in input.
func Redact(input string) string {
	result := input
	for _, r := range rules {
		if !r.Matcher.MatchString(result) {
			continue
		}
		result = r.Matcher.ReplaceAllLiteralString(result, marker(r.Kind))
	}
	for _, pattern := range extraSecrets {
		result = pattern.ReplaceAllLiteralString(result, redactedPlaceholder)
	}
	return result
}

func marker(kind string) string {
	return "[REDACTED_" + strings.ToUpper(kind) + "]"
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	var sb strings.Builder
	i := 0
	for _, r := range s {
		if i == n {
			break
		}
		sb.WriteRune(r)
		i++
	}
	sb.WriteString("…")
	return sb.String()
}

// ForLog redacts s and caps its length for a single log field.
func ForLog(s string) string {
	return Truncate(Redact(s), 120)
}
