// Package detect applies the pattern catalog to text, swapping each match for
// a vault placeholder.
package detect

import (
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/vault"
)

// Detection is one sensitive-data match. JSON names follow the record format
// the browser extension submits.
type Detection struct {
	Kind        string        `json:"type"`
	Value       string        `json:"value"`
	Placeholder string        `json:"token"`
	RiskLevel   catalog.Level `json:"riskLevel"`
}

// Result is the outcome of one Detect call.
type Result struct {
	Masked     string      `json:"maskedText"`
	Detections []Detection `json:"detections"`
}

// Detector masks text. The catalog is immutable; the vault is the only shared
// mutable state and handles its own locking.
type Detector struct {
	catalog *catalog.Catalog
	vault   *vault.Vault
}

// New returns a detector over the given catalog and vault.
func New(c *catalog.Catalog, v *vault.Vault) *Detector {
	return &Detector{catalog: c, vault: v}
}

// Vault returns the detector's vault.
func (d *Detector) Vault() *vault.Vault { return d.vault }

// Detect runs every rule in declaration order against the progressively
// masked text. Text a rule has already replaced is invisible to every later
// rule. One Detection is recorded per distinct placeholder produced.
//
// A placeholder's closing bracket can open a word boundary that the raw text
// did not have ("$1210.0.0.1" becomes "[SALARY_1]0.0.0.1"), so the catalog is
// re-applied until a pass changes nothing. Placeholders never match a rule,
// which makes the result a fixed point: masking it again finds nothing.
func (d *Detector) Detect(text string) Result {
	res := Result{Masked: text}
	if text == "" {
		return res
	}

	seen := make(map[string]bool)
	working := text
	for pass := 0; pass < maxPasses; pass++ {
		masked := d.pass(working, seen, &res)
		if masked == working {
			break
		}
		working = masked
	}
	res.Masked = working
	return res
}

// maxPasses bounds re-application for custom catalogs whose rules could
// match inside a placeholder.
const maxPasses = 8

func (d *Detector) pass(working string, seen map[string]bool, res *Result) string {
	for _, rule := range d.catalog.Rules() {
		if !rule.Matcher.MatchString(working) {
			continue
		}
		level := rule.Level()
		working = rule.Matcher.ReplaceAllStringFunc(working, func(value string) string {
			if value == "" {
				return value
			}
			token := d.vault.Mint(rule.Kind, value)
			if !seen[token] {
				seen[token] = true
				res.Detections = append(res.Detections, Detection{
					Kind:        rule.Kind,
					Value:       value,
					Placeholder: token,
					RiskLevel:   level,
				})
			}
			return token
		})
	}
	return working
}

// DryRun detects against a scratch vault, leaving the detector's own vault
// untouched. Placeholders in the result are not resolvable later.
func (d *Detector) DryRun(text string) Result {
	return New(d.catalog, vault.New()).Detect(text)
}

// Count returns per-kind detection counts for text without touching the
// detector's vault. Used for pre-submit previews.
func (d *Detector) Count(text string) map[string]int {
	counts := make(map[string]int)
	for _, det := range d.DryRun(text).Detections {
		counts[det.Kind]++
	}
	return counts
}
