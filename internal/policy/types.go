package policy

import (
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/detect"
)

// Action is what a matching rule asks the pipeline to do.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionWarn  Action = "WARN"
	ActionBlock Action = "BLOCK"
)

type Policy struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

type Rule struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	When     Predicate     `yaml:"when"`
	Action   Action        `yaml:"action"`
	Message  string        `yaml:"message"`
	Severity catalog.Level `yaml:"severity"`
}

// Predicate is a closed set of conditions over a Context. Exactly one field
// must be set; All, Any and Not nest further predicates.
//
//	when:
//	  all:
//	    - risk_score_at_least: 50
//	    - not: { detection_kind: email }
type Predicate struct {
	RiskScoreAtLeast *int          `yaml:"risk_score_at_least,omitempty"`
	RiskScoreBelow   *int          `yaml:"risk_score_below,omitempty"`
	RiskLevelAtLeast catalog.Level `yaml:"risk_level_at_least,omitempty"`
	DetectionKind    string        `yaml:"detection_kind,omitempty"`
	All              []Predicate   `yaml:"all,omitempty"`
	Any              []Predicate   `yaml:"any,omitempty"`
	Not              *Predicate    `yaml:"not,omitempty"`
}

// Context is what rules are evaluated against. It is built fresh for every
// submission and never modified by the engine.
type Context struct {
	Original   string
	Masked     string
	Detections []detect.Detection
	RiskScore  int
	RiskLevel  catalog.Level
}

// Violation is one rule that matched.
type Violation struct {
	PolicyID   string        `json:"policyId"`
	PolicyName string        `json:"policyName"`
	Action     Action        `json:"action"`
	Message    string        `json:"message"`
	Severity   catalog.Level `json:"severity"`
}

// Outcome is the result of evaluating every rule against one context.
type Outcome struct {
	// Action is BLOCK if any violation blocks, WARN if any warns, otherwise
	// ALLOW. Violations keeps every match, including warnings that were
	// overridden by a block.
	Action      Action
	Violations  []Violation
	Skipped     []string
	Explanation string
}

// Blocked reports whether the outcome stops the submission.
func (o Outcome) Blocked() bool { return o.Action == ActionBlock }

// NeedsConfirmation reports whether the user must confirm before the
// submission continues.
func (o Outcome) NeedsConfirmation() bool { return o.Action == ActionWarn }
