package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type Engine struct {
	policy *Policy
	log    zerolog.Logger
}

func NewEngine(p *Policy) (*Engine, error) {
	if p == nil {
		return nil, errors.New("policy: nil policy")
	}
	return &Engine{policy: p, log: zerolog.Nop()}, nil
}

// SetLogger sets where skipped rules are reported.
func (e *Engine) SetLogger(l zerolog.Logger) {
	e.log = l
}

// Policy returns the engine's policy (for inspection/testing).
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Evaluate runs every rule in order. A rule whose predicate is malformed, or
// whose evaluation panics, is skipped and reported in Outcome.Skipped; the
// remaining rules still run.
func (e *Engine) Evaluate(ctx Context) Outcome {
	out := Outcome{Action: ActionAllow}

	for _, rule := range e.policy.Rules {
		matched, err := e.matchRule(&ctx, rule)
		if err != nil {
			e.log.Warn().Str("rule", rule.ID).Err(err).Msg("policy rule skipped")
			out.Skipped = append(out.Skipped, rule.ID)
			continue
		}
		if !matched {
			continue
		}

		out.Violations = append(out.Violations, Violation{
			PolicyID:   rule.ID,
			PolicyName: rule.Name,
			Action:     rule.Action,
			Message:    rule.Message,
			Severity:   rule.Severity,
		})
		if actionSeverity(rule.Action) > actionSeverity(out.Action) {
			out.Action = rule.Action
		}
	}

	out.Explanation = buildExplanation(out)
	return out
}

// actionSeverity returns a numeric severity for priority comparison.
// Higher number = more restrictive action.
func actionSeverity(a Action) int {
	switch a {
	case ActionBlock:
		return 3
	case ActionWarn:
		return 2
	case ActionAllow:
		return 1
	default:
		return 0
	}
}

func (e *Engine) matchRule(ctx *Context, rule Rule) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()

	switch rule.Action {
	case ActionBlock, ActionWarn:
	default:
		return false, fmt.Errorf("unknown action %q", rule.Action)
	}
	return rule.When.Eval(ctx)
}

func buildExplanation(out Outcome) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Decision: %s\n", out.Action)

	if len(out.Violations) > 0 {
		ids := make([]string, len(out.Violations))
		for i, v := range out.Violations {
			ids[i] = v.PolicyID
		}
		fmt.Fprintf(&sb, "Triggered rules: %s\n", strings.Join(ids, ", "))
		sb.WriteString("Reasons:\n")
		for _, v := range out.Violations {
			fmt.Fprintf(&sb, "  - [%s] %s\n", v.Action, v.Message)
		}
	}

	if len(out.Skipped) > 0 {
		fmt.Fprintf(&sb, "Skipped rules: %s\n", strings.Join(out.Skipped, ", "))
	}

	return sb.String()
}
