package policy

import (
	"errors"
	"fmt"
)

var errEmptyPredicate = errors.New("predicate has no condition")

// Predicate constructors for building rules in code.

func ScoreAtLeast(n int) Predicate { return Predicate{RiskScoreAtLeast: &n} }
func ScoreBelow(n int) Predicate { return Predicate{RiskScoreBelow: &n} }
func KindPresent(kind string) Predicate { return Predicate{DetectionKind: kind} }
func AllOf(ps ...Predicate) Predicate { return Predicate{All: ps} }
func AnyOf(ps ...Predicate) Predicate { return Predicate{Any: ps} }
func Negate(p Predicate) Predicate { return Predicate{Not: &p} }

func (p Predicate) conditions() int {
	n := 0
	if p.RiskScoreAtLeast != nil {
		n++
	}
	if p.RiskScoreBelow != nil {
		n++
	}
	if p.RiskLevelAtLeast != "" {
		n++
	}
	if p.DetectionKind != "" {
		n++
	}
	if p.All != nil {
		n++
	}
	if p.Any != nil {
		n++
	}
	if p.Not != nil {
		n++
	}
	return n
}

// Validate checks that p and every nested predicate set exactly one
// condition.
func (p Predicate) Validate() error {
	switch n := p.conditions(); {
	case n == 0:
		return errEmptyPredicate
	case n > 1:
		return fmt.Errorf("predicate sets %d conditions, want exactly one", n)
	}
	if p.RiskLevelAtLeast != "" && !p.RiskLevelAtLeast.Valid() {
		return fmt.Errorf("unknown risk level %q", p.RiskLevelAtLeast)
	}
	for i, c := range p.All {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("all[%d]: %w", i, err)
		}
	}
	for i, c := range p.Any {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("any[%d]: %w", i, err)
		}
	}
	if p.Not != nil {
		if err := p.Not.Validate(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
	}
	return nil
}

// Eval interprets p against ctx. An empty All is true and an empty Any is
// false.
func (p Predicate) Eval(ctx *Context) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	return p.eval(ctx), nil
}

func (p Predicate) eval(ctx *Context) bool {
	switch {
	case p.RiskScoreAtLeast != nil:
		return ctx.RiskScore >= *p.RiskScoreAtLeast
	case p.RiskScoreBelow != nil:
		return ctx.RiskScore < *p.RiskScoreBelow
	case p.RiskLevelAtLeast != "":
		return ctx.RiskLevel.Rank() >= p.RiskLevelAtLeast.Rank()
	case p.DetectionKind != "":
		for _, d := range ctx.Detections {
			if d.Kind == p.DetectionKind {
				return true
			}
		}
		return false
	case p.All != nil:
		for _, c := range p.All {
			if !c.eval(ctx) {
				return false
			}
		}
		return true
	case p.Any != nil:
		for _, c := range p.Any {
			if c.eval(ctx) {
				return true
			}
		}
		return false
	case p.Not != nil:
		return !p.Not.eval(ctx)
	}
	return false
}
