package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gzhole/promptshield/internal/catalog"
)

// Load reads a policy file. A missing file yields DefaultPolicy. Rules
// without a name or severity get defaults; malformed predicates are kept and
// skipped at evaluation time.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return nil, err
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}
	fillRuleDefaults(policy.Rules)

	return &policy, nil
}

func fillRuleDefaults(rules []Rule) {
	for i := range rules {
		if rules[i].Name == "" {
			rules[i].Name = rules[i].ID
		}
		if rules[i].Severity == "" {
			if rules[i].Action == ActionBlock {
				rules[i].Severity = catalog.LevelHigh
			} else {
				rules[i].Severity = catalog.LevelMedium
			}
		}
	}
}

func DefaultPolicy() *Policy {
	return &Policy{
		Version: "0.1",
		Rules: []Rule{
			{
				ID:       "block-critical",
				Name:     "Block Critical Data",
				When:     ScoreAtLeast(90),
				Action:   ActionBlock,
				Message:  "Critical sensitive data detected. Prompt blocked for security.",
				Severity: catalog.LevelCritical,
			},
			{
				ID:       "warn-high-risk",
				Name:     "Warn High Risk",
				When:     AllOf(ScoreAtLeast(50), ScoreBelow(90)),
				Action:   ActionWarn,
				Message:  "High-risk data detected. Proceed with caution.",
				Severity: catalog.LevelHigh,
			},
			{
				ID:       "block-aws-keys",
				Name:     "Block AWS Keys",
				When:     KindPresent("awsKey"),
				Action:   ActionBlock,
				Message:  "AWS credentials detected. Cannot share with public AI.",
				Severity: catalog.LevelCritical,
			},
		},
	}
}
