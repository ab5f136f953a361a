package pipeline

import (
	"github.com/gzhole/promptshield/internal/attack"
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/policy"
	"github.com/gzhole/promptshield/internal/risk"
)

// PreviewResult summarises what Submit would do, without minting placeholders
// into the shared vault and without writing a record.
type PreviewResult struct {
	Attacks    []attack.Match `json:"attacksDetected"`
	Counts     map[string]int `json:"counts"`
	RiskScore  int            `json:"riskScore"`
	RiskLevel  catalog.Level  `json:"riskLevel"`
	Action     policy.Action  `json:"action"`
	Violations []string       `json:"policyIds"`
}

// WouldBlock reports whether Submit would stop the text outright.
func (r PreviewResult) WouldBlock() bool {
	return len(r.Attacks) > 0 || r.Action == policy.ActionBlock
}

func (p *Pipeline) Preview(text string) PreviewResult {
	if attacks := p.scanner.Scan(text); len(attacks) > 0 {
		return PreviewResult{
			Attacks:   attacks,
			Counts:    map[string]int{},
			RiskScore: risk.MaxScore,
			RiskLevel: catalog.LevelCritical,
			Action:    policy.ActionBlock,
		}
	}

	res := p.detector.DryRun(text)
	score, level := risk.Score(res.Detections)
	outcome := p.engine.Evaluate(policy.Context{
		Original:   text,
		Masked:     res.Masked,
		Detections: res.Detections,
		RiskScore:  score,
		RiskLevel:  level,
	})

	counts := make(map[string]int)
	for _, d := range res.Detections {
		counts[d.Kind]++
	}
	var ids []string
	for _, v := range outcome.Violations {
		ids = append(ids, v.PolicyID)
	}
	return PreviewResult{
		Counts:     counts,
		RiskScore:  score,
		RiskLevel:  level,
		Action:     outcome.Action,
		Violations: ids,
	}
}
