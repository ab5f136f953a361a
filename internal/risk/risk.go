// Package risk turns a set of detections into a 0-100 score and a level.
package risk

import (
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/detect"
)

// MaxScore caps the summed weights.
const MaxScore = 100

// Weight returns the score contribution of one detection at level l.
func Weight(l catalog.Level) int {
	switch l {
	case catalog.LevelCritical:
		return 100
	case catalog.LevelHigh:
		return 50
	case catalog.LevelMedium:
		return 25
	case catalog.LevelLow:
		return 10
	default:
		return 0
	}
}

// Score sums detection weights, capped at MaxScore. The level is the most
// severe level present, LOW when there are no detections.
func Score(detections []detect.Detection) (int, catalog.Level) {
	total := 0
	level := catalog.LevelLow
	for _, d := range detections {
		total += Weight(d.RiskLevel)
		if d.RiskLevel.Rank() > level.Rank() {
			level = d.RiskLevel
		}
	}
	if total > MaxScore {
		total = MaxScore
	}
	return total, level
}
