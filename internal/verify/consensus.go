// Package verify cross-checks an AI reply against a second model's answer to
// the same masked prompt.
//
// The verdict is advisory. It annotates the stored record and never blocks a
// reply the user has already seen.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusVerified Status = "verified"
	StatusWarning  Status = "warning"
	StatusError    Status = "error"
	StatusPending  Status = "pending"
)

const (
	verifiedAbove  = 0.75
	warningAbove   = 0.55
	consensusAbove = 0.70

	previewLen     = 200
	DefaultTimeout = 10 * time.Second
)

// Result is a verification verdict.
type Result struct {
	Status            Status            `json:"status"`
	Confidence        float64           `json:"confidence"`
	ConfidencePercent string            `json:"confidencePercent"`
	Similarity        float64           `json:"similarity"`
	Similarities      map[string]string `json:"similarities,omitempty"`
	Models            []string          `json:"models,omitempty"`
	Consensus         string            `json:"consensus,omitempty"`
	SecondaryResponse string            `json:"secondModelResponse,omitempty"`
	PrimaryPreview    string            `json:"primaryResponse,omitempty"`
	Message           string            `json:"message,omitempty"`
}

// Similarity is the Dice coefficient over case-folded, whitespace-split
// words. A word of a counts as common when it occurs anywhere in b, so a
// repeated word in a can be counted more than once.
func Similarity(a, b string) float64 {
	words1 := strings.Fields(strings.ToLower(a))
	words2 := strings.Fields(strings.ToLower(b))
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}

	in2 := make(map[string]struct{}, len(words2))
	for _, w := range words2 {
		in2[w] = struct{}{}
	}
	common := 0
	for _, w := range words1 {
		if _, ok := in2[w]; ok {
			common++
		}
	}
	return float64(2*common) / float64(len(words1)+len(words2))
}

// Classify maps a similarity to a status.
func Classify(similarity float64) Status {
	switch {
	case similarity > verifiedAbove:
		return StatusVerified
	case similarity > warningAbove:
		return StatusWarning
	default:
		return StatusError
	}
}

// Verifier asks a secondary model and compares answers. A nil model means no
// secondary model is configured.
type Verifier struct {
	model   Model
	timeout time.Duration
}

func New(m Model, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Verifier{model: m, timeout: timeout}
}

// Configured reports whether a secondary model is available.
func (v *Verifier) Configured() bool { return v.model != nil }

// Verify never returns an error: an unconfigured model, a timeout or any
// transport failure yields a pending result with zero confidence.
func (v *Verifier) Verify(ctx context.Context, maskedPrompt, primary string) Result {
	if v.model == nil {
		return pending("Secondary model not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	secondary, err := v.model.Generate(ctx, maskedPrompt)
	if err != nil {
		return pending(fmt.Sprintf("%s verification unavailable: %v", v.model.Name(), err))
	}

	sim := Similarity(primary, secondary)
	consensus := "Models disagree"
	if sim > consensusAbove {
		consensus = "2/2 models agree"
	}

	return Result{
		Status:            Classify(sim),
		Confidence:        sim,
		ConfidencePercent: percent(sim),
		Similarity:        sim,
		Similarities:      map[string]string{"Primary-" + v.model.Name(): percent(sim)},
		Models:            []string{"Primary AI", v.model.Name()},
		Consensus:         consensus,
		SecondaryResponse: secondary,
		PrimaryPreview:    preview(primary),
	}
}

func pending(msg string) Result {
	return Result{
		Status:            StatusPending,
		Confidence:        0,
		ConfidencePercent: percent(0),
		Message:           msg,
	}
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
