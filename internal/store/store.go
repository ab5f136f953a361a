// Package store persists pipeline records and answers the read-only queries
// the dashboard and verification flow need.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gzhole/promptshield/internal/attack"
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/detect"
	"github.com/gzhole/promptshield/internal/policy"
	"github.com/gzhole/promptshield/internal/verify"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("store: record not found")

// Outcome is the terminal pipeline state a record was written for.
type Outcome string

const (
	OutcomeAllowed       Outcome = "ALLOWED"
	OutcomeContinued     Outcome = "CONTINUE"
	OutcomeCancelled     Outcome = "CANCELLED"
	OutcomeBlockedAttack Outcome = "BLOCKED_ATTACK"
	OutcomeBlockedPolicy Outcome = "BLOCKED_POLICY"
	OutcomeExternal      Outcome = "EXTERNAL"
)

// Record is one logged exchange. JSON names match what the browser extension
// posts to /api/log.
type Record struct {
	ID               string             `json:"id"`
	OriginalPrompt   string             `json:"originalPrompt"`
	MaskedPrompt     string             `json:"maskedPrompt"`
	Platform         string             `json:"platform,omitempty"`
	RiskScore        int                `json:"riskScore"`
	RiskLevel        catalog.Level      `json:"riskLevel"`
	Detections       []detect.Detection `json:"detections"`
	PolicyViolations []policy.Violation `json:"policyViolations"`
	AttacksDetected  []attack.Match     `json:"attacksDetected"`
	Outcome          Outcome            `json:"outcome,omitempty"`
	UserID           string             `json:"userId,omitempty"`
	Department       string             `json:"department,omitempty"`
	AIResponse       string             `json:"aiResponse,omitempty"`
	Verification     *verify.Result     `json:"verificationResult,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
}

// Store is the document-store collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append assigns an id (and a timestamp when zero) and persists rec.
	Append(ctx context.Context, rec *Record) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	// Recent returns at most limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)
	// FindByMaskedPrompt returns the newest record with this masked prompt
	// stamped at or after since. A zero since means no time bound.
	FindByMaskedPrompt(ctx context.Context, masked string, since time.Time) (*Record, error)
	UpdateVerification(ctx context.Context, id, aiResponse string, result verify.Result) (*Record, error)
	CountByRiskLevel(ctx context.Context) (map[catalog.Level]int, error)
	Close() error
}
