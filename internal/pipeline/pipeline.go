// Package pipeline runs a submission through attack scanning, masking, risk
// scoring and policy evaluation, and writes exactly one record per terminal
// state.
//
//	INTAKE → ATTACK_SCAN → BLOCKED_ATTACK
//	                     → MASKING → POLICY_EVAL → BLOCKED_POLICY
//	                                             → WARN_CONFIRM → CANCELLED | CONTINUE
//	                                             → ALLOWED
//
// WARN_CONFIRM is a suspension point: Submit returns a ticket and the caller
// later resolves it with Resolve. No lock is held while a ticket is open.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/gzhole/promptshield/internal/attack"
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/detect"
	"github.com/gzhole/promptshield/internal/logging"
	"github.com/gzhole/promptshield/internal/metrics"
	"github.com/gzhole/promptshield/internal/policy"
	"github.com/gzhole/promptshield/internal/risk"
	"github.com/gzhole/promptshield/internal/store"
	"github.com/gzhole/promptshield/internal/verify"
)

// State is where a submission stopped.
type State string

const (
	StateAllowed       State = "ALLOWED"
	StateContinued     State = "CONTINUE"
	StateCancelled     State = "CANCELLED"
	StateBlockedAttack State = "BLOCKED_ATTACK"
	StateBlockedPolicy State = "BLOCKED_POLICY"
	StateWarnConfirm   State = "WARN_CONFIRM"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s != StateWarnConfirm }

// Released reports whether the masked text may be forwarded.
func (s State) Released() bool { return s == StateAllowed || s == StateContinued }

const (
	blockedAttackMarker = "[BLOCKED_ATTACK]"
	blockedPolicyMarker = "[BLOCKED_POLICY]"

	DefaultPendingTimeout = 2 * time.Minute
	DefaultRecentPrompts  = 10
	DefaultLookupWindow   = 5 * time.Minute
)

var (
	ErrUnknownTicket = errors.New("pipeline: unknown or already resolved ticket")
	ErrClosed        = errors.New("pipeline: closed")
)

// Submission is one piece of text a user is about to send.
type Submission struct {
	Text       string
	Platform   string
	Session    string
	UserID     string
	Department string
}

// Decision is the result of a submission. Masked is only set when the state
// releases text to the caller.
type Decision struct {
	State       State              `json:"state"`
	Masked      string             `json:"maskedText,omitempty"`
	Detections  []detect.Detection `json:"detections"`
	RiskScore   int                `json:"riskScore"`
	RiskLevel   catalog.Level      `json:"riskLevel"`
	Violations  []policy.Violation `json:"policyViolations"`
	Attacks     []attack.Match     `json:"attacksDetected"`
	Ticket      string             `json:"ticket,omitempty"`
	RecordID    string             `json:"recordId,omitempty"`
	Explanation string             `json:"explanation,omitempty"`

	// Degraded is set when the record could not be persisted. The decision
	// itself stands.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degradedReason,omitempty"`
}

// Components are the collaborators a pipeline runs. Verifier may be nil.
type Components struct {
	Scanner  *attack.Scanner
	Detector *detect.Detector
	Engine   *policy.Engine
	Store    store.Store
	Verifier *verify.Verifier
}

type Options struct {
	PendingTimeout time.Duration
	RecentPrompts  int
	LookupWindow   time.Duration
	Logger         *zerolog.Logger
}

type pending struct {
	sub      Submission
	decision Decision
	timer    *time.Timer
}

type Pipeline struct {
	scanner  *attack.Scanner
	detector *detect.Detector
	engine   *policy.Engine
	store    store.Store
	verifier *verify.Verifier
	log      zerolog.Logger

	pendingTimeout time.Duration
	lookupWindow   time.Duration
	now            func() time.Time

	// recent maps a released masked prompt to its record id so a reply can
	// be linked without a store query.
	recent *lru.Cache[string, string]

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
	wg      sync.WaitGroup
}

func New(c Components, opts Options) (*Pipeline, error) {
	if c.Scanner == nil || c.Detector == nil || c.Engine == nil || c.Store == nil {
		return nil, errors.New("pipeline: scanner, detector, engine and store are required")
	}
	if c.Verifier == nil {
		c.Verifier = verify.New(nil, 0)
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	if opts.RecentPrompts <= 0 {
		opts.RecentPrompts = DefaultRecentPrompts
	}
	if opts.LookupWindow <= 0 {
		opts.LookupWindow = DefaultLookupWindow
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "pipeline").Logger()
	}

	recent, err := lru.New[string, string](opts.RecentPrompts)
	if err != nil {
		return nil, fmt.Errorf("pipeline: recent prompt cache: %w", err)
	}

	return &Pipeline{
		scanner:        c.Scanner,
		detector:       c.Detector,
		engine:         c.Engine,
		store:          c.Store,
		verifier:       c.Verifier,
		log:            log,
		pendingTimeout: opts.PendingTimeout,
		lookupWindow:   opts.LookupWindow,
		now:            time.Now,
		recent:         recent,
		pending:        make(map[string]*pending),
	}, nil
}

// Submit runs a submission up to its first stop. On WARN_CONFIRM the returned
// decision carries a ticket and no record is written until Resolve, a
// timeout, or the end of the session.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) Decision {
	if attacks := p.scanner.Scan(sub.Text); len(attacks) > 0 {
		for _, a := range attacks {
			metrics.Attacks.WithLabelValues(string(a.Category)).Inc()
		}
		d := Decision{
			State:     StateBlockedAttack,
			RiskScore: risk.MaxScore,
			RiskLevel: catalog.LevelCritical,
			Attacks:   attacks,
		}
		logging.Prompt(p.log.Warn(), "prompt", sub.Text).
			Int("signatures", len(attacks)).
			Str("category", string(attacks[0].Category)).
			Msg("attack blocked")
		return p.finish(ctx, sub, d, blockedAttackMarker)
	}

	res := p.detector.Detect(sub.Text)
	score, level := risk.Score(res.Detections)
	for _, det := range res.Detections {
		metrics.Detections.WithLabelValues(det.Kind).Inc()
	}

	outcome := p.engine.Evaluate(policy.Context{
		Original:   sub.Text,
		Masked:     res.Masked,
		Detections: res.Detections,
		RiskScore:  score,
		RiskLevel:  level,
	})

	d := Decision{
		Detections:  res.Detections,
		RiskScore:   score,
		RiskLevel:   level,
		Violations:  outcome.Violations,
		Explanation: outcome.Explanation,
	}

	switch {
	case outcome.Blocked():
		d.State = StateBlockedPolicy
		return p.finish(ctx, sub, d, blockedPolicyMarker)
	case outcome.NeedsConfirmation():
		d.State = StateWarnConfirm
		d.Masked = res.Masked
		return p.hold(sub, d)
	default:
		d.State = StateAllowed
		d.Masked = res.Masked
		return p.finish(ctx, sub, d, res.Masked)
	}
}

func (p *Pipeline) hold(sub Submission, d Decision) Decision {
	ticket := uuid.NewString()
	d.Ticket = ticket
	entry := &pending{sub: sub, decision: d}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		d.Ticket = ""
		d.Masked = ""
		d.State = StateCancelled
		return p.finish(context.Background(), sub, d, sub.Text)
	}
	p.pending[ticket] = entry
	entry.timer = time.AfterFunc(p.pendingTimeout, func() {
		if _, err := p.Resolve(context.Background(), ticket, false); err == nil {
			p.log.Info().Str("ticket", ticket).Msg("pending warning timed out")
		}
	})
	metrics.PendingDecisions.Inc()
	p.mu.Unlock()

	// The caller sees the masked text so it can show what would be sent.
	return d
}

// take removes a pending ticket. Only one caller can win.
func (p *Pipeline) take(ticket string) (*pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.pending[ticket]
	if !ok {
		return nil, false
	}
	delete(p.pending, ticket)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	metrics.PendingDecisions.Dec()
	return entry, true
}

// Resolve completes a WARN_CONFIRM submission. proceed=true releases the
// masked text (CONTINUE); false cancels it. Resolving a ticket twice, or
// after it expired, returns ErrUnknownTicket.
func (p *Pipeline) Resolve(ctx context.Context, ticket string, proceed bool) (Decision, error) {
	entry, ok := p.take(ticket)
	if !ok {
		return Decision{}, ErrUnknownTicket
	}

	d := entry.decision
	d.Ticket = ""
	if proceed {
		d.State = StateContinued
		return p.finish(ctx, entry.sub, d, d.Masked), nil
	}
	d.State = StateCancelled
	d.Masked = ""
	return p.finish(ctx, entry.sub, d, entry.sub.Text), nil
}

// Pending returns the open decision for a ticket, if any.
func (p *Pipeline) Pending(ticket string) (Decision, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.pending[ticket]
	if !ok {
		return Decision{}, false
	}
	return entry.decision, true
}

// PendingCount returns how many tickets are open.
func (p *Pipeline) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// CancelSession cancels every open ticket belonging to session and returns
// the resulting decisions.
func (p *Pipeline) CancelSession(ctx context.Context, session string) []Decision {
	p.mu.Lock()
	var tickets []string
	for t, e := range p.pending {
		if e.sub.Session == session {
			tickets = append(tickets, t)
		}
	}
	p.mu.Unlock()

	var out []Decision
	for _, t := range tickets {
		if d, err := p.Resolve(ctx, t, false); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Confirm asks the user whether a held submission should be sent. The
// context ends when the surrounding SubmitAndWait returns.
type Confirm func(context.Context, Decision) bool

// SubmitAndWait runs Submit and, on WARN_CONFIRM, asks confirm without
// holding any lock. If ctx ends first the submission is cancelled and
// confirm's context is cancelled with it. A confirm that ignores its context
// (a blocked terminal read) keeps running until it returns; its answer is
// dropped into a buffered channel and discarded.
func (p *Pipeline) SubmitAndWait(ctx context.Context, sub Submission, confirm Confirm) Decision {
	d := p.Submit(ctx, sub)
	if d.State != StateWarnConfirm {
		return d
	}

	askCtx, stop := context.WithCancel(ctx)
	defer stop()
	answer := make(chan bool, 1)
	go func() { answer <- confirm(askCtx, d) }()

	proceed := false
	select {
	case proceed = <-answer:
	case <-ctx.Done():
	}

	resolved, err := p.Resolve(context.WithoutCancel(ctx), d.Ticket, proceed)
	if err != nil {
		// The ticket timed out while the user was deciding.
		d.State = StateCancelled
		d.Ticket = ""
		d.Masked = ""
		return d
	}
	return resolved
}

// finish writes the record for a terminal state. A store failure marks the
// decision degraded but never changes it.
func (p *Pipeline) finish(ctx context.Context, sub Submission, d Decision, loggedPrompt string) Decision {
	rec := &store.Record{
		OriginalPrompt:   sub.Text,
		MaskedPrompt:     loggedPrompt,
		Platform:         sub.Platform,
		RiskScore:        d.RiskScore,
		RiskLevel:        d.RiskLevel,
		Detections:       d.Detections,
		PolicyViolations: d.Violations,
		AttacksDetected:  d.Attacks,
		Outcome:          store.Outcome(d.State),
		UserID:           sub.UserID,
		Department:       sub.Department,
		Timestamp:        p.now().UTC(),
	}

	metrics.Submissions.WithLabelValues(string(d.State)).Inc()

	id, err := p.store.Append(ctx, rec)
	if err != nil {
		metrics.StoreFailures.Inc()
		d.Degraded = true
		d.DegradedReason = err.Error()
		p.log.Error().Err(err).Str("state", string(d.State)).Msg("record not persisted")
		return d
	}
	d.RecordID = id

	if d.State.Released() {
		p.recent.Add(loggedPrompt, id)
	}

	p.log.Debug().
		Str("state", string(d.State)).
		Str("record", id).
		Int("risk_score", d.RiskScore).
		Int("detections", len(d.Detections)).
		Msg("submission recorded")
	return d
}

// Unmask resolves placeholders for operator display.
func (p *Pipeline) Unmask(text string) string {
	return p.detector.Vault().Resolve(text)
}

// Close cancels every open ticket and waits for background verifications.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	var tickets []string
	for t := range p.pending {
		tickets = append(tickets, t)
	}
	p.mu.Unlock()

	for _, t := range tickets {
		_, _ = p.Resolve(context.Background(), t, false)
	}
	p.wg.Wait()
}
