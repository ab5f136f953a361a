package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/gzhole/promptshield/internal/metrics"
	"github.com/gzhole/promptshield/internal/store"
	"github.com/gzhole/promptshield/internal/verify"
)

const noteRecordNotFound = "Log not found, verification performed anyway"

// VerifyRequest pairs an observed AI reply with the masked prompt it answers.
type VerifyRequest struct {
	MaskedPrompt string
	AIResponse   string
}

// VerifyOutcome is a verification verdict plus how it was attached.
type VerifyOutcome struct {
	Result   verify.Result
	RecordID string
	Note     string
	Degraded bool
}

// Verify looks up the record for the masked prompt (recent cache first, then
// the store within the lookup window, then the store without a bound), runs
// the cross-model check, and attaches the verdict to the record. A missing
// record is not an error: the verdict is returned with a note.
func (p *Pipeline) Verify(ctx context.Context, req VerifyRequest) VerifyOutcome {
	id := p.findRecord(ctx, req.MaskedPrompt)

	res := p.verifier.Verify(ctx, req.MaskedPrompt, req.AIResponse)
	metrics.Verifications.WithLabelValues(string(res.Status)).Inc()

	out := VerifyOutcome{Result: res, RecordID: id}
	if id == "" {
		p.log.Warn().Msg("no record for verified reply")
		out.Note = noteRecordNotFound
		return out
	}

	if _, err := p.store.UpdateVerification(ctx, id, req.AIResponse, res); err != nil {
		metrics.StoreFailures.Inc()
		p.log.Error().Err(err).Str("record", id).Msg("verification not persisted")
		out.Degraded = true
	}
	return out
}

func (p *Pipeline) findRecord(ctx context.Context, masked string) string {
	if id, ok := p.recent.Get(masked); ok {
		if _, err := p.store.Get(ctx, id); err == nil {
			return id
		}
		p.recent.Remove(masked)
	}

	rec, err := p.store.FindByMaskedPrompt(ctx, masked, p.now().Add(-p.lookupWindow))
	if errors.Is(err, store.ErrNotFound) {
		rec, err = p.store.FindByMaskedPrompt(ctx, masked, time.Time{})
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.log.Error().Err(err).Msg("record lookup failed")
		}
		return ""
	}
	return rec.ID
}

// VerifyAsync runs Verify in the background, detached from the caller's
// cancellation, and delivers the outcome on the returned channel. It never
// blocks the intake path.
func (p *Pipeline) VerifyAsync(ctx context.Context, req VerifyRequest) (<-chan VerifyOutcome, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	ch := make(chan VerifyOutcome, 1)
	go func() {
		defer p.wg.Done()
		ch <- p.Verify(context.WithoutCancel(ctx), req)
		close(ch)
	}()
	return ch, nil
}

// RecentRecord returns the record id remembered for a released masked prompt.
func (p *Pipeline) RecentRecord(masked string) (string, bool) {
	return p.recent.Peek(masked)
}
