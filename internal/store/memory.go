package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/verify"
)

// MemoryStore keeps records in memory. It also serves as the index behind
// JSONLStore.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Record
	order []string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Record), now: time.Now}
}

func (m *MemoryStore) prepare(rec *Record) *Record {
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = m.now().UTC()
	}
	return &cp
}

// put inserts or replaces a record. A replaced record keeps its position.
func (m *MemoryStore) put(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.byID[rec.ID] = rec
}

func (m *MemoryStore) Append(ctx context.Context, rec *Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cp := m.prepare(rec)
	m.put(cp)
	return cp.ID, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// newestFirst returns records sorted by timestamp, newest first. Records with
// equal timestamps keep reverse insertion order. Caller holds the read lock.
func (m *MemoryStore) newestFirst() []*Record {
	out := make([]*Record, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.byID[m.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.newestFirst()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*Record, len(all))
	for i, r := range all {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) FindByMaskedPrompt(ctx context.Context, masked string, since time.Time) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.newestFirst() {
		if r.MaskedPrompt != masked {
			continue
		}
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		cp := *r
		return &cp, nil
	}
	return nil, ErrNotFound
}

// withVerification returns a copy of the stored record with the verification
// fields set, without storing it.
func (m *MemoryStore) withVerification(id, aiResponse string, result verify.Result) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	cp.AIResponse = aiResponse
	res := result
	cp.Verification = &res
	return &cp, nil
}

func (m *MemoryStore) UpdateVerification(ctx context.Context, id, aiResponse string, result verify.Result) (*Record, error) {
	rec, err := m.withVerification(id, aiResponse, result)
	if err != nil {
		return nil, err
	}
	m.put(rec)
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) CountByRiskLevel(ctx context.Context) (map[catalog.Level]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[catalog.Level]int)
	for _, r := range m.byID {
		counts[r.RiskLevel]++
	}
	return counts, nil
}

// Len returns the number of distinct records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MemoryStore) Close() error { return nil }
