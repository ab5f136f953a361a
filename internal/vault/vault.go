// Package vault maps detected sensitive values to reversible placeholders.
//
// A Vault lives for one process or session. It is an in-memory map, not a
// secret store: nothing is encrypted and nothing is persisted.
package vault

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Entry is one value↔placeholder pair.
type Entry struct {
	Placeholder string
	Value       string
}

// Vault is safe for concurrent use. Mint's lookup and insert run under one
// lock, so concurrent mints of the same value converge on one placeholder.
type Vault struct {
	mu       sync.Mutex
	byHash   map[uint64][]int // xxhash(value) → indexes into entries
	byToken  map[string]int
	entries  []Entry
	counters map[string]int
}

// New returns an empty vault.
func New() *Vault {
	return &Vault{
		byHash:   make(map[uint64][]int),
		byToken:  make(map[string]int),
		counters: make(map[string]int),
	}
}

// Mint returns the placeholder for value, allocating [KIND_n] on first
// sighting. A value seen before returns its existing placeholder even when
// kind differs.
func (v *Vault) Mint(kind, value string) string {
	h := xxhash.Sum64String(value)

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, i := range v.byHash[h] {
		if v.entries[i].Value == value {
			return v.entries[i].Placeholder
		}
	}

	label := strings.ToUpper(kind)
	v.counters[label]++
	token := fmt.Sprintf("[%s_%d]", label, v.counters[label])

	v.entries = append(v.entries, Entry{Placeholder: token, Value: value})
	idx := len(v.entries) - 1
	v.byHash[h] = append(v.byHash[h], idx)
	v.byToken[token] = idx
	return token
}

// Lookup returns the raw value behind a placeholder.
func (v *Vault) Lookup(placeholder string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i, ok := v.byToken[placeholder]
	if !ok {
		return "", false
	}
	return v.entries[i].Value, true
}

// Resolve replaces every known placeholder in text with its raw value. It is
// for operator-facing display only; resolved text must never be forwarded to
// a third-party model.
func (v *Vault) Resolve(text string) string {
	if text == "" || !strings.Contains(text, "[") {
		return text
	}

	v.mu.Lock()
	pairs := make([]string, 0, len(v.entries)*2)
	for _, e := range v.entries {
		pairs = append(pairs, e.Placeholder, e.Value)
	}
	v.mu.Unlock()

	if len(pairs) == 0 {
		return text
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Len returns the number of stored entries.
func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Entries returns a copy of all entries in mint order.
func (v *Vault) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}
