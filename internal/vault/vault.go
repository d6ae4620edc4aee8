// Package vault implements the bidirectional mapping store that makes
// anonymization consistent within a batch and reversible afterwards.
//
// A Vault is created empty at batch start, mutated additively while
// documents are processed, frozen at batch end, and persisted as a
// versioned JSON artifact. Restoration loads the artifact read-only.
//
// Invariants:
//   - one replacement per (original, label) pair for the vault's lifetime,
//   - no two mappings share a replacement value (bijection),
//   - a replacement never equals any stored original, so reverse
//     substitution cannot corrupt untouched text.
package vault

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// FormatVersion is the artifact format this package reads and writes.
// Load refuses anything else.
const FormatVersion = "2.0"

// maxCollisionRetries bounds salted regeneration attempts when a candidate
// replacement collides with an existing mapping. Exceeding it fails that
// single mapping creation with ErrCollisionExhausted; the vault itself
// stays consistent.
const maxCollisionRetries = 8

// Sentinel errors for the vault contract.
var (
	// ErrFrozen is returned by LookupOrCreate after Freeze. Mutating a
	// frozen vault is a caller contract violation, not a data condition.
	ErrFrozen = errors.New("vault is frozen")

	// ErrNotFound is returned by ReverseLookup for unknown replacements.
	ErrNotFound = errors.New("replacement not found in vault")

	// ErrCollisionExhausted is returned when no collision-free replacement
	// could be generated within maxCollisionRetries salted attempts.
	ErrCollisionExhausted = errors.New("replacement collision retries exhausted")

	// ErrUnsupportedVersion is returned by Load for artifacts with a
	// version other than FormatVersion.
	ErrUnsupportedVersion = errors.New("unsupported vault format version")
)

// MappingRecord is one original ↔ replacement pair.
type MappingRecord struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Label       string `json:"label"`
}

// Statistics summarizes a completed batch. Finalized by Freeze.
type Statistics struct {
	DocumentsProcessed int `json:"documentsProcessed"`
	TotalReplacements  int `json:"totalReplacements"`
}

// GenerateFunc produces a candidate replacement for (label, original).
// retrySalt varies on collision so repeated calls yield different but
// deterministic candidates. Must be pure.
type GenerateFunc func(label, original string, dateOffsetDays, retrySalt int) string

type pairKey struct {
	original string
	label    string
}

// Vault is the mapping store. All methods are safe for concurrent use;
// LookupOrCreate is the single serialization point for mutations.
type Vault struct {
	mu sync.RWMutex

	frozen         bool
	docsProcessed  int
	dateOffsetDays int
	createdAt      time.Time
	gen            GenerateFunc

	records   []MappingRecord     // insertion order, persisted as-is
	forward   map[pairKey]string  // (original, label) → replacement
	reverse   map[string]int      // replacement → index into records
	originals map[string]struct{} // guards against replacement == some original
}

// New creates an empty, unfrozen vault. dateOffsetDays is the single
// day-shift applied to every DATE_TIME value mapped through this vault.
func New(dateOffsetDays int, gen GenerateFunc) *Vault {
	return &Vault{
		dateOffsetDays: dateOffsetDays,
		createdAt:      time.Now(),
		gen:            gen,
		forward:        make(map[pairKey]string),
		reverse:        make(map[string]int),
		originals:      make(map[string]struct{}),
	}
}

// DateOffsetDays returns the vault's day shift.
func (v *Vault) DateOffsetDays() int { return v.dateOffsetDays }

// Frozen reports whether Freeze has been called.
func (v *Vault) Frozen() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.frozen
}

// Len returns the number of stored mappings.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}

// LookupOrCreate returns the replacement for (original, label), creating
// it on first encounter. The created flag reports whether a new mapping
// was stored. Fails with ErrFrozen after Freeze and ErrCollisionExhausted
// when no collision-free candidate was found.
func (v *Vault) LookupOrCreate(original, label string) (replacement string, created bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.frozen {
		return "", false, ErrFrozen
	}

	key := pairKey{original: original, label: label}
	if rep, ok := v.forward[key]; ok {
		return rep, false, nil
	}

	for salt := 0; salt <= maxCollisionRetries; salt++ {
		cand := v.gen(label, original, v.dateOffsetDays, salt)
		if cand == "" || cand == original {
			continue
		}
		if _, taken := v.reverse[cand]; taken {
			continue
		}
		if _, isOriginal := v.originals[cand]; isOriginal {
			continue
		}

		v.records = append(v.records, MappingRecord{
			Original:    original,
			Replacement: cand,
			Label:       label,
		})
		v.forward[key] = cand
		v.reverse[cand] = len(v.records) - 1
		v.originals[original] = struct{}{}
		return cand, true, nil
	}

	return "", false, fmt.Errorf("label %s: %w", label, ErrCollisionExhausted)
}

// ReverseLookup returns the original for a replacement value.
func (v *Vault) ReverseLookup(replacement string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	idx, ok := v.reverse[replacement]
	if !ok {
		return "", ErrNotFound
	}
	return v.records[idx].Original, nil
}

// Freeze finalizes statistics and makes the vault read-only. Calling
// Freeze more than once is a no-op for the mapping state; the statistics
// keep the first freeze's document count.
func (v *Vault) Freeze(documentsProcessed int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.frozen {
		return
	}
	v.frozen = true
	v.docsProcessed = documentsProcessed
}

// Stats returns the vault statistics. TotalReplacements counts stored
// mappings; DocumentsProcessed is zero until Freeze.
func (v *Vault) Stats() Statistics {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Statistics{
		DocumentsProcessed: v.docsProcessed,
		TotalReplacements:  len(v.records),
	}
}

// Records returns a copy of all mappings in insertion order.
func (v *Vault) Records() []MappingRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]MappingRecord, len(v.records))
	copy(out, v.records)
	return out
}
