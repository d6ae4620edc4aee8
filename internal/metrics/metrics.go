// Package metrics provides lightweight, lock-minimal counters for veil
// batch runs.
//
// Counters use sync/atomic so hot paths (span substitution, vault lookups)
// incur no mutex contention. Latency statistics use a single mutex per
// dimension; they are updated at most once per document.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// knownLabels lists all entity labels the detectors can produce.
// Used to pre-populate per-label counter maps in New() so Snapshot() can
// iterate a fixed set without racing on map writes.
var knownLabels = []string{
	"PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER", "CREDIT_CARD",
	"US_SSN", "PASSPORT", "US_DRIVER_LICENSE", "IP_ADDRESS",
	"LOCATION", "ORGANIZATION", "DATE_TIME", "URL",
	"US_BANK_NUMBER", "CRYPTO", "MEDICAL_LICENSE",
}

// Metrics holds all runtime counters for one veil process.
// The zero value is NOT valid for the per-label counters; use New().
type Metrics struct {
	// Document counters
	DocumentsProcessed atomic.Int64
	DocumentsFailed    atomic.Int64
	DocumentsRestored  atomic.Int64

	// Replacement volume
	ReplacementsTotal atomic.Int64 // substitutions applied to output text
	RestoredTotal     atomic.Int64 // replacements reversed during restoration

	// Vault effectiveness (per label): a hit is a (original,label) pair
	// already present, a miss creates a new mapping.
	vaultHits   map[string]*atomic.Int64
	vaultMisses map[string]*atomic.Int64

	// Extraction counters
	ExtractCacheHits   atomic.Int64
	ExtractCacheMisses atomic.Int64
	ExtractFallbacks   atomic.Int64 // backend failures that fell through to the next backend

	// Detection counters
	DetectionErrors atomic.Int64

	// Latency statistics (mutex-guarded because they accumulate floats)
	detectMu   sync.Mutex
	detectStat latencyStats

	extractMu   sync.Mutex
	extractStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded and per-label
// vault counter maps pre-populated for all known labels.
func New() *Metrics {
	m := &Metrics{
		startTime:   time.Now(),
		vaultHits:   make(map[string]*atomic.Int64, len(knownLabels)),
		vaultMisses: make(map[string]*atomic.Int64, len(knownLabels)),
	}
	for _, l := range knownLabels {
		m.vaultHits[l] = new(atomic.Int64)
		m.vaultMisses[l] = new(atomic.Int64)
	}
	return m
}

// RecordVaultHit increments the vault-hit counter for the given label.
// Unknown labels are silently ignored. Safe on a nil receiver.
func (m *Metrics) RecordVaultHit(label string) {
	if m == nil {
		return
	}
	if c, ok := m.vaultHits[label]; ok {
		c.Add(1)
	}
}

// RecordVaultMiss increments the vault-miss counter for the given label.
// Unknown labels are silently ignored. Safe on a nil receiver.
func (m *Metrics) RecordVaultMiss(label string) {
	if m == nil {
		return
	}
	if c, ok := m.vaultMisses[label]; ok {
		c.Add(1)
	}
}

// RecordDetectLatency records the duration of one detection pass.
func (m *Metrics) RecordDetectLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.detectMu.Lock()
	m.detectStat.record(float64(d.Microseconds()) / 1000.0)
	m.detectMu.Unlock()
}

// RecordExtractLatency records the duration of one extraction call.
func (m *Metrics) RecordExtractLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.extractMu.Lock()
	m.extractStat.record(float64(d.Microseconds()) / 1000.0)
	m.extractMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.detectMu.Lock()
	detect := m.detectStat.snapshot()
	m.detectMu.Unlock()

	m.extractMu.Lock()
	extract := m.extractStat.snapshot()
	m.extractMu.Unlock()

	hits := make(map[string]int64, len(m.vaultHits))
	for l, c := range m.vaultHits {
		if n := c.Load(); n > 0 {
			hits[l] = n
		}
	}
	misses := make(map[string]int64, len(m.vaultMisses))
	for l, c := range m.vaultMisses {
		if n := c.Load(); n > 0 {
			misses[l] = n
		}
	}

	return Snapshot{
		Documents: DocumentSnapshot{
			Processed: m.DocumentsProcessed.Load(),
			Failed:    m.DocumentsFailed.Load(),
			Restored:  m.DocumentsRestored.Load(),
		},
		Replacements: ReplacementSnapshot{
			Applied:     m.ReplacementsTotal.Load(),
			Restored:    m.RestoredTotal.Load(),
			VaultHits:   hits,
			VaultMisses: misses,
		},
		Extraction: ExtractionSnapshot{
			CacheHits:   m.ExtractCacheHits.Load(),
			CacheMisses: m.ExtractCacheMisses.Load(),
			Fallbacks:   m.ExtractFallbacks.Load(),
		},
		DetectionErrors: m.DetectionErrors.Load(),
		Latency: LatencyGroup{
			DetectionMs:  detect,
			ExtractionMs: extract,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Documents       DocumentSnapshot    `json:"documents"`
	Replacements    ReplacementSnapshot `json:"replacements"`
	Extraction      ExtractionSnapshot  `json:"extraction"`
	DetectionErrors int64               `json:"detectionErrors"`
	Latency         LatencyGroup        `json:"latency"`
	UptimeSecs      float64             `json:"uptimeSecs"`
}

// DocumentSnapshot holds document-level counters.
type DocumentSnapshot struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Restored  int64 `json:"restored"`
}

// ReplacementSnapshot holds replacement volume and vault effectiveness.
type ReplacementSnapshot struct {
	Applied  int64 `json:"applied"`
	Restored int64 `json:"restored"`

	// Per-label hits/misses (only labels with non-zero counts appear).
	VaultHits   map[string]int64 `json:"vaultHits,omitempty"`
	VaultMisses map[string]int64 `json:"vaultMisses,omitempty"`
}

// ExtractionSnapshot holds extraction cache and fallback counters.
type ExtractionSnapshot struct {
	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`
	Fallbacks   int64 `json:"fallbacks"`
}

// LatencyGroup groups the two latency dimensions.
type LatencyGroup struct {
	DetectionMs  LatencySnapshot `json:"detectionMs"`
	ExtractionMs LatencySnapshot `json:"extractionMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
