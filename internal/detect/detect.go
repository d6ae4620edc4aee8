// Package detect locates sensitive spans in text.
//
// Detection runs in two stages:
//  1. a fast regex pass for structured patterns (emails, phones, SSNs,
//     dates, addresses and the like), always available;
//  2. an optional local-model pass (Ollama) for context-dependent entities
//     such as person and organization names.
//
// Both produce Spans; the engine resolves overlaps and applies the
// substitutions. Detectors never modify text.
package detect

import (
	"context"
	"errors"
	"sort"
)

// ErrUnavailable reports that a detection backend could not be reached.
// The engine marks the affected document failed and continues the batch.
var ErrUnavailable = errors.New("detection unavailable")

// Span is one located, labeled region of text. Offsets are byte positions
// into the scanned string, end exclusive.
type Span struct {
	Start      int
	End        int
	Label      string
	Confidence float64
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Detector finds sensitive spans in text. Implementations must honor ctx
// cancellation and return spans ordered by Start.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Span, error)
}

// sortSpans orders spans by start position, longer spans first on ties so
// enclosing matches precede enclosed ones.
func sortSpans(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})
}
