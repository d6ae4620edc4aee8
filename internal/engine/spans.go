package engine

import (
	"sort"

	"github.com/veilkit/veil/internal/detect"
)

// sortByPriority orders spans for overlap resolution: higher confidence
// first, then longer spans, then earlier start offsets. The ordering is
// total, so resolution is deterministic for any detector output.
func sortByPriority(spans []detect.Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		return a.Start < b.Start
	})
}

// sortByStart orders spans by start offset for right-to-left application.
func sortByStart(spans []detect.Span) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
}
