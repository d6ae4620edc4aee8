package detect

import "context"

// Composite runs the regex pass and, when an AI detector is configured,
// merges its spans in. A failure of either stage fails the detection call;
// the engine decides what a failed document means for the batch.
type Composite struct {
	detectors []Detector
}

// NewComposite returns a Detector that merges the results of all given
// detectors. Nil entries are skipped.
func NewComposite(detectors ...Detector) *Composite {
	c := &Composite{}
	for _, d := range detectors {
		if d != nil {
			c.detectors = append(c.detectors, d)
		}
	}
	return c
}

// Detect runs each stage in order and returns the merged, sorted spans.
func (c *Composite) Detect(ctx context.Context, text string) ([]Span, error) {
	var merged []Span
	for _, d := range c.detectors {
		spans, err := d.Detect(ctx, text)
		if err != nil {
			return nil, err
		}
		merged = append(merged, spans...)
	}
	sortSpans(merged)
	return merged, nil
}
