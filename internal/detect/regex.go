package detect

import (
	"context"
	"regexp"

	"github.com/veilkit/veil/internal/generator"
)

// pattern pairs a compiled regex with the label and confidence it emits.
type pattern struct {
	re         *regexp.Regexp
	label      string
	confidence float64
}

// RegexDetector is the synchronous structured-pattern pass. It is always
// available and never returns an error other than ctx cancellation.
type RegexDetector struct {
	patterns []pattern
}

// NewRegexDetector compiles the built-in pattern set.
func NewRegexDetector() *RegexDetector {
	specs := []struct {
		expr       string
		label      string
		confidence float64
	}{
		{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, generator.LabelEmail, 0.95},
		{`\bhttps?://[^\s<>"']+`, generator.LabelURL, 0.90},
		{`(\+?1[\-.\s]?)?\(?[0-9]{3}\)?[\-.\s][0-9]{3}[\-.\s]?[0-9]{4}\b`, generator.LabelPhone, 0.80},
		{`\b\d{3}-\d{2}-\d{4}\b`, generator.LabelSSN, 0.90},
		{`\b(?:\d{4}[\-\s]){3}\d{4}\b`, generator.LabelCreditCard, 0.85},
		{`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`, generator.LabelIPAddress, 0.90},
		{`\b0x[0-9a-fA-F]{40}\b`, generator.LabelCrypto, 0.85},
		{`\b(?:bc1|[13])[a-km-zA-HJ-NP-Z1-9]{25,39}\b`, generator.LabelCrypto, 0.60},
		{`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}:\d{2}(?:Z|[+\-]\d{2}:\d{2})?)?\b`, generator.LabelDateTime, 0.90},
		{`\b\d{1,2}/\d{1,2}/\d{4}\b`, generator.LabelDateTime, 0.80},
		{`\b(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}\b`, generator.LabelDateTime, 0.85},
		{`(?i)\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`, generator.LabelLocation, 0.60},
	}

	d := &RegexDetector{}
	for _, s := range specs {
		// Patterns are fixed literals; a compile failure is a programming
		// error caught by the tests, not a runtime condition.
		d.patterns = append(d.patterns, pattern{
			re:         regexp.MustCompile(s.expr),
			label:      s.label,
			confidence: s.confidence,
		})
	}
	return d
}

// Detect returns all structured-pattern matches ordered by start offset.
func (d *RegexDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var spans []Span
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			spans = append(spans, Span{
				Start:      loc[0],
				End:        loc[1],
				Label:      p.label,
				Confidence: p.confidence,
			})
		}
	}
	sortSpans(spans)
	return spans, nil
}
