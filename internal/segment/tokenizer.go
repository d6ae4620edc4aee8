// Package segment splits long markdown text into token-budgeted,
// heading-aware chunks and into per-heading prompt units.
//
// Both splitters return lazy, finite, restartable sequences (iter.Seq);
// ranging over a sequence twice re-runs the split. Token counting is
// pluggable so a caller with a real model tokenizer can substitute it for
// the built-in estimator.
package segment

import "unicode/utf8"

// Tokenizer counts tokens in text. Implementations must be deterministic:
// the same text always yields the same count.
type Tokenizer interface {
	Count(text string) int
}

// Estimator approximates LLM tokenization at roughly four characters per
// token.
type Estimator struct{}

// Count returns the estimated token count for text.
func (Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
