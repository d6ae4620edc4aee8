package segment

import (
	"iter"
	"strings"
)

// Chunk is one token-budgeted slice of a document. Immutable once yielded.
type Chunk struct {
	Index          int
	TokenCount     int
	HeadingContext []string // ancestor headings active at the chunk's start
	Text           string
}

// Segment splits text into chunks whose token counts fall in
// [minTokens, maxTokens], breaking at the largest available structural
// boundary (heading, then paragraph, then sentence). A structural unit
// that alone exceeds maxTokens is split at sentence boundaries, or word
// boundaries as a last resort, regardless of the lower bound.
//
// The returned sequence is lazy, finite and restartable. tok may be nil,
// in which case the built-in Estimator is used.
func Segment(text string, minTokens, maxTokens int, tok Tokenizer) iter.Seq[Chunk] {
	if tok == nil {
		tok = Estimator{}
	}
	if maxTokens <= 0 {
		maxTokens = 1
	}
	if minTokens < 0 {
		minTokens = 0
	}
	if minTokens > maxTokens {
		minTokens = maxTokens
	}

	return func(yield func(Chunk) bool) {
		blocks := parseBlocks(text)

		var (
			trail   headingTrail
			body    string
			tokens  int
			context []string
			ctxSet  bool
			pending *Chunk
			index   int
			stopped bool
		)

		// emit hands the previous chunk to the consumer and holds the new
		// one back, so the final chunk can still be merged if undersized.
		emit := func(c Chunk) {
			if pending != nil {
				if !yieldChunk(yield, pending, &index) {
					stopped = true
					return
				}
			}
			cc := c
			pending = &cc
		}

		flush := func() {
			if body == "" {
				return
			}
			emit(Chunk{
				TokenCount:     tokens,
				HeadingContext: context,
				Text:           body,
			})
			body = ""
			tokens = 0
			context = nil
			ctxSet = false
		}

		snapshot := func() {
			if !ctxSet {
				context = trail.chain(6)
				ctxSet = true
			}
		}

		// appendBlock grows the open chunk by one block, appendRun by one
		// sentence run. Token counts are taken on the joined text so the
		// separators are accounted for.
		appendBlock := func(s string) {
			snapshot()
			body = joinBlocks(body, s)
			tokens = tok.Count(body)
		}
		fitsBlock := func(s string) bool {
			return tok.Count(joinBlocks(body, s)) <= maxTokens
		}

		for _, b := range blocks {
			if stopped {
				return
			}

			if b.kind == blockHeading {
				// Headings are the preferred boundary: close the current
				// chunk once it has reached the lower bound.
				if tokens >= minTokens {
					flush()
					if stopped {
						return
					}
				}
				// A chunk that opens with this heading carries only the
				// heading's own ancestors as context.
				if body == "" && !ctxSet {
					context = trail.chain(b.level - 1)
					ctxSet = true
				}
				trail.push(b.level, b.title)
			}

			if fitsBlock(b.text) {
				appendBlock(b.text)
				continue
			}
			if tokens >= minTokens {
				flush()
				if stopped {
					return
				}
				if fitsBlock(b.text) {
					appendBlock(b.text)
					continue
				}
			}

			// The block does not fit as a whole: either it alone exceeds
			// the budget, or the open chunk is still under the lower
			// bound. Pack its sentences greedily instead.
			run := ""
			flushRun := func() {
				if run != "" {
					appendBlock(run)
					run = ""
				}
			}
			for _, sentence := range splitSentences(b.text) {
				if stopped {
					return
				}
				if tok.Count(sentence) > maxTokens {
					// A single sentence over budget: last resort, cut at
					// word boundaries.
					flushRun()
					flush()
					words := cutWords(sentence, maxTokens, tok)
					for _, w := range words[:len(words)-1] {
						if stopped {
							return
						}
						emit(Chunk{
							TokenCount:     tok.Count(w),
							HeadingContext: trail.chain(6),
							Text:           w,
						})
					}
					appendBlock(words[len(words)-1])
					continue
				}
				grown := joinWords(run, sentence)
				if tok.Count(joinBlocks(body, grown)) > maxTokens {
					flushRun()
					flush()
					run = sentence
					continue
				}
				run = grown
			}
			flushRun()
		}

		if stopped {
			return
		}
		if body != "" {
			last := Chunk{
				TokenCount:     tokens,
				HeadingContext: context,
				Text:           body,
			}
			// Fold an undersized tail into the previous chunk when the
			// combined size still respects the upper bound.
			if last.TokenCount < minTokens && pending != nil {
				merged := joinBlocks(pending.Text, body)
				if mt := tok.Count(merged); mt <= maxTokens {
					pending.Text = merged
					pending.TokenCount = mt
				} else {
					emit(last)
				}
			} else {
				emit(last)
			}
		}
		if pending != nil && !stopped {
			yieldChunk(yield, pending, &index)
		}
	}
}

func joinBlocks(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n\n" + b
}

func joinWords(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}

func yieldChunk(yield func(Chunk) bool, c *Chunk, index *int) bool {
	c.Index = *index
	*index++
	return yield(*c)
}

// cutWords splits a single overlong sentence at word boundaries.
func cutWords(sentence string, maxTokens int, tok Tokenizer) []string {
	var pieces []string
	cur := ""

	for _, word := range strings.Fields(sentence) {
		grown := joinWords(cur, word)
		if cur != "" && tok.Count(grown) > maxTokens {
			pieces = append(pieces, cur)
			cur = word
			continue
		}
		cur = grown
	}
	if cur != "" {
		pieces = append(pieces, cur)
	}
	return pieces
}
