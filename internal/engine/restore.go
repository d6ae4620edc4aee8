package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/veilkit/veil/internal/vault"
)

// residualToken matches the tagged tokens the generator emits for labels it
// has no category for. One left standing after substitution means the text
// was anonymized under a different vault.
var residualToken = regexp.MustCompile(`\[REDACTED_[A-Z_]+_[0-9a-f]{8}\]`)

// Restore reverses anonymization for docs against a frozen vault. Every
// known replacement value is matched as a whole token (never inside an
// unrelated word) and substituted with its original. Per-document
// mismatches are reported in the result; the batch always completes.
func (e *Engine) Restore(ctx context.Context, docs []Document, v *vault.Vault) (BatchResult, error) {
	if v == nil {
		return BatchResult{}, errors.New("restore: nil vault")
	}
	if !v.Frozen() {
		return BatchResult{}, errors.New("restore: vault not frozen")
	}

	// Longest replacement first, so a replacement that happens to contain
	// another one is matched before its substring.
	replacements := make([]string, 0, v.Len())
	for _, rec := range v.Records() {
		replacements = append(replacements, rec.Replacement)
	}
	sort.Slice(replacements, func(i, j int) bool {
		if len(replacements[i]) != len(replacements[j]) {
			return len(replacements[i]) > len(replacements[j])
		}
		return replacements[i] < replacements[j]
	})

	result := BatchResult{BatchID: uuid.NewString()}
	outcomes := make([]outcome, len(docs))

	var (
		wg   sync.WaitGroup
		sem  = make(chan struct{}, e.workers)
		done sync.Mutex
		n    int
	)

	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				outcomes[i] = outcome{err: err}
				return
			}

			restored, count, err := restoreOne(doc.Text, replacements, v)
			if err != nil {
				outcomes[i] = outcome{err: fmt.Errorf("document %s: %w", doc.ID, err)}
			} else {
				outcomes[i] = outcome{doc: Document{ID: doc.ID, Text: restored}}
				e.stats.RestoredTotal.Add(int64(count))
				e.stats.DocumentsRestored.Add(1)
			}

			done.Lock()
			n++
			e.progress(fmt.Sprintf("document %d of %d", n, len(docs)), float64(n)/float64(len(docs)))
			done.Unlock()
		}(i, doc)
	}
	wg.Wait()

	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, Failure{ID: docs[i].ID, Err: o.err})
		} else {
			result.Outputs = append(result.Outputs, o.doc)
		}
	}

	e.log.Infof("restore", "batch %s: %d restored, %d failed",
		result.BatchID, result.Succeeded(), result.Failed())
	return result, nil
}

// restoreOne maps every whole-token replacement occurrence back to its
// original and verifies no replacement-shaped residue remains. All
// occurrences are located against the unmodified input before anything is
// substituted: a restored original that happens to equal another
// replacement value (routine for shifted dates) must never be rewritten by
// a later match.
func restoreOne(text string, replacements []string, v *vault.Vault) (string, int, error) {
	var matches []restoreMatch
	for _, rep := range replacements {
		positions := wholeTokenOccurrences(text, rep)
		if len(positions) == 0 {
			continue
		}
		original, err := v.ReverseLookup(rep)
		if err != nil {
			return "", 0, err
		}
		for _, p := range positions {
			m := restoreMatch{start: p, end: p + len(rep), original: original}
			// Replacements arrive longest first, so an overlap means a
			// longer match already claimed these bytes.
			if overlapsAccepted(matches, m) {
				continue
			}
			matches = append(matches, m)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	// Right to left, as in anonymization, so offsets stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		text = text[:m.start] + m.original + text[m.end:]
	}

	if tok := residualToken.FindString(text); tok != "" {
		return "", 0, fmt.Errorf("%w: token %s has no vault record", ErrRestoration, tok)
	}
	return text, len(matches), nil
}

// restoreMatch is one accepted whole-token occurrence awaiting substitution.
type restoreMatch struct {
	start, end int
	original   string
}

func overlapsAccepted(matches []restoreMatch, m restoreMatch) bool {
	for _, a := range matches {
		if m.start < a.end && a.start < m.end {
			return true
		}
	}
	return false
}

// wholeTokenOccurrences returns the start offsets of every occurrence of
// needle in text whose word-character edges do not continue into adjacent
// word characters: "Laura Chen" must not match inside "Laura Chens".
func wholeTokenOccurrences(text, needle string) []int {
	if needle == "" {
		return nil
	}
	var positions []int
	for _, start := range allIndexes(text, needle) {
		if isWordEdge(needle, true) && start > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
				continue
			}
		}
		end := start + len(needle)
		if isWordEdge(needle, false) && end < len(text) {
			if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
				continue
			}
		}
		positions = append(positions, start)
	}
	return positions
}

// allIndexes returns the start offset of every non-overlapping occurrence
// of needle in text.
func allIndexes(text, needle string) []int {
	var offs []int
	for from := 0; ; {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			return offs
		}
		offs = append(offs, from+i)
		from += i + len(needle)
	}
}

// isWordEdge reports whether the first (leading=true) or last rune of s is
// a word character; only word-character edges need boundary checks.
func isWordEdge(s string, leading bool) bool {
	if leading {
		r, _ := utf8.DecodeRuneInString(s)
		return isWordRune(r)
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
