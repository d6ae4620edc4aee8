// Package engine orchestrates batch anonymization and restoration.
//
// One Anonymize call owns exactly one vault for its whole lifetime: lookups
// funnel through the vault's own mutex, per-document work runs on a bounded
// worker pool, and the vault is frozen once the last document finishes.
// Restoration runs read-only against a frozen vault and is freely parallel.
//
// Per-document failures (detection unavailable, collision exhaustion) are
// collected into the batch result next to the successes; they never abort
// the batch. Only structural contract violations (nil or frozen vault where
// an unfrozen one is required, and the reverse) fail the call itself.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilkit/veil/internal/detect"
	"github.com/veilkit/veil/internal/logger"
	"github.com/veilkit/veil/internal/metrics"
	"github.com/veilkit/veil/internal/vault"
)

// ErrRestoration reports a vault/text mismatch during restoration: the text
// carries a replacement-shaped token with no vault record.
var ErrRestoration = errors.New("restoration mismatch")

// Document is one unit of batch input. ID is an opaque caller handle (a
// file path, usually) used in results and progress, never parsed.
type Document struct {
	ID   string
	Text string
}

// Failure names one document that could not be processed.
type Failure struct {
	ID  string
	Err error
}

// BatchResult reports per-document outcomes. Outputs holds the documents
// that succeeded, in input order; Failures the rest, with reasons.
type BatchResult struct {
	BatchID  string
	Outputs  []Document
	Failures []Failure
}

// Succeeded returns the number of documents processed successfully.
func (r BatchResult) Succeeded() int { return len(r.Outputs) }

// Failed returns the number of documents that failed.
func (r BatchResult) Failed() int { return len(r.Failures) }

// ProgressFunc receives content-free progress updates: a short message
// (indexes and counts only) and a completion fraction in [0,1].
type ProgressFunc func(message string, fraction float64)

// Engine runs anonymization and restoration batches.
type Engine struct {
	detector      detect.Detector
	workers       int
	minScore      float64
	detectTimeout time.Duration
	progress      ProgressFunc
	log           *logger.Logger
	stats         *metrics.Metrics
}

// Options configures an Engine. Zero values get sensible defaults.
type Options struct {
	Workers        int           // parallel document workers, default 4
	ScoreThreshold float64       // spans below this confidence are ignored
	DetectTimeout  time.Duration // per-document detection budget, 0 = unbounded
	Progress       ProgressFunc  // optional, fire-and-forget
	Log            *logger.Logger
	Metrics        *metrics.Metrics
}

// New creates an Engine using the given detector.
func New(detector detect.Detector, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Log == nil {
		opts.Log = logger.New("ENGINE", "info")
	}
	if opts.Progress == nil {
		opts.Progress = func(string, float64) {}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Engine{
		detector:      detector,
		workers:       opts.Workers,
		minScore:      opts.ScoreThreshold,
		detectTimeout: opts.DetectTimeout,
		progress:      opts.Progress,
		log:           opts.Log,
		stats:         opts.Metrics,
	}
}

// Anonymize processes docs against v, which must be fresh and unfrozen.
// On a complete run the vault is frozen with the batch's success count; a
// cancelled run leaves it unfrozen (valid for the documents already done,
// but not a final artifact).
func (e *Engine) Anonymize(ctx context.Context, docs []Document, v *vault.Vault) (BatchResult, error) {
	if v == nil {
		return BatchResult{}, errors.New("anonymize: nil vault")
	}
	if v.Frozen() {
		return BatchResult{}, fmt.Errorf("anonymize: %w", vault.ErrFrozen)
	}

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
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			// Cancellation is checked between documents: a worker that has
			// not started its document yet gives it up cleanly.
			if err := ctx.Err(); err != nil {
				outcomes[i] = outcome{err: err}
				return
			}

			out, replaced, err := e.anonymizeOne(ctx, doc, v)
			if err != nil {
				outcomes[i] = outcome{err: err}
				e.log.Warnf("anonymize", "document %d/%d failed: %v", i+1, len(docs), err)
			} else {
				outcomes[i] = outcome{doc: out}
				e.stats.ReplacementsTotal.Add(int64(replaced))
				e.stats.DocumentsProcessed.Add(1)
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
			e.stats.DocumentsFailed.Add(1)
			result.Failures = append(result.Failures, Failure{ID: docs[i].ID, Err: o.err})
		} else {
			result.Outputs = append(result.Outputs, o.doc)
		}
	}

	// An aborted batch must not present its vault as the final artifact.
	if ctx.Err() == nil {
		v.Freeze(result.Succeeded())
	}

	e.log.Infof("anonymize", "batch %s: %d succeeded, %d failed, %d mappings",
		result.BatchID, result.Succeeded(), result.Failed(), v.Len())
	return result, nil
}

type outcome struct {
	doc Document
	err error
}

// anonymizeOne detects spans in one document and applies substitutions.
func (e *Engine) anonymizeOne(ctx context.Context, doc Document, v *vault.Vault) (Document, int, error) {
	start := time.Now()
	spans, err := e.detectSpans(ctx, doc.Text)
	e.stats.RecordDetectLatency(time.Since(start))
	if err != nil {
		e.stats.DetectionErrors.Add(1)
		return Document{}, 0, fmt.Errorf("detect: %w", err)
	}

	kept := resolveSpans(doc.Text, spans, e.minScore)

	// Substitute right to left so earlier offsets stay valid.
	text := doc.Text
	replaced := 0
	for i := len(kept) - 1; i >= 0; i-- {
		s := kept[i]
		original := doc.Text[s.Start:s.End]

		rep, created, err := v.LookupOrCreate(original, s.Label)
		if err != nil {
			return Document{}, 0, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if created {
			e.stats.RecordVaultMiss(s.Label)
		} else {
			e.stats.RecordVaultHit(s.Label)
		}

		text = text[:s.Start] + rep + text[s.End:]
		replaced++
	}

	return Document{ID: doc.ID, Text: text}, replaced, nil
}

// detectSpans runs detection under the per-document budget. When the budget
// expires while the batch context is still live, the error is reported as
// detect.ErrUnavailable so only that document fails.
func (e *Engine) detectSpans(ctx context.Context, text string) ([]detect.Span, error) {
	if e.detectTimeout <= 0 {
		return e.detector.Detect(ctx, text)
	}
	child, cancel := context.WithTimeout(ctx, e.detectTimeout)
	defer cancel()
	spans, err := e.detector.Detect(child, text)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: detection timed out after %s", detect.ErrUnavailable, e.detectTimeout)
	}
	return spans, err
}

// resolveSpans filters and de-overlaps detected spans: whitespace-only and
// sub-threshold spans are dropped, then the highest-confidence span wins
// any overlap (ties go to the longer, then the earlier span). The returned
// spans are non-overlapping and ordered by start offset.
func resolveSpans(text string, spans []detect.Span, minScore float64) []detect.Span {
	candidates := spans[:0:0]
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		if s.Confidence < minScore {
			continue
		}
		if strings.TrimSpace(text[s.Start:s.End]) == "" {
			continue
		}
		candidates = append(candidates, s)
	}

	// Highest confidence first; longer then earlier spans break ties.
	ordered := make([]detect.Span, len(candidates))
	copy(ordered, candidates)
	sortByPriority(ordered)

	var kept []detect.Span
	for _, s := range ordered {
		conflict := false
		for _, k := range kept {
			if s.Overlaps(k) {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, s)
		}
	}

	sortByStart(kept)
	return kept
}
