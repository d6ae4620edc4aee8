package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/veilkit/veil/internal/logger"
	"github.com/veilkit/veil/internal/metrics"
)

// Resolver tries backends in a fixed priority order, skipping any that are
// unavailable or do not support the file, and falling through to the next
// one when a backend fails. A cache in front short-circuits files whose
// content has been extracted before.
type Resolver struct {
	backends []Backend
	cache    *Cache // nil disables caching
	timeout  time.Duration
	log      *logger.Logger
	stats    *metrics.Metrics
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Cache   *Cache
	Timeout time.Duration // per-backend attempt budget, 0 means no limit
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// NewResolver builds a resolver over the given backends, highest priority
// first.
func NewResolver(backends []Backend, opts ResolverOptions) *Resolver {
	if opts.Log == nil {
		opts.Log = logger.New("EXTRACT", "info")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Resolver{
		backends: backends,
		cache:    opts.Cache,
		timeout:  opts.Timeout,
		log:      opts.Log,
		stats:    opts.Metrics,
	}
}

// Extract converts the file at path to markdown using the first backend
// that succeeds. The cache is consulted before any backend runs and
// updated after a successful extraction.
func (r *Resolver) Extract(ctx context.Context, path string) (Result, error) {
	name := filepath.Base(path)

	var key string
	if r.cache != nil {
		k, err := FileKey(path)
		if err != nil {
			return Result{}, fmt.Errorf("%w: hash %s: %v", ErrExtraction, name, err)
		}
		key = k
		if markdown, ok := r.cache.Get(key); ok {
			r.stats.ExtractCacheHits.Add(1)
			r.log.Debugf("CACHE", "hit for %s", name)
			return Result{Markdown: markdown, Method: "cache"}, nil
		}
		r.stats.ExtractCacheMisses.Add(1)
	}

	tried := 0
	for _, b := range r.backends {
		if !b.Available() || !b.Supports(path) {
			continue
		}
		tried++

		res, err := r.tryBackend(ctx, b, path)
		if err == nil {
			if r.cache != nil {
				r.cache.Set(key, res.Markdown)
			}
			r.log.Infof("EXTRACT", "%s converted by %s (%d pages)", name, b.Name(), res.PageCount)
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		r.stats.ExtractFallbacks.Add(1)
		r.log.Warnf("EXTRACT", "%s failed on %s: %v", b.Name(), name, err)
		if !errors.Is(err, ErrExtraction) {
			return Result{}, err
		}
	}

	if tried == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoExtractor, name)
	}
	return Result{}, fmt.Errorf("%w: all %d backends failed for %s", ErrNoExtractor, tried, name)
}

func (r *Resolver) tryBackend(parent context.Context, b Backend, path string) (Result, error) {
	ctx := parent
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, r.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := b.Extract(ctx, path)
	if err == nil {
		r.stats.RecordExtractLatency(time.Since(start))
		return res, nil
	}
	// A backend blowing its own time budget is a backend failure, not a
	// caller cancellation: fall through to the next one.
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return Result{}, fmt.Errorf("%w: %s timed out", ErrExtraction, b.Name())
	}
	return Result{}, err
}
