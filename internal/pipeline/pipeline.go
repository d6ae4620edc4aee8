// Package pipeline wires extraction, anonymization, restoration and
// segmentation into file-level workflows. Each workflow reads source
// files, runs the corresponding engine stage and writes its outputs plus
// a markdown report into the requested output directory.
//
// Reports never contain document content or original values, only file
// names and counts.
package pipeline

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/veilkit/veil/internal/config"
	"github.com/veilkit/veil/internal/detect"
	"github.com/veilkit/veil/internal/engine"
	"github.com/veilkit/veil/internal/extract"
	"github.com/veilkit/veil/internal/logger"
	"github.com/veilkit/veil/internal/metrics"
)

// Pipeline holds the assembled processing stages.
type Pipeline struct {
	cfg      *config.Config
	engine   *engine.Engine
	resolver *extract.Resolver
	cache    *extract.Cache
	log      *logger.Logger
	stats    *metrics.Metrics
	progress engine.ProgressFunc
}

// Options overrides pieces of the default assembly.
type Options struct {
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	Progress engine.ProgressFunc
}

// New assembles a pipeline from configuration: the two-stage detector,
// the extraction resolver with its persistent cache, and the engine.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if opts.Log == nil {
		opts.Log = logger.New("PIPELINE", cfg.LogLevel)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Progress == nil {
		opts.Progress = func(string, float64) {}
	}

	var detectors []detect.Detector
	detectors = append(detectors, detect.NewRegexDetector())
	if cfg.UseAIDetection {
		detectors = append(detectors, detect.NewOllamaDetector(cfg.OllamaEndpoint, cfg.OllamaModel))
	}

	cache, err := extract.NewCache(cfg.ExtractCachePath, cfg.ExtractCacheItems, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("open extraction cache: %w", err)
	}

	resolver := extract.NewResolver(
		[]extract.Backend{
			extract.Remote{Endpoint: cfg.RemoteExtractURL, APIKey: cfg.RemoteExtractKey},
			extract.PDFText{Binary: cfg.PDFTextPath},
			extract.Text{},
		},
		extract.ResolverOptions{
			Cache:   cache,
			Timeout: time.Duration(cfg.ExtractTimeout) * time.Second,
			Log:     opts.Log,
			Metrics: opts.Metrics,
		},
	)

	eng := engine.New(detect.NewComposite(detectors...), engine.Options{
		Workers:        cfg.Workers,
		ScoreThreshold: cfg.ScoreThreshold,
		DetectTimeout:  time.Duration(cfg.DetectTimeout) * time.Second,
		Progress:       opts.Progress,
		Log:            opts.Log,
		Metrics:        opts.Metrics,
	})

	return &Pipeline{
		cfg:      cfg,
		engine:   eng,
		resolver: resolver,
		cache:    cache,
		log:      opts.Log,
		stats:    opts.Metrics,
		progress: opts.Progress,
	}, nil
}

// Close releases the extraction cache.
func (p *Pipeline) Close() error { return p.cache.Close() }

// Metrics exposes the pipeline's counters for reporting.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.stats }

// FindOptions selects input files, either explicitly or by directory scan.
type FindOptions struct {
	Files     []string // explicit paths, all must exist
	Dir       string   // directory to scan when Files is empty
	Patterns  []string // glob patterns, default PDF/markdown/text
	Recursive bool
}

var defaultPatterns = []string{"*.pdf", "*.md", "*.txt"}

// FindFiles resolves the input set. Explicit files win over a directory
// scan; a missing explicit file is an error, an empty scan is not.
func FindFiles(opts FindOptions) ([]string, error) {
	if len(opts.Files) > 0 {
		out := make([]string, 0, len(opts.Files))
		for _, f := range opts.Files {
			abs, err := filepath.Abs(f)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(abs); err != nil {
				return nil, fmt.Errorf("file not found: %s", f)
			}
			out = append(out, abs)
		}
		return out, nil
	}

	if opts.Dir == "" {
		return nil, fmt.Errorf("either files or a directory must be given")
	}
	if _, err := os.Stat(opts.Dir); err != nil {
		return nil, fmt.Errorf("directory not found: %s", opts.Dir)
	}

	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}

	seen := make(map[string]struct{})
	var out []string
	err := filepath.WalkDir(opts.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != opts.Dir {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pat := range patterns {
			ok, err := filepath.Match(pat, d.Name())
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pat, err)
			}
			if ok {
				if _, dup := seen[path]; !dup {
					seen[path] = struct{}{}
					out = append(out, path)
				}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// randomDateOffset draws a batch date offset in [-maxShift, maxShift],
// never zero: an unshifted date would stay identifiable.
func randomDateOffset(maxShift int) (int, error) {
	if maxShift <= 0 {
		maxShift = 1
	}
	// Two ranges of maxShift values each, zero excluded.
	n, err := rand.Int(rand.Reader, big.NewInt(int64(2*maxShift)))
	if err != nil {
		return 0, fmt.Errorf("draw date offset: %w", err)
	}
	v := int(n.Int64()) - maxShift
	if v >= 0 {
		v++
	}
	return v, nil
}

// ensureDir creates dir (and parents) if needed.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// stem returns the file name without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
