package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/veilkit/veil/internal/extract"
)

// ExtractFile converts a single document to markdown and writes it to
// outputPath (default: the input name with a .md extension, next to the
// input). It returns the extraction result and the written path.
func (p *Pipeline) ExtractFile(ctx context.Context, path, outputPath string) (extract.Result, string, error) {
	if _, err := os.Stat(path); err != nil {
		return extract.Result{}, "", fmt.Errorf("input file not found: %s", path)
	}
	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(path), stem(path)+".md")
	}

	p.progress("extracting document", 0.2)
	res, err := p.resolver.Extract(ctx, path)
	if err != nil {
		return extract.Result{}, "", err
	}

	if err := os.WriteFile(outputPath, []byte(res.Markdown), 0o600); err != nil {
		return extract.Result{}, "", fmt.Errorf("write %s: %w", outputPath, err)
	}

	p.progress("extraction complete", 1.0)
	p.log.Infof("EXTRACT", "%s written via %s (%d pages)", filepath.Base(outputPath), res.Method, res.PageCount)
	return res, outputPath, nil
}
