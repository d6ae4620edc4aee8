package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Text passes markdown and plain-text files through unchanged. It is
// always available and sits last in the resolver order as the floor every
// run can rely on.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) Available() bool { return true }

func (Text) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func (t Text) Extract(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	return Result{
		Markdown:  string(data),
		PageCount: 1,
		Method:    t.Name(),
	}, nil
}
