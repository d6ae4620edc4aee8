package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PDFText extracts PDF text through the pdftotext binary (poppler-utils).
// Available only when the binary resolves on PATH or an explicit path is
// configured.
type PDFText struct {
	// Binary is the pdftotext executable. Empty means look up "pdftotext"
	// on PATH.
	Binary string
}

func (PDFText) Name() string { return "pdftotext" }

func (p PDFText) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

func (PDFText) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (p PDFText) Extract(ctx context.Context, path string) (Result, error) {
	bin, err := exec.LookPath(p.binary())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	// "-" sends the text to stdout; pages are separated by form feeds.
	cmd := exec.CommandContext(ctx, bin, "-enc", "UTF-8", path, "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Result{}, fmt.Errorf("%w: pdftotext: %s", ErrExtraction, msg)
	}

	text := out.String()
	pages := strings.Count(text, "\f")
	if strings.TrimSpace(text) != "" {
		pages++
	}
	markdown := strings.ReplaceAll(text, "\f", "\n\n---\n\n")

	return Result{
		Markdown:  markdown,
		PageCount: pages,
		Method:    p.Name(),
		Metadata:  map[string]string{"pages": strconv.Itoa(pages)},
	}, nil
}

func (p PDFText) binary() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "pdftotext"
}
