// Package extract converts source documents into markdown.
//
// Backends declare their own availability and format support up front, so
// the resolver can pick the first usable one instead of probing with
// not-implemented errors. A persistent cache keyed by content hash sits in
// front of the resolver so re-runs over the same files never re-extract.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
)

var (
	// ErrExtraction marks a backend failure on a file it claims to
	// support. The resolver falls through to the next backend.
	ErrExtraction = errors.New("extraction failed")

	// ErrNoExtractor is returned when no available backend supports the
	// file, or every one that does has failed.
	ErrNoExtractor = errors.New("no extractor available for file")
)

// Result is the outcome of a single document extraction.
type Result struct {
	Markdown  string
	PageCount int
	Method    string // name of the backend that produced the result
	Metadata  map[string]string
}

// Backend converts one file format family into markdown.
type Backend interface {
	// Name identifies the backend in logs and reports.
	Name() string

	// Available reports whether the backend can run at all in this
	// process (binary on PATH, endpoint configured).
	Available() bool

	// Supports reports whether the backend handles the given file path,
	// judged by extension.
	Supports(path string) bool

	// Extract converts the file at path into markdown.
	Extract(ctx context.Context, path string) (Result, error)
}

// FileKey returns the cache key for the file at path: the hex sha256 of
// its content. Renamed or touched files keep their cache entry; edited
// files miss.
func FileKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
