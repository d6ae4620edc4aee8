package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileKey(t *testing.T) {
	a := writeTempFile(t, "a.md", "same content")
	b := writeTempFile(t, "b.md", "same content")
	c := writeTempFile(t, "c.md", "other content")

	ka, err := FileKey(a)
	require.NoError(t, err)
	kb, err := FileKey(b)
	require.NoError(t, err)
	kc, err := FileKey(c)
	require.NoError(t, err)

	assert.Equal(t, ka, kb, "key depends on content, not path")
	assert.NotEqual(t, ka, kc)
	assert.Len(t, ka, 64)

	_, err = FileKey(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestTextBackend(t *testing.T) {
	b := Text{}
	assert.True(t, b.Available())
	assert.True(t, b.Supports("notes.md"))
	assert.True(t, b.Supports("NOTES.TXT"))
	assert.False(t, b.Supports("scan.pdf"))

	path := writeTempFile(t, "doc.md", "# Title\n\nBody.")
	res, err := b.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody.", res.Markdown)
	assert.Equal(t, 1, res.PageCount)
	assert.Equal(t, "text", res.Method)

	_, err = b.Extract(context.Background(), filepath.Join(t.TempDir(), "gone.md"))
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestPDFTextBackend(t *testing.T) {
	b := PDFText{Binary: filepath.Join(t.TempDir(), "no-such-binary")}
	assert.False(t, b.Available())
	assert.True(t, b.Supports("scan.pdf"))
	assert.True(t, b.Supports("SCAN.PDF"))
	assert.False(t, b.Supports("notes.md"))

	_, err := b.Extract(context.Background(), "scan.pdf")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestRemoteBackend(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		json.NewEncoder(w).Encode(remoteResponse{
			Markdown:  "# Converted",
			PageCount: 3,
			Metadata:  map[string]string{"engine": "docling"},
		})
	}))
	defer srv.Close()

	b := Remote{Endpoint: srv.URL, APIKey: "secret", Client: srv.Client()}
	assert.True(t, b.Available())
	assert.False(t, Remote{}.Available())
	assert.True(t, b.Supports("report.docx"))
	assert.False(t, b.Supports("report.md"))

	path := writeTempFile(t, "report.docx", "binary-ish")
	res, err := b.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Converted", res.Markdown)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, "remote", res.Method)
	assert.Equal(t, "docling", res.Metadata["engine"])
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestRemoteBackendErrors(t *testing.T) {
	path := writeTempFile(t, "report.docx", "data")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := Remote{Endpoint: srv.URL, Client: srv.Client()}.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtraction)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{})
	}))
	defer empty.Close()
	_, err = Remote{Endpoint: empty.URL, Client: empty.Client()}.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtraction)

	_, err = Remote{Endpoint: "http://127.0.0.1:1"}.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtraction)
}

// stubBackend is a scriptable Backend for resolver tests.
type stubBackend struct {
	name      string
	available bool
	supports  bool
	result    Result
	err       error
	delay     time.Duration
	calls     int
}

func (s *stubBackend) Name() string         { return s.name }
func (s *stubBackend) Available() bool      { return s.available }
func (s *stubBackend) Supports(string) bool { return s.supports }
func (s *stubBackend) Extract(ctx context.Context, path string) (Result, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return s.result, nil
}

func TestResolverPriorityOrder(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	first := &stubBackend{name: "first", available: true, supports: true, result: Result{Markdown: "from first", Method: "first"}}
	second := &stubBackend{name: "second", available: true, supports: true, result: Result{Markdown: "from second", Method: "second"}}

	r := NewResolver([]Backend{first, second}, ResolverOptions{})
	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "from first", res.Markdown)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "lower priority backend must not run")
}

func TestResolverSkipsUnavailableAndUnsupported(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	down := &stubBackend{name: "down", available: false, supports: true}
	wrongFormat := &stubBackend{name: "wrong", available: true, supports: false}
	ok := &stubBackend{name: "ok", available: true, supports: true, result: Result{Markdown: "done"}}

	r := NewResolver([]Backend{down, wrongFormat, ok}, ResolverOptions{})
	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Markdown)
	assert.Zero(t, down.calls)
	assert.Zero(t, wrongFormat.calls)
}

func TestResolverFallsThroughOnFailure(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	failing := &stubBackend{name: "failing", available: true, supports: true, err: ErrExtraction}
	backup := &stubBackend{name: "backup", available: true, supports: true, result: Result{Markdown: "recovered"}}

	r := NewResolver([]Backend{failing, backup}, ResolverOptions{})
	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Markdown)
	assert.Equal(t, 1, failing.calls)
}

func TestResolverAllExhausted(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	a := &stubBackend{name: "a", available: true, supports: true, err: ErrExtraction}
	b := &stubBackend{name: "b", available: true, supports: true, err: ErrExtraction}

	r := NewResolver([]Backend{a, b}, ResolverOptions{})
	_, err := r.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoExtractor)
}

func TestResolverNoBackendSupports(t *testing.T) {
	path := writeTempFile(t, "doc.bin", "content")

	r := NewResolver([]Backend{&stubBackend{name: "a", available: true}}, ResolverOptions{})
	_, err := r.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoExtractor)
}

func TestResolverBackendTimeout(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	slow := &stubBackend{name: "slow", available: true, supports: true, delay: time.Second, result: Result{Markdown: "never"}}
	fast := &stubBackend{name: "fast", available: true, supports: true, result: Result{Markdown: "fast wins"}}

	r := NewResolver([]Backend{slow, fast}, ResolverOptions{Timeout: 20 * time.Millisecond})
	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "fast wins", res.Markdown)
}

func TestResolverCallerCancellation(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	slow := &stubBackend{name: "slow", available: true, supports: true, delay: time.Second}
	backup := &stubBackend{name: "backup", available: true, supports: true, result: Result{Markdown: "x"}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := NewResolver([]Backend{slow, backup}, ResolverOptions{})
	_, err := r.Extract(ctx, path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, backup.calls, "caller cancellation must not fall through")
}

func TestResolverCache(t *testing.T) {
	path := writeTempFile(t, "doc.md", "cached content")

	cache, err := NewCache("", 0, nil)
	require.NoError(t, err)
	backend := &stubBackend{name: "b", available: true, supports: true, result: Result{Markdown: "extracted"}}

	r := NewResolver([]Backend{backend}, ResolverOptions{Cache: cache})

	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "extracted", res.Markdown)
	assert.Equal(t, 1, backend.calls)

	res, err = r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "extracted", res.Markdown)
	assert.Equal(t, "cache", res.Method)
	assert.Equal(t, 1, backend.calls, "second extraction must come from cache")

	// Same content under a different name still hits.
	twin := writeTempFile(t, "copy.md", "cached content")
	_, err = r.Extract(context.Background(), twin)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls)
}

func TestResolverAbortsOnUnexpectedError(t *testing.T) {
	path := writeTempFile(t, "doc.md", "content")

	broken := &stubBackend{name: "broken", available: true, supports: true, err: errors.New("disk on fire")}
	backup := &stubBackend{name: "backup", available: true, supports: true, result: Result{Markdown: "x"}}

	r := NewResolver([]Backend{broken, backup}, ResolverOptions{})
	_, err := r.Extract(context.Background(), path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoExtractor)
	assert.Zero(t, backup.calls)
}
