package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veilkit/veil/internal/segment"
)

// SegmentResult summarizes one segmentation run.
type SegmentResult struct {
	OutputPaths []string
	ReportPath  string
	Segments    int
}

// SegmentFile splits a markdown or text file into token-budgeted chunks
// and writes them as segments/NNN_of_MMM.md files with a comment header,
// plus a report.
func (p *Pipeline) SegmentFile(path, outputDir string, minTokens, maxTokens int) (SegmentResult, error) {
	content, err := readTextFile(path)
	if err != nil {
		return SegmentResult{}, err
	}
	if minTokens <= 0 {
		minTokens = p.cfg.MinTokens
	}
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}

	p.progress("segmenting document", 0.2)
	var chunks []segment.Chunk
	for c := range segment.Segment(content, minTokens, maxTokens, nil) {
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return SegmentResult{}, fmt.Errorf("nothing to segment in %s", filepath.Base(path))
	}

	segDir := filepath.Join(outputDir, "segments")
	if err := ensureDir(segDir); err != nil {
		return SegmentResult{}, err
	}

	base := stem(path)
	total := len(chunks)
	outputs := make([]string, 0, total)
	for _, c := range chunks {
		p.progress(fmt.Sprintf("writing segment %d of %d", c.Index+1, total), 0.3+0.6*float64(c.Index+1)/float64(total))

		name := fmt.Sprintf("%s_%03d_of_%03d.md", base, c.Index+1, total)
		outPath := filepath.Join(segDir, name)

		var sb strings.Builder
		fmt.Fprintf(&sb, "<!-- Segment %d of %d -->\n", c.Index+1, total)
		fmt.Fprintf(&sb, "<!-- Original file: %s -->\n", filepath.Base(path))
		fmt.Fprintf(&sb, "<!-- Tokens: ~%d -->\n", c.TokenCount)
		if len(c.HeadingContext) > 0 {
			fmt.Fprintf(&sb, "<!-- Context: %s -->\n", strings.Join(c.HeadingContext, " > "))
		}
		sb.WriteString("\n")
		sb.WriteString(c.Text)
		sb.WriteString("\n")

		if err := os.WriteFile(outPath, []byte(sb.String()), 0o600); err != nil {
			return SegmentResult{}, fmt.Errorf("write %s: %w", outPath, err)
		}
		outputs = append(outputs, outPath)
	}

	reportPath := filepath.Join(outputDir, "SEGMENTATION_REPORT.md")
	if err := writeSegmentReport(reportPath, path, chunks, minTokens, maxTokens); err != nil {
		return SegmentResult{}, err
	}

	p.progress("segmentation complete", 1.0)
	p.log.Infof("SEGMENT", "%s split into %d segments", filepath.Base(path), total)

	return SegmentResult{OutputPaths: outputs, ReportPath: reportPath, Segments: total}, nil
}

func writeSegmentReport(path, source string, chunks []segment.Chunk, minTokens, maxTokens int) error {
	var sb strings.Builder
	sb.WriteString("# Segmentation Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	sb.WriteString("## Summary\n")
	fmt.Fprintf(&sb, "- Source file: %s\n", filepath.Base(source))
	fmt.Fprintf(&sb, "- Total segments: %d\n", len(chunks))
	fmt.Fprintf(&sb, "- Token range: %d - %d\n", minTokens, maxTokens)

	sb.WriteString("\n## Segments\n")
	for _, c := range chunks {
		fmt.Fprintf(&sb, "\n### Segment %d\n", c.Index+1)
		fmt.Fprintf(&sb, "- Tokens: ~%d\n", c.TokenCount)
		if len(c.HeadingContext) > 0 {
			fmt.Fprintf(&sb, "- Context: %s\n", strings.Join(c.HeadingContext, " > "))
		}
	}

	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

// readTextFile reads a markdown or plain-text file, refusing other types.
func readTextFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
	default:
		return "", fmt.Errorf("only markdown or text files can be processed, got %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
