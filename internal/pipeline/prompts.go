package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veilkit/veil/internal/segment"
)

// SplitResult summarizes one prompt-splitting run.
type SplitResult struct {
	OutputPaths []string
	ReportPath  string
	Prompts     int
}

// SplitFile cuts a markdown file at the given heading level and writes
// each unit as prompts/NNN_slug.md, plus a report. Level 0 falls back to
// the configured default.
func (p *Pipeline) SplitFile(path, outputDir string, level int) (SplitResult, error) {
	content, err := readTextFile(path)
	if err != nil {
		return SplitResult{}, err
	}
	if level <= 0 {
		level = p.cfg.SplitLevel
	}

	p.progress(fmt.Sprintf("splitting at heading level %d", level), 0.2)
	var units []segment.Unit
	for u := range segment.SplitByHeading(content, level) {
		units = append(units, u)
	}
	if len(units) == 0 {
		return SplitResult{}, fmt.Errorf("no content to split in %s", filepath.Base(path))
	}

	promptDir := filepath.Join(outputDir, "prompts")
	if err := ensureDir(promptDir); err != nil {
		return SplitResult{}, err
	}

	base := stem(path)
	total := len(units)
	outputs := make([]string, 0, total)
	for _, u := range units {
		p.progress(fmt.Sprintf("writing prompt %d of %d", u.Index+1, total), 0.3+0.6*float64(u.Index+1)/float64(total))

		heading := "preamble"
		var parent string
		if len(u.HeadingPath) > 0 {
			heading = u.HeadingPath[len(u.HeadingPath)-1]
			if len(u.HeadingPath) > 1 {
				parent = u.HeadingPath[len(u.HeadingPath)-2]
			}
		}

		name := fmt.Sprintf("%s_%03d_%s.md", base, u.Index+1, slugify(heading))
		outPath := filepath.Join(promptDir, name)

		var sb strings.Builder
		fmt.Fprintf(&sb, "<!-- Prompt %d of %d -->\n", u.Index+1, total)
		fmt.Fprintf(&sb, "<!-- Original file: %s -->\n", filepath.Base(path))
		fmt.Fprintf(&sb, "<!-- Heading: %s -->\n", heading)
		if parent != "" {
			fmt.Fprintf(&sb, "<!-- Parent: %s -->\n", parent)
		}
		sb.WriteString("\n")
		sb.WriteString(u.Content)
		sb.WriteString("\n")

		if err := os.WriteFile(outPath, []byte(sb.String()), 0o600); err != nil {
			return SplitResult{}, fmt.Errorf("write %s: %w", outPath, err)
		}
		outputs = append(outputs, outPath)
	}

	reportPath := filepath.Join(outputDir, "PROMPT_REPORT.md")
	if err := writePromptReport(reportPath, path, units, level); err != nil {
		return SplitResult{}, err
	}

	p.progress("prompt generation complete", 1.0)
	p.log.Infof("SPLIT", "%s split into %d prompts at level %d", filepath.Base(path), total, level)

	return SplitResult{OutputPaths: outputs, ReportPath: reportPath, Prompts: total}, nil
}

func writePromptReport(path, source string, units []segment.Unit, level int) error {
	var sb strings.Builder
	sb.WriteString("# Prompt Generation Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	sb.WriteString("## Summary\n")
	fmt.Fprintf(&sb, "- Source file: %s\n", filepath.Base(source))
	fmt.Fprintf(&sb, "- Total prompts: %d\n", len(units))
	fmt.Fprintf(&sb, "- Split level: h%d\n", level)

	sb.WriteString("\n## Prompts\n")
	for _, u := range units {
		heading := "preamble"
		if len(u.HeadingPath) > 0 {
			heading = u.HeadingPath[len(u.HeadingPath)-1]
		}
		fmt.Fprintf(&sb, "\n### Prompt %d: %s\n", u.Index+1, heading)
		if len(u.HeadingPath) > 1 {
			fmt.Fprintf(&sb, "- Parent: %s\n", u.HeadingPath[len(u.HeadingPath)-2])
		}
		fmt.Fprintf(&sb, "- Content length: %d characters\n", len(u.Content))
	}

	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

// slugify makes a heading safe for use in a file name.
func slugify(heading string) string {
	var sb strings.Builder
	for _, r := range heading {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteByte('_')
		}
	}
	s := strings.Trim(sb.String(), "_")
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		s = "untitled"
	}
	return s
}
