package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/veilkit/veil/internal/engine"
	"github.com/veilkit/veil/internal/generator"
	"github.com/veilkit/veil/internal/metrics"
	"github.com/veilkit/veil/internal/vault"
)

// AnonymizeResult summarizes one anonymization run.
type AnonymizeResult struct {
	OutputPaths []string
	VaultPath   string
	ReportPath  string
	Labels      map[string]int // distinct mappings per entity label
	Failed      []string       // document IDs that could not be processed
}

// AnonymizeFiles extracts the input files, anonymizes them as one batch
// against a fresh vault and writes anonymized markdown, the vault
// artifact and a content-free report under outputDir.
func (p *Pipeline) AnonymizeFiles(ctx context.Context, in FindOptions, outputDir string) (AnonymizeResult, error) {
	p.progress("scanning for documents", 0.05)
	inputs, err := FindFiles(in)
	if err != nil {
		return AnonymizeResult{}, err
	}
	if len(inputs) == 0 {
		return AnonymizeResult{}, fmt.Errorf("no files matched")
	}

	anonDir := filepath.Join(outputDir, "anonymized")
	if err := ensureDir(anonDir); err != nil {
		return AnonymizeResult{}, err
	}

	p.progress(fmt.Sprintf("extracting %d files", len(inputs)), 0.1)
	docs := make([]engine.Document, 0, len(inputs))
	var failed []string
	for i, path := range inputs {
		res, err := p.resolver.Extract(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return AnonymizeResult{}, ctx.Err()
			}
			p.log.Warnf("EXTRACT", "skipping %s: %v", filepath.Base(path), err)
			failed = append(failed, path)
			continue
		}
		docs = append(docs, engine.Document{ID: path, Text: res.Markdown})
		p.progress(fmt.Sprintf("extracted file %d of %d", i+1, len(inputs)), 0.1+0.2*float64(i+1)/float64(len(inputs)))
	}
	if len(docs) == 0 {
		return AnonymizeResult{}, fmt.Errorf("no files could be extracted")
	}

	offset, err := randomDateOffset(p.cfg.DateShiftDays)
	if err != nil {
		return AnonymizeResult{}, err
	}
	gen := generator.New()
	v := vault.New(offset, gen.Generate)

	p.progress("anonymizing", 0.35)
	batch, err := p.engine.Anonymize(ctx, docs, v)
	if err != nil {
		return AnonymizeResult{}, err
	}
	for _, f := range batch.Failures {
		p.log.Warnf("ANONYMIZE", "document failed: %s: %v", filepath.Base(f.ID), f.Err)
		failed = append(failed, f.ID)
	}

	p.progress("writing outputs", 0.8)
	outputs := make([]string, 0, len(batch.Outputs))
	used := make(map[string]int, len(batch.Outputs))
	for _, doc := range batch.Outputs {
		name := stem(doc.ID)
		// Inputs from different directories can share a base name; a
		// numeric suffix keeps each output distinct.
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		outPath := filepath.Join(anonDir, name+".md")
		if err := os.WriteFile(outPath, []byte(doc.Text), 0o600); err != nil {
			return AnonymizeResult{}, fmt.Errorf("write %s: %w", outPath, err)
		}
		outputs = append(outputs, outPath)
	}

	vaultPath := filepath.Join(outputDir, "vault.json")
	if err := v.Save(vaultPath); err != nil {
		return AnonymizeResult{}, err
	}

	labels := labelCounts(v)
	reportPath := filepath.Join(outputDir, "REPORT.md")
	if err := writeAnonymizeReport(reportPath, batch, labels, failed, p.stats.Snapshot()); err != nil {
		return AnonymizeResult{}, err
	}

	p.progress("anonymization complete", 1.0)
	p.log.Infof("ANONYMIZE", "%d files anonymized, %d mappings, vault at %s",
		batch.Succeeded(), v.Len(), vaultPath)

	return AnonymizeResult{
		OutputPaths: outputs,
		VaultPath:   vaultPath,
		ReportPath:  reportPath,
		Labels:      labels,
		Failed:      failed,
	}, nil
}

func labelCounts(v *vault.Vault) map[string]int {
	counts := make(map[string]int)
	for _, rec := range v.Records() {
		counts[rec.Label]++
	}
	return counts
}

func writeAnonymizeReport(path string, batch engine.BatchResult, labels map[string]int, failed []string, snap metrics.Snapshot) error {
	var sb strings.Builder
	sb.WriteString("# Anonymization Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	sb.WriteString("## Summary\n")
	fmt.Fprintf(&sb, "- Files processed: %d\n", batch.Succeeded())
	fmt.Fprintf(&sb, "- Files failed: %d\n", len(failed))
	sb.WriteString("- Vault location: vault.json\n\n")

	sb.WriteString("## Entities\n")
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s: %d\n", name, labels[name])
	}

	if len(failed) > 0 {
		sb.WriteString("\n## Failed Files\n")
		for _, f := range failed {
			fmt.Fprintf(&sb, "- %s\n", filepath.Base(f))
		}
	}

	sb.WriteString("\n## Consistency\n")
	sb.WriteString("Every occurrence of the same entity received the same replacement across all documents.\n")
	sb.WriteString("Use the restore command with vault.json to recover the originals.\n")

	if err := writeRunStatistics(&sb, snap); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

// writeRunStatistics appends the full counter snapshot. It carries only
// counts and latencies, never document content.
func writeRunStatistics(sb *strings.Builder, snap metrics.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run statistics: %w", err)
	}
	sb.WriteString("\n## Run Statistics\n")
	sb.WriteString("```json\n")
	sb.Write(data)
	sb.WriteString("\n```\n")
	return nil
}
