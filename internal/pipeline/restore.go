package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veilkit/veil/internal/engine"
	"github.com/veilkit/veil/internal/metrics"
	"github.com/veilkit/veil/internal/vault"
)

// RestoreResult summarizes one restoration run.
type RestoreResult struct {
	OutputPaths []string
	ReportPath  string
	Restored    int64    // total replacements put back
	Failed      []string // document IDs whose restoration was refused
}

// RestoreFiles loads the vault artifact, restores the anonymized input
// files and writes the originals plus a report under outputDir. The vault
// path defaults to vault.json next to the input directory.
func (p *Pipeline) RestoreFiles(ctx context.Context, in FindOptions, vaultPath, outputDir string) (RestoreResult, error) {
	p.progress("scanning for anonymized documents", 0.05)
	inputs, err := FindFiles(in)
	if err != nil {
		return RestoreResult{}, err
	}
	if len(inputs) == 0 {
		return RestoreResult{}, fmt.Errorf("no anonymized files found")
	}

	if vaultPath == "" {
		vaultPath = locateVault(in)
	}
	if vaultPath == "" {
		return RestoreResult{}, fmt.Errorf("vault file not found, pass its path explicitly")
	}

	p.progress("loading vault", 0.15)
	v, err := vault.Load(vaultPath)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("load vault: %w", err)
	}

	restoredDir := filepath.Join(outputDir, "restored")
	if err := ensureDir(restoredDir); err != nil {
		return RestoreResult{}, err
	}

	docs := make([]engine.Document, 0, len(inputs))
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return RestoreResult{}, fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, engine.Document{ID: path, Text: string(data)})
	}

	before := p.stats.RestoredTotal.Load()
	p.progress("restoring", 0.3)
	batch, err := p.engine.Restore(ctx, docs, v)
	if err != nil {
		return RestoreResult{}, err
	}
	restored := p.stats.RestoredTotal.Load() - before

	var failed []string
	for _, f := range batch.Failures {
		p.log.Warnf("RESTORE", "document refused: %s: %v", filepath.Base(f.ID), f.Err)
		failed = append(failed, f.ID)
	}

	outputs := make([]string, 0, len(batch.Outputs))
	for _, doc := range batch.Outputs {
		outPath := filepath.Join(restoredDir, filepath.Base(doc.ID))
		if err := os.WriteFile(outPath, []byte(doc.Text), 0o600); err != nil {
			return RestoreResult{}, fmt.Errorf("write %s: %w", outPath, err)
		}
		outputs = append(outputs, outPath)
	}

	reportPath := filepath.Join(outputDir, "RESTORATION_REPORT.md")
	if err := writeRestoreReport(reportPath, batch, restored, vaultPath, failed, p.stats.Snapshot()); err != nil {
		return RestoreResult{}, err
	}

	p.progress("restoration complete", 1.0)
	p.log.Infof("RESTORE", "%d files restored with %d replacements", batch.Succeeded(), restored)

	return RestoreResult{
		OutputPaths: outputs,
		ReportPath:  reportPath,
		Restored:    restored,
		Failed:      failed,
	}, nil
}

// locateVault looks for vault.json next to and inside the input directory.
func locateVault(in FindOptions) string {
	dir := in.Dir
	if dir == "" && len(in.Files) > 0 {
		dir = filepath.Dir(in.Files[0])
	}
	if dir == "" {
		return ""
	}
	for _, candidate := range []string{
		filepath.Join(filepath.Dir(dir), "vault.json"),
		filepath.Join(dir, "vault.json"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func writeRestoreReport(path string, batch engine.BatchResult, restored int64, vaultPath string, failed []string, snap metrics.Snapshot) error {
	var sb strings.Builder
	sb.WriteString("# Restoration Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	sb.WriteString("## Summary\n")
	fmt.Fprintf(&sb, "- Files restored: %d\n", batch.Succeeded())
	fmt.Fprintf(&sb, "- Files refused: %d\n", len(failed))
	fmt.Fprintf(&sb, "- Total replacements: %d\n", restored)
	fmt.Fprintf(&sb, "- Vault used: %s\n", filepath.Base(vaultPath))

	if len(failed) > 0 {
		sb.WriteString("\n## Refused Files\n")
		sb.WriteString("These documents contain replacement-shaped tokens with no vault record and were not written:\n")
		for _, f := range failed {
			fmt.Fprintf(&sb, "- %s\n", filepath.Base(f))
		}
	}

	if err := writeRunStatistics(&sb, snap); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0o600)
}
