package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/veilkit/veil/internal/pipeline"
)

var (
	flagOutputDir string
	flagFiles     []string
	flagDir       string
	flagPatterns  []string
	flagRecursive bool
)

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&flagFiles, "files", nil, "Explicit input files")
	cmd.Flags().StringVar(&flagDir, "dir", "", "Directory to scan for input files")
	cmd.Flags().StringSliceVar(&flagPatterns, "patterns", nil, "Glob patterns for the directory scan")
	cmd.Flags().BoolVar(&flagRecursive, "recursive", true, "Include subdirectories in the scan")
}

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Replace PII in documents with consistent fake data",
	Long: "Anonymize extracts the input documents, replaces detected PII with\n" +
		"realistic fake values and writes the results plus a vault.json that\n" +
		"allows exact restoration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.AnonymizeFiles(cmd.Context(), pipeline.FindOptions{
			Files:     flagFiles,
			Dir:       flagDir,
			Patterns:  flagPatterns,
			Recursive: flagRecursive,
		}, flagOutputDir)
		if err != nil {
			return runtimeErr(err)
		}

		fmt.Fprintf(os.Stdout, "Anonymized %d files into %s\n", len(res.OutputPaths), flagOutputDir)
		fmt.Fprintf(os.Stdout, "Vault: %s\n", res.VaultPath)
		labels := make([]string, 0, len(res.Labels))
		for l := range res.Labels {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(os.Stdout, "  %s: %d\n", l, res.Labels[l])
		}
		if len(res.Failed) > 0 {
			fmt.Fprintf(os.Stdout, "Failed: %d files (see %s)\n", len(res.Failed), res.ReportPath)
		}
		return nil
	},
}

func init() {
	anonymizeCmd.Flags().StringVar(&flagOutputDir, "output-dir", "veil-output", "Directory for anonymized files, vault and report")
	addInputFlags(anonymizeCmd)
}
