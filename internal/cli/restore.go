package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilkit/veil/internal/pipeline"
)

var flagVaultPath string

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore original PII in anonymized documents",
	Long: "Restore replaces the fake values in anonymized documents with the\n" +
		"originals recorded in the vault. Documents containing replacement\n" +
		"tokens the vault does not know are refused.",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.RestoreFiles(cmd.Context(), pipeline.FindOptions{
			Files:     flagFiles,
			Dir:       flagDir,
			Patterns:  flagPatterns,
			Recursive: flagRecursive,
		}, flagVaultPath, flagOutputDir)
		if err != nil {
			return runtimeErr(err)
		}

		fmt.Fprintf(os.Stdout, "Restored %d files with %d replacements into %s\n",
			len(res.OutputPaths), res.Restored, flagOutputDir)
		if len(res.Failed) > 0 {
			fmt.Fprintf(os.Stdout, "Refused: %d files (see %s)\n", len(res.Failed), res.ReportPath)
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&flagOutputDir, "output-dir", "veil-output", "Directory for restored files and report")
	restoreCmd.Flags().StringVar(&flagVaultPath, "vault", "", "Path to vault.json (auto-detected near the input directory)")
	addInputFlags(restoreCmd)
}
