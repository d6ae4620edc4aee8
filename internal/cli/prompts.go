package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagSplitLevel int

var promptsCmd = &cobra.Command{
	Use:   "prompts <file>",
	Short: "Split structured markdown into individual prompt files",
	Long: "Prompts cuts a markdown file at a heading level and writes each section\n" +
		"as a self-contained prompt file carrying its ancestor headings.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.SplitFile(args[0], flagOutputDir, flagSplitLevel)
		if err != nil {
			return runtimeErr(err)
		}

		fmt.Fprintf(os.Stdout, "Wrote %d prompts into %s\n", res.Prompts, flagOutputDir)
		fmt.Fprintf(os.Stdout, "Report: %s\n", res.ReportPath)
		return nil
	},
}

func init() {
	promptsCmd.Flags().StringVar(&flagOutputDir, "output-dir", "veil-output", "Directory for prompt files and report")
	promptsCmd.Flags().IntVar(&flagSplitLevel, "level", 0, "Heading level to split at (default from config)")
}
