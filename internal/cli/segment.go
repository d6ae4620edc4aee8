package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagMinTokens int
	flagMaxTokens int
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Split a large markdown document into token-budgeted chunks",
	Long: "Segment cuts a markdown or text file at natural boundaries (headings,\n" +
		"paragraphs, sentences) into chunks that fit the given token budget.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.SegmentFile(args[0], flagOutputDir, flagMinTokens, flagMaxTokens)
		if err != nil {
			return runtimeErr(err)
		}

		fmt.Fprintf(os.Stdout, "Wrote %d segments into %s\n", res.Segments, flagOutputDir)
		fmt.Fprintf(os.Stdout, "Report: %s\n", res.ReportPath)
		return nil
	},
}

func init() {
	segmentCmd.Flags().StringVar(&flagOutputDir, "output-dir", "veil-output", "Directory for segment files and report")
	segmentCmd.Flags().IntVar(&flagMinTokens, "min-tokens", 0, "Minimum tokens per segment (default from config)")
	segmentCmd.Flags().IntVar(&flagMaxTokens, "max-tokens", 0, "Maximum tokens per segment (default from config)")
}
