package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagOutputFile string

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Convert a document to markdown",
	Long: "Extract converts a PDF or office document to markdown using the first\n" +
		"available backend (remote converter, pdftotext, plain text).",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res, outPath, err := p.ExtractFile(cmd.Context(), args[0], flagOutputFile)
		if err != nil {
			return runtimeErr(err)
		}

		fmt.Fprintf(os.Stdout, "Extracted %s via %s (%d pages)\n", outPath, res.Method, res.PageCount)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&flagOutputFile, "out", "", "Output markdown path (default: input name with .md)")
}
