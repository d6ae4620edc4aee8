// Package cli wires the veil commands: anonymize, restore, extract,
// segment and prompts. Commands load configuration, assemble a pipeline
// and print content-free summaries.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilkit/veil/internal/config"
	"github.com/veilkit/veil/internal/logger"
	"github.com/veilkit/veil/internal/pipeline"
)

const version = "1.0.0"

// Exit codes.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 4
)

var rootCmd = &cobra.Command{
	Use:   "veil",
	Short: "Reversible document anonymization",
	Long: "Veil replaces PII in documents with realistic fake data and records the\n" +
		"mapping in a vault so the originals can be restored exactly.",
	SilenceUsage: true,
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(anonymizeCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		return exitCode
	}
	return ExitSuccess
}

// exitCode is set by command handlers before returning an error.
var exitCode = ExitUsageError

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print veil version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "veil version %s\n", version)
	},
}

// newPipeline loads configuration and assembles a pipeline with a stderr
// progress printer.
func newPipeline() (*pipeline.Pipeline, *config.Config, error) {
	cfg := config.Load()
	p, err := pipeline.New(cfg, pipeline.Options{
		Log: logger.New("VEIL", cfg.LogLevel),
		Progress: func(message string, fraction float64) {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", fraction*100, message)
		},
	})
	if err != nil {
		exitCode = ExitRuntimeError
		return nil, nil, err
	}
	return p, cfg, nil
}

func runtimeErr(err error) error {
	exitCode = ExitRuntimeError
	return err
}
