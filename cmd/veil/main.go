// Command veil is a reversible document anonymization tool.
//
// It replaces PII in documents with realistic, consistent fake data and
// records every replacement in a vault artifact, so anonymized documents
// can be shared with external AI services and the originals restored
// exactly afterwards. It also converts PDFs to markdown and splits large
// documents into token-budgeted segments or per-heading prompts.
//
// Usage:
//
//	veil anonymize --dir ./docs --output-dir ./out
//	veil restore --dir ./out/anonymized --output-dir ./restored
//	veil extract report.pdf
//	veil segment big-report.md --max-tokens 15000
//	veil prompts guide.md --level 2
//
// Configuration comes from veil-config.json and VEIL_* environment
// variables; see the config package.
package main

import (
	"os"

	"github.com/veilkit/veil/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
