package main

import (
	"github.com/spf13/cobra"

	"github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "carefile",
	Short: "Hospital department records manager with model-based document extraction",
	Long: `Carefile manages scanned hospital department records: registers, forms,
charts, and handwritten logs.

Uploaded documents are read by a vision model and parsed into structured
records, with automatic repair of truncated model output and re-extraction
of low-quality tables. Structured records can be exported as XLSX workbooks
or PDF summaries, per document or per department.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.carefile/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "carefile home directory (default: ~/.carefile)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
