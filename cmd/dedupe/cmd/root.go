package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	threshold float64
)

var rootCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Record Deduplication & Merge Engine",
	Long: `A CLI tool for finding, reviewing and merging duplicate records in a
MySQL-backed CRM store.

Features:
  - Fuzzy duplicate scanning with per-entity matching rules
  - Duplicate group review workflow (ignore, not-duplicate, remove)
  - Conflict-resolving merges with foreign key relocation
  - Append-only merge audit log
  - Data quality metrics and orphan detection`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "dedupe.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Scan overrides
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", 0,
		"Override duplicate score threshold (0-1)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	Threshold float64
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Threshold: threshold,
	}
}
