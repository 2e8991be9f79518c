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
	cfgFile     string
	logLevel    string
	logFormat   string
	batchSize   int
	onDuplicate string
)

var rootCmd = &cobra.Command{
	Use:   "goextract",
	Short: "Relational subgraph extractor",
	Long: `A CLI tool that extracts a consistent slice of a relational database as
INSERT statements: the root records of a job plus everything reachable
from them through the declared relations.

Features:
  - Six relation kinds, including through and join-table relations
  - Every record and join row emitted exactly once per run
  - Bulk or streaming (batch by batch) output
  - MySQL and PostgreSQL sources and output dialects
  - Per-field obfuscation of sensitive values`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "goextract.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override streaming batch size (records per query page)")
	rootCmd.PersistentFlags().StringVar(&onDuplicate, "on-duplicate", "",
		"Override duplicate key policy (fail, ignore, override)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel    string
	LogFormat   string
	BatchSize   int
	OnDuplicate string
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		BatchSize:   batchSize,
		OnDuplicate: onDuplicate,
	}
}
