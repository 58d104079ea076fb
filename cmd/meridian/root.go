package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Meridian - multi-backend LLM gateway",
	Long: `Meridian is an LLM gateway that fronts multiple inference backends
behind one OpenAI-compatible API.

It provides:
  - Multi-backend routing (OpenAI, Anthropic, local engines) with
    pluggable selection strategies and automatic fallback
  - Per-backend circuit breakers
  - Priority-aware request batching with cost-optimized admission
  - Usage accounting with durable SQLite storage
  - Prometheus metrics and structured logging`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
