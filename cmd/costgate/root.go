package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "costgate",
	Short: "Cost governance engine for multi-tier model billing",
	Long: `Costgate tracks billing prices over time, flags price spikes,
estimates request costs, and routes requests to the cheapest
capable model tier with automatic fallback.

Quick start:
  costgate import prices.csv   # Load a billing export
  costgate spikes              # Check for price spikes
  costgate serve               # Start the pricing API server

Management:
  costgate record   # Append one price observation
  costgate spikes   # Spike / trend reports`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "costgate.yaml", "config file path")
}

// configPath returns the --config value, or empty (built-in defaults) when
// the default file is absent and the flag was not set explicitly.
func configPath(cmd *cobra.Command) string {
	if cmd.Flags().Changed("config") || cmd.InheritedFlags().Changed("config") {
		return cfgFile
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return ""
	}
	return cfgFile
}
