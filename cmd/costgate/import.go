package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whovisions/costgate/bootstrap"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a billing CSV export into the price history",
	Long: `Import price rows from a billing console CSV export.

Each row becomes one observation. Malformed rows are reported with
their row number and skipped; nothing is dropped silently. The store
is append-only: re-importing the same file appends duplicates.

Examples:
  costgate import prices.csv
  costgate import prices.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and validate without appending")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: configPath(cmd)})
	if err != nil {
		return err
	}
	defer a.Shutdown()

	result, err := a.Importer.Import(context.Background(), f, importDryRun)
	if err != nil {
		return err
	}

	for _, re := range result.Skipped {
		fmt.Fprintf(os.Stderr, "row %d skipped: %s\n", re.Row, re.Reason)
	}
	if importDryRun {
		fmt.Printf("Dry run: %d row(s) valid, %d skipped\n", result.Appended, len(result.Skipped))
		return nil
	}
	fmt.Printf("Imported %d observation(s), %d row(s) skipped\n", result.Appended, len(result.Skipped))
	return nil
}
