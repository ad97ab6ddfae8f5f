package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/whovisions/costgate/app"
	"github.com/whovisions/costgate/bootstrap"
	"github.com/whovisions/costgate/domain/spike"
)

var (
	spikeThreshold float64
	spikeService   string
	spikeDays      int
	spikeTrend     bool
)

var spikesCmd = &cobra.Command{
	Use:   "spikes",
	Short: "Report price spikes (or trends with --trend)",
	Long: `Compare the two most recent observations of every tracked SKU and
report increases at or above the threshold. Exits 1 when a critical
spike (>= 50% increase) is found, so it can gate a deploy pipeline.

Examples:
  costgate spikes
  costgate spikes --threshold 25 --service "Gemini API"
  costgate spikes --trend --days 90`,
	RunE: runSpikes,
}

func init() {
	rootCmd.AddCommand(spikesCmd)

	spikesCmd.Flags().Float64Var(&spikeThreshold, "threshold", 10, "minimum percentage increase to report")
	spikesCmd.Flags().StringVar(&spikeService, "service", "", "only check this service")
	spikesCmd.Flags().IntVar(&spikeDays, "days", 30, "lookback window in days")
	spikesCmd.Flags().BoolVar(&spikeTrend, "trend", false, "report price trends instead of spikes")
}

func runSpikes(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.New(bootstrap.Options{ConfigPath: configPath(cmd)})
	if err != nil {
		return err
	}
	defer a.Shutdown()

	ctx := context.Background()
	if spikeTrend {
		return printTrends(ctx, a)
	}

	spikes, err := a.Tracker.CheckSpikes(ctx, app.SpikeParams{
		Threshold:    decimal.NewFromFloat(spikeThreshold),
		Service:      spikeService,
		LookbackDays: spikeDays,
	})
	if err != nil {
		return err
	}

	if len(spikes) == 0 {
		fmt.Printf("No spikes at or above %.1f%% in the last %d days\n", spikeThreshold, spikeDays)
		return nil
	}

	critical := false
	fmt.Printf("%d price spike(s) detected:\n\n", len(spikes))
	for _, s := range spikes {
		fmt.Printf("[%s] %s\n", s.Severity, s.Key)
		if s.Description != "" {
			fmt.Printf("  %s\n", s.Description)
		}
		fmt.Printf("  %s -> %s (+%s%%)\n", s.PreviousPrice, s.CurrentPrice, s.PercentageIncrease)
		fmt.Printf("  last checked %d day(s) before\n\n", s.DaysSinceLastCheck)
		if s.Severity == spike.SeverityCritical {
			critical = true
		}
	}

	if critical {
		a.Shutdown()
		os.Exit(1)
	}
	return nil
}

func printTrends(ctx context.Context, a *bootstrap.App) error {
	reports, err := a.Tracker.Trends(ctx, app.TrendParams{
		Service: spikeService,
		Days:    spikeDays,
	})
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		fmt.Printf("No tracked prices in the last %d days\n", spikeDays)
		return nil
	}

	for _, r := range reports {
		fmt.Printf("%s: %s\n", r.Key, r.Direction)
		fmt.Printf("  %s -> %s (%s%%) over %d point(s), avg %s\n",
			r.FirstPrice, r.LastPrice, r.PercentageChange, r.DataPoints, r.AveragePrice)
	}
	return nil
}
