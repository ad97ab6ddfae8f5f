package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/whovisions/costgate/app"
	"github.com/whovisions/costgate/bootstrap"
	"github.com/whovisions/costgate/domain/pricing"
)

var (
	recordService     string
	recordSKU         string
	recordDescription string
	recordPriceType   string
	recordPrice       string
	recordUnit        string
	recordTierStart   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append one price observation",
	Long: `Manually append a price observation to the history.

Examples:
  costgate record --service "Gemini API" --sku FLASH-IN \
    --price-type input --price 0.10 --unit "1M tokens"`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&recordService, "service", "", "service name (required)")
	recordCmd.Flags().StringVar(&recordSKU, "sku", "", "SKU identifier (required)")
	recordCmd.Flags().StringVar(&recordDescription, "description", "", "SKU description")
	recordCmd.Flags().StringVar(&recordPriceType, "price-type", "", "price type: input, output, storage, ... (required)")
	recordCmd.Flags().StringVar(&recordPrice, "price", "", "price per unit (required)")
	recordCmd.Flags().StringVar(&recordUnit, "unit", "", "billing unit, e.g. \"1M tokens\"")
	recordCmd.Flags().StringVar(&recordTierStart, "tier-start", "", "tiered usage start, if any")

	recordCmd.MarkFlagRequired("service")
	recordCmd.MarkFlagRequired("sku")
	recordCmd.MarkFlagRequired("price-type")
	recordCmd.MarkFlagRequired("price")
}

func runRecord(cmd *cobra.Command, args []string) error {
	price, err := decimal.NewFromString(recordPrice)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", recordPrice, err)
	}

	var tierStart *decimal.Decimal
	if recordTierStart != "" {
		ts, err := decimal.NewFromString(recordTierStart)
		if err != nil {
			return fmt.Errorf("invalid tier-start %q: %w", recordTierStart, err)
		}
		tierStart = &ts
	}

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: configPath(cmd)})
	if err != nil {
		return err
	}
	defer a.Shutdown()

	obs, err := a.Tracker.Record(context.Background(), app.RecordParams{
		Service:     recordService,
		SKUID:       recordSKU,
		Description: recordDescription,
		PriceType:   recordPriceType,
		Price:       price,
		Unit:        recordUnit,
		TierStart:   tierStart,
		Source:      pricing.SourceManual,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Recorded %s = %s at %s\n", obs.Key, obs.PricePerUnit, obs.Timestamp.Format("2006-01-02 15:04:05"))
	return nil
}
