// Package csvimport reads billing-export CSV files and appends price
// observations to the store.
package csvimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/ports"
)

// Column headers of the billing export format.
const (
	colService     = "Google service"
	colServiceDesc = "Service description"
	colSKUID       = "SKU ID"
	colSKUDesc     = "SKU description"
	colPrice       = "Contract price ($)"
	colUnit        = "Unit description"
	colTierStart   = "Tiered usage start"
)

// RowError reports one malformed or skipped row. Rows are reported, never
// silently dropped.
type RowError struct {
	Row    int // 1-based data row number, excluding the header
	Reason string
}

// Result summarizes one import run.
type Result struct {
	Appended int
	Skipped  []RowError
}

// Importer parses CSV pricing exports into observations.
type Importer struct {
	store  ports.PriceStore
	clock  ports.Clock
	idgen  ports.IDGenerator
	logger zerolog.Logger
}

// New creates an importer. The store may be nil only when every run is a dry
// run.
func New(store ports.PriceStore, clock ports.Clock, idgen ports.IDGenerator, logger zerolog.Logger) *Importer {
	return &Importer{
		store:  store,
		clock:  clock,
		idgen:  idgen,
		logger: logger.With().Str("component", "csvimport").Logger(),
	}
}

// Import reads CSV rows from r and appends one observation per valid row.
// With dryRun set it parses and validates without appending. Importing the
// same file twice appends duplicates: the store is append-only by design.
func (imp *Importer) Import(ctx context.Context, r io.Reader, dryRun bool) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colService, colSKUID, colPrice} {
		if _, ok := cols[required]; !ok {
			return Result{}, fmt.Errorf("csv missing required column %q", required)
		}
	}

	var res Result
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: row, Reason: err.Error()})
			continue
		}

		obs, reason := imp.parseRow(cols, record)
		if reason != "" {
			res.Skipped = append(res.Skipped, RowError{Row: row, Reason: reason})
			imp.logger.Warn().Int("row", row).Str("reason", reason).Msg("skipping csv row")
			continue
		}

		if !dryRun {
			if err := imp.store.Append(ctx, obs); err != nil {
				return res, fmt.Errorf("append row %d: %w", row, err)
			}
		}
		res.Appended++
	}

	imp.logger.Info().
		Int("appended", res.Appended).
		Int("skipped", len(res.Skipped)).
		Bool("dry_run", dryRun).
		Msg("csv import finished")
	return res, nil
}

func (imp *Importer) parseRow(cols map[string]int, record []string) (pricing.Observation, string) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	service := field(colService)
	skuID := field(colSKUID)
	rawPrice := field(colPrice)
	if service == "" || skuID == "" || rawPrice == "" {
		return pricing.Observation{}, "missing service, SKU ID or price"
	}

	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return pricing.Observation{}, fmt.Sprintf("unparseable price %q", rawPrice)
	}
	if price.IsNegative() {
		return pricing.Observation{}, fmt.Sprintf("negative price %q", rawPrice)
	}

	var tierStart *decimal.Decimal
	if raw := field(colTierStart); raw != "" {
		ts, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Observation{}, fmt.Sprintf("unparseable tier start %q", raw)
		}
		tierStart = &ts
	}

	skuDesc := field(colSKUDesc)
	return pricing.Observation{
		ID: imp.idgen.New(),
		Key: pricing.SKUKey{
			Service:   service,
			SKUID:     skuID,
			PriceType: InferPriceType(skuDesc),
		},
		Description:  skuDesc,
		PricePerUnit: price,
		Unit:         field(colUnit),
		TierStart:    tierStart,
		Timestamp:    imp.clock.Now(),
		Metadata: map[string]string{
			pricing.MetaSource:    pricing.SourceImport,
			"service_description": field(colServiceDesc),
		},
	}, ""
}

// InferPriceType derives a price-type tag from a SKU description.
// This is a PURE function.
func InferPriceType(skuDesc string) string {
	desc := strings.ToLower(skuDesc)
	switch {
	case strings.Contains(desc, "input"):
		return pricing.TypeInput
	case strings.Contains(desc, "output"):
		return pricing.TypeOutput
	case strings.Contains(desc, "storage"):
		return pricing.TypeStorage
	case strings.Contains(desc, "egress"), strings.Contains(desc, "transfer"):
		return pricing.TypeEgress
	case strings.Contains(desc, "operations"), strings.Contains(desc, "ops"):
		return pricing.TypeOperations
	case strings.Contains(desc, "generation"):
		return pricing.TypeGeneration
	case strings.Contains(desc, "cpu"):
		return pricing.TypeCPU
	case strings.Contains(desc, "memory"), strings.Contains(desc, "ram"):
		return pricing.TypeMemory
	default:
		return pricing.TypeUnknown
	}
}
