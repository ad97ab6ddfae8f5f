// Package trend provides pure price trend analysis.
package trend

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/pricing"
)

// Analysis errors. Both are recovered locally by callers: the SKU is omitted
// from the result set rather than failing the whole report.
var (
	// ErrInsufficientData means the window holds no observations.
	ErrInsufficientData = errors.New("insufficient data for trend analysis")

	// ErrUndefinedBaseline means the earliest in-window price is zero, so the
	// percentage change is mathematically undefined.
	ErrUndefinedBaseline = errors.New("trend baseline price is zero")
)

// Direction classifies the shape of a price series.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// 1% dead-band around the first price: negligible drift classifies as stable.
var (
	deadBandUpper = decimal.NewFromFloat(1.01)
	deadBandLower = decimal.NewFromFloat(0.99)
)

// Point is one entry in a report's timeline.
type Point struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Report aggregates one SKU's price movement over a window.
// Derived on demand, never persisted.
type Report struct {
	Key              pricing.SKUKey  `json:"key"`
	Description      string          `json:"description,omitempty"`
	DataPoints       int             `json:"data_points"`
	FirstPrice       decimal.Decimal `json:"first_price"`
	LastPrice        decimal.Decimal `json:"last_price"`
	MinPrice         decimal.Decimal `json:"min_price"`
	MaxPrice         decimal.Decimal `json:"max_price"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	PercentageChange decimal.Decimal `json:"percentage_change"`
	Direction        Direction       `json:"direction"`
	Timeline         []Point         `json:"timeline"`
}

// Analyze computes a trend report over one SKU's in-window history.
// This is a PURE function - history must already be windowed and
// timestamp-ascending.
func Analyze(history []pricing.Observation) (Report, error) {
	if len(history) == 0 {
		return Report{}, ErrInsufficientData
	}

	first := history[0]
	last := history[len(history)-1]
	if first.PricePerUnit.IsZero() {
		return Report{}, ErrUndefinedBaseline
	}

	minPrice := first.PricePerUnit
	maxPrice := first.PricePerUnit
	sum := decimal.Zero
	timeline := make([]Point, 0, len(history))
	for _, o := range history {
		p := o.PricePerUnit
		if p.LessThan(minPrice) {
			minPrice = p
		}
		if p.GreaterThan(maxPrice) {
			maxPrice = p
		}
		sum = sum.Add(p)
		timeline = append(timeline, Point{Timestamp: o.Timestamp, Price: p})
	}

	pctChange := last.PricePerUnit.Sub(first.PricePerUnit).
		Div(first.PricePerUnit).
		Mul(decimal.NewFromInt(100))

	return Report{
		Key:              last.Key,
		Description:      last.Description,
		DataPoints:       len(history),
		FirstPrice:       first.PricePerUnit,
		LastPrice:        last.PricePerUnit,
		MinPrice:         minPrice,
		MaxPrice:         maxPrice,
		AveragePrice:     sum.Div(decimal.NewFromInt(int64(len(history)))).Round(6),
		PercentageChange: pctChange.Round(2),
		Direction:        classify(first.PricePerUnit, last.PricePerUnit),
		Timeline:         timeline,
	}, nil
}

// classify applies the dead-band: a move must exceed 1% of the first price in
// either direction to count as a trend.
func classify(first, last decimal.Decimal) Direction {
	switch {
	case last.GreaterThan(first.Mul(deadBandUpper)):
		return Increasing
	case last.LessThan(first.Mul(deadBandLower)):
		return Decreasing
	default:
		return Stable
	}
}
