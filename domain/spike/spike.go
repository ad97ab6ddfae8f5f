// Package spike provides pure price spike detection.
// All functions are deterministic - same input always produces same output.
package spike

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/pricing"
)

// Severity classifies the magnitude of a detected spike.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// band maps a minimum percentage increase to a severity.
type band struct {
	min      decimal.Decimal
	severity Severity
}

// severityBands is evaluated top-down; the first satisfied band wins.
// These are fixed policy constants, independent of the caller-supplied
// detection threshold (which only gates inclusion).
var severityBands = []band{
	{decimal.NewFromInt(50), SeverityCritical},
	{decimal.NewFromInt(25), SeverityHigh},
	{decimal.NewFromInt(15), SeverityMedium},
	{decimal.NewFromInt(10), SeverityLow},
}

// Classify maps a percentage increase to its severity band.
// Increases below every band floor classify as low.
// This is a PURE function.
func Classify(pctIncrease decimal.Decimal) Severity {
	for _, b := range severityBands {
		if pctIncrease.GreaterThanOrEqual(b.min) {
			return b.severity
		}
	}
	return SeverityLow
}

// Rank orders severities for sorting; higher is more severe.
func Rank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Spike is a detected price increase between the two most recent
// observations of one SKU. Derived on demand, never persisted.
type Spike struct {
	Key                pricing.SKUKey  `json:"key"`
	Description        string          `json:"description,omitempty"`
	PreviousPrice      decimal.Decimal `json:"previous_price"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	AbsoluteIncrease   decimal.Decimal `json:"absolute_increase"`
	PercentageIncrease decimal.Decimal `json:"percentage_increase"`
	Severity           Severity        `json:"severity"`
	DaysSinceLastCheck int             `json:"days_since_last_check"`
	DetectedAt         time.Time       `json:"detected_at"`
}

// Detect compares the two most recent observations in one SKU's history and
// reports a spike when the increase meets thresholdPct (inclusive).
// This is a PURE function - history must already be timestamp-ascending.
//
// No spike is reported when:
//   - fewer than two observations exist
//   - the previous price is zero (undefined baseline, skipped not raised)
//   - the price decreased or increased below the threshold
func Detect(history []pricing.Observation, thresholdPct decimal.Decimal) (Spike, bool) {
	if len(history) < 2 {
		return Spike{}, false
	}

	curr := history[len(history)-1]
	prev := history[len(history)-2]

	if prev.PricePerUnit.IsZero() {
		return Spike{}, false
	}

	abs := curr.PricePerUnit.Sub(prev.PricePerUnit)
	pct := abs.Div(prev.PricePerUnit).Mul(decimal.NewFromInt(100))
	if pct.LessThan(thresholdPct) || !abs.IsPositive() {
		return Spike{}, false
	}

	days := int(curr.Timestamp.Sub(prev.Timestamp).Hours() / 24)

	return Spike{
		Key:                curr.Key,
		Description:        curr.Description,
		PreviousPrice:      prev.PricePerUnit,
		CurrentPrice:       curr.PricePerUnit,
		AbsoluteIncrease:   abs,
		PercentageIncrease: pct.Round(2),
		Severity:           Classify(pct),
		DaysSinceLastCheck: days,
		DetectedAt:         curr.Timestamp,
	}, true
}

// Sort orders spikes by descending severity, then descending percentage
// increase, in place.
func Sort(spikes []Spike) {
	sort.SliceStable(spikes, func(i, j int) bool {
		ri, rj := Rank(spikes[i].Severity), Rank(spikes[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return spikes[i].PercentageIncrease.GreaterThan(spikes[j].PercentageIncrease)
	})
}
