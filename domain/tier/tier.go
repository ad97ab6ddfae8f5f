// Package tier provides cognitive tier value types and pure functions.
package tier

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/pricing"
)

// ErrUnknown means a tier name has no spec. This is a configuration error,
// not a runtime condition, and is always fatal to the caller.
var ErrUnknown = errors.New("unknown tier")

// Subscription is a caller's subscription level.
type Subscription string

const (
	SubFree Subscription = "free"
	SubPlus Subscription = "plus"
	SubPro  Subscription = "pro"
)

// subscriptionRank orders subscription levels. Unknown levels rank lowest.
func subscriptionRank(s Subscription) int {
	switch s {
	case SubPro:
		return 2
	case SubPlus:
		return 1
	default:
		return 0
	}
}

// Spec describes one cognitive tier (immutable value type). The per-million
// prices are the static fallback used when no live observation exists for the
// mapped SKUs.
type Spec struct {
	Name             string
	ModelID          string
	Description      string
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
	InputSKU         pricing.SKUKey
	OutputSKU        pricing.SKUKey
	MinSubscription  Subscription // empty = no subscription gate
	RequestsPerMinute int
	TokensPerMinute   int64
}

// Find locates a spec by tier name.
// This is a PURE function.
func Find(specs []Spec, name string) (Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// IsEntitled reports whether a caller at the given subscription level may use
// the tier. Ungated tiers are open to everyone.
// This is a PURE function.
func IsEntitled(s Spec, sub Subscription) bool {
	if s.MinSubscription == "" {
		return true
	}
	return subscriptionRank(sub) >= subscriptionRank(s.MinSubscription)
}
