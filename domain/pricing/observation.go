// Package pricing provides price observation value types and pure functions.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Store errors. Adapters wrap these so callers can errors.Is against them.
var (
	// ErrStorageUnavailable means the backing medium could not be read or written.
	ErrStorageUnavailable = errors.New("price storage unavailable")

	// ErrDataIntegrity means persisted content could not be parsed into a valid
	// observation. The store surfaces this instead of silently dropping records.
	ErrDataIntegrity = errors.New("price data integrity error")
)

// Well-known price types. The store accepts any tag; these are the ones the
// CSV importer infers from SKU descriptions.
const (
	TypeInput      = "input"
	TypeOutput     = "output"
	TypeStorage    = "storage"
	TypeEgress     = "egress"
	TypeOperations = "operations"
	TypeGeneration = "generation"
	TypeCPU        = "cpu"
	TypeMemory     = "memory"
	TypeUnknown    = "unknown"
)

// Observation origin values, stored under MetaSource.
const (
	MetaSource   = "source"
	SourceImport = "import"
	SourceManual = "manual"
	SourceAPI    = "api"
)

// SKUKey identifies one price time series (immutable value type).
type SKUKey struct {
	Service   string `json:"service"`
	SKUID     string `json:"sku_id"`
	PriceType string `json:"price_type"`
}

// String renders the key for logs and error messages.
func (k SKUKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Service, k.SKUID, k.PriceType)
}

// Observation is one recorded price point. Immutable once written; the store
// is append-only and observations are only ever superseded by newer ones for
// the same key.
type Observation struct {
	ID           string
	Key          SKUKey
	Description  string
	PricePerUnit decimal.Decimal
	Unit         string
	TierStart    *decimal.Decimal // tiered-usage start threshold, nil when flat
	Timestamp    time.Time
	Metadata     map[string]string
}

// Validate checks the invariants every observation must satisfy before it is
// appended. This is a PURE function.
func (o Observation) Validate() error {
	if o.Key.Service == "" {
		return errors.New("observation missing service")
	}
	if o.Key.SKUID == "" {
		return errors.New("observation missing sku_id")
	}
	if o.Key.PriceType == "" {
		return errors.New("observation missing price_type")
	}
	if o.PricePerUnit.IsNegative() {
		return fmt.Errorf("observation %s has negative price %s", o.Key, o.PricePerUnit)
	}
	if o.Timestamp.IsZero() {
		return errors.New("observation missing timestamp")
	}
	return nil
}

// Filter selects observations. Zero-value fields match everything.
type Filter struct {
	Service   string
	SKUID     string
	PriceType string
	Since     time.Time
}

// Matches reports whether an observation passes the filter.
// This is a PURE function.
func (f Filter) Matches(o Observation) bool {
	if f.Service != "" && o.Key.Service != f.Service {
		return false
	}
	if f.SKUID != "" && o.Key.SKUID != f.SKUID {
		return false
	}
	if f.PriceType != "" && o.Key.PriceType != f.PriceType {
		return false
	}
	if !f.Since.IsZero() && o.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// SortByTime orders observations by ascending timestamp, in place.
// The sort is stable so same-instant records keep their append order.
func SortByTime(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})
}

// GroupByKey buckets observations by their SKUKey. Order within each bucket
// follows the input order. This is a PURE function.
func GroupByKey(obs []Observation) map[SKUKey][]Observation {
	groups := make(map[SKUKey][]Observation)
	for _, o := range obs {
		groups[o.Key] = append(groups[o.Key], o)
	}
	return groups
}

// Latest returns the most recent observation in the slice.
// This is a PURE function.
func Latest(obs []Observation) (Observation, bool) {
	if len(obs) == 0 {
		return Observation{}, false
	}
	latest := obs[0]
	for _, o := range obs[1:] {
		if !o.Timestamp.Before(latest.Timestamp) {
			latest = o
		}
	}
	return latest, true
}
