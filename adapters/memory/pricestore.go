// Package memory provides in-memory implementations of storage ports,
// used in tests and for ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/ports"
)

// PriceStore is an in-memory implementation of ports.PriceStore.
// Appends serialize on the write lock; queries copy matching observations
// under the read lock so callers hold a consistent snapshot.
type PriceStore struct {
	mu  sync.RWMutex
	obs []pricing.Observation
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{}
}

// Append adds one observation.
func (s *PriceStore) Append(ctx context.Context, obs pricing.Observation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pricing.ErrDataIntegrity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, obs)
	return nil
}

// Query returns matching observations in ascending timestamp order.
func (s *PriceStore) Query(ctx context.Context, f pricing.Filter) ([]pricing.Observation, error) {
	s.mu.RLock()
	var matched []pricing.Observation
	for _, o := range s.obs {
		if f.Matches(o) {
			matched = append(matched, o)
		}
	}
	s.mu.RUnlock()

	pricing.SortByTime(matched)
	return matched, nil
}

// Latest returns the most recent observation for a SKU key.
func (s *PriceStore) Latest(ctx context.Context, key pricing.SKUKey) (pricing.Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []pricing.Observation
	for _, o := range s.obs {
		if o.Key == key {
			matched = append(matched, o)
		}
	}
	return latest(matched)
}

func latest(obs []pricing.Observation) (pricing.Observation, bool, error) {
	o, ok := pricing.Latest(obs)
	return o, ok, nil
}

// Count returns the total number of stored observations.
func (s *PriceStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obs), nil
}

// Close is a no-op for the in-memory store.
func (s *PriceStore) Close() error {
	return nil
}

// Ensure interface compliance.
var _ ports.PriceStore = (*PriceStore)(nil)
