// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/tier"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// PriceStore persists price observations. The store is append-only:
// observations are never edited or deleted, only superseded by newer ones for
// the same SKU key. Appends from concurrent writers serialize against each
// other; queries observe a consistent snapshot without blocking writers.
type PriceStore interface {
	// Append durably adds one observation.
	Append(ctx context.Context, obs pricing.Observation) error

	// Query returns matching observations in ascending timestamp order.
	Query(ctx context.Context, f pricing.Filter) ([]pricing.Observation, error)

	// Latest returns the most recent observation for a SKU key, if any.
	Latest(ctx context.Context, key pricing.SKUKey) (pricing.Observation, bool, error)

	// Count returns the total number of stored observations.
	Count(ctx context.Context) (int, error)

	// Close releases the backing medium. The store is opened at process
	// start and closed at shutdown.
	Close() error
}

// -----------------------------------------------------------------------------
// Execution Ports
// -----------------------------------------------------------------------------

// Outcome is the result of invoking one tier once.
type Outcome struct {
	// Kind is empty on success; otherwise it classifies the failure.
	Kind fallback.FailureKind

	// Err carries detail for logging. Never inspected for control flow.
	Err error
}

// TierInvoker performs one attempt against a cognitive tier. Implementations
// live with the collaborator service layer (model clients); the engine only
// sees the outcome. Invoke must honor ctx cancellation - the executor imposes
// a per-attempt timeout through it.
type TierInvoker interface {
	Invoke(ctx context.Context, spec tier.Spec) Outcome
}

// TierInvokerFunc adapts a function to the TierInvoker interface.
type TierInvokerFunc func(ctx context.Context, spec tier.Spec) Outcome

// Invoke calls the wrapped function.
func (f TierInvokerFunc) Invoke(ctx context.Context, spec tier.Spec) Outcome {
	return f(ctx, spec)
}
