package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/adapters/metrics"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/tier"
	"github.com/whovisions/costgate/ports"
)

var million = decimal.NewFromInt(1_000_000)

// costPrecision is the fixed currency precision for estimates.
const costPrecision = 6

// SpecSource supplies the current tier specs. The config holder implements
// this so hot reloads take effect without restarting consumers.
type SpecSource func() []tier.Spec

// Estimator computes the monetary cost of a request. Per side (input/output)
// it prefers the freshest live store observation for the tier's mapped SKU,
// falling back to the tier's static pricing. It never fails on missing live
// data; only an unknown tier name is an error.
type Estimator struct {
	store   ports.PriceStore
	specs   SpecSource
	clock   ports.Clock
	maxAge  time.Duration // 0 = live observations never expire
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// EstimatorDeps contains dependencies for the estimator service.
type EstimatorDeps struct {
	Store   ports.PriceStore
	Specs   SpecSource
	Clock   ports.Clock
	MaxAge  time.Duration
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// NewEstimator creates an estimator service.
func NewEstimator(deps EstimatorDeps) *Estimator {
	return &Estimator{
		store:   deps.Store,
		specs:   deps.Specs,
		clock:   deps.Clock,
		maxAge:  deps.MaxAge,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "estimator").Logger(),
	}
}

// Estimate returns the cost of a request against the named tier, rounded to
// six decimal places.
func (e *Estimator) Estimate(ctx context.Context, tierName string, inputTokens, outputTokens int64) (decimal.Decimal, error) {
	spec, ok := tier.Find(e.specs(), tierName)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", tier.ErrUnknown, tierName)
	}

	inPrice := e.resolvePrice(ctx, spec, spec.InputSKU, spec.InputPerMillion, "input")
	outPrice := e.resolvePrice(ctx, spec, spec.OutputSKU, spec.OutputPerMillion, "output")

	cost := decimal.NewFromInt(inputTokens).Div(million).Mul(inPrice).
		Add(decimal.NewFromInt(outputTokens).Div(million).Mul(outPrice))
	return cost.Round(costPrecision), nil
}

// resolvePrice prefers a fresh live observation for the mapped SKU and falls
// back to the static spec price. Store failures also fall back: the static
// table guarantees a result.
func (e *Estimator) resolvePrice(ctx context.Context, spec tier.Spec, sku pricing.SKUKey, static decimal.Decimal, side string) decimal.Decimal {
	if sku == (pricing.SKUKey{}) {
		return static
	}

	obs, ok, err := e.store.Latest(ctx, sku)
	if err != nil {
		e.logger.Warn().Err(err).Str("sku", sku.String()).Msg("live price lookup failed, using static price")
		e.metrics.EstimateFallbacks.WithLabelValues(spec.Name, side).Inc()
		return static
	}
	if !ok || e.stale(obs) {
		e.metrics.EstimateFallbacks.WithLabelValues(spec.Name, side).Inc()
		return static
	}
	return obs.PricePerUnit
}

func (e *Estimator) stale(obs pricing.Observation) bool {
	if e.maxAge <= 0 {
		return false
	}
	return e.clock.Now().Sub(obs.Timestamp) > e.maxAge
}
