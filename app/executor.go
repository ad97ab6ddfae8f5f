package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/adapters/metrics"
	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/route"
	"github.com/whovisions/costgate/domain/tier"
	"github.com/whovisions/costgate/ports"
)

// RoutingSource supplies the current routing table and fallback chains.
type RoutingSource func() (route.Table, fallback.Chains)

// Executor routes a task to a tier and walks the fallback chain on
// recoverable failure. Attempts are strictly sequential per request;
// independent requests share nothing mutable.
type Executor struct {
	estimator      *Estimator
	specs          SpecSource
	routing        RoutingSource
	clock          ports.Clock
	attemptTimeout time.Duration
	metrics        *metrics.Collector
	logger         zerolog.Logger
}

// ExecutorDeps contains dependencies for the executor service.
type ExecutorDeps struct {
	Estimator      *Estimator
	Specs          SpecSource
	Routing        RoutingSource
	Clock          ports.Clock
	AttemptTimeout time.Duration
	Metrics        *metrics.Collector
	Logger         zerolog.Logger
}

// NewExecutor creates an executor service.
func NewExecutor(deps ExecutorDeps) *Executor {
	timeout := deps.AttemptTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		estimator:      deps.Estimator,
		specs:          deps.Specs,
		routing:        deps.Routing,
		clock:          deps.Clock,
		attemptTimeout: timeout,
		metrics:        deps.Metrics,
		logger:         deps.Logger.With().Str("component", "executor").Logger(),
	}
}

// ExecRequest is the ephemeral per-task context. It is owned by the Execute
// invocation that receives it and discarded when that invocation returns.
type ExecRequest struct {
	Complexity    route.Complexity
	Subscription  tier.Subscription
	NearRateLimit bool
	InputTokens   int64
	OutputTokens  int64

	// Budget caps the estimated cost accumulated across all attempts.
	// Zero means unlimited.
	Budget decimal.Decimal

	// Deadline bounds the sum of all attempt timeouts. Zero means none.
	Deadline time.Time
}

// ExecResult reports the terminal state of one escalation walk.
type ExecResult struct {
	State         fallback.State
	Reason        fallback.Reason // set when State is failed
	Tier          string          // tier that served the request, on success
	Attempts      int
	TiersTried    []string
	EstimatedCost decimal.Decimal
}

// Succeeded reports whether the request was served.
func (r ExecResult) Succeeded() bool {
	return r.State == fallback.StateSucceeded
}

// Execute routes the request to its first-choice tier and attempts it,
// escalating along the fallback chain on retryable failures. Before each
// attempt it checks the budget ceiling and the request deadline; either stop
// happens before the attempt is issued, so no cost beyond completed attempts
// is ever counted. It returns an error only for configuration problems
// (unknown tier); operational failures are reported in the result.
func (e *Executor) Execute(ctx context.Context, req ExecRequest, invoker ports.TierInvoker) (ExecResult, error) {
	table, chains := e.routing()
	first := route.Select(e.specs(), table, req.Complexity, req.Subscription, req.NearRateLimit)
	walk := fallback.Start(chains, first)
	accumulated := decimal.Zero
	attempts := 0

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	for walk.State == fallback.StateAttempting {
		spec, ok := tier.Find(e.specs(), walk.Current)
		if !ok {
			return ExecResult{}, fmt.Errorf("execute: %w: %q", tier.ErrUnknown, walk.Current)
		}

		attemptCost, err := e.estimator.Estimate(ctx, walk.Current, req.InputTokens, req.OutputTokens)
		if err != nil {
			return ExecResult{}, fmt.Errorf("execute: %w", err)
		}

		if !req.Budget.IsZero() && accumulated.Add(attemptCost).GreaterThan(req.Budget) {
			walk = walk.Abort(fallback.ReasonBudgetExceeded)
			break
		}
		if !req.Deadline.IsZero() && !e.clock.Now().Before(req.Deadline) {
			walk = walk.Abort(fallback.ReasonDeadlineExceeded)
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		outcome := invoker.Invoke(attemptCtx, spec)
		cancel()

		attempts++
		accumulated = accumulated.Add(attemptCost)

		if outcome.Kind == "" {
			e.metrics.ExecutorAttempts.WithLabelValues(spec.Name, "success").Inc()
			walk = walk.Succeed()
			break
		}

		e.metrics.ExecutorAttempts.WithLabelValues(spec.Name, string(outcome.Kind)).Inc()
		e.logger.Warn().
			Str("tier", spec.Name).
			Str("kind", string(outcome.Kind)).
			Err(outcome.Err).
			Msg("attempt failed")
		walk = walk.Fail(outcome.Kind)
	}

	result := ExecResult{
		State:         walk.State,
		Reason:        walk.Reason,
		Attempts:      attempts,
		TiersTried:    walk.Visited[:attempts],
		EstimatedCost: accumulated,
	}
	if walk.State == fallback.StateSucceeded {
		result.Tier = walk.Current
		e.metrics.ExecutorOutcomes.WithLabelValues("success").Inc()
	} else {
		e.metrics.ExecutorOutcomes.WithLabelValues(string(walk.Reason)).Inc()
	}

	e.logger.Info().
		Str("state", string(walk.State)).
		Str("reason", string(walk.Reason)).
		Int("attempts", attempts).
		Str("estimated_cost", accumulated.String()).
		Msg("execution finished")
	return result, nil
}
