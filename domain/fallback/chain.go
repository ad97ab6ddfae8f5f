// Package fallback provides the pure escalation state machine walked by the
// executor when a tier fails recoverably.
package fallback

// State names the phases of one request's escalation walk.
type State string

const (
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// FailureKind classifies a single attempt's failure.
type FailureKind string

const (
	// KindTimeout and KindRateLimited are recoverable: the walk advances to
	// the next tier in the chain.
	KindTimeout     FailureKind = "timeout"
	KindRateLimited FailureKind = "rate_limited"

	// KindBadInput is fatal immediately; retrying a different tier cannot fix
	// malformed input.
	KindBadInput FailureKind = "bad_input"
)

// Retryable reports whether a failure kind drives escalation.
func (k FailureKind) Retryable() bool {
	return k == KindTimeout || k == KindRateLimited
}

// Reason is the terminal cause carried on a failed walk so the caller can
// render an accurate message.
type Reason string

const (
	ReasonChainExhausted   Reason = "chain_exhausted"
	ReasonBadInput         Reason = "bad_input"
	ReasonBudgetExceeded   Reason = "budget_exceeded"
	ReasonDeadlineExceeded Reason = "deadline_exceeded"
)

// Chains maps a first-choice tier name to the ordered tiers attempted after
// it fails. Static configuration, read-only at runtime.
type Chains map[string][]string

// Walk is the state of one request's escalation (value type). Transitions
// return a new Walk; callers never mutate one in place.
type Walk struct {
	State   State
	Current string   // tier being attempted, valid while State == StateAttempting
	Reason  Reason   // terminal cause, valid while State == StateFailed
	Visited []string // tiers attempted so far, in order
	pending []string
}

// Start begins a walk at the first-choice tier. The pending escalation path
// is fixed at start from the chain keyed by that tier.
// This is a PURE function.
func Start(chains Chains, first string) Walk {
	return Walk{
		State:   StateAttempting,
		Current: first,
		Visited: []string{first},
		pending: chains[first],
	}
}

// Succeed transitions the walk to its success terminal state.
func (w Walk) Succeed() Walk {
	w.State = StateSucceeded
	return w
}

// Fail transitions the walk for a failed attempt. Retryable kinds advance to
// the next unvisited tier in the chain; a fatal kind or an exhausted chain
// ends the walk. A tier is never revisited within one walk.
// This is a PURE function.
func (w Walk) Fail(kind FailureKind) Walk {
	if !kind.Retryable() {
		w.State = StateFailed
		w.Reason = ReasonBadInput
		return w
	}

	for len(w.pending) > 0 {
		next := w.pending[0]
		w.pending = w.pending[1:]
		if w.visited(next) {
			continue
		}
		w.Current = next
		w.Visited = append(w.Visited, next)
		return w
	}

	w.State = StateFailed
	w.Reason = ReasonChainExhausted
	return w
}

// Abort ends the walk early with the given terminal reason, without another
// attempt. Used for budget and deadline stops.
func (w Walk) Abort(reason Reason) Walk {
	w.State = StateFailed
	w.Reason = reason
	return w
}

func (w Walk) visited(name string) bool {
	for _, v := range w.Visited {
		if v == name {
			return true
		}
	}
	return false
}
