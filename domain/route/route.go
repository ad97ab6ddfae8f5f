// Package route provides pure cost-aware tier selection.
// All functions are deterministic - same input always produces same output.
package route

import (
	"github.com/whovisions/costgate/domain/tier"
)

// Complexity classifies an inbound task.
type Complexity string

const (
	Trivial  Complexity = "trivial"
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
	Extreme  Complexity = "extreme"
)

// Band maps a complexity level to its default tier.
type Band struct {
	Complexity Complexity
	Tier       string
}

// Table is the static routing policy (value type).
//
// Ladder lists tier names from cheapest to most expensive; it is the
// downgrade path. The first entry is the floor: it must be ungated and is
// always selectable, so routing never fails.
type Table struct {
	Bands  []Band
	Ladder []string
}

// Default returns the default tier for a complexity level. Unknown levels
// fall back to the simple band, then to the ladder floor.
// This is a PURE function.
func (t Table) Default(c Complexity) string {
	for _, b := range t.Bands {
		if b.Complexity == c {
			return b.Tier
		}
	}
	for _, b := range t.Bands {
		if b.Complexity == Simple {
			return b.Tier
		}
	}
	if len(t.Ladder) > 0 {
		return t.Ladder[0]
	}
	return ""
}

// Select picks the tier that should serve a task.
// This is a PURE function.
//
// Starting from the complexity band's default tier, the caller is walked down
// the ladder until it reaches a tier it is entitled to. If nearLimit is set
// (the chosen tier is near its rate-limit ceiling, a signal supplied by the
// caller), one further downgrade step is taken, again honoring entitlement.
// The ladder floor is ungated, so a tier is always found.
func Select(specs []tier.Spec, t Table, c Complexity, sub tier.Subscription, nearLimit bool) string {
	idx := ladderIndex(t.Ladder, t.Default(c))
	if idx < 0 {
		idx = len(t.Ladder) - 1
	}

	idx = entitledAt(specs, t.Ladder, idx, sub)
	if nearLimit && idx > 0 {
		idx = entitledAt(specs, t.Ladder, idx-1, sub)
	}
	return t.Ladder[idx]
}

// entitledAt walks down from idx to the nearest tier the caller may use.
func entitledAt(specs []tier.Spec, ladder []string, idx int, sub tier.Subscription) int {
	for ; idx > 0; idx-- {
		s, ok := tier.Find(specs, ladder[idx])
		if ok && tier.IsEntitled(s, sub) {
			return idx
		}
	}
	return 0
}

func ladderIndex(ladder []string, name string) int {
	for i, n := range ladder {
		if n == name {
			return i
		}
	}
	return -1
}
