// Package degrade retries expensive visualization requests with
// progressively cheaper parameters. The retry policy is a declarative
// ladder of rungs; each failed attempt advances one rung and never climbs
// back up.
package degrade

import (
	"fmt"
	"time"
)

// RegionForm is how the region geometry is sent to the backend.
type RegionForm string

const (
	// RegionExact sends the full boundary polygon.
	RegionExact RegionForm = "exact"

	// RegionBoundingBox sends only the bounding box. Once a request has
	// degraded to the bounding box it never returns to the exact form.
	RegionBoundingBox RegionForm = "boundingBox"
)

// Rung is one cost level of the ladder. Dimensions is a cap on the longest
// image edge; the attempt uses min(requested, MaxDimensions).
type Rung struct {
	MaxDimensions int
	RegionForm    RegionForm
	Budget        time.Duration
}

// DefaultLadder is the standard four-rung policy: full request, then two
// quarter-size steps down to the 128 px floor with the region collapsed to
// its bounding box and the budget shortened for the cheaper request.
func DefaultLadder() []Rung {
	return []Rung{
		{MaxDimensions: 2048, RegionForm: RegionExact, Budget: 30 * time.Second},
		{MaxDimensions: 512, RegionForm: RegionBoundingBox, Budget: 20 * time.Second},
		{MaxDimensions: 128, RegionForm: RegionBoundingBox, Budget: 15 * time.Second},
		{MaxDimensions: 128, RegionForm: RegionBoundingBox, Budget: 10 * time.Second},
	}
}

// ValidateLadder rejects ladders whose cost is not monotonically
// non-increasing: dimensions and budgets must never grow between rungs, and
// the region form must never revert from bounding box to exact.
func ValidateLadder(rungs []Rung) error {
	if len(rungs) == 0 {
		return fmt.Errorf("ladder must have at least one rung")
	}
	for i, r := range rungs {
		if r.MaxDimensions <= 0 {
			return fmt.Errorf("rung %d: dimensions must be positive", i)
		}
		if r.Budget <= 0 {
			return fmt.Errorf("rung %d: budget must be positive", i)
		}
		if r.RegionForm != RegionExact && r.RegionForm != RegionBoundingBox {
			return fmt.Errorf("rung %d: unknown region form %q", i, r.RegionForm)
		}
		if i == 0 {
			continue
		}
		prev := rungs[i-1]
		if r.MaxDimensions > prev.MaxDimensions {
			return fmt.Errorf("rung %d: dimensions increase %d -> %d", i, prev.MaxDimensions, r.MaxDimensions)
		}
		if r.Budget > prev.Budget {
			return fmt.Errorf("rung %d: budget increases %v -> %v", i, prev.Budget, r.Budget)
		}
		if prev.RegionForm == RegionBoundingBox && r.RegionForm == RegionExact {
			return fmt.Errorf("rung %d: region form reverts to exact", i)
		}
	}
	return nil
}
