// Package allowance computes how many basic and premium add-ons a plan
// includes once bonuses and slot swaps are applied.
//
// The allowance is recomputed from its four inputs every time rather than
// stored, so toggling an input never double-counts a bonus.
package allowance

import (
	"fmt"
	"time"

	"lawnquote/decision/catalog"
)

// Allowance is a plan's effective included add-on counts.
type Allowance struct {
	Basic   int `json:"basic"`
	Premium int `json:"premium"`

	// AppliedSwaps is the swap count after clamping.
	AppliedSwaps     int  `json:"applied_swaps"`
	AnniversaryBonus bool `json:"anniversary_bonus"`
	ExecutivePlus    bool `json:"executive_plus"`
}

// SwapOption is one entry of the swap picker.
type SwapOption struct {
	SwapCount int `json:"swap_count"`
	Basic     int `json:"basic"`
	Premium   int `json:"premium"`
}

// Resolver computes allowances against a catalog.
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver creates an allowance resolver
func NewResolver(c *catalog.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Effective returns the plan's allowance for the given swap count, evaluation
// date and Executive+ flag. swapCount is clamped to floor(basic/2) where basic
// already includes the date and Executive+ bonuses.
func (r *Resolver) Effective(planID catalog.PlanID, swapCount int, asOf time.Time, executivePlus bool) (Allowance, error) {
	plan, err := r.catalog.Plan(planID)
	if err != nil {
		return Allowance{}, fmt.Errorf("allowance: %w", err)
	}
	a := r.preSwap(plan, asOf, executivePlus)

	if plan.AllowsSwap && swapCount > 0 {
		swaps := min(swapCount, a.Basic/2)
		a.Basic -= 2 * swaps
		a.Premium += swaps
		a.AppliedSwaps = swaps
	}
	return a, nil
}

// SwapOptions tabulates Effective for every valid swap count, starting at 0.
func (r *Resolver) SwapOptions(planID catalog.PlanID, asOf time.Time, executivePlus bool) ([]SwapOption, error) {
	plan, err := r.catalog.Plan(planID)
	if err != nil {
		return nil, fmt.Errorf("swap options: %w", err)
	}
	maxSwaps := 0
	if plan.AllowsSwap {
		maxSwaps = r.preSwap(plan, asOf, executivePlus).Basic / 2
	}

	opts := make([]SwapOption, 0, maxSwaps+1)
	for k := 0; k <= maxSwaps; k++ {
		a, err := r.Effective(planID, k, asOf, executivePlus)
		if err != nil {
			return nil, err
		}
		opts = append(opts, SwapOption{SwapCount: k, Basic: a.Basic, Premium: a.Premium})
	}
	return opts, nil
}

func (r *Resolver) preSwap(plan catalog.Plan, asOf time.Time, executivePlus bool) Allowance {
	a := Allowance{
		Basic:   plan.IncludedBasicSlots,
		Premium: plan.IncludedPremiumSlots,
	}

	if r.catalog.AnniversaryWindow().Contains(asOf) {
		a.AnniversaryBonus = true
		if plan.AnniversaryBonusTier == catalog.TierPremium {
			a.Premium++
		} else {
			a.Basic++
		}
	}

	if executivePlus && plan.ExecutivePlusEligible {
		bonus := r.catalog.ExecutivePlusBonus()
		a.Basic += bonus.Basic
		a.Premium += bonus.Premium
		a.ExecutivePlus = true
	}
	return a
}
