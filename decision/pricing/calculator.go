// Package pricing derives plan base prices and add-on overage charges from
// the catalog.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lawnquote/decision/catalog"
)

var (
	half = decimal.RequireFromString("0.5")
	one  = decimal.NewFromInt(1)
	five = decimal.NewFromInt(5)
)

// Round rounds to the nearest whole unit, halves toward positive infinity.
// This matches the Math.round behaviour the quote wizard displays.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// Overage is the add-on charge beyond a plan's allowance.
type Overage struct {
	BasicOverageCount   int             `json:"basic_overage_count"`
	PremiumOverageCount int             `json:"premium_overage_count"`
	TotalOverageCost    decimal.Decimal `json:"total_overage_cost"`
}

// LegacyComparison is the "this year vs last year" price pair.
type LegacyComparison struct {
	BasePrice        decimal.Decimal `json:"base_price"`
	PromotionalPrice decimal.Decimal `json:"promotional_price"`
	StandardPrice    decimal.Decimal `json:"standard_price"`
	SavingsRate      decimal.Decimal `json:"savings_rate"`
}

// Calculator prices plans and overage against a catalog.
type Calculator struct {
	catalog *catalog.Catalog
}

// NewCalculator creates a price calculator
func NewCalculator(c *catalog.Catalog) *Calculator {
	return &Calculator{catalog: c}
}

// BasePrice returns the plan's monthly price scaled by the yard multiplier,
// rounded to a whole currency unit. Unknown ids fail with a NOT_FOUND error.
func (c *Calculator) BasePrice(planID catalog.PlanID, yardID string) (decimal.Decimal, error) {
	plan, err := c.catalog.Plan(planID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("base price: %w", err)
	}
	yard, err := c.catalog.YardSize(yardID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("base price: %w", err)
	}
	return Round(plan.BasePrice.Mul(yard.Multiplier)), nil
}

// Overage charges the flat per-tier price for every selected add-on beyond
// the effective allowance.
func (c *Calculator) Overage(selectedBasic, selectedPremium, allowBasic, allowPremium int) Overage {
	basic := overageCount(selectedBasic, allowBasic)
	premium := overageCount(selectedPremium, allowPremium)

	cost := c.catalog.OveragePrice(catalog.TierBasic).Mul(decimal.NewFromInt(int64(basic))).
		Add(c.catalog.OveragePrice(catalog.TierPremium).Mul(decimal.NewFromInt(int64(premium))))

	return Overage{
		BasicOverageCount:   basic,
		PremiumOverageCount: premium,
		TotalOverageCost:    cost,
	}
}

// LegacyComparison applies the catalog savings rate to the plan's base price.
func (c *Calculator) LegacyComparison(planID catalog.PlanID, yardID string) (LegacyComparison, error) {
	base, err := c.BasePrice(planID, yardID)
	if err != nil {
		return LegacyComparison{}, err
	}
	rate := c.catalog.SavingsRate()
	promo := PromotionalPrice(base, rate)
	return LegacyComparison{
		BasePrice:        base,
		PromotionalPrice: promo,
		StandardPrice:    StandardPrice(promo, rate),
		SavingsRate:      rate,
	}, nil
}

// PromotionalPrice is round(base × (1 − rate)).
func PromotionalPrice(base, rate decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(one.Sub(rate)))
}

// StandardPrice inverts PromotionalPrice and rounds to the nearest 5 for
// display: round(promo / (1 − rate) / 5) × 5.
func StandardPrice(promo, rate decimal.Decimal) decimal.Decimal {
	keep := one.Sub(rate)
	if !keep.IsPositive() {
		return promo
	}
	return Round(promo.Div(keep).Div(five)).Mul(five)
}

func overageCount(selected, allowance int) int {
	if allowance < 0 {
		allowance = 0
	}
	if selected <= allowance {
		return 0
	}
	return selected - allowance
}
