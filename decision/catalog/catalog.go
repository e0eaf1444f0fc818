// Package catalog provides the immutable plan, add-on, term and promotion
// configuration shared by every pricing component.
//
// A Catalog is built once at process start (Default or Load), validated, and
// then passed by pointer. Nothing in the module mutates it afterwards, so it
// may be read from any number of goroutines without locking.
package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	qerrors "lawnquote/pkg/errors"
)

// PlanID identifies a subscription tier.
type PlanID string

const (
	PlanBasic     PlanID = "basic"
	PlanPremium   PlanID = "premium"
	PlanExecutive PlanID = "executive"
)

// AddonTier is the allowance bucket an add-on counts against.
type AddonTier string

const (
	TierBasic   AddonTier = "basic"
	TierPremium AddonTier = "premium"
)

// TermID identifies a contract length.
type TermID string

const (
	TermMonthToMonth TermID = "month-to-month"
	TermOneYear      TermID = "1-year"
	TermTwoYear      TermID = "2-year"
	TermThreeYear    TermID = "3-year"
)

// Segment is a customer group that may qualify for a discount.
type Segment string

const (
	SegmentRenter  Segment = "renter"
	SegmentVeteran Segment = "veteran"
	SegmentSenior  Segment = "senior"
)

// Segments lists every known customer segment.
func Segments() []Segment {
	return []Segment{SegmentRenter, SegmentVeteran, SegmentSenior}
}

// ValidSegment reports whether s is a known segment.
func ValidSegment(s Segment) bool {
	switch s {
	case SegmentRenter, SegmentVeteran, SegmentSenior:
		return true
	}
	return false
}

// Plan is a subscription tier.
type Plan struct {
	ID                   PlanID          `json:"id"`
	Name                 string          `json:"name"`
	BasePrice            decimal.Decimal `json:"base_price"`
	IncludedBasicSlots   int             `json:"included_basic_slots"`
	IncludedPremiumSlots int             `json:"included_premium_slots"`
	// AllowsSwap permits converting 2 basic slots into 1 premium slot.
	AllowsSwap bool `json:"allows_swap"`
	// AnniversaryBonusTier receives the +1 slot while the anniversary window is open.
	AnniversaryBonusTier AddonTier `json:"anniversary_bonus_tier"`
	// ExecutivePlusEligible marks the tier that can buy the Executive+ upgrade.
	ExecutivePlusEligible bool `json:"executive_plus_eligible"`
}

// Addon is an optional service billed against a tier allowance.
type Addon struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Tier         AddonTier       `json:"tier"`
	OveragePrice decimal.Decimal `json:"overage_price"`
}

// YardSize scales a plan's base price.
type YardSize struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Term is a contract length. FreeMonths is the value of the matching
// termFreeMonths promotion; Months is used to amortize free months.
type Term struct {
	ID         TermID `json:"id"`
	Label      string `json:"label"`
	Months     int    `json:"months"`
	FreeMonths int    `json:"free_months"`
}

// Window is a time range, inclusive at both ends.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the window (start <= t <= end).
func (w Window) Contains(t time.Time) bool {
	if w.IsZero() {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Slots is a pair of basic/premium slot counts.
type Slots struct {
	Basic   int `json:"basic" yaml:"basic"`
	Premium int `json:"premium" yaml:"premium"`
}

// Caps bound the aggregate discount after stacking.
type Caps struct {
	MaxPercentOff int `json:"max_percent_off" yaml:"max_percent_off"`
	MaxFreeMonths int `json:"max_free_months" yaml:"max_free_months"`
}

// EarlyBird configures the decaying early sign-up promotion.
type EarlyBird struct {
	Title     string `json:"title"`
	Window    Window `json:"window"`
	MaxMonths int    `json:"max_months"`
	// BucketDays is the length of one decay step (30 days).
	BucketDays int `json:"bucket_days"`
}

// PromoCode is a partner/HOA code worth a percent discount.
type PromoCode struct {
	Code     string `json:"code" yaml:"code"`
	Discount int    `json:"discount" yaml:"discount"`
	Partner  string `json:"partner" yaml:"partner"`
}

// Catalog is the immutable pricing configuration.
type Catalog struct {
	plans      map[PlanID]Plan
	planOrder  []PlanID
	addons     map[string]Addon
	addonOrder []string
	yards      map[string]YardSize
	yardOrder  []string
	terms      map[TermID]Term
	termOrder  []TermID

	basicOverage   decimal.Decimal
	premiumOverage decimal.Decimal
	savingsRate    decimal.Decimal

	anniversary   Window
	executivePlus Slots
	earlyBird     EarlyBird
	caps          Caps
	promotions    []Promotion
	codes         []PromoCode
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(id PlanID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, qerrors.NewNotFoundError("plan", string(id))
	}
	return p, nil
}

// Plans returns all plans in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.planOrder))
	for _, id := range c.planOrder {
		out = append(out, c.plans[id])
	}
	return out
}

// Addon returns the add-on with the given id.
func (c *Catalog) Addon(id string) (Addon, error) {
	a, ok := c.addons[id]
	if !ok {
		return Addon{}, qerrors.NewNotFoundError("addon", id)
	}
	return a, nil
}

// Addons returns all add-ons in catalog order.
func (c *Catalog) Addons() []Addon {
	out := make([]Addon, 0, len(c.addonOrder))
	for _, id := range c.addonOrder {
		out = append(out, c.addons[id])
	}
	return out
}

// YardSize returns the yard size with the given id.
func (c *Catalog) YardSize(id string) (YardSize, error) {
	y, ok := c.yards[id]
	if !ok {
		return YardSize{}, qerrors.NewNotFoundError("yard_size", id)
	}
	return y, nil
}

// YardSizes returns all yard sizes in catalog order.
func (c *Catalog) YardSizes() []YardSize {
	out := make([]YardSize, 0, len(c.yardOrder))
	for _, id := range c.yardOrder {
		out = append(out, c.yards[id])
	}
	return out
}

// Term returns the term with the given id.
func (c *Catalog) Term(id TermID) (Term, error) {
	t, ok := c.terms[id]
	if !ok {
		return Term{}, qerrors.NewNotFoundError("term", string(id))
	}
	return t, nil
}

// Terms returns all terms in catalog order.
func (c *Catalog) Terms() []Term {
	out := make([]Term, 0, len(c.termOrder))
	for _, id := range c.termOrder {
		out = append(out, c.terms[id])
	}
	return out
}

// OveragePrice returns the flat monthly price of one add-on beyond the allowance.
func (c *Catalog) OveragePrice(tier AddonTier) decimal.Decimal {
	if tier == TierPremium {
		return c.premiumOverage
	}
	return c.basicOverage
}

// SavingsRate is the legacy promotional rate used for the year-over-year comparison.
func (c *Catalog) SavingsRate() decimal.Decimal { return c.savingsRate }

// AnniversaryWindow returns the window in which plans earn a bonus slot.
func (c *Catalog) AnniversaryWindow() Window { return c.anniversary }

// ExecutivePlusBonus returns the extra slots granted by the Executive+ upgrade.
func (c *Catalog) ExecutivePlusBonus() Slots { return c.executivePlus }

// EarlyBird returns the early sign-up promotion config.
func (c *Catalog) EarlyBird() EarlyBird { return c.earlyBird }

// Caps returns the stacking caps.
func (c *Catalog) Caps() Caps { return c.caps }

// Promotions returns a copy of the static promotion list.
func (c *Catalog) Promotions() []Promotion {
	out := make([]Promotion, len(c.promotions))
	for i, p := range c.promotions {
		out[i] = p.Clone()
	}
	return out
}

// PromoCodes returns a copy of the promo code table.
func (c *Catalog) PromoCodes() []PromoCode {
	return append([]PromoCode(nil), c.codes...)
}

// NormalizeCode trims and upper-cases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func sortedPromotions(in []Promotion) []Promotion {
	out := make([]Promotion, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}
