// Package promotion decides which discounts apply to a quote and how far
// they stack.
//
// Every surface (quote API, CLI, lead re-pricing) goes through the same
// Engine so the totals a customer sees never diverge between views.
package promotion

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lawnquote/decision/catalog"
)

// EntryStatus records how a promotion fared against its stack cap.
type EntryStatus string

const (
	StatusApplied EntryStatus = "applied"
	StatusCapped  EntryStatus = "capped"
	StatusZeroed  EntryStatus = "zeroed"
	StatusPending EntryStatus = "pending"
)

// Input is the subset of a quote's selections the engine looks at.
type Input struct {
	MonthlyTotal decimal.Decimal   `json:"monthly_total"`
	Term         catalog.TermID    `json:"term"`
	PayUpfront   bool              `json:"pay_upfront"`
	Segments     []catalog.Segment `json:"segments,omitempty"`
	HasReferral  bool              `json:"has_referral"`
	PromoCode    string            `json:"promo_code,omitempty"`
}

// Entry is one line of the savings breakdown.
type Entry struct {
	PromotionID string                `json:"promotion_id"`
	Title       string                `json:"title"`
	Type        catalog.PromotionType `json:"type"`
	StackGroup  catalog.StackGroup    `json:"stack_group"`
	Requested   int                   `json:"requested"`
	PercentOff  int                   `json:"percent_off,omitempty"`
	FreeMonths  int                   `json:"free_months,omitempty"`
	Savings     decimal.Decimal       `json:"savings"`
	Status      EntryStatus           `json:"status"`
}

// CapsHit reports which stack caps truncated at least one promotion.
type CapsHit struct {
	PercentOff bool `json:"percent_off"`
	FreeMonths bool `json:"free_months"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Eligible  []catalog.Promotion `json:"eligible"`
	Applied   []catalog.Promotion `json:"applied"`
	Pending   []catalog.Promotion `json:"pending"`
	Breakdown []Entry             `json:"breakdown"`

	CapApplied bool    `json:"cap_applied"`
	CapsHit    CapsHit `json:"caps_hit"`

	TotalPercentOff int             `json:"total_percent_off"`
	TotalFreeMonths int             `json:"total_free_months"`
	TotalSavings    decimal.Decimal `json:"total_savings"`

	// PromoCode is nil when no code was entered.
	PromoCode *CodeResult `json:"promo_code,omitempty"`
}

// AppliedTitles returns the titles of applied promotions in display order.
func (r Result) AppliedTitles() []string {
	out := make([]string, 0, len(r.Applied))
	for _, p := range r.Applied {
		out = append(out, p.Title)
	}
	return out
}

// Engine evaluates promotions. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	promotions []catalog.Promotion
	caps       catalog.Caps
	earlyBird  catalog.EarlyBird
	codes      CodeLookup
}

// NewEngine creates a promotion engine. Inactive promotions are dropped and
// the rest are stably sorted by DisplayOrder.
func NewEngine(promos []catalog.Promotion, caps catalog.Caps, earlyBird catalog.EarlyBird, codes CodeLookup) *Engine {
	active := make([]catalog.Promotion, 0, len(promos))
	for _, p := range promos {
		if p.Active {
			active = append(active, p.Clone())
		}
	}
	slices.SortStableFunc(active, func(a, b catalog.Promotion) int {
		return a.DisplayOrder - b.DisplayOrder
	})
	if codes == nil {
		codes = NewCodeTable(nil)
	}
	return &Engine{
		promotions: active,
		caps:       caps,
		earlyBird:  earlyBird,
		codes:      codes,
	}
}

// FromCatalog creates an engine over the catalog's promotions and codes.
func FromCatalog(c *catalog.Catalog) *Engine {
	return NewEngine(c.Promotions(), c.Caps(), c.EarlyBird(), NewCodeTable(c.PromoCodes()))
}

// WithCodes returns a copy of the engine resolving promo codes through codes.
func (e *Engine) WithCodes(codes CodeLookup) *Engine {
	cp := *e
	if codes != nil {
		cp.codes = codes
	}
	return &cp
}

// Evaluate applies early-bird, static promotions and the promo code, in that
// order, against the per-group caps. It never fails: unknown codes and cap
// overflow are reported in the result.
func (e *Engine) Evaluate(in Input, asOf time.Time) Result {
	s := newStacker(e.caps, in.MonthlyTotal)

	if months := EarlyBirdMonths(e.earlyBird, asOf); months > 0 {
		s.fold(earlyBirdPromotion(e.earlyBird, months))
	}

	for _, p := range e.promotions {
		if !matches(p.Eligibility, in) {
			continue
		}
		if p.Type == catalog.TypeReferralFreeMonth {
			s.pend(p.Clone())
			continue
		}
		s.fold(p.Clone())
	}

	if code := strings.TrimSpace(in.PromoCode); code != "" {
		cr := e.codes.Lookup(code)
		s.res.PromoCode = &cr
		if cr.Valid {
			s.fold(partnerPromotion(cr, e.lastDisplayOrder()+1))
		}
	}

	return s.result()
}

func (e *Engine) lastDisplayOrder() int {
	if len(e.promotions) == 0 {
		return 0
	}
	return e.promotions[len(e.promotions)-1].DisplayOrder
}

func matches(el catalog.Eligibility, in Input) bool {
	if el.IsEmpty() {
		return true
	}
	if el.Term != nil && *el.Term != in.Term {
		return false
	}
	if el.PayUpfront != nil && *el.PayUpfront != in.PayUpfront {
		return false
	}
	if el.Segment != nil && !slices.Contains(in.Segments, *el.Segment) {
		return false
	}
	if el.HasReferral != nil && *el.HasReferral != in.HasReferral {
		return false
	}
	return true
}

func partnerPromotion(cr CodeResult, order int) catalog.Promotion {
	title := cr.Name
	if title == "" {
		title = cr.Code
	}
	return catalog.Promotion{
		ID:           "code-" + strings.ToLower(cr.Code),
		Title:        title + " partner discount",
		Type:         catalog.TypePartnerCode,
		StackGroup:   catalog.GroupPercentOff,
		Value:        cr.Discount,
		DisplayOrder: order,
		Active:       true,
	}
}

// LookupCode resolves a promo code without evaluating anything else.
func (e *Engine) LookupCode(code string) CodeResult {
	return e.codes.Lookup(code)
}
