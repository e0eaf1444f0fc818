// Package quote is the single entry point every surface uses to price a set
// of selections: base price, allowance, overage, promotions and totals.
package quote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lawnquote/decision/allowance"
	"lawnquote/decision/catalog"
	"lawnquote/decision/pricing"
	"lawnquote/decision/promotion"
	"lawnquote/decision/totals"
	qerrors "lawnquote/pkg/errors"
)

// Selections is everything the customer picked in the wizard.
type Selections struct {
	YardSizeID      string            `json:"yard_size"`
	PlanID          catalog.PlanID    `json:"plan"`
	BasicAddonIDs   []string          `json:"basic_addons,omitempty"`
	PremiumAddonIDs []string          `json:"premium_addons,omitempty"`
	Term            catalog.TermID    `json:"term"`
	PayUpfront      bool              `json:"pay_upfront"`
	Segments        []catalog.Segment `json:"segments,omitempty"`
	HasReferral     bool              `json:"has_referral"`
	ExecutivePlus   bool              `json:"executive_plus"`
	SwapCount       int               `json:"swap_count"`
	PromoCode       string            `json:"promo_code,omitempty"`

	// AsOf is the evaluation instant for date-bound bonuses. Required.
	AsOf time.Time `json:"as_of"`
}

// UnmarshalJSON accepts as_of in any form ParseAsOf does and rejects
// unknown fields.
func (s *Selections) UnmarshalJSON(data []byte) error {
	type plain Selections
	var wire struct {
		plain
		AsOf string `json:"as_of"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return err
	}
	asOf, err := ParseAsOf(wire.AsOf)
	if err != nil {
		return err
	}
	*s = Selections(wire.plain)
	s.AsOf = asOf
	return nil
}

// ParseAsOf parses an evaluation instant given as RFC 3339 or as a plain
// YYYY-MM-DD date (midnight UTC). An empty string is the zero time.
func ParseAsOf(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, qerrors.NewInvalidInputError("as_of", "as_of must be RFC3339 or YYYY-MM-DD")
}

// LineItem is one row of the monthly price build-up.
type LineItem struct {
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Quote is a fully priced set of selections.
type Quote struct {
	ID         uuid.UUID  `json:"id"`
	Selections Selections `json:"selections"`
	PlanName   string     `json:"plan_name"`
	TermLabel  string     `json:"term_label"`

	BasePrice    decimal.Decimal     `json:"base_price"`
	Allowance    allowance.Allowance `json:"allowance"`
	Overage      pricing.Overage     `json:"overage"`
	MonthlyTotal decimal.Decimal     `json:"monthly_total"`
	LineItems    []LineItem          `json:"line_items"`

	Promotions promotion.Result         `json:"promotions"`
	Totals     totals.AppliedTotals     `json:"totals"`
	Legacy     pricing.LegacyComparison `json:"legacy"`

	QuotedAt time.Time `json:"quoted_at"`
}

// Engine wires the pricing components over one catalog.
type Engine struct {
	catalog    *catalog.Catalog
	calculator *pricing.Calculator
	resolver   *allowance.Resolver
	promotions *promotion.Engine
	projector  *totals.Projector
	now        func() time.Time
}

// NewEngine creates a quote engine. A nil logger uses slog.Default().
func NewEngine(c *catalog.Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		catalog:    c,
		calculator: pricing.NewCalculator(c),
		resolver:   allowance.NewResolver(c),
		promotions: promotion.FromCatalog(c),
		projector:  totals.NewProjector(logger),
		now:        time.Now,
	}
}

// WithCodes resolves promo codes through codes instead of the catalog table.
func (e *Engine) WithCodes(codes promotion.CodeLookup) *Engine {
	e.promotions = e.promotions.WithCodes(codes)
	return e
}

// WithClock overrides the clock used for QuotedAt.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Catalog returns the catalog the engine prices against.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Promotions returns the promotion engine.
func (e *Engine) Promotions() *promotion.Engine { return e.promotions }

// SwapOptions lists the swap picker entries for a plan.
func (e *Engine) SwapOptions(planID catalog.PlanID, asOf time.Time, executivePlus bool) ([]allowance.SwapOption, error) {
	return e.resolver.SwapOptions(planID, asOf, executivePlus)
}

// Quote prices sel. Unknown ids fail with NOT_FOUND; malformed selections
// fail with INVALID_INPUT.
func (e *Engine) Quote(sel Selections) (*Quote, error) {
	if err := e.Validate(sel); err != nil {
		return nil, err
	}

	plan, err := e.catalog.Plan(sel.PlanID)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	term, err := e.catalog.Term(sel.Term)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	base, err := e.calculator.BasePrice(sel.PlanID, sel.YardSizeID)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	allow, err := e.resolver.Effective(sel.PlanID, sel.SwapCount, sel.AsOf, sel.ExecutivePlus)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	legacy, err := e.calculator.LegacyComparison(sel.PlanID, sel.YardSizeID)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	overage := e.calculator.Overage(len(sel.BasicAddonIDs), len(sel.PremiumAddonIDs), allow.Basic, allow.Premium)
	monthly := base.Add(overage.TotalOverageCost)

	res := e.promotions.Evaluate(promotion.Input{
		MonthlyTotal: monthly,
		Term:         sel.Term,
		PayUpfront:   sel.PayUpfront,
		Segments:     sel.Segments,
		HasReferral:  sel.HasReferral,
		PromoCode:    sel.PromoCode,
	}, sel.AsOf)

	return &Quote{
		ID:           uuid.New(),
		Selections:   sel,
		PlanName:     plan.Name,
		TermLabel:    term.Label,
		BasePrice:    base,
		Allowance:    allow,
		Overage:      overage,
		MonthlyTotal: monthly,
		LineItems:    e.lineItems(plan, sel.YardSizeID, base, overage),
		Promotions:   res,
		Totals:       e.projector.Project(monthly, res, term),
		Legacy:       legacy,
		QuotedAt:     e.now().UTC(),
	}, nil
}

func (e *Engine) lineItems(plan catalog.Plan, yardID string, base decimal.Decimal, o pricing.Overage) []LineItem {
	items := []LineItem{{
		Kind:        "plan",
		Description: fmt.Sprintf("%s plan (%s)", plan.Name, yardID),
		Quantity:    1,
		UnitPrice:   base,
		Amount:      base,
	}}
	add := func(tier catalog.AddonTier, n int) {
		if n == 0 {
			return
		}
		price := e.catalog.OveragePrice(tier)
		items = append(items, LineItem{
			Kind:        "overage",
			Description: fmt.Sprintf("Extra %s add-ons", tier),
			Quantity:    n,
			UnitPrice:   price,
			Amount:      price.Mul(decimal.NewFromInt(int64(n))),
		})
	}
	add(catalog.TierBasic, o.BasicOverageCount)
	add(catalog.TierPremium, o.PremiumOverageCount)
	return items
}

// Validate checks sel against the catalog without pricing it.
func (e *Engine) Validate(sel Selections) error {
	if sel.AsOf.IsZero() {
		return qerrors.NewInvalidInputError("as_of", "evaluation date is required")
	}
	if sel.SwapCount < 0 {
		return qerrors.NewInvalidInputError("swap_count", "must not be negative")
	}
	if _, err := e.catalog.Plan(sel.PlanID); err != nil {
		return err
	}
	if _, err := e.catalog.YardSize(sel.YardSizeID); err != nil {
		return err
	}
	if _, err := e.catalog.Term(sel.Term); err != nil {
		return err
	}
	for _, s := range sel.Segments {
		if !catalog.ValidSegment(s) {
			return qerrors.NewInvalidInputError("segments", fmt.Sprintf("unknown segment %q", s))
		}
	}

	seen := make(map[string]bool, len(sel.BasicAddonIDs)+len(sel.PremiumAddonIDs))
	check := func(field string, ids []string, tier catalog.AddonTier) error {
		for _, id := range ids {
			a, err := e.catalog.Addon(id)
			if err != nil {
				return err
			}
			if a.Tier != tier {
				return qerrors.NewInvalidInputError(field, fmt.Sprintf("add-on %q is %s tier", id, a.Tier))
			}
			if seen[id] {
				return qerrors.NewInvalidInputError(field, fmt.Sprintf("add-on %q selected twice", id))
			}
			seen[id] = true
		}
		return nil
	}
	if err := check("basic_addons", sel.BasicAddonIDs, catalog.TierBasic); err != nil {
		return err
	}
	return check("premium_addons", sel.PremiumAddonIDs, catalog.TierPremium)
}
