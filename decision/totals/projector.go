// Package totals turns a promotion result into the figures shown to the
// customer.
package totals

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"lawnquote/decision/catalog"
	"lawnquote/decision/pricing"
	"lawnquote/decision/promotion"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// AppliedTotals holds the display figures for a quote. Currency values are
// whole units.
type AppliedTotals struct {
	MonthlyDiscount           decimal.Decimal `json:"monthly_discount"`
	DisplayedMonthly          decimal.Decimal `json:"displayed_monthly"`
	DisplayedEffectiveMonthly decimal.Decimal `json:"displayed_effective_monthly"`
	AnnualSavingsEstimate     decimal.Decimal `json:"annual_savings_estimate"`
	FreeMonthsAtEnd           int             `json:"free_months_at_end"`
	PercentSavings            int             `json:"percent_savings"`
	TermMonths                int             `json:"term_months"`
	PaidMonths                int             `json:"paid_months"`
}

// Projector computes AppliedTotals.
type Projector struct {
	logger *slog.Logger
}

// NewProjector creates a projector. A nil logger uses slog.Default().
func NewProjector(logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{logger: logger}
}

// Project applies the result's percent-off and free months to base over the
// given term. Intermediate values keep full precision; only outputs are
// rounded.
func (p *Projector) Project(base decimal.Decimal, res promotion.Result, term catalog.Term) AppliedTotals {
	termMonths := max(1, term.Months)
	free := res.TotalFreeMonths

	discount := pricing.Round(base.Mul(decimal.NewFromInt(int64(res.TotalPercentOff))).Div(hundred))
	displayed := base.Sub(discount)

	paid := termMonths - free
	if paid < 1 {
		p.logger.Warn("paid months clamped to 1; free months exceed term length",
			"term", term.ID,
			"term_months", termMonths,
			"free_months", free,
		)
		paid = 1
	}

	tm := decimal.NewFromInt(int64(termMonths))
	effective := displayed.Mul(decimal.NewFromInt(int64(paid))).Div(tm)

	// Month-to-month is not amortized below a year.
	years := decimal.NewFromInt(int64(max(termMonths, 12))).Div(twelve)
	annual := discount.Mul(twelve).Add(displayed.Mul(decimal.NewFromInt(int64(free))).Div(years))

	return AppliedTotals{
		MonthlyDiscount:           discount,
		DisplayedMonthly:          pricing.Round(displayed),
		DisplayedEffectiveMonthly: pricing.Round(effective),
		AnnualSavingsEstimate:     pricing.Round(annual),
		FreeMonthsAtEnd:           free,
		PercentSavings:            res.TotalPercentOff,
		TermMonths:                termMonths,
		PaidMonths:                paid,
	}
}
