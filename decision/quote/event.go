package quote

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind tells analytics what produced a quote.
type EventKind string

const (
	EventQuoted    EventKind = "quoted"
	EventSubmitted EventKind = "submitted"
)

// Event is the flattened analytics record for one priced quote.
type Event struct {
	ID               uuid.UUID `json:"id"`
	QuoteID          uuid.UUID `json:"quote_id"`
	LeadID           uuid.UUID `json:"lead_id,omitempty"`
	Kind             EventKind `json:"kind"`
	PlanID           string    `json:"plan"`
	YardSizeID       string    `json:"yard_size"`
	Term             string    `json:"term"`
	PayUpfront       bool      `json:"pay_upfront"`
	Segments         string    `json:"segments"`
	PromoCode        string    `json:"promo_code"`
	PromoCodeValid   bool      `json:"promo_code_valid"`
	MonthlyTotal     float64   `json:"monthly_total"`
	DisplayedMonthly float64   `json:"displayed_monthly"`
	PercentOff       int       `json:"percent_off"`
	FreeMonths       int       `json:"free_months"`
	CapApplied       bool      `json:"cap_applied"`
	AsOf             time.Time `json:"as_of"`
	CreatedAt        time.Time `json:"created_at"`
}

// EventSink stores analytics events.
type EventSink interface {
	RecordQuoteEvent(ctx context.Context, e Event) error
}

// NewEvent flattens q into an analytics event.
func NewEvent(q *Quote, kind EventKind) Event {
	segs := make([]string, len(q.Selections.Segments))
	for i, s := range q.Selections.Segments {
		segs[i] = string(s)
	}
	e := Event{
		ID:         uuid.New(),
		QuoteID:    q.ID,
		Kind:       kind,
		PlanID:     string(q.Selections.PlanID),
		YardSizeID: q.Selections.YardSizeID,
		Term:       string(q.Selections.Term),
		PayUpfront: q.Selections.PayUpfront,
		Segments:   strings.Join(segs, ","),
		PercentOff: q.Promotions.TotalPercentOff,
		FreeMonths: q.Promotions.TotalFreeMonths,
		CapApplied: q.Promotions.CapApplied,
		AsOf:       q.Selections.AsOf,
		CreatedAt:  q.QuotedAt,
	}
	e.MonthlyTotal, _ = q.MonthlyTotal.Float64()
	e.DisplayedMonthly, _ = q.Totals.DisplayedMonthly.Float64()
	if pc := q.Promotions.PromoCode; pc != nil {
		e.PromoCode = pc.Code
		e.PromoCodeValid = pc.Valid
	}
	return e
}
