// Package lead accepts quote submissions from the wizard. Submissions are
// re-priced on the server, stored, and announced by email; the price the
// browser showed is never trusted.
package lead

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"lawnquote/decision/catalog"
	"lawnquote/decision/quote"
	qerrors "lawnquote/pkg/errors"
	"lawnquote/pkg/platform"
)

// Contact is the customer's contact details.
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Submission is the payload of the lead form.
type Submission struct {
	Selections quote.Selections `json:"selections"`
	Contact    Contact          `json:"contact"`
}

// Lead is the stored record of a submission.
type Lead struct {
	ID        uuid.UUID `json:"id"`
	QuoteID   uuid.UUID `json:"quote_id"`
	CreatedAt time.Time `json:"created_at"`
	Contact   Contact   `json:"contact"`

	PlanID          catalog.PlanID    `json:"plan"`
	YardSizeID      string            `json:"yard_size"`
	Term            catalog.TermID    `json:"term"`
	PayUpfront      bool              `json:"pay_upfront"`
	Segments        []catalog.Segment `json:"segments"`
	ExecutivePlus   bool              `json:"executive_plus"`
	SwapCount       int               `json:"swap_count"`
	BasicAddonIDs   []string          `json:"basic_addons"`
	PremiumAddonIDs []string          `json:"premium_addons"`
	PromoCode       string            `json:"promo_code,omitempty"`

	// DisplayedMonthly is the server-computed price, kept as a string so the
	// record reads exactly as the customer saw it.
	DisplayedMonthly  string   `json:"displayed_monthly"`
	FreeMonths        int      `json:"free_months"`
	PercentOff        int      `json:"percent_off"`
	AppliedPromotions []string `json:"applied_promotions"`
}

// Store persists leads.
type Store interface {
	SaveLead(ctx context.Context, l *Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*Lead, error)
}

// Notifier delivers lead emails.
type Notifier interface {
	NotifyBusiness(ctx context.Context, l *Lead, q *quote.Quote) error
	NotifyCustomer(ctx context.Context, l *Lead, q *quote.Quote) error
}

// Receipt is returned to the submitter.
type Receipt struct {
	Lead     *Lead        `json:"lead"`
	Quote    *quote.Quote `json:"quote"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Service handles submissions.
type Service struct {
	quotes    *quote.Engine
	store     Store
	notifiers []Notifier
	events    quote.EventSink
	metrics   *platform.Metrics
	logger    *slog.Logger
}

// NewService creates a lead service. A nil logger uses slog.Default().
func NewService(quotes *quote.Engine, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		quotes: quotes,
		store:  store,
		logger: logger,
	}
}

// WithNotifier adds a notifier. Every notifier is tried on each submission.
func (s *Service) WithNotifier(n Notifier) *Service {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
	return s
}

// WithEvents records a submitted-quote event for each stored lead.
func (s *Service) WithEvents(sink quote.EventSink) *Service {
	s.events = sink
	return s
}

// WithMetrics counts submissions by outcome.
func (s *Service) WithMetrics(m *platform.Metrics) *Service {
	s.metrics = m
	return s
}

// Submit validates, re-prices and stores a submission, then sends the
// emails. Storage failure fails the submission; email and analytics failures
// only add warnings to the receipt.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	contact, err := normalizeContact(sub.Contact)
	if err != nil {
		s.metrics.IncLead("rejected")
		return nil, err
	}

	q, err := s.quotes.Quote(sub.Selections)
	if err != nil {
		s.metrics.IncLead("rejected")
		return nil, fmt.Errorf("re-price submission: %w", err)
	}

	l := newLead(q, contact)
	if err := s.store.SaveLead(ctx, l); err != nil {
		s.metrics.IncLead("failed")
		s.logger.Error("lead not stored", "lead_id", l.ID, "error", err)
		return nil, qerrors.NewStorageError("save lead", err)
	}
	s.logger.Info("lead stored",
		"lead_id", l.ID,
		"quote_id", q.ID,
		"plan", l.PlanID,
		"term", l.Term,
		"displayed_monthly", l.DisplayedMonthly,
	)

	receipt := &Receipt{Lead: l, Quote: q}

	if s.events != nil {
		ev := quote.NewEvent(q, quote.EventSubmitted)
		ev.LeadID = l.ID
		if err := s.events.RecordQuoteEvent(ctx, ev); err != nil {
			s.logger.Warn("quote event not recorded", "lead_id", l.ID, "error", err)
		}
	}

	for _, n := range s.notifiers {
		if err := n.NotifyBusiness(ctx, l, q); err != nil {
			receipt.Warnings = append(receipt.Warnings, s.deliveryWarning(l, "business", err))
		}
		if err := n.NotifyCustomer(ctx, l, q); err != nil {
			receipt.Warnings = append(receipt.Warnings, s.deliveryWarning(l, contact.Email, err))
		}
	}

	if len(receipt.Warnings) > 0 {
		s.metrics.IncLead("stored_with_warnings")
	} else {
		s.metrics.IncLead("stored")
	}
	return receipt, nil
}

// Get returns a stored lead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	return s.store.GetLead(ctx, id)
}

func (s *Service) deliveryWarning(l *Lead, recipient string, err error) string {
	derr := qerrors.NewDeliveryError(recipient, err)
	s.logger.Warn("lead email not delivered", "lead_id", l.ID, "recipient", recipient, "error", err)
	return derr.Message
}

func newLead(q *quote.Quote, c Contact) *Lead {
	sel := q.Selections
	return &Lead{
		ID:                uuid.New(),
		QuoteID:           q.ID,
		CreatedAt:         q.QuotedAt,
		Contact:           c,
		PlanID:            sel.PlanID,
		YardSizeID:        sel.YardSizeID,
		Term:              sel.Term,
		PayUpfront:        sel.PayUpfront,
		Segments:          append([]catalog.Segment{}, sel.Segments...),
		ExecutivePlus:     sel.ExecutivePlus,
		SwapCount:         q.Allowance.AppliedSwaps,
		BasicAddonIDs:     append([]string{}, sel.BasicAddonIDs...),
		PremiumAddonIDs:   append([]string{}, sel.PremiumAddonIDs...),
		PromoCode:         promoCode(q),
		DisplayedMonthly:  q.Totals.DisplayedMonthly.StringFixed(0),
		FreeMonths:        q.Totals.FreeMonthsAtEnd,
		PercentOff:        q.Totals.PercentSavings,
		AppliedPromotions: q.Promotions.AppliedTitles(),
	}
}

func promoCode(q *quote.Quote) string {
	if pc := q.Promotions.PromoCode; pc != nil && pc.Valid {
		return pc.Code
	}
	return ""
}

func normalizeContact(c Contact) (Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.Notes = strings.TrimSpace(c.Notes)

	if c.Name == "" {
		return c, qerrors.NewInvalidInputError("contact.name", "name is required")
	}
	addr, err := mail.ParseAddress(c.Email)
	if err != nil {
		return c, qerrors.NewInvalidInputError("contact.email", "a valid email address is required")
	}
	c.Email = addr.Address
	if len(c.Notes) > 2000 {
		return c, qerrors.NewInvalidInputError("contact.notes", "notes must be at most 2000 characters")
	}
	return c, nil
}
