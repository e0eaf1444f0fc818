package lead

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnquote/decision/catalog"
	"lawnquote/decision/quote"
	qerrors "lawnquote/pkg/errors"
)

var quietDay = time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

type failingStore struct{}

func (failingStore) SaveLead(context.Context, *Lead) error { return errors.New("connection refused") }
func (failingStore) GetLead(context.Context, uuid.UUID) (*Lead, error) {
	return nil, errors.New("connection refused")
}

type recordingNotifier struct {
	business, customer int
	failCustomer       bool
}

func (n *recordingNotifier) NotifyBusiness(context.Context, *Lead, *quote.Quote) error {
	n.business++
	return nil
}

func (n *recordingNotifier) NotifyCustomer(context.Context, *Lead, *quote.Quote) error {
	n.customer++
	if n.failCustomer {
		return errors.New("mailbox unavailable")
	}
	return nil
}

type recordingSink struct {
	events []quote.Event
	err    error
}

func (s *recordingSink) RecordQuoteEvent(_ context.Context, e quote.Event) error {
	s.events = append(s.events, e)
	return s.err
}

func submission() Submission {
	return Submission{
		Selections: quote.Selections{
			YardSizeID: "1",
			PlanID:     catalog.PlanExecutive,
			Term:       catalog.TermTwoYear,
			PayUpfront: true,
			Segments:   []catalog.Segment{catalog.SegmentVeteran},
			PromoCode:  "maplegrove",
			AsOf:       quietDay,
		},
		Contact: Contact{Name: "  Sam Rivera ", Email: "Sam Rivera <sam@example.com>"},
	}
}

func newService(store Store) *Service {
	return NewService(quote.NewEngine(catalog.Default(), nil), store, nil)
}

func TestSubmitStoresRepricedLead(t *testing.T) {
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	svc := newService(store).WithNotifier(notifier).WithEvents(sink)

	r, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)
	require.NotNil(t, r.Lead)
	assert.Empty(t, r.Warnings)

	l := r.Lead
	assert.Equal(t, "Sam Rivera", l.Contact.Name)
	assert.Equal(t, "sam@example.com", l.Contact.Email)
	assert.Equal(t, r.Quote.ID, l.QuoteID)
	// 575 less 20% (veteran 5 + MAPLEGROVE 15) = 460
	assert.Equal(t, "460", l.DisplayedMonthly)
	assert.Equal(t, 20, l.PercentOff)
	assert.Equal(t, 3, l.FreeMonths)
	assert.Equal(t, "MAPLEGROVE", l.PromoCode)
	assert.Equal(t, []string{
		"Pay upfront bonus month",
		"2-year commitment",
		"Veteran discount",
		"Maple Grove Realty partner discount",
	}, l.AppliedPromotions)

	stored, err := svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.DisplayedMonthly, stored.DisplayedMonthly)

	assert.Equal(t, 1, notifier.business)
	assert.Equal(t, 1, notifier.customer)
	require.Len(t, sink.events, 1)
	assert.Equal(t, quote.EventSubmitted, sink.events[0].Kind)
	assert.Equal(t, l.ID, sink.events[0].LeadID)
}

func TestSubmitKeepsLeadWhenEmailFails(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store).
		WithNotifier(&recordingNotifier{failCustomer: true}).
		WithEvents(&recordingSink{err: errors.New("clickhouse down")})

	r, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "sam@example.com")
	assert.Equal(t, 1, store.Len())
}

func TestSubmitRejectsBadContact(t *testing.T) {
	svc := newService(NewMemoryStore())

	sub := submission()
	sub.Contact.Name = " "
	_, err := svc.Submit(context.Background(), sub)
	assert.True(t, qerrors.IsInvalidInput(err))

	sub = submission()
	sub.Contact.Email = "not-an-email"
	_, err = svc.Submit(context.Background(), sub)
	assert.True(t, qerrors.IsInvalidInput(err))
}

func TestSubmitRejectsUnknownPlan(t *testing.T) {
	store := NewMemoryStore()
	sub := submission()
	sub.Selections.PlanID = "platinum"

	_, err := newService(store).Submit(context.Background(), sub)
	assert.True(t, qerrors.IsNotFound(err))
	assert.Zero(t, store.Len())
}

func TestSubmitFailsWhenStoreFails(t *testing.T) {
	notifier := &recordingNotifier{}
	_, err := newService(failingStore{}).WithNotifier(notifier).Submit(context.Background(), submission())
	require.Error(t, err)
	assert.True(t, qerrors.HasCode(err, qerrors.ErrCodeStorageFailed))
	assert.Zero(t, notifier.business)
}

func TestGetUnknownLead(t *testing.T) {
	_, err := newService(NewMemoryStore()).Get(context.Background(), uuid.New())
	assert.True(t, qerrors.IsNotFound(err))
}
