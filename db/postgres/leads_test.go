package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnquote/decision/catalog"
	"lawnquote/decision/lead"
	qerrors "lawnquote/pkg/errors"
)

var leadColumns = []string{
	"id", "quote_id", "created_at", "contact_name", "contact_email", "contact_phone",
	"contact_address", "contact_notes", "plan", "yard_size", "term", "pay_upfront",
	"segments", "executive_plus", "swap_count", "basic_addons", "premium_addons",
	"promo_code", "displayed_monthly", "free_months", "percent_off", "applied_promotions",
}

func newMockStore(t *testing.T) (*LeadStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLeadStore(db), mock
}

func TestSaveLead(t *testing.T) {
	store, mock := newMockStore(t)
	l := &lead.Lead{
		ID:                uuid.New(),
		QuoteID:           uuid.New(),
		CreatedAt:         time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
		Contact:           lead.Contact{Name: "Sam", Email: "sam@example.com"},
		PlanID:            catalog.PlanPremium,
		YardSizeID:        "1/2",
		Term:              catalog.TermOneYear,
		Segments:          []catalog.Segment{catalog.SegmentSenior},
		DisplayedMonthly:  "284",
		FreeMonths:        1,
		PercentOff:        5,
		AppliedPromotions: []string{"1-year commitment", "Senior discount"},
	}

	mock.ExpectExec("INSERT INTO leads").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveLead(context.Background(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveLeadWrapsError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO leads").WillReturnError(errors.New("duplicate key"))

	err := store.SaveLead(context.Background(), &lead.Lead{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save lead")
}

func TestGetLead(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	quoteID := uuid.New()
	created := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(leadColumns).AddRow(
		id.String(), quoteID.String(), created, "Sam", "sam@example.com", "", "", "",
		"executive", "1", "2-year", true,
		"{veteran,senior}", false, 1, "{edging}", "{aeration,grub-control}",
		"MAPLEGROVE", "460", 3, 20, `{"Pay upfront bonus month","2-year commitment"}`,
	)
	mock.ExpectQuery("SELECT (.+) FROM leads WHERE id").WithArgs(id).WillReturnRows(rows)

	l, err := store.GetLead(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
	assert.Equal(t, quoteID, l.QuoteID)
	assert.Equal(t, catalog.PlanExecutive, l.PlanID)
	assert.Equal(t, catalog.TermTwoYear, l.Term)
	assert.Equal(t, []catalog.Segment{catalog.SegmentVeteran, catalog.SegmentSenior}, l.Segments)
	assert.Equal(t, []string{"aeration", "grub-control"}, l.PremiumAddonIDs)
	assert.Equal(t, []string{"Pay upfront bonus month", "2-year commitment"}, l.AppliedPromotions)
	assert.Equal(t, "460", l.DisplayedMonthly)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM leads WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := store.GetLead(context.Background(), uuid.New())
	assert.True(t, qerrors.IsNotFound(err))
}

func TestMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS leads").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
