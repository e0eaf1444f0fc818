// Package postgres persists leads in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lawnquote/decision/catalog"
	"lawnquote/decision/lead"
	qerrors "lawnquote/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id                 UUID PRIMARY KEY,
	quote_id           UUID NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	contact_name       TEXT NOT NULL,
	contact_email      TEXT NOT NULL,
	contact_phone      TEXT NOT NULL DEFAULT '',
	contact_address    TEXT NOT NULL DEFAULT '',
	contact_notes      TEXT NOT NULL DEFAULT '',
	plan               TEXT NOT NULL,
	yard_size          TEXT NOT NULL,
	term               TEXT NOT NULL,
	pay_upfront        BOOLEAN NOT NULL,
	segments           TEXT[] NOT NULL DEFAULT '{}',
	executive_plus     BOOLEAN NOT NULL,
	swap_count         INTEGER NOT NULL,
	basic_addons       TEXT[] NOT NULL DEFAULT '{}',
	premium_addons     TEXT[] NOT NULL DEFAULT '{}',
	promo_code         TEXT NOT NULL DEFAULT '',
	displayed_monthly  TEXT NOT NULL,
	free_months        INTEGER NOT NULL,
	percent_off        INTEGER NOT NULL,
	applied_promotions TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS leads_created_at_idx ON leads (created_at DESC);
`

// DB wraps a sql.DB connection pool.
type DB struct {
	pool *sql.DB
}

// Open creates a PostgreSQL connection pool and pings it.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Pool returns the underlying sql.DB for direct queries.
func (db *DB) Pool() *sql.DB {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.pool.Close()
}

// LeadStore implements lead.Store.
type LeadStore struct {
	db *sql.DB
}

// NewLeadStore creates a lead store.
func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

// Migrate creates the leads table if needed.
func (s *LeadStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *LeadStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveLead inserts a lead.
func (s *LeadStore) SaveLead(ctx context.Context, l *lead.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (
			id, quote_id, created_at, contact_name, contact_email, contact_phone,
			contact_address, contact_notes, plan, yard_size, term, pay_upfront,
			segments, executive_plus, swap_count, basic_addons, premium_addons,
			promo_code, displayed_monthly, free_months, percent_off, applied_promotions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		l.ID, l.QuoteID, l.CreatedAt,
		l.Contact.Name, l.Contact.Email, l.Contact.Phone, l.Contact.Address, l.Contact.Notes,
		string(l.PlanID), l.YardSizeID, string(l.Term), l.PayUpfront,
		pq.Array(segmentStrings(l.Segments)), l.ExecutivePlus, l.SwapCount,
		pq.Array(l.BasicAddonIDs), pq.Array(l.PremiumAddonIDs),
		l.PromoCode, l.DisplayedMonthly, l.FreeMonths, l.PercentOff,
		pq.Array(l.AppliedPromotions),
	)
	if err != nil {
		return fmt.Errorf("postgres: save lead: %w", err)
	}
	return nil
}

// GetLead loads a lead by id. A missing lead is a NOT_FOUND error.
func (s *LeadStore) GetLead(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	var (
		l                        lead.Lead
		plan, term               string
		segments, basic, premium []string
		applied                  []string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, quote_id, created_at, contact_name, contact_email, contact_phone,
		        contact_address, contact_notes, plan, yard_size, term, pay_upfront,
		        segments, executive_plus, swap_count, basic_addons, premium_addons,
		        promo_code, displayed_monthly, free_months, percent_off, applied_promotions
		 FROM leads WHERE id = $1`,
		id,
	).Scan(
		&l.ID, &l.QuoteID, &l.CreatedAt,
		&l.Contact.Name, &l.Contact.Email, &l.Contact.Phone, &l.Contact.Address, &l.Contact.Notes,
		&plan, &l.YardSizeID, &term, &l.PayUpfront,
		pq.Array(&segments), &l.ExecutivePlus, &l.SwapCount,
		pq.Array(&basic), pq.Array(&premium),
		&l.PromoCode, &l.DisplayedMonthly, &l.FreeMonths, &l.PercentOff,
		pq.Array(&applied),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, qerrors.NewNotFoundError("lead", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get lead: %w", err)
	}

	l.PlanID = catalog.PlanID(plan)
	l.Term = catalog.TermID(term)
	l.Segments = make([]catalog.Segment, len(segments))
	for i, seg := range segments {
		l.Segments[i] = catalog.Segment(seg)
	}
	l.BasicAddonIDs = basic
	l.PremiumAddonIDs = premium
	l.AppliedPromotions = applied
	return &l, nil
}

func segmentStrings(in []catalog.Segment) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

var _ lead.Store = (*LeadStore)(nil)
