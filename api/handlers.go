package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"lawnquote/decision/allowance"
	"lawnquote/decision/catalog"
	"lawnquote/decision/lead"
	"lawnquote/decision/quote"
	qerrors "lawnquote/pkg/errors"
)

// =============================================================================
// CATALOG
// =============================================================================

// CatalogResponse is everything the wizard needs to render its steps.
// Promo codes are deliberately absent; they are resolved one at a time.
type CatalogResponse struct {
	Plans          []catalog.Plan      `json:"plans"`
	Addons         []catalog.Addon     `json:"addons"`
	YardSizes      []catalog.YardSize  `json:"yard_sizes"`
	Terms          []catalog.Term      `json:"terms"`
	Segments       []catalog.Segment   `json:"segments"`
	BasicOverage   decimal.Decimal     `json:"basic_overage"`
	PremiumOverage decimal.Decimal     `json:"premium_overage"`
	Anniversary    catalog.Window      `json:"anniversary_window"`
	ExecutivePlus  catalog.Slots       `json:"executive_plus_bonus"`
	EarlyBird      catalog.EarlyBird   `json:"early_bird"`
	Caps           catalog.Caps        `json:"caps"`
	Promotions     []catalog.Promotion `json:"promotions"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	c := s.quotes.Catalog()
	s.jsonResponse(w, http.StatusOK, CatalogResponse{
		Plans:          c.Plans(),
		Addons:         c.Addons(),
		YardSizes:      c.YardSizes(),
		Terms:          c.Terms(),
		Segments:       catalog.Segments(),
		BasicOverage:   c.OveragePrice(catalog.TierBasic),
		PremiumOverage: c.OveragePrice(catalog.TierPremium),
		Anniversary:    c.AnniversaryWindow(),
		ExecutivePlus:  c.ExecutivePlusBonus(),
		EarlyBird:      c.EarlyBird(),
		Caps:           c.Caps(),
		Promotions:     c.Promotions(),
	})
}

// =============================================================================
// QUOTES
// =============================================================================

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var sel quote.Selections
	if !s.decode(w, r, &sel) {
		return
	}
	sel.AsOf = s.asOf(sel.AsOf)

	q, err := s.quotes.Quote(sel)
	if err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}

	s.metrics.IncQuote(string(q.Selections.PlanID), string(q.Selections.Term))
	if q.Promotions.CapsHit.PercentOff {
		s.metrics.IncCapApplied(string(catalog.GroupPercentOff))
	}
	if q.Promotions.CapsHit.FreeMonths {
		s.metrics.IncCapApplied(string(catalog.GroupFreeMonths))
	}
	if q.Promotions.PromoCode != nil {
		s.metrics.IncCodeLookup(q.Promotions.PromoCode.Valid)
	}

	if s.events != nil {
		if err := s.events.RecordQuoteEvent(r.Context(), quote.NewEvent(q, quote.EventQuoted)); err != nil {
			s.logger.Warn("quote event not recorded", "quote_id", q.ID, "error", err)
		}
	}

	s.jsonResponse(w, http.StatusOK, q)
}

// SwapOptionsResponse lists the swap picker entries for a plan.
type SwapOptionsResponse struct {
	Plan    catalog.PlanID         `json:"plan"`
	Options []allowance.SwapOption `json:"options"`
}

func (s *Server) handleSwapOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	planID := catalog.PlanID(q.Get("plan"))
	if planID == "" {
		s.writeError(w, qerrors.NewInvalidInputError("plan", "plan is required"), http.StatusBadRequest)
		return
	}
	asOf, err := quote.ParseAsOf(q.Get("as_of"))
	if err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}

	opts, err := s.quotes.SwapOptions(planID, s.asOf(asOf), parseBool(q.Get("executive_plus")))
	if err != nil {
		s.writeError(w, err, http.StatusNotFound)
		return
	}
	s.jsonResponse(w, http.StatusOK, SwapOptionsResponse{Plan: planID, Options: opts})
}

func (s *Server) handlePromoCode(w http.ResponseWriter, r *http.Request) {
	res := s.quotes.Promotions().LookupCode(r.PathValue("code"))
	s.metrics.IncCodeLookup(res.Valid)
	s.jsonResponse(w, http.StatusOK, res)
}

// =============================================================================
// LEADS
// =============================================================================

func (s *Server) handleSubmitLead(w http.ResponseWriter, r *http.Request) {
	var sub lead.Submission
	if !s.decode(w, r, &sub) {
		return
	}
	sub.Selections.AsOf = s.asOf(sub.Selections.AsOf)

	receipt, err := s.leads.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}
	s.jsonResponse(w, http.StatusCreated, receipt)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, http.StatusNotFound)
		return
	}
	l, err := s.leads.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err, http.StatusNotFound)
		return
	}
	s.jsonResponse(w, http.StatusOK, l)
}
