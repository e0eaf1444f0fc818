package promotion

import (
	"lawnquote/decision/catalog"
)

// CodeResult is the outcome of a promo code lookup.
type CodeResult struct {
	Code     string `json:"code"`
	Valid    bool   `json:"valid"`
	Discount int    `json:"discount,omitempty"`
	Name     string `json:"name,omitempty"`
}

// CodeLookup resolves partner / HOA promo codes. Implementations must be safe
// for concurrent use and must not block; dynamic stores load a snapshot
// ahead of time (see db/redis).
type CodeLookup interface {
	Lookup(code string) CodeResult
}

// CodeTable is an immutable in-memory CodeLookup keyed by normalized code.
type CodeTable struct {
	codes map[string]catalog.PromoCode
}

// NewCodeTable builds a table from catalog promo codes.
func NewCodeTable(codes []catalog.PromoCode) *CodeTable {
	t := &CodeTable{codes: make(map[string]catalog.PromoCode, len(codes))}
	for _, c := range codes {
		c.Code = catalog.NormalizeCode(c.Code)
		t.codes[c.Code] = c
	}
	return t
}

// Lookup trims and upper-cases code before matching.
func (t *CodeTable) Lookup(code string) CodeResult {
	key := catalog.NormalizeCode(code)
	c, ok := t.codes[key]
	if !ok || c.Discount <= 0 {
		return CodeResult{Code: key, Valid: false}
	}
	return CodeResult{Code: key, Valid: true, Discount: c.Discount, Name: c.Partner}
}

// Len returns the number of codes in the table.
func (t *CodeTable) Len() int { return len(t.codes) }

// Codes returns the table contents.
func (t *CodeTable) Codes() []catalog.PromoCode {
	out := make([]catalog.PromoCode, 0, len(t.codes))
	for _, c := range t.codes {
		out = append(out, c)
	}
	return out
}
