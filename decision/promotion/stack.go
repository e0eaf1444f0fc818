package promotion

import (
	"github.com/shopspring/decimal"

	"lawnquote/decision/catalog"
)

var hundred = decimal.NewFromInt(100)

// stacker folds promotions into a Result one at a time, enforcing the
// per-group caps. Once a group is full, later promotions in it are zeroed.
type stacker struct {
	caps         catalog.Caps
	monthlyTotal decimal.Decimal
	used         map[catalog.StackGroup]int
	res          Result
}

func newStacker(caps catalog.Caps, monthlyTotal decimal.Decimal) *stacker {
	return &stacker{
		caps:         caps,
		monthlyTotal: monthlyTotal,
		used:         make(map[catalog.StackGroup]int, 2),
		res: Result{
			Eligible:     []catalog.Promotion{},
			Applied:      []catalog.Promotion{},
			Pending:      []catalog.Promotion{},
			Breakdown:    []Entry{},
			TotalSavings: decimal.Zero,
		},
	}
}

func (s *stacker) limit(g catalog.StackGroup) int {
	if g == catalog.GroupPercentOff {
		return s.caps.MaxPercentOff
	}
	return s.caps.MaxFreeMonths
}

func (s *stacker) fold(p catalog.Promotion) {
	s.res.Eligible = append(s.res.Eligible, p)

	headroom := s.limit(p.StackGroup) - s.used[p.StackGroup]
	allowed := p.Value
	status := StatusApplied
	if p.Value > headroom {
		allowed = max(0, headroom)
		status = StatusCapped
	}
	if allowed <= 0 && p.Value > 0 {
		s.res.Breakdown = append(s.res.Breakdown, s.entry(p, 0, StatusZeroed))
		return
	}
	if status == StatusCapped {
		s.res.CapApplied = true
		if p.StackGroup == catalog.GroupPercentOff {
			s.res.CapsHit.PercentOff = true
		} else {
			s.res.CapsHit.FreeMonths = true
		}
	}

	s.used[p.StackGroup] += allowed
	e := s.entry(p, allowed, status)
	s.res.Breakdown = append(s.res.Breakdown, e)
	s.res.TotalSavings = s.res.TotalSavings.Add(e.Savings)

	applied := p
	applied.Value = allowed
	s.res.Applied = append(s.res.Applied, applied)
}

// pend records a promotion that is earned later (referrals). It is never
// capped and contributes nothing to totals.
func (s *stacker) pend(p catalog.Promotion) {
	s.res.Eligible = append(s.res.Eligible, p)
	s.res.Pending = append(s.res.Pending, p)
	e := s.entry(p, 0, StatusPending)
	if p.StackGroup == catalog.GroupPercentOff {
		e.PercentOff = p.Value
	} else {
		e.FreeMonths = p.Value
	}
	s.res.Breakdown = append(s.res.Breakdown, e)
}

func (s *stacker) entry(p catalog.Promotion, value int, status EntryStatus) Entry {
	e := Entry{
		PromotionID: p.ID,
		Title:       p.Title,
		Type:        p.Type,
		StackGroup:  p.StackGroup,
		Requested:   p.Value,
		Savings:     decimal.Zero,
		Status:      status,
	}
	v := decimal.NewFromInt(int64(value))
	if p.StackGroup == catalog.GroupPercentOff {
		e.PercentOff = value
		e.Savings = s.monthlyTotal.Mul(v).Div(hundred)
	} else {
		e.FreeMonths = value
		e.Savings = s.monthlyTotal.Mul(v)
	}
	return e
}

func (s *stacker) result() Result {
	s.res.TotalPercentOff = s.used[catalog.GroupPercentOff]
	s.res.TotalFreeMonths = s.used[catalog.GroupFreeMonths]
	return s.res
}
