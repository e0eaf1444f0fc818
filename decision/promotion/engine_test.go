package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnquote/decision/catalog"
)

var (
	// Outside the early-bird window and the anniversary window.
	quietDay = time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	// First early-bird bucket: worth the full three months.
	earlyDay = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
)

func defaultEngine() *Engine {
	return FromCatalog(catalog.Default())
}

func TestNoPromotionsOutsideWindows(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(169),
		Term:         catalog.TermMonthToMonth,
	}, quietDay)

	assert.Empty(t, res.Applied)
	assert.Empty(t, res.Pending)
	assert.Empty(t, res.Breakdown)
	assert.Zero(t, res.TotalPercentOff)
	assert.Zero(t, res.TotalFreeMonths)
	assert.True(t, res.TotalSavings.IsZero())
	assert.Nil(t, res.PromoCode)
	assert.False(t, res.CapApplied)
}

func TestTermAndPrepayStack(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(575),
		Term:         catalog.TermTwoYear,
		PayUpfront:   true,
	}, quietDay)

	assert.Equal(t, 3, res.TotalFreeMonths)
	assert.False(t, res.CapApplied)
	require.Len(t, res.Applied, 2)
	assert.Equal(t, "prepay", res.Applied[0].ID)
	assert.Equal(t, "term-2-year", res.Applied[1].ID)
	assert.True(t, decimal.NewFromInt(575*3).Equal(res.TotalSavings))
}

func TestSegmentsAndPartnerCode(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(200),
		Term:         catalog.TermOneYear,
		Segments:     []catalog.Segment{catalog.SegmentVeteran, catalog.SegmentSenior},
		PromoCode:    "  oakridgehoa ",
	}, quietDay)

	require.NotNil(t, res.PromoCode)
	assert.True(t, res.PromoCode.Valid)
	assert.Equal(t, "OAKRIDGEHOA", res.PromoCode.Code)
	assert.Equal(t, 10, res.PromoCode.Discount)

	assert.Equal(t, 20, res.TotalPercentOff)
	assert.False(t, res.CapApplied)
	assert.False(t, res.CapsHit.PercentOff)

	sum := 0
	var percentIDs []string
	for _, e := range res.Breakdown {
		if e.StackGroup != catalog.GroupPercentOff {
			continue
		}
		assert.Equal(t, StatusApplied, e.Status)
		sum += e.PercentOff
		percentIDs = append(percentIDs, e.PromotionID)
	}
	assert.Equal(t, 20, sum)
	assert.Equal(t, []string{"segment-veteran", "segment-senior", "code-oakridgehoa"}, percentIDs)

	// 1-year term month + 5% + 5% + 10% of 200.
	assert.True(t, decimal.NewFromInt(200+10+10+20).Equal(res.TotalSavings), res.TotalSavings.String())
}

func TestFreeMonthCapTruncatesLastPromotion(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(100),
		Term:         catalog.TermThreeYear,
		PayUpfront:   true,
	}, earlyDay)

	assert.Equal(t, 6, res.TotalFreeMonths)
	assert.True(t, res.CapApplied)
	assert.True(t, res.CapsHit.FreeMonths)
	assert.False(t, res.CapsHit.PercentOff)

	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, EarlyBirdID, res.Breakdown[0].PromotionID)
	assert.Equal(t, 3, res.Breakdown[0].FreeMonths)
	assert.Equal(t, StatusApplied, res.Breakdown[0].Status)

	assert.Equal(t, "prepay", res.Breakdown[1].PromotionID)
	assert.Equal(t, StatusApplied, res.Breakdown[1].Status)

	last := res.Breakdown[2]
	assert.Equal(t, "term-3-year", last.PromotionID)
	assert.Equal(t, StatusCapped, last.Status)
	assert.Equal(t, 3, last.Requested)
	assert.Equal(t, 2, last.FreeMonths)

	require.Len(t, res.Applied, 3)
	assert.Equal(t, 2, res.Applied[2].Value)
}

func TestExhaustedGroupZeroesLaterPromotions(t *testing.T) {
	cfg := catalog.DefaultConfig()
	cfg.Caps.MaxFreeMonths = 4
	c, err := catalog.New(cfg)
	require.NoError(t, err)

	res := FromCatalog(c).Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(100),
		Term:         catalog.TermThreeYear,
		PayUpfront:   true,
	}, earlyDay)

	assert.Equal(t, 4, res.TotalFreeMonths)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, StatusZeroed, res.Breakdown[2].Status)
	assert.Zero(t, res.Breakdown[2].FreeMonths)
	assert.True(t, res.Breakdown[2].Savings.IsZero())

	for _, p := range res.Applied {
		assert.NotEqual(t, "term-3-year", p.ID)
	}
	assert.Len(t, res.Eligible, 3)
	assert.False(t, res.CapApplied, "filling the cap exactly truncates nothing")
	assert.False(t, res.CapsHit.FreeMonths)
}

func TestReferralOnlyPending(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(169),
		Term:         catalog.TermOneYear,
		HasReferral:  true,
	}, quietDay)

	require.Len(t, res.Pending, 1)
	assert.Equal(t, catalog.TypeReferralFreeMonth, res.Pending[0].Type)
	for _, p := range res.Applied {
		assert.NotEqual(t, catalog.TypeReferralFreeMonth, p.Type)
	}
	assert.Equal(t, 1, res.TotalFreeMonths)

	var pending Entry
	for _, e := range res.Breakdown {
		if e.Status == StatusPending {
			pending = e
		}
	}
	assert.Equal(t, "referral", pending.PromotionID)
	assert.Equal(t, 1, pending.FreeMonths)
	assert.True(t, pending.Savings.IsZero())
}

func TestReferralNotCappedWhenGroupFull(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(100),
		Term:         catalog.TermThreeYear,
		PayUpfront:   true,
		HasReferral:  true,
	}, earlyDay)

	assert.Equal(t, 6, res.TotalFreeMonths)
	require.Len(t, res.Pending, 1)
	assert.Equal(t, StatusPending, res.Breakdown[len(res.Breakdown)-1].Status)
}

func TestInvalidCodeIsReportedNotApplied(t *testing.T) {
	res := defaultEngine().Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(169),
		Term:         catalog.TermOneYear,
		PromoCode:    "NOPE",
	}, quietDay)

	require.NotNil(t, res.PromoCode)
	assert.False(t, res.PromoCode.Valid)
	assert.Equal(t, "NOPE", res.PromoCode.Code)
	assert.Zero(t, res.TotalPercentOff)
}

func TestPercentCapTruncatesCode(t *testing.T) {
	cfg := catalog.DefaultConfig()
	cfg.PromoCodes = append(cfg.PromoCodes, catalog.PromoCode{Code: "BIGDEAL", Discount: 25, Partner: "Big Deal"})
	c, err := catalog.New(cfg)
	require.NoError(t, err)

	res := FromCatalog(c).Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(100),
		Term:         catalog.TermMonthToMonth,
		Segments:     []catalog.Segment{catalog.SegmentVeteran, catalog.SegmentSenior},
		PromoCode:    "bigdeal",
	}, quietDay)

	assert.Equal(t, 30, res.TotalPercentOff)
	assert.True(t, res.CapApplied)
	assert.True(t, res.CapsHit.PercentOff)
	last := res.Breakdown[len(res.Breakdown)-1]
	assert.Equal(t, catalog.TypePartnerCode, last.Type)
	assert.Equal(t, StatusCapped, last.Status)
	assert.Equal(t, 20, last.PercentOff)
	assert.True(t, decimal.NewFromInt(20).Equal(last.Savings))
}

func TestCapsHoldForEverySelection(t *testing.T) {
	cfg := catalog.DefaultConfig()
	cfg.PromoCodes = append(cfg.PromoCodes, catalog.PromoCode{Code: "HUGE", Discount: 100})
	c, err := catalog.New(cfg)
	require.NoError(t, err)
	e := FromCatalog(c)

	segments := [][]catalog.Segment{
		nil,
		{catalog.SegmentVeteran},
		{catalog.SegmentVeteran, catalog.SegmentSenior, catalog.SegmentRenter},
	}
	days := []time.Time{quietDay, earlyDay, earlyDay.AddDate(0, 1, 0)}

	for _, term := range c.Terms() {
		for _, upfront := range []bool{false, true} {
			for _, referral := range []bool{false, true} {
				for _, segs := range segments {
					for _, code := range []string{"", "HUGE", "MAPLEGROVE", "bogus"} {
						for _, day := range days {
							res := e.Evaluate(Input{
								MonthlyTotal: decimal.NewFromInt(250),
								Term:         term.ID,
								PayUpfront:   upfront,
								Segments:     segs,
								HasReferral:  referral,
								PromoCode:    code,
							}, day)
							assert.LessOrEqual(t, res.TotalPercentOff, 30)
							assert.LessOrEqual(t, res.TotalFreeMonths, 6)
							for _, p := range res.Applied {
								assert.NotEqual(t, catalog.TypeReferralFreeMonth, p.Type)
							}
						}
					}
				}
			}
		}
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	e := defaultEngine()
	in := Input{
		MonthlyTotal: decimal.NewFromInt(299),
		Term:         catalog.TermThreeYear,
		PayUpfront:   true,
		Segments:     []catalog.Segment{catalog.SegmentRenter},
		HasReferral:  true,
		PromoCode:    "MAPLEGROVE",
	}

	first := e.Evaluate(in, earlyDay)
	second := e.Evaluate(in, earlyDay)
	assert.Equal(t, first, second)
}

func TestInactivePromotionsIgnored(t *testing.T) {
	cfg := catalog.DefaultConfig()
	for i := range cfg.Promotions {
		if cfg.Promotions[i].ID == "prepay" {
			cfg.Promotions[i].Active = false
		}
	}
	c, err := catalog.New(cfg)
	require.NoError(t, err)

	res := FromCatalog(c).Evaluate(Input{
		MonthlyTotal: decimal.NewFromInt(100),
		Term:         catalog.TermOneYear,
		PayUpfront:   true,
	}, quietDay)
	assert.Equal(t, 1, res.TotalFreeMonths)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "term-1-year", res.Applied[0].ID)
}

func TestUniversalPromotion(t *testing.T) {
	promos := []catalog.Promotion{
		{ID: "spring", Title: "Spring", Type: catalog.TypeSegmentPercentOff, StackGroup: catalog.GroupPercentOff, Value: 7, Active: true},
	}
	e := NewEngine(promos, catalog.Caps{MaxPercentOff: 30, MaxFreeMonths: 6}, catalog.EarlyBird{}, nil)

	res := e.Evaluate(Input{MonthlyTotal: decimal.NewFromInt(100), Term: catalog.TermOneYear}, quietDay)
	assert.Equal(t, 7, res.TotalPercentOff)
	assert.Equal(t, []string{"Spring"}, res.AppliedTitles())
}

func TestWithCodesSwapsLookup(t *testing.T) {
	table := NewCodeTable([]catalog.PromoCode{{Code: "fresh", Discount: 12, Partner: "Fresh HOA"}})
	e := defaultEngine().WithCodes(table)

	res := e.Evaluate(Input{MonthlyTotal: decimal.NewFromInt(100), Term: catalog.TermOneYear, PromoCode: "FRESH"}, quietDay)
	require.NotNil(t, res.PromoCode)
	assert.True(t, res.PromoCode.Valid)
	assert.Equal(t, 12, res.TotalPercentOff)

	res = e.Evaluate(Input{MonthlyTotal: decimal.NewFromInt(100), Term: catalog.TermOneYear, PromoCode: "OAKRIDGEHOA"}, quietDay)
	assert.False(t, res.PromoCode.Valid)
}

func TestMatches(t *testing.T) {
	in := Input{
		Term:       catalog.TermOneYear,
		PayUpfront: true,
		Segments:   []catalog.Segment{catalog.SegmentSenior},
	}

	tests := []struct {
		name string
		el   catalog.Eligibility
		want bool
	}{
		{"empty matches everything", catalog.Eligibility{}, true},
		{"term", catalog.Eligibility{Term: catalog.Ptr(catalog.TermOneYear)}, true},
		{"other term", catalog.Eligibility{Term: catalog.Ptr(catalog.TermTwoYear)}, false},
		{"segment present", catalog.Eligibility{Segment: catalog.Ptr(catalog.SegmentSenior)}, true},
		{"segment missing", catalog.Eligibility{Segment: catalog.Ptr(catalog.SegmentVeteran)}, false},
		{"upfront and no referral", catalog.Eligibility{PayUpfront: catalog.Ptr(true), HasReferral: catalog.Ptr(false)}, true},
		{"referral required", catalog.Eligibility{HasReferral: catalog.Ptr(true)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.el.IsEmpty(), tt.el == catalog.Eligibility{})
			assert.Equal(t, tt.want, matches(tt.el, in))
		})
	}
}
