package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the mutable description a Catalog is frozen from.
type Config struct {
	Plans          []Plan
	Addons         []Addon
	YardSizes      []YardSize
	Terms          []Term
	BasicOverage   decimal.Decimal
	PremiumOverage decimal.Decimal
	SavingsRate    decimal.Decimal
	Anniversary    Window
	ExecutivePlus  Slots
	EarlyBird      EarlyBird
	Caps           Caps
	Promotions     []Promotion
	PromoCodes     []PromoCode
}

// New validates cfg and freezes it into a Catalog.
func New(cfg Config) (*Catalog, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	c := &Catalog{
		plans:          make(map[PlanID]Plan, len(cfg.Plans)),
		addons:         make(map[string]Addon, len(cfg.Addons)),
		yards:          make(map[string]YardSize, len(cfg.YardSizes)),
		terms:          make(map[TermID]Term, len(cfg.Terms)),
		basicOverage:   cfg.BasicOverage,
		premiumOverage: cfg.PremiumOverage,
		savingsRate:    cfg.SavingsRate,
		anniversary:    cfg.Anniversary,
		executivePlus:  cfg.ExecutivePlus,
		earlyBird:      cfg.EarlyBird,
		caps:           cfg.Caps,
	}
	if c.earlyBird.BucketDays <= 0 {
		c.earlyBird.BucketDays = 30
	}
	for _, p := range cfg.Plans {
		c.plans[p.ID] = p
		c.planOrder = append(c.planOrder, p.ID)
	}
	for _, a := range cfg.Addons {
		c.addons[a.ID] = a
		c.addonOrder = append(c.addonOrder, a.ID)
	}
	for _, y := range cfg.YardSizes {
		c.yards[y.ID] = y
		c.yardOrder = append(c.yardOrder, y.ID)
	}
	for _, t := range cfg.Terms {
		c.terms[t.ID] = t
		c.termOrder = append(c.termOrder, t.ID)
	}
	for _, p := range sortedPromotions(cfg.Promotions) {
		c.promotions = append(c.promotions, p.Clone())
	}
	for _, pc := range cfg.PromoCodes {
		pc.Code = NormalizeCode(pc.Code)
		c.codes = append(c.codes, pc)
	}
	return c, nil
}

// Default returns the built-in production catalog.
func Default() *Catalog {
	c, err := New(DefaultConfig())
	if err != nil {
		panic("catalog: built-in config is invalid: " + err.Error())
	}
	return c
}

// DefaultConfig returns the built-in catalog description.
func DefaultConfig() Config {
	return Config{
		Plans: []Plan{
			{
				ID:                   PlanBasic,
				Name:                 "Basic",
				BasePrice:            decimal.NewFromInt(169),
				IncludedBasicSlots:   2,
				IncludedPremiumSlots: 0,
				AllowsSwap:           true,
				AnniversaryBonusTier: TierBasic,
			},
			{
				ID:                   PlanPremium,
				Name:                 "Premium",
				BasePrice:            decimal.NewFromInt(249),
				IncludedBasicSlots:   3,
				IncludedPremiumSlots: 1,
				AllowsSwap:           true,
				AnniversaryBonusTier: TierBasic,
			},
			{
				ID:                    PlanExecutive,
				Name:                  "Executive",
				BasePrice:             decimal.NewFromInt(399),
				IncludedBasicSlots:    4,
				IncludedPremiumSlots:  2,
				AllowsSwap:            true,
				AnniversaryBonusTier:  TierPremium,
				ExecutivePlusEligible: true,
			},
		},
		Addons: []Addon{
			{ID: "weed-control", Name: "Weed Control", Tier: TierBasic, OveragePrice: decimal.NewFromInt(20)},
			{ID: "edging", Name: "Edging & Trimming", Tier: TierBasic, OveragePrice: decimal.NewFromInt(20)},
			{ID: "leaf-cleanup", Name: "Leaf Cleanup", Tier: TierBasic, OveragePrice: decimal.NewFromInt(20)},
			{ID: "hedge-trimming", Name: "Hedge Trimming", Tier: TierBasic, OveragePrice: decimal.NewFromInt(20)},
			{ID: "aeration", Name: "Core Aeration & Overseeding", Tier: TierPremium, OveragePrice: decimal.NewFromInt(40)},
			{ID: "grub-control", Name: "Grub Control", Tier: TierPremium, OveragePrice: decimal.NewFromInt(40)},
			{ID: "mosquito-control", Name: "Mosquito Control", Tier: TierPremium, OveragePrice: decimal.NewFromInt(40)},
			{ID: "irrigation-check", Name: "Irrigation Check", Tier: TierPremium, OveragePrice: decimal.NewFromInt(40)},
		},
		YardSizes: []YardSize{
			{ID: "1/3", Label: "Up to 1/3 acre", Multiplier: decimal.RequireFromString("1.0")},
			{ID: "1/2", Label: "Up to 1/2 acre", Multiplier: decimal.RequireFromString("1.2")},
			{ID: "1", Label: "Up to 1 acre", Multiplier: decimal.RequireFromString("1.44")},
		},
		Terms: []Term{
			{ID: TermMonthToMonth, Label: "Month to month", Months: 1, FreeMonths: 0},
			{ID: TermOneYear, Label: "1 year", Months: 12, FreeMonths: 1},
			{ID: TermTwoYear, Label: "2 years", Months: 24, FreeMonths: 2},
			{ID: TermThreeYear, Label: "3 years", Months: 36, FreeMonths: 3},
		},
		BasicOverage:   decimal.NewFromInt(20),
		PremiumOverage: decimal.NewFromInt(40),
		SavingsRate:    decimal.RequireFromString("0.15"),
		Anniversary: Window{
			Start: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
			End:   endOfDay(time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC)),
		},
		ExecutivePlus: Slots{Basic: 1, Premium: 1},
		EarlyBird: EarlyBird{
			Title: "Early-bird sign-up",
			Window: Window{
				Start: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
				End:   endOfDay(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)),
			},
			MaxMonths:  3,
			BucketDays: 30,
		},
		Caps:       Caps{MaxPercentOff: 30, MaxFreeMonths: 6},
		Promotions: defaultPromotions(),
		PromoCodes: []PromoCode{
			{Code: "OAKRIDGEHOA", Discount: 10, Partner: "Oak Ridge HOA"},
			{Code: "WILLOWCREEK", Discount: 10, Partner: "Willow Creek Community Association"},
			{Code: "MAPLEGROVE", Discount: 15, Partner: "Maple Grove Realty"},
		},
	}
}

func defaultPromotions() []Promotion {
	return []Promotion{
		{
			ID:           "prepay",
			Title:        "Pay upfront bonus month",
			Type:         TypePrepayPercentOff,
			StackGroup:   GroupFreeMonths,
			Value:        1,
			Eligibility:  Eligibility{PayUpfront: Ptr(true)},
			DisplayOrder: 10,
			Active:       true,
		},
		{
			ID:           "term-1-year",
			Title:        "1-year commitment",
			Type:         TypeTermFreeMonths,
			StackGroup:   GroupFreeMonths,
			Value:        1,
			Eligibility:  Eligibility{Term: Ptr(TermOneYear)},
			DisplayOrder: 20,
			Active:       true,
		},
		{
			ID:           "term-2-year",
			Title:        "2-year commitment",
			Type:         TypeTermFreeMonths,
			StackGroup:   GroupFreeMonths,
			Value:        2,
			Eligibility:  Eligibility{Term: Ptr(TermTwoYear)},
			DisplayOrder: 21,
			Active:       true,
		},
		{
			ID:           "term-3-year",
			Title:        "3-year commitment",
			Type:         TypeTermFreeMonths,
			StackGroup:   GroupFreeMonths,
			Value:        3,
			Eligibility:  Eligibility{Term: Ptr(TermThreeYear)},
			DisplayOrder: 22,
			Active:       true,
		},
		{
			ID:           "segment-veteran",
			Title:        "Veteran discount",
			Type:         TypeSegmentPercentOff,
			StackGroup:   GroupPercentOff,
			Value:        5,
			Eligibility:  Eligibility{Segment: Ptr(SegmentVeteran)},
			DisplayOrder: 30,
			Active:       true,
		},
		{
			ID:           "segment-senior",
			Title:        "Senior discount",
			Type:         TypeSegmentPercentOff,
			StackGroup:   GroupPercentOff,
			Value:        5,
			Eligibility:  Eligibility{Segment: Ptr(SegmentSenior)},
			DisplayOrder: 31,
			Active:       true,
		},
		{
			ID:           "segment-renter",
			Title:        "Renter discount",
			Type:         TypeSegmentPercentOff,
			StackGroup:   GroupPercentOff,
			Value:        5,
			Eligibility:  Eligibility{Segment: Ptr(SegmentRenter)},
			DisplayOrder: 32,
			Active:       true,
		},
		{
			ID:           "referral",
			Title:        "Referral bonus month",
			Type:         TypeReferralFreeMonth,
			StackGroup:   GroupFreeMonths,
			Value:        1,
			Eligibility:  Eligibility{HasReferral: Ptr(true)},
			DisplayOrder: 40,
			Active:       true,
		},
	}
}

func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Nanosecond)
}
