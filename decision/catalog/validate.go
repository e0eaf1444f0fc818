package catalog

import (
	"fmt"
	"strings"

	qerrors "lawnquote/pkg/errors"
)

// Validate checks the semantic constraints of a catalog description and
// returns a single CONFIG_INVALID error listing every problem.
func Validate(cfg Config) error {
	var errs []string

	if len(cfg.Plans) == 0 {
		errs = append(errs, "at least one plan is required")
	}
	seenPlans := map[PlanID]bool{}
	for i, p := range cfg.Plans {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("plans[%d].id is required", i))
		}
		if seenPlans[p.ID] {
			errs = append(errs, fmt.Sprintf("plans[%d].id %q is duplicated", i, p.ID))
		}
		seenPlans[p.ID] = true
		if !p.BasePrice.IsPositive() {
			errs = append(errs, fmt.Sprintf("plans[%d].base_price must be > 0", i))
		}
		if p.IncludedBasicSlots < 0 || p.IncludedPremiumSlots < 0 {
			errs = append(errs, fmt.Sprintf("plans[%d] included slots must be >= 0", i))
		}
		if p.AnniversaryBonusTier != "" && !validTier(p.AnniversaryBonusTier) {
			errs = append(errs, fmt.Sprintf("plans[%d].anniversary_bonus_tier must be basic or premium", i))
		}
	}

	seenAddons := map[string]bool{}
	for i, a := range cfg.Addons {
		if a.ID == "" || seenAddons[a.ID] {
			errs = append(errs, fmt.Sprintf("addons[%d].id must be unique and non-empty", i))
		}
		seenAddons[a.ID] = true
		if !validTier(a.Tier) {
			errs = append(errs, fmt.Sprintf("addons[%d].tier must be basic or premium", i))
		}
		if a.OveragePrice.IsNegative() {
			errs = append(errs, fmt.Sprintf("addons[%d].overage_price must be >= 0", i))
		}
	}

	if len(cfg.YardSizes) == 0 {
		errs = append(errs, "at least one yard size is required")
	}
	for i, y := range cfg.YardSizes {
		if y.ID == "" {
			errs = append(errs, fmt.Sprintf("yard_sizes[%d].id is required", i))
		}
		if !y.Multiplier.IsPositive() {
			errs = append(errs, fmt.Sprintf("yard_sizes[%d].multiplier must be > 0", i))
		}
	}

	terms := map[TermID]Term{}
	for i, t := range cfg.Terms {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("terms[%d].id is required", i))
		}
		if t.Months < 1 {
			errs = append(errs, fmt.Sprintf("terms[%d].months must be >= 1", i))
		}
		if t.FreeMonths < 0 {
			errs = append(errs, fmt.Sprintf("terms[%d].free_months must be >= 0", i))
		}
		terms[t.ID] = t
	}
	if len(terms) == 0 {
		errs = append(errs, "at least one term is required")
	}

	if cfg.BasicOverage.IsNegative() || cfg.PremiumOverage.IsNegative() {
		errs = append(errs, "overage prices must be >= 0")
	}
	if cfg.SavingsRate.IsNegative() || cfg.SavingsRate.GreaterThanOrEqual(oneDecimal) {
		errs = append(errs, "savings_rate must be in [0,1)")
	}
	if cfg.Caps.MaxPercentOff < 0 || cfg.Caps.MaxPercentOff > 100 {
		errs = append(errs, "caps.max_percent_off must be in [0,100]")
	}
	if cfg.Caps.MaxFreeMonths < 0 {
		errs = append(errs, "caps.max_free_months must be >= 0")
	}
	if cfg.ExecutivePlus.Basic < 0 || cfg.ExecutivePlus.Premium < 0 {
		errs = append(errs, "executive_plus bonus must be >= 0")
	}
	errs = append(errs, validateWindow("anniversary", cfg.Anniversary)...)
	errs = append(errs, validateWindow("early_bird.window", cfg.EarlyBird.Window)...)
	if cfg.EarlyBird.MaxMonths < 0 {
		errs = append(errs, "early_bird.max_months must be >= 0")
	}

	seenPromos := map[string]bool{}
	for i, p := range cfg.Promotions {
		if p.ID == "" || seenPromos[p.ID] {
			errs = append(errs, fmt.Sprintf("promotions[%d].id must be unique and non-empty", i))
		}
		seenPromos[p.ID] = true
		switch p.Type {
		case TypeTermFreeMonths, TypePrepayPercentOff, TypeSegmentPercentOff, TypeReferralFreeMonth:
		default:
			errs = append(errs, fmt.Sprintf("promotions[%d].type %q is not configurable", i, p.Type))
		}
		if p.StackGroup != GroupFreeMonths && p.StackGroup != GroupPercentOff {
			errs = append(errs, fmt.Sprintf("promotions[%d].stack_group must be freeMonths or percentOff", i))
		}
		if p.Value < 0 {
			errs = append(errs, fmt.Sprintf("promotions[%d].value must be >= 0", i))
		}
		if p.Eligibility.Segment != nil && !ValidSegment(*p.Eligibility.Segment) {
			errs = append(errs, fmt.Sprintf("promotions[%d] references unknown segment %q", i, *p.Eligibility.Segment))
		}
		if p.Eligibility.Term != nil {
			t, ok := terms[*p.Eligibility.Term]
			if !ok {
				errs = append(errs, fmt.Sprintf("promotions[%d] references unknown term %q", i, *p.Eligibility.Term))
			} else if p.Type == TypeTermFreeMonths && p.Value != t.FreeMonths {
				errs = append(errs, fmt.Sprintf("promotions[%d].value %d disagrees with term %q free_months %d",
					i, p.Value, t.ID, t.FreeMonths))
			}
		}
	}

	seenCodes := map[string]bool{}
	for i, pc := range cfg.PromoCodes {
		code := NormalizeCode(pc.Code)
		if code == "" || seenCodes[code] {
			errs = append(errs, fmt.Sprintf("promo_codes[%d].code must be unique and non-empty", i))
		}
		seenCodes[code] = true
		if !validDiscount(pc.Discount) {
			errs = append(errs, fmt.Sprintf("promo_codes[%d].discount must be in (0,100]", i))
		}
	}

	if len(errs) > 0 {
		return qerrors.NewConfigError(fmt.Sprintf("catalog validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

func validTier(t AddonTier) bool {
	return t == TierBasic || t == TierPremium
}

func validateWindow(name string, w Window) []string {
	if w.IsZero() {
		return nil
	}
	if w.Start.IsZero() || w.End.IsZero() {
		return []string{name + " needs both start and end"}
	}
	if w.End.Before(w.Start) {
		return []string{name + ".end must not be before start"}
	}
	return nil
}

// ValidatePromoCode checks a single partner code against the same rules
// Validate applies to promo_codes.
func ValidatePromoCode(pc PromoCode) error {
	if NormalizeCode(pc.Code) == "" {
		return qerrors.NewInvalidInputError("code", "promo code must be non-empty")
	}
	if !validDiscount(pc.Discount) {
		return qerrors.NewInvalidInputError("discount", fmt.Sprintf("discount %d must be in (0,100]", pc.Discount))
	}
	return nil
}

func validDiscount(d int) bool {
	return d > 0 && d <= 100
}
