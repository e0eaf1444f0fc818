package catalog

// PromotionType describes what triggers a promotion.
type PromotionType string

const (
	TypeTermFreeMonths    PromotionType = "termFreeMonths"
	TypePrepayPercentOff  PromotionType = "prepayPercentOff"
	TypeSegmentPercentOff PromotionType = "segmentPercentOff"
	TypeReferralFreeMonth PromotionType = "referralFreeMonth"
	// Synthesized per evaluation, never configured statically.
	TypeEarlyBird   PromotionType = "earlyBird"
	TypePartnerCode PromotionType = "partnerCode"
)

// StackGroup selects the cap a promotion counts against.
type StackGroup string

const (
	GroupFreeMonths StackGroup = "freeMonths"
	GroupPercentOff StackGroup = "percentOff"
)

// Eligibility is a conjunction of simple checks. Nil fields are not checked,
// so the zero value matches every selection.
type Eligibility struct {
	Term        *TermID  `json:"term,omitempty"`
	PayUpfront  *bool    `json:"pay_upfront,omitempty"`
	Segment     *Segment `json:"segment,omitempty"`
	HasReferral *bool    `json:"has_referral,omitempty"`
}

// IsEmpty reports whether the eligibility has no conditions.
func (e Eligibility) IsEmpty() bool {
	return e.Term == nil && e.PayUpfront == nil && e.Segment == nil && e.HasReferral == nil
}

// Promotion is a discount definition. Value is in months for the freeMonths
// group and in percent for the percentOff group.
type Promotion struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Type         PromotionType `json:"type"`
	StackGroup   StackGroup    `json:"stack_group"`
	Value        int           `json:"value"`
	Eligibility  Eligibility   `json:"eligibility"`
	DisplayOrder int           `json:"display_order"`
	Active       bool          `json:"active"`
}

// Clone returns a deep copy of p.
func (p Promotion) Clone() Promotion {
	out := p
	if p.Eligibility.Term != nil {
		v := *p.Eligibility.Term
		out.Eligibility.Term = &v
	}
	if p.Eligibility.PayUpfront != nil {
		v := *p.Eligibility.PayUpfront
		out.Eligibility.PayUpfront = &v
	}
	if p.Eligibility.Segment != nil {
		v := *p.Eligibility.Segment
		out.Eligibility.Segment = &v
	}
	if p.Eligibility.HasReferral != nil {
		v := *p.Eligibility.HasReferral
		out.Eligibility.HasReferral = &v
	}
	return out
}

// Ptr returns a pointer to v. Used to build Eligibility literals.
func Ptr[T any](v T) *T { return &v }
