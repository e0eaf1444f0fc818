package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var oneDecimal = decimal.NewFromInt(1)

// File mirrors the catalog YAML schema. Every section is optional; missing
// sections keep the built-in defaults.
type File struct {
	Version   string          `yaml:"version"`
	Plans     []planFile      `yaml:"plans,omitempty"`
	Addons    []addonFile     `yaml:"addons,omitempty"`
	YardSizes []yardFile      `yaml:"yard_sizes,omitempty"`
	Terms     []termFile      `yaml:"terms,omitempty"`
	Overage   *overageFile    `yaml:"overage,omitempty"`
	Savings   *float64        `yaml:"savings_rate,omitempty"`
	Bonus     *bonusFile      `yaml:"bonus,omitempty"`
	EarlyBird *earlyBirdFile  `yaml:"early_bird,omitempty"`
	Caps      *Caps           `yaml:"caps,omitempty"`
	Promos    []promotionFile `yaml:"promotions,omitempty"`
	Codes     []PromoCode     `yaml:"promo_codes,omitempty"`
}

type planFile struct {
	ID                    PlanID    `yaml:"id"`
	Name                  string    `yaml:"name"`
	BasePrice             float64   `yaml:"base_price"`
	IncludedBasic         int       `yaml:"included_basic"`
	IncludedPremium       int       `yaml:"included_premium"`
	AllowsSwap            bool      `yaml:"allows_swap"`
	AnniversaryBonusTier  AddonTier `yaml:"anniversary_bonus_tier"`
	ExecutivePlusEligible bool      `yaml:"executive_plus_eligible"`
}

type addonFile struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	Tier    AddonTier `yaml:"tier"`
	Overage *float64  `yaml:"overage_price,omitempty"`
}

type yardFile struct {
	ID         string  `yaml:"id"`
	Label      string  `yaml:"label"`
	Multiplier float64 `yaml:"multiplier"`
}

type termFile struct {
	ID         TermID `yaml:"id"`
	Label      string `yaml:"label"`
	Months     int    `yaml:"months"`
	FreeMonths int    `yaml:"free_months"`
}

type overageFile struct {
	Basic   float64 `yaml:"basic"`
	Premium float64 `yaml:"premium"`
}

type windowFile struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type bonusFile struct {
	Anniversary   *windowFile `yaml:"anniversary,omitempty"`
	ExecutivePlus *Slots      `yaml:"executive_plus,omitempty"`
}

type earlyBirdFile struct {
	Title      string     `yaml:"title"`
	Window     windowFile `yaml:"window"`
	MaxMonths  int        `yaml:"max_months"`
	BucketDays int        `yaml:"bucket_days"`
}

type promotionFile struct {
	ID           string        `yaml:"id"`
	Title        string        `yaml:"title"`
	Type         PromotionType `yaml:"type"`
	StackGroup   StackGroup    `yaml:"stack_group"`
	Value        int           `yaml:"value"`
	DisplayOrder int           `yaml:"display_order"`
	Active       *bool         `yaml:"active,omitempty"`
	Eligibility  struct {
		Term        *TermID  `yaml:"term,omitempty"`
		PayUpfront  *bool    `yaml:"pay_upfront,omitempty"`
		Segment     *Segment `yaml:"segment,omitempty"`
		HasReferral *bool    `yaml:"has_referral,omitempty"`
	} `yaml:"eligibility"`
}

// Load reads a catalog YAML file and merges it over the built-in defaults.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(DefaultConfig())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog file %s does not exist", path)
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes catalog YAML and merges it over the built-in defaults.
func Parse(b []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cfg, err := f.merge(DefaultConfig())
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// merge overrides sections of base that are present in the file. Lists
// replace the default list wholesale.
func (f File) merge(base Config) (Config, error) {
	out := base

	if len(f.Plans) > 0 {
		out.Plans = make([]Plan, 0, len(f.Plans))
		for _, p := range f.Plans {
			out.Plans = append(out.Plans, Plan{
				ID:                    p.ID,
				Name:                  p.Name,
				BasePrice:             decimal.NewFromFloat(p.BasePrice),
				IncludedBasicSlots:    p.IncludedBasic,
				IncludedPremiumSlots:  p.IncludedPremium,
				AllowsSwap:            p.AllowsSwap,
				AnniversaryBonusTier:  p.AnniversaryBonusTier,
				ExecutivePlusEligible: p.ExecutivePlusEligible,
			})
		}
	}
	if f.Overage != nil {
		out.BasicOverage = decimal.NewFromFloat(f.Overage.Basic)
		out.PremiumOverage = decimal.NewFromFloat(f.Overage.Premium)
	}
	if len(f.Addons) > 0 {
		out.Addons = make([]Addon, 0, len(f.Addons))
		for _, a := range f.Addons {
			price := out.BasicOverage
			if a.Tier == TierPremium {
				price = out.PremiumOverage
			}
			if a.Overage != nil {
				price = decimal.NewFromFloat(*a.Overage)
			}
			out.Addons = append(out.Addons, Addon{ID: a.ID, Name: a.Name, Tier: a.Tier, OveragePrice: price})
		}
	}
	if len(f.YardSizes) > 0 {
		out.YardSizes = make([]YardSize, 0, len(f.YardSizes))
		for _, y := range f.YardSizes {
			out.YardSizes = append(out.YardSizes, YardSize{ID: y.ID, Label: y.Label, Multiplier: decimal.NewFromFloat(y.Multiplier)})
		}
	}
	if len(f.Terms) > 0 {
		out.Terms = make([]Term, 0, len(f.Terms))
		for _, t := range f.Terms {
			out.Terms = append(out.Terms, Term(t))
		}
	}
	if f.Savings != nil {
		out.SavingsRate = decimal.NewFromFloat(*f.Savings)
	}
	if f.Bonus != nil {
		if f.Bonus.Anniversary != nil {
			w, err := f.Bonus.Anniversary.parse("bonus.anniversary")
			if err != nil {
				return Config{}, err
			}
			out.Anniversary = w
		}
		if f.Bonus.ExecutivePlus != nil {
			out.ExecutivePlus = *f.Bonus.ExecutivePlus
		}
	}
	if f.EarlyBird != nil {
		w, err := f.EarlyBird.Window.parse("early_bird.window")
		if err != nil {
			return Config{}, err
		}
		out.EarlyBird = EarlyBird{
			Title:      f.EarlyBird.Title,
			Window:     w,
			MaxMonths:  f.EarlyBird.MaxMonths,
			BucketDays: f.EarlyBird.BucketDays,
		}
		if out.EarlyBird.Title == "" {
			out.EarlyBird.Title = base.EarlyBird.Title
		}
	}
	if f.Caps != nil {
		out.Caps = *f.Caps
	}
	if len(f.Promos) > 0 {
		out.Promotions = make([]Promotion, 0, len(f.Promos))
		for _, p := range f.Promos {
			active := true
			if p.Active != nil {
				active = *p.Active
			}
			out.Promotions = append(out.Promotions, Promotion{
				ID:           p.ID,
				Title:        p.Title,
				Type:         p.Type,
				StackGroup:   p.StackGroup,
				Value:        p.Value,
				DisplayOrder: p.DisplayOrder,
				Active:       active,
				Eligibility: Eligibility{
					Term:        p.Eligibility.Term,
					PayUpfront:  p.Eligibility.PayUpfront,
					Segment:     p.Eligibility.Segment,
					HasReferral: p.Eligibility.HasReferral,
				},
			})
		}
	}
	if len(f.Codes) > 0 {
		out.PromoCodes = append([]PromoCode(nil), f.Codes...)
	}
	return out, nil
}

// parse accepts RFC 3339 timestamps or plain dates. A plain end date covers
// the whole day so the window stays inclusive.
func (w windowFile) parse(name string) (Window, error) {
	start, err := parseBound(w.Start, false)
	if err != nil {
		return Window{}, fmt.Errorf("%s.start: %w", name, err)
	}
	end, err := parseBound(w.End, true)
	if err != nil {
		return Window{}, fmt.Errorf("%s.end: %w", name, err)
	}
	return Window{Start: start, End: end}, nil
}

func parseBound(s string, end bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
	}
	if end {
		return endOfDay(t), nil
	}
	return t, nil
}
