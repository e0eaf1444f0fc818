package promotion

import (
	"time"

	"lawnquote/decision/catalog"
)

// EarlyBirdID is the id of the synthesized early-bird promotion.
const EarlyBirdID = "early-bird"

// EarlyBirdMonths returns the free months the early-bird offer is worth at
// asOf. The value starts at MaxMonths on the window start and drops by one
// for every BucketDays elapsed. Outside the window it is 0.
func EarlyBirdMonths(eb catalog.EarlyBird, asOf time.Time) int {
	if eb.MaxMonths <= 0 || eb.Window.IsZero() || !eb.Window.Contains(asOf) {
		return 0
	}
	bucketDays := eb.BucketDays
	if bucketDays <= 0 {
		bucketDays = 30
	}
	bucket := time.Duration(bucketDays) * 24 * time.Hour
	elapsed := int(asOf.Sub(eb.Window.Start) / bucket)
	return max(0, eb.MaxMonths-elapsed)
}

func earlyBirdPromotion(eb catalog.EarlyBird, months int) catalog.Promotion {
	title := eb.Title
	if title == "" {
		title = "Early-bird sign-up"
	}
	return catalog.Promotion{
		ID:         EarlyBirdID,
		Title:      title,
		Type:       catalog.TypeEarlyBird,
		StackGroup: catalog.GroupFreeMonths,
		Value:      months,
		Active:     true,
	}
}
