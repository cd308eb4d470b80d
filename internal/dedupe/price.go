package dedupe

import (
	"math"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/model"
)

func primaryPrice(p *model.PropertyRecord, field string) *float64 {
	if field == PriceFieldSalePrice {
		return p.SalePrice
	}
	return p.MonthlyRent
}

// PriceScore compares the configured primary price of two records.
//
// The relative difference |a-b| / max(a,b) scores 100 inside the tolerance
// band and decays linearly to 0 at tolerance * PriceDecayMultiplier. ok is
// false when either price is missing or not positive.
func PriceScore(a, b *model.PropertyRecord, cfg config.DedupeConfig) (score float64, ok bool) {
	pa, pb := primaryPrice(a, cfg.PriceField), primaryPrice(b, cfg.PriceField)
	if pa == nil || pb == nil || *pa <= 0 || *pb <= 0 {
		return 0, false
	}

	diff := math.Abs(*pa-*pb) / math.Max(*pa, *pb) * 100
	return priceDecay(diff, cfg.PriceTolerancePercent, cfg.PriceDecayMultiplier), true
}

func priceDecay(diffPercent, tolerance, multiplier float64) float64 {
	if diffPercent <= tolerance {
		return 100
	}
	limit := tolerance * multiplier
	if diffPercent >= limit {
		return 0
	}
	return 100 * (limit - diffPercent) / (limit - tolerance)
}
