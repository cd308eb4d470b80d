package dedupe

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/config"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = eris.New("dedupe: invalid config")

// Primary price fields selectable through DedupeConfig.PriceField.
const (
	PriceFieldMonthlyRent = "monthly_rent"
	PriceFieldSalePrice   = "sale_price"
)

// DefaultConfig returns the engine defaults. They mirror the viper defaults
// registered in config.Load.
func DefaultConfig() config.DedupeConfig {
	return config.DedupeConfig{
		TitleWeight:           30,
		AddressWeight:         50,
		PriceWeight:           20,
		LocationWeight:        0,
		ProximityMeters:       150,
		PriceField:            PriceFieldMonthlyRent,
		PriceTolerancePercent: 5,
		PriceDecayMultiplier:  5,
		DuplicateThreshold:    70,
		MinConfidence:         80,
		MinSimilarity:         85,
		ExcludedStatuses:      []string{"inactive", "archived"},
	}
}

// WeightSum returns the sum of the four dimension weights.
func WeightSum(cfg config.DedupeConfig) float64 {
	return cfg.TitleWeight + cfg.AddressWeight + cfg.PriceWeight + cfg.LocationWeight
}

// ValidateConfig checks weights, tolerances and thresholds.
func ValidateConfig(cfg config.DedupeConfig) error {
	var errs []string

	weights := map[string]float64{
		"title_weight":    cfg.TitleWeight,
		"address_weight":  cfg.AddressWeight,
		"price_weight":    cfg.PriceWeight,
		"location_weight": cfg.LocationWeight,
	}
	for _, name := range []string{"title_weight", "address_weight", "price_weight", "location_weight"} {
		if weights[name] < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	if WeightSum(cfg) <= 0 {
		errs = append(errs, "weights must sum to > 0")
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"duplicate_threshold", cfg.DuplicateThreshold},
		{"min_confidence", cfg.MinConfidence},
		{"min_similarity", cfg.MinSimilarity},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 100 {
			errs = append(errs, th.name+" must be between 0 and 100")
		}
	}

	if cfg.PriceField != PriceFieldMonthlyRent && cfg.PriceField != PriceFieldSalePrice {
		errs = append(errs, "price_field must be monthly_rent or sale_price")
	}
	if cfg.PriceTolerancePercent <= 0 {
		errs = append(errs, "price_tolerance_percent must be > 0")
	}
	if cfg.PriceDecayMultiplier <= 1 {
		errs = append(errs, "price_decay_multiplier must be > 1")
	}
	if cfg.ProximityMeters < 0 {
		errs = append(errs, "proximity_meters must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Clone returns a deep copy of cfg.
func Clone(cfg config.DedupeConfig) config.DedupeConfig {
	cfg.ExcludedStatuses = slices.Clone(cfg.ExcludedStatuses)
	return cfg
}

// ConfigPatch is a partial DedupeConfig. Nil fields are left untouched when
// the patch is applied.
type ConfigPatch struct {
	TitleWeight           *float64  `json:"title_weight,omitempty" yaml:"title_weight,omitempty"`
	AddressWeight         *float64  `json:"address_weight,omitempty" yaml:"address_weight,omitempty"`
	PriceWeight           *float64  `json:"price_weight,omitempty" yaml:"price_weight,omitempty"`
	LocationWeight        *float64  `json:"location_weight,omitempty" yaml:"location_weight,omitempty"`
	ProximityMeters       *float64  `json:"proximity_meters,omitempty" yaml:"proximity_meters,omitempty"`
	PriceField            *string   `json:"price_field,omitempty" yaml:"price_field,omitempty"`
	PriceTolerancePercent *float64  `json:"price_tolerance_percent,omitempty" yaml:"price_tolerance_percent,omitempty"`
	PriceDecayMultiplier  *float64  `json:"price_decay_multiplier,omitempty" yaml:"price_decay_multiplier,omitempty"`
	DuplicateThreshold    *float64  `json:"duplicate_threshold,omitempty" yaml:"duplicate_threshold,omitempty"`
	MinConfidence         *float64  `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	MinSimilarity         *float64  `json:"min_similarity,omitempty" yaml:"min_similarity,omitempty"`
	ExcludedStatuses      *[]string `json:"excluded_statuses,omitempty" yaml:"excluded_statuses,omitempty"`
}

// Apply returns a copy of cfg with the set fields of p merged over it.
func (p ConfigPatch) Apply(cfg config.DedupeConfig) config.DedupeConfig {
	out := Clone(cfg)
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&out.TitleWeight, p.TitleWeight)
	setF(&out.AddressWeight, p.AddressWeight)
	setF(&out.PriceWeight, p.PriceWeight)
	setF(&out.LocationWeight, p.LocationWeight)
	setF(&out.ProximityMeters, p.ProximityMeters)
	setF(&out.PriceTolerancePercent, p.PriceTolerancePercent)
	setF(&out.PriceDecayMultiplier, p.PriceDecayMultiplier)
	setF(&out.DuplicateThreshold, p.DuplicateThreshold)
	setF(&out.MinConfidence, p.MinConfidence)
	setF(&out.MinSimilarity, p.MinSimilarity)
	if p.PriceField != nil {
		out.PriceField = strings.ToLower(strings.TrimSpace(*p.PriceField))
	}
	if p.ExcludedStatuses != nil {
		out.ExcludedStatuses = slices.Clone(*p.ExcludedStatuses)
	}
	return out
}
