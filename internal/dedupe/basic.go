package dedupe

import (
	"math"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/model"
)

// Dimensions flags which score dimensions could be evaluated for a pair.
type Dimensions struct {
	Title    bool `json:"title"`
	Address  bool `json:"address"`
	Price    bool `json:"price"`
	Location bool `json:"location"`
}

// ScoreBreakdown holds the per-dimension sub-scores of a pair and their
// weighted aggregate.
type ScoreBreakdown struct {
	Title     float64    `json:"title"`
	Address   float64    `json:"address"`
	Price     float64    `json:"price"`
	Location  float64    `json:"location"`
	Evaluated Dimensions `json:"evaluated"`
	// DistanceMeters is set whenever both records have coordinates.
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Basic          float64  `json:"basic"`
}

// BasicScorer computes the cheap local score used as the funnel gate.
type BasicScorer struct {
	cfg config.DedupeConfig
}

// NewBasicScorer returns a scorer bound to cfg.
func NewBasicScorer(cfg config.DedupeConfig) *BasicScorer {
	return &BasicScorer{cfg: cfg}
}

// Score evaluates every dimension and aggregates the evaluated ones. A
// dimension that cannot be evaluated drops its weight from the denominator.
func (s *BasicScorer) Score(a, b *model.PropertyRecord) ScoreBreakdown {
	var bd ScoreBreakdown
	bd.Title, bd.Evaluated.Title = TitleSimilarity(a.Title, b.Title)
	bd.Address, bd.Evaluated.Address = AddressScore(a, b)
	bd.Price, bd.Evaluated.Price = PriceScore(a, b, s.cfg)

	var dist float64
	bd.Location, dist, bd.Evaluated.Location = LocationScore(a, b, s.cfg.ProximityMeters)
	if bd.Evaluated.Location {
		bd.DistanceMeters = &dist
	}

	var sum, weights float64
	add := func(evaluated bool, score, weight float64) {
		if evaluated && weight > 0 {
			sum += score * weight
			weights += weight
		}
	}
	add(bd.Evaluated.Title, bd.Title, s.cfg.TitleWeight)
	add(bd.Evaluated.Address, bd.Address, s.cfg.AddressWeight)
	add(bd.Evaluated.Price, bd.Price, s.cfg.PriceWeight)
	add(bd.Evaluated.Location, bd.Location, s.cfg.LocationWeight)

	if weights > 0 {
		bd.Basic = round2(clamp(sum/weights, 0, 100))
	}
	return bd
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
