package dedupe

import (
	"cmp"
	"slices"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/model"
)

// DuplicateMatch is an accepted duplicate candidate.
type DuplicateMatch struct {
	Key            PairKey              `json:"key"`
	PropertyA      model.PropertyRecord `json:"property_a"`
	PropertyB      model.PropertyRecord `json:"property_b"`
	Breakdown      ScoreBreakdown       `json:"breakdown"`
	Similarity     float64              `json:"similarity_score"`
	Confidence     float64              `json:"confidence"`
	Reasons        []string             `json:"reasons"`
	Explanation    string               `json:"explanation"`
	Recommendation Recommendation       `json:"recommendation"`
	UsedFallback   bool                 `json:"used_fallback"`
}

// Candidate is a funnel-passed pair with its verdict.
type Candidate struct {
	Pair      Pair
	Breakdown ScoreBreakdown
	Verdict   Verdict
}

// Classifier turns verdicts into accepted matches.
type Classifier struct {
	minSimilarity float64
	minConfidence float64
}

// NewClassifier returns a classifier using the thresholds in cfg.
func NewClassifier(cfg config.DedupeConfig) *Classifier {
	return &Classifier{minSimilarity: cfg.MinSimilarity, minConfidence: cfg.MinConfidence}
}

// Accept reports whether v becomes a match. Fallback verdicts are always
// accepted for review since their pair already cleared the funnel.
func (c *Classifier) Accept(v Verdict) bool {
	if v.Fallback {
		return true
	}
	return v.Similarity >= c.minSimilarity && v.Confidence >= c.minConfidence
}

// Classify returns the accepted matches in ranking order and the number of
// rejected candidates.
func (c *Classifier) Classify(candidates []Candidate) (matches []DuplicateMatch, rejected int) {
	matches = make([]DuplicateMatch, 0, len(candidates))
	for _, cand := range candidates {
		if !c.Accept(cand.Verdict) {
			rejected++
			continue
		}
		matches = append(matches, DuplicateMatch{
			Key:            cand.Pair.Key,
			PropertyA:      *cand.Pair.A,
			PropertyB:      *cand.Pair.B,
			Breakdown:      cand.Breakdown,
			Similarity:     cand.Verdict.Similarity,
			Confidence:     cand.Verdict.Confidence,
			Reasons:        cand.Verdict.Reasons,
			Explanation:    cand.Verdict.Explanation,
			Recommendation: cand.Verdict.Recommendation,
			UsedFallback:   cand.Verdict.Fallback,
		})
	}
	SortMatches(matches)
	return matches, rejected
}

// SortMatches orders by Confidence+Similarity descending, then by key.
func SortMatches(ms []DuplicateMatch) {
	slices.SortFunc(ms, func(a, b DuplicateMatch) int {
		if c := cmp.Compare(b.Confidence+b.Similarity, a.Confidence+a.Similarity); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
}
