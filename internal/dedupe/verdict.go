package dedupe

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Recommendation is the action suggested for a duplicate candidate.
type Recommendation string

const (
	RecommendMerge   Recommendation = "merge"
	RecommendReview  Recommendation = "review"
	RecommendDismiss Recommendation = "dismiss"
)

// ParseRecommendation maps oracle output onto a Recommendation. Anything
// unrecognised becomes RecommendReview.
func ParseRecommendation(s string) Recommendation {
	switch Recommendation(strings.ToLower(strings.TrimSpace(s))) {
	case RecommendMerge:
		return RecommendMerge
	case RecommendDismiss:
		return RecommendDismiss
	case RecommendReview:
		return RecommendReview
	default:
		return RecommendReview
	}
}

// Fallback verdict values used when the oracle cannot produce a usable answer.
const (
	FallbackSimilarity = 50
	FallbackConfidence = 30
)

// ErrMalformedVerdict is returned when an oracle response cannot be parsed
// into a verdict.
var ErrMalformedVerdict = eris.New("dedupe: malformed oracle verdict")

// Verdict is the typed result of a deep analysis.
type Verdict struct {
	Similarity     float64        `json:"similarity_score"`
	Confidence     float64        `json:"confidence"`
	Reasons        []string       `json:"reasons"`
	Explanation    string         `json:"explanation"`
	Recommendation Recommendation `json:"recommendation"`
	// Fallback marks a verdict substituted for a failed oracle call.
	Fallback bool `json:"fallback"`
}

// Normalize clamps the numeric fields to [0,100] and coerces the
// recommendation into a known variant.
func (v Verdict) Normalize() Verdict {
	v.Similarity = clamp(v.Similarity, 0, 100)
	v.Confidence = clamp(v.Confidence, 0, 100)
	v.Recommendation = ParseRecommendation(string(v.Recommendation))
	if v.Reasons == nil {
		v.Reasons = []string{}
	}
	return v
}

// FallbackVerdict returns the conservative verdict used when deep analysis
// fails for cause.
func FallbackVerdict(cause string) Verdict {
	explanation := "Deep analysis unavailable; conservative fallback verdict applied."
	if cause != "" {
		explanation = "Deep analysis unavailable (" + cause + "); conservative fallback verdict applied."
	}
	return Verdict{
		Similarity:     FallbackSimilarity,
		Confidence:     FallbackConfidence,
		Reasons:        []string{},
		Explanation:    explanation,
		Recommendation: RecommendReview,
		Fallback:       true,
	}
}

// ParseVerdict extracts a verdict from raw oracle text. The text may wrap
// the JSON object in a markdown fence or prose. Both numeric fields are
// required.
func ParseVerdict(text string) (Verdict, error) {
	var raw struct {
		SimilarityScore *float64 `json:"similarity_score"`
		Confidence      *float64 `json:"confidence"`
		Reasons         []string `json:"reasons"`
		Explanation     string   `json:"explanation"`
		Recommendation  string   `json:"recommendation"`
	}
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return Verdict{}, eris.Wrap(ErrMalformedVerdict, "empty response")
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Verdict{}, eris.Wrapf(ErrMalformedVerdict, "decode: %v", err)
	}
	if raw.SimilarityScore == nil || raw.Confidence == nil {
		return Verdict{}, eris.Wrap(ErrMalformedVerdict, "missing similarity_score or confidence")
	}

	v := Verdict{
		Similarity:     *raw.SimilarityScore,
		Confidence:     *raw.Confidence,
		Reasons:        raw.Reasons,
		Explanation:    strings.TrimSpace(raw.Explanation),
		Recommendation: Recommendation(raw.Recommendation),
	}
	return v.Normalize(), nil
}

// cleanJSON strips a markdown code fence and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
