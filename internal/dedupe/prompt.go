package dedupe

import (
	"encoding/json"
	"strings"
)

const deepAnalysisSystemPrompt = `You compare two real-estate listings from the same portfolio and decide whether they describe the same physical property.

Listings may differ in wording, language, formatting, photos or price updates and still be duplicates. Different units in the same building, or different buildings on the same street, are not duplicates.

Reply with a single JSON object and nothing else:
{
  "similarity_score": <0-100, how similar the two listings are>,
  "confidence": <0-100, how sure you are of your recommendation>,
  "reasons": [<short evidence strings>],
  "explanation": "<one or two sentences>",
  "recommendation": "merge" | "review" | "dismiss"
}

Use "merge" only when you are certain both listings are the same property, "dismiss" when they clearly are not, and "review" otherwise.`

// buildComparePrompt renders the user message for one pair.
func buildComparePrompt(a, b PropertySummary) string {
	var sb strings.Builder
	sb.WriteString("Listing A:\n")
	writeSummary(&sb, a)
	sb.WriteString("\n\nListing B:\n")
	writeSummary(&sb, b)
	sb.WriteString("\n\nAre these the same property?")
	return sb.String()
}

func writeSummary(sb *strings.Builder, s PropertySummary) {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		sb.WriteString(s.Title)
		return
	}
	sb.Write(raw)
}
