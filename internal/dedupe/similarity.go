package dedupe

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// indelParams makes a substitution cost as much as a delete plus an insert,
// so the distance counts characters outside the longest common subsequence.
var indelParams = levenshtein.NewParams().SubCost(2)

// normalizeText folds compatibility forms, strips diacritics, lowercases and
// reduces punctuation runs to single spaces.
func normalizeText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// indelRatio returns 100 * (1 - indel distance / combined length).
func indelRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b, indelParams)
	return 100 * float64(total-d) / float64(total)
}

// TitleSimilarity scores two listing titles on [0,100]. ok is false when
// either title is empty after normalisation.
func TitleSimilarity(a, b string) (score float64, ok bool) {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0, false
	}
	if na == nb {
		return 100, true
	}
	return indelRatio(na, nb), true
}
