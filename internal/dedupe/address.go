package dedupe

import (
	"strings"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// Points awarded per matching address component.
const (
	streetPoints = 20
	numberPoints = 10
	postalPoints = 40
	cityPoints   = 30
)

// AddressScore compares the structured address fields of two records.
// A component only counts toward the maximum when both records carry it; the
// street number only counts when both street names are present. ok is false
// when no component is comparable.
func AddressScore(a, b *model.PropertyRecord) (score float64, ok bool) {
	var earned, possible float64

	streetA, streetB := normalizeText(a.StreetName), normalizeText(b.StreetName)
	if streetA != "" && streetB != "" {
		possible += streetPoints
		streetMatch := streetA == streetB
		if streetMatch {
			earned += streetPoints
		}

		numA, numB := normalizeText(a.StreetNumber), normalizeText(b.StreetNumber)
		if numA != "" && numB != "" {
			possible += numberPoints
			if streetMatch && numA == numB {
				earned += numberPoints
			}
		}
	}

	zipA, zipB := normalizePostal(a.PostalCode), normalizePostal(b.PostalCode)
	if zipA != "" && zipB != "" {
		possible += postalPoints
		if zipA == zipB {
			earned += postalPoints
		}
	}

	cityA, cityB := normalizeText(a.City), normalizeText(b.City)
	if cityA != "" && cityB != "" {
		possible += cityPoints
		if cityA == cityB {
			earned += cityPoints
		}
	}

	if possible == 0 {
		return 0, false
	}
	return earned / possible * 100, true
}

func normalizePostal(s string) string {
	return strings.ReplaceAll(normalizeText(s), " ", "")
}
