package dedupe

import (
	"iter"
	"strings"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// PairKey identifies an unordered pair of property IDs. A holds the
// lexicographically smaller ID.
type PairKey struct {
	A string
	B string
}

// NewPairKey returns the canonical key for the pair {a, b}.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

func (k PairKey) String() string { return k.A + "|" + k.B }

// Compare orders keys by A then B.
func (k PairKey) Compare(o PairKey) int {
	if c := strings.Compare(k.A, o.A); c != 0 {
		return c
	}
	return strings.Compare(k.B, o.B)
}

// MarshalText encodes the key as "a|b".
func (k PairKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses "a|b".
func (k *PairKey) UnmarshalText(b []byte) error {
	a, rest, _ := strings.Cut(string(b), "|")
	*k = NewPairKey(a, rest)
	return nil
}

// Pair is an enumerated candidate pair. A is the record whose ID is Key.A.
type Pair struct {
	Key PairKey
	A   *model.PropertyRecord
	B   *model.PropertyRecord
}

// Eligibility decides whether a record takes part in pairing.
type Eligibility func(p *model.PropertyRecord) bool

// StatusEligibility excludes records whose status is in excluded and, when
// ownerID is set, records of other owners.
func StatusEligibility(excluded []string, ownerID string) Eligibility {
	skip := make(map[model.PropertyStatus]struct{}, len(excluded))
	for _, s := range excluded {
		skip[model.ParsePropertyStatus(s)] = struct{}{}
	}
	return func(p *model.PropertyRecord) bool {
		if ownerID != "" && p.OwnerID != ownerID {
			return false
		}
		_, excludedStatus := skip[model.ParsePropertyStatus(string(p.Status))]
		return !excludedStatus
	}
}

// FilterEligible keeps records accepted by eligible, in input order. Records
// without an ID are dropped and only the first record with a given ID is kept.
func FilterEligible(records []model.PropertyRecord, eligible Eligibility) []*model.PropertyRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]*model.PropertyRecord, 0, len(records))
	for i := range records {
		p := &records[i]
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		if eligible != nil && !eligible(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// EnumeratePairs lazily yields every unordered pair of props exactly once,
// i < j over the given order.
func EnumeratePairs(props []*model.PropertyRecord) iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		seen := make(map[PairKey]struct{})
		for i := 0; i < len(props); i++ {
			for j := i + 1; j < len(props); j++ {
				key := NewPairKey(props[i].ID, props[j].ID)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}

				a, b := props[i], props[j]
				if a.ID != key.A {
					a, b = b, a
				}
				if !yield(Pair{Key: key, A: a, B: b}) {
					return
				}
			}
		}
	}
}

// Pairs filters records with eligible and enumerates the survivors.
//
// Enumeration is quadratic in the number of eligible records. Blocking by
// postal code would bound it for large portfolios.
func Pairs(records []model.PropertyRecord, eligible Eligibility) iter.Seq[Pair] {
	return EnumeratePairs(FilterEligible(records, eligible))
}
