package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/listing-dedupe/internal/model"
)

func listing(id, title string, rent float64) model.PropertyRecord {
	return model.PropertyRecord{
		ID:           id,
		Title:        title,
		StreetName:   "Torstraße",
		StreetNumber: "12",
		PostalCode:   "10119",
		City:         "Berlin",
		MonthlyRent:  &rent,
		OwnerID:      "owner-1",
		Status:       model.PropertyStatusActive,
	}
}

func TestBasicScorer_AllDimensions(t *testing.T) {
	s := NewBasicScorer(DefaultConfig())
	a := listing("a", "Bright loft in Mitte", 1200)
	b := listing("b", "Bright loft in Mitte", 1200)

	bd := s.Score(&a, &b)
	assert.Equal(t, 100.0, bd.Basic)
	assert.True(t, bd.Evaluated.Title)
	assert.True(t, bd.Evaluated.Address)
	assert.True(t, bd.Evaluated.Price)
	assert.False(t, bd.Evaluated.Location)
	assert.Nil(t, bd.DistanceMeters)
}

func TestBasicScorer_SameAddressClearsThresholdRegardlessOfTitle(t *testing.T) {
	cfg := DefaultConfig()
	s := NewBasicScorer(cfg)
	a := listing("a", "Beautiful Apartment", 1000)
	b := listing("b", "Ugly House", 1020)

	bd := s.Score(&a, &b)
	assert.Equal(t, 100.0, bd.Address)
	assert.Equal(t, 100.0, bd.Price)
	assert.Less(t, bd.Title, 50.0)
	assert.GreaterOrEqual(t, bd.Basic, cfg.DuplicateThreshold)
}

func TestBasicScorer_MissingDimensionDropsWeight(t *testing.T) {
	s := NewBasicScorer(DefaultConfig())
	a := listing("a", "Bright loft", 1000)
	b := listing("b", "Bright loft", 1000)
	a.MonthlyRent = nil

	bd := s.Score(&a, &b)
	assert.False(t, bd.Evaluated.Price)
	assert.Equal(t, 0.0, bd.Price)
	// Title and address both 100, price weight excluded from the denominator.
	assert.Equal(t, 100.0, bd.Basic)
}

func TestBasicScorer_NothingEvaluated(t *testing.T) {
	s := NewBasicScorer(DefaultConfig())
	bd := s.Score(&model.PropertyRecord{ID: "a"}, &model.PropertyRecord{ID: "b"})
	assert.Equal(t, 0.0, bd.Basic)
	assert.Equal(t, Dimensions{}, bd.Evaluated)
}

func TestBasicScorer_WeightedMeanAndRounding(t *testing.T) {
	cfg := DefaultConfig()
	s := NewBasicScorer(cfg)
	a := listing("a", "Beautiful Apartment", 1000)
	b := listing("b", "Beautiful Apt", 1200)

	bd := s.Score(&a, &b)
	// (30*81.25 + 50*100 + 20*41.666...) / 100
	assert.InDelta(t, 82.71, bd.Basic, 0.001)
}

func TestBasicScorer_LocationWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocationWeight = 50
	s := NewBasicScorer(cfg)

	a := model.PropertyRecord{ID: "a", Latitude: ptr(52.52), Longitude: ptr(13.405)}
	b := model.PropertyRecord{ID: "b", Latitude: ptr(52.52), Longitude: ptr(13.405)}

	bd := s.Score(&a, &b)
	assert.True(t, bd.Evaluated.Location)
	if assert.NotNil(t, bd.DistanceMeters) {
		assert.Equal(t, 0.0, *bd.DistanceMeters)
	}
	assert.Equal(t, 100.0, bd.Basic)
}

func TestBasicScorer_DistanceRecordedWithZeroWeight(t *testing.T) {
	s := NewBasicScorer(DefaultConfig())
	a := listing("a", "Loft", 1000)
	b := listing("b", "Loft", 1000)
	a.Latitude, a.Longitude = ptr(51.5074), ptr(-0.1278)
	b.Latitude, b.Longitude = ptr(55.9533), ptr(-3.1883)

	bd := s.Score(&a, &b)
	if assert.NotNil(t, bd.DistanceMeters) {
		assert.Greater(t, *bd.DistanceMeters, 500_000.0)
		assert.Less(t, *bd.DistanceMeters, 600_000.0)
	}
	assert.Equal(t, 0.0, bd.Location)
	assert.Equal(t, 100.0, bd.Basic, "location weight is zero by default")
}
