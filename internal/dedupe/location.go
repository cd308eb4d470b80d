package dedupe

import (
	"github.com/sells-group/listing-dedupe/internal/geo"
	"github.com/sells-group/listing-dedupe/internal/model"
)

// LocationScore compares coordinates. Inside ProximityMeters scores 100,
// then decays linearly to 0 at twice the radius. distance is the haversine
// distance in meters and ok is false when either record lacks valid
// coordinates.
func LocationScore(a, b *model.PropertyRecord, proximityMeters float64) (score, distance float64, ok bool) {
	if !a.HasCoordinates() || !b.HasCoordinates() {
		return 0, 0, false
	}
	pa := geo.Point{Lat: *a.Latitude, Lng: *a.Longitude}
	pb := geo.Point{Lat: *b.Latitude, Lng: *b.Longitude}
	if !pa.Valid() || !pb.Valid() {
		return 0, 0, false
	}

	distance = geo.HaversineMeters(pa, pb)
	switch {
	case distance <= proximityMeters:
		score = 100
	case distance >= 2*proximityMeters:
		score = 0
	default:
		score = 100 * (2*proximityMeters - distance) / proximityMeters
	}
	return score, distance, true
}
