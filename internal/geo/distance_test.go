package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	london    = Point{Lat: 51.5074, Lng: -0.1278}
	edinburgh = Point{Lat: 55.9533, Lng: -3.1883}
	paris     = Point{Lat: 48.8566, Lng: 2.3522}
	berlin    = Point{Lat: 52.5200, Lng: 13.4050}
	hamburg   = Point{Lat: 53.5511, Lng: 9.9937}
)

func TestHaversineMeters(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Point
		wantKM float64
	}{
		{"london to edinburgh", london, edinburgh, 534},
		{"paris to london", paris, london, 344},
		{"berlin to hamburg", berlin, hamburg, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineMeters(tt.a, tt.b)
			assert.InDelta(t, tt.wantKM*1000, got, 2000)
		})
	}
}

func TestHaversineMeters_ReferenceBand(t *testing.T) {
	d := HaversineMeters(london, edinburgh)
	assert.Greater(t, d, 500_000.0)
	assert.Less(t, d, 600_000.0)
}

func TestHaversineMeters_Identical(t *testing.T) {
	assert.Equal(t, 0.0, HaversineMeters(berlin, berlin))
	assert.Equal(t, 0.0, HaversineMeters(Point{}, Point{}))
}

func TestHaversineMeters_Symmetric(t *testing.T) {
	assert.InDelta(t, HaversineMeters(paris, berlin), HaversineMeters(berlin, paris), 1e-6)
}

func TestHaversineMeters_Antipodal(t *testing.T) {
	d := HaversineMeters(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 180})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*earthRadiusMeters, d, 1)
}

func TestHaversineKM(t *testing.T) {
	assert.InDelta(t, 255, HaversineKM(berlin, hamburg), 2)
}

func TestPointValid(t *testing.T) {
	assert.True(t, london.Valid())
	assert.False(t, Point{Lat: 91}.Valid())
	assert.False(t, Point{Lng: -181}.Valid())
	assert.False(t, Point{Lat: math.NaN()}.Valid())
}
