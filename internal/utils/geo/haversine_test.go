package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webmatcha/matcha-go/internal/utils/geo"
)

func TestDistanceKm(t *testing.T) {
	// Paris -> London is roughly 344 km great-circle
	d := geo.DistanceKm(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344, d, 5)
}

func TestDistanceKm_SamePoint(t *testing.T) {
	assert.Zero(t, geo.DistanceKm(48.8566, 2.3522, 48.8566, 2.3522))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := geo.DistanceKm(40.7128, -74.0060, 35.6762, 139.6503)
	b := geo.DistanceKm(35.6762, 139.6503, 40.7128, -74.0060)
	assert.InDelta(t, a, b, 1e-9)
	// New York -> Tokyo, about 10,850 km
	assert.InDelta(t, 10850, a, 100)
}
