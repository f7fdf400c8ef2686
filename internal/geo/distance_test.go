package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chrisdamba/foodispatch/internal/models"
)

func TestDistance_Identity(t *testing.T) {
	p := models.Location{Lat: -23.561, Lon: -46.656}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistance_Symmetric(t *testing.T) {
	points := []models.Location{
		{Lat: -23.561, Lon: -46.656},
		{Lat: -23.550, Lon: -46.689},
		{Lat: 51.5074, Lon: -0.1278},
		{Lat: 40.7128, Lon: -74.0060},
		{Lat: 0, Lon: 179.9},
		{Lat: 0, Lon: -179.9},
	}
	for _, a := range points {
		for _, b := range points {
			ab, ba := Distance(a, b), Distance(b, a)
			assert.InDelta(t, ab, ba, 1e-9, "%v -> %v", a, b)
		}
	}
}

func TestDistance_KnownValues(t *testing.T) {
	// Sao Paulo pickup/dropoff pair used across dispatch tests.
	d := Distance(models.Location{Lat: -23.561, Lon: -46.656}, models.Location{Lat: -23.550, Lon: -46.689})
	assert.InDelta(t, 3.579, d, 0.01)

	// One degree of latitude along a meridian.
	oneDegree := Distance(models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 1, Lon: 0})
	assert.InEpsilon(t, earthRadiusKm*math.Pi/180, oneDegree, 1e-6)

	// London -> New York, ~5570 km.
	ln := Distance(models.Location{Lat: 51.5074, Lon: -0.1278}, models.Location{Lat: 40.7128, Lon: -74.0060})
	assert.InDelta(t, 5570, ln, 5)
}

func TestDistance_AcrossAntimeridian(t *testing.T) {
	d := Distance(models.Location{Lat: 0, Lon: 179.9}, models.Location{Lat: 0, Lon: -179.9})
	assert.InDelta(t, 22.24, d, 0.01)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 3.6, RoundKm(3.579))
	assert.Equal(t, 3.5, RoundKm(3.54))
	assert.Equal(t, 0.0, RoundKm(0.04))
}
