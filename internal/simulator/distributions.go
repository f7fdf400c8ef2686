package simulator

import (
	"math"
	"math/rand"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
)

// poisson draws an event count for a window with mean lambda (Knuth).
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// normal draws from N(mean, std) clamped to [min, max].
func normal(rng *rand.Rand, mean, std, min, max float64) float64 {
	// Box-Muller transform for normal distribution
	u1 := 1 - rng.Float64()
	u2 := rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	return math.Max(min, math.Min(max, mean+z*std))
}

// pointWithin returns a uniformly distributed point at most radiusKm from centre.
func pointWithin(rng *rand.Rand, centre models.Location, radiusKm float64) models.Location {
	latRange := radiusKm / 111.0 // Approx. conversion from km to degrees
	lonRange := latRange / math.Cos(centre.Lat*math.Pi/180.0)

	for {
		r := math.Sqrt(rng.Float64())
		theta := rng.Float64() * 2 * math.Pi
		p := models.Location{
			Lat: centre.Lat + r*latRange*math.Sin(theta),
			Lon: centre.Lon + r*lonRange*math.Cos(theta),
		}
		if geo.Distance(centre, p) <= radiusKm {
			return p
		}
	}
}
