// Package geo holds the great-circle helpers used by candidate search and pricing.
package geo

import (
	"math"

	"github.com/chrisdamba/foodispatch/internal/models"
)

const earthRadiusKm = 6371.0

// Distance returns the Haversine distance between two coordinates in kilometers.
func Distance(loc1, loc2 models.Location) float64 {
	lat1 := degreesToRadians(loc1.Lat)
	lon1 := degreesToRadians(loc1.Lon)
	lat2 := degreesToRadians(loc2.Lat)
	lon2 := degreesToRadians(loc2.Lon)

	dlat := lat2 - lat1
	dlon := lon2 - lon1
	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// RoundKm rounds a distance to the 0.1 km precision stored on offers.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
