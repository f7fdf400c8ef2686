package simulator

import (
	"math"
	"time"
)

// OrderPattern scales the base order rate during a meal rush.
type OrderPattern struct {
	Type               string
	TimeMultipliers    map[int]float64
	WeekdayMultipliers map[time.Weekday]float64
}

var DefaultOrderPatterns = map[string]OrderPattern{
	"breakfast_rush": {
		Type: "breakfast",
		TimeMultipliers: map[int]float64{
			7:  1.5,
			8:  2.0,
			9:  1.8,
			10: 1.2,
		},
	},
	"lunch_rush": {
		Type: "lunch",
		TimeMultipliers: map[int]float64{
			11: 1.3,
			12: 2.0,
			13: 2.0,
			14: 1.5,
		},
		WeekdayMultipliers: map[time.Weekday]float64{
			time.Monday:   1.2,
			time.Friday:   1.4,
			time.Saturday: 0.8,
			time.Sunday:   0.7,
		},
	},
	"dinner_rush": {
		Type: "dinner",
		TimeMultipliers: map[int]float64{
			17: 1.2,
			18: 1.8,
			19: 2.0,
			20: 1.7,
			21: 1.3,
		},
		WeekdayMultipliers: map[time.Weekday]float64{
			time.Friday:   1.6,
			time.Saturday: 1.5,
			time.Sunday:   1.3,
		},
	},
	"late_night": {
		Type: "late_night",
		TimeMultipliers: map[int]float64{
			22: 1.4,
			23: 1.6,
			0:  1.3,
			1:  1.0,
			2:  0.8,
		},
		WeekdayMultipliers: map[time.Weekday]float64{
			time.Friday:   2.0,
			time.Saturday: 1.8,
		},
	},
}

// demandMultiplier returns the strongest rush active at t, or 1 outside every rush.
func demandMultiplier(t time.Time) float64 {
	multiplier := 1.0
	for _, pattern := range DefaultOrderPatterns {
		hourly, ok := pattern.TimeMultipliers[t.Hour()]
		if !ok {
			continue
		}
		weekday := 1.0
		if w, ok := pattern.WeekdayMultipliers[t.Weekday()]; ok {
			weekday = w
		}
		multiplier = math.Max(multiplier, hourly*weekday)
	}
	return multiplier
}

// travelSpeedMultiplier is how fast partners move at t relative to a free road.
func travelSpeedMultiplier(t time.Time) float64 {
	hour := t.Hour()
	weekday := t.Weekday()

	multiplier := 1.0

	// peak hour slowdown
	if (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18) {
		multiplier *= 0.7
	}

	// late night bonus
	if hour >= 22 || hour <= 4 {
		multiplier *= 1.3
	}

	if weekday == time.Saturday || weekday == time.Sunday {
		if hour >= 10 && hour <= 20 {
			multiplier *= 0.85
		}
	}

	return multiplier
}
