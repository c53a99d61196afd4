package reservation

import (
	"math"
	"time"
)

// MinimumBillableHours is charged for any stay shorter than an hour.
const MinimumBillableHours = 1.0

// BillableHours returns the elapsed hours between parking and leaving rounded
// to two decimals, never less than MinimumBillableHours.
func BillableHours(parking, leaving time.Time) float64 {
	hours := round2(leaving.Sub(parking).Seconds() / 3600)
	return math.Max(hours, MinimumBillableHours)
}

// ComputeCost prices a stay at pricePerHour, rounded to two decimals.
func ComputeCost(parking, leaving time.Time, pricePerHour float64) float64 {
	return round2(BillableHours(parking, leaving) * pricePerHour)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
