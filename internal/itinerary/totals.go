package itinerary

import "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"

// DayTotal sums the cost of every activity, optional ones included.
func DayTotal(acts []types.Activity) int64 {
	var total int64
	for _, a := range acts {
		total += a.Cost
	}
	return total
}

// TripTotals aggregates cost and activity count over all days.
func TripTotals(it types.Itinerary) types.Totals {
	t := types.Totals{Days: len(it.Days)}
	for _, d := range it.Days {
		t.Cost += DayTotal(d.Activities)
		t.Activities += len(d.Activities)
	}
	return t
}

// Recompute returns a copy of it with every DayTotal derived from its activities.
func Recompute(it types.Itinerary) types.Itinerary {
	days := make([]types.Day, len(it.Days))
	for i, d := range it.Days {
		d.DayTotal = DayTotal(d.Activities)
		days[i] = d
	}
	it.Days = days
	return it
}
