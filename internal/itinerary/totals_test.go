package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

func TestDayTotal(t *testing.T) {
	assert.Equal(t, int64(0), DayTotal(nil))
	assert.Equal(t, int64(1300000), DayTotal([]types.Activity{
		{ID: "a1", Cost: 500000},
		{ID: "a2", Cost: 800000, Optional: true},
	}))
}

func TestTripTotals(t *testing.T) {
	it := types.Itinerary{Days: []types.Day{
		{DayNumber: 1, Activities: []types.Activity{{Cost: 100}, {Cost: 200}}},
		{DayNumber: 2},
		{DayNumber: 3, Activities: []types.Activity{{Cost: 50, Optional: true}}},
	}}
	assert.Equal(t, types.Totals{Cost: 350, Activities: 3, Days: 3}, TripTotals(it))
}

func TestRecompute_DoesNotTouchInput(t *testing.T) {
	it := types.Itinerary{Days: []types.Day{
		{DayNumber: 1, DayTotal: 999, Activities: []types.Activity{{Cost: 10}}},
	}}
	out := Recompute(it)
	assert.Equal(t, int64(10), out.Days[0].DayTotal)
	assert.Equal(t, int64(999), it.Days[0].DayTotal)
}
