package itinerary

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64  { return &v }
func intPtr(v int) *int        { return &v }

func sampleItinerary() types.Itinerary {
	return Recompute(types.Itinerary{
		ID:            "cust-1",
		AIGeneratedID: "ai-1",
		Variant:       types.VariantCustomized,
		Destination:   "Da Nang",
		DurationDays:  2,
		Days: []types.Day{
			{
				ID:        "day-1",
				DayNumber: 1,
				Theme:     "Beaches",
				Activities: []types.Activity{
					{ID: "a1", Name: "My Khe beach", TimeSlot: types.TimeSlotMorning, DurationMinutes: 120, Cost: 500000},
					{ID: "a2", Name: "Seafood dinner", TimeSlot: types.TimeSlotEvening, DurationMinutes: 90, Cost: 800000},
				},
			},
			{ID: "day-2", DayNumber: 2, Theme: "Hoi An"},
		},
	})
}

func assertTotalsConsistent(t *testing.T, it types.Itinerary) {
	t.Helper()
	for _, d := range it.Days {
		assert.Equal(t, DayTotal(d.Activities), d.DayTotal, "day %d total out of sync", d.DayNumber)
	}
}

func TestRemoveActivity_RecomputesTotal(t *testing.T) {
	it := sampleItinerary()
	require.Equal(t, int64(1300000), it.Days[0].DayTotal)

	next, removed, err := RemoveActivity(it, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "a1", removed.ID)
	require.Len(t, next.Days[0].Activities, 1)
	assert.Equal(t, "a2", next.Days[0].Activities[0].ID)
	assert.Equal(t, int64(800000), next.Days[0].DayTotal)

	// the previous snapshot is untouched
	assert.Len(t, it.Days[0].Activities, 2)
	assert.Equal(t, int64(1300000), it.Days[0].DayTotal)
}

func TestAddActivity_DefaultsOnEmptyDay(t *testing.T) {
	it := sampleItinerary()
	now := time.UnixMilli(1717000000000)

	next, added, err := AddActivity(it, 1, ActivityPatch{}, now)
	require.NoError(t, err)
	require.Len(t, next.Days[1].Activities, 1)

	a := next.Days[1].Activities[0]
	assert.Equal(t, added, a)
	assert.Equal(t, "activity_1717000000000", a.ID)
	assert.Equal(t, int64(0), a.Cost)
	assert.Equal(t, types.TimeSlotMorning, a.TimeSlot)
	assert.Equal(t, 60, a.DurationMinutes)
	assert.Equal(t, DefaultActivityName, a.Name)
	assert.Equal(t, DefaultActivityType, a.ActivityType)
	assert.True(t, a.UserModified)
	assert.Equal(t, int64(0), next.Days[1].DayTotal)
	assert.Empty(t, it.Days[1].Activities)
}

func TestAddActivity_ProvisionalIDsStayUnique(t *testing.T) {
	it := sampleItinerary()
	now := time.UnixMilli(42)

	it, first, err := AddActivity(it, 1, ActivityPatch{}, now)
	require.NoError(t, err)
	it, second, err := AddActivity(it, 1, ActivityPatch{Cost: int64Ptr(1000)}, now)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "activity_43", second.ID)
	assert.Equal(t, int64(1000), it.Days[1].DayTotal)
}

func TestEditDay_MarksOnlyThatDay(t *testing.T) {
	it := sampleItinerary()

	next, err := EditDay(it, 0, DayPatch{Theme: strPtr("X")})
	require.NoError(t, err)
	assert.Equal(t, "X", next.Days[0].Theme)
	assert.True(t, next.Days[0].UserModified)
	assert.False(t, next.Days[1].UserModified)
	assert.False(t, it.Days[0].UserModified)
	assert.Equal(t, "Beaches", it.Days[0].Theme)
}

func TestEditActivity(t *testing.T) {
	it := sampleItinerary()

	t.Run("merges fields and recomputes total", func(t *testing.T) {
		next, err := EditActivity(it, 0, 1, ActivityPatch{Cost: int64Ptr(200000), Location: strPtr("Son Tra")})
		require.NoError(t, err)
		a := next.Days[0].Activities[1]
		assert.Equal(t, int64(200000), a.Cost)
		assert.Equal(t, "Son Tra", a.Location)
		assert.Equal(t, "Seafood dinner", a.Name)
		assert.True(t, a.UserModified)
		assert.False(t, next.Days[0].Activities[0].UserModified)
		assert.Equal(t, int64(700000), next.Days[0].DayTotal)
	})

	t.Run("rejects negative cost without change", func(t *testing.T) {
		next, err := EditActivity(it, 0, 0, ActivityPatch{Cost: int64Ptr(-1)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrValidation))
		assert.Equal(t, it, next)
	})

	t.Run("rejects unknown time slot", func(t *testing.T) {
		slot := types.TimeSlot("brunch")
		_, err := EditActivity(it, 0, 0, ActivityPatch{TimeSlot: &slot})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		_, err := EditActivity(it, 0, 0, ActivityPatch{DurationMinutes: intPtr(0)})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestIndexOutOfRange(t *testing.T) {
	it := sampleItinerary()

	_, err := EditDay(it, 5, DayPatch{})
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = EditActivity(it, 0, 2, ActivityPatch{})
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)

	_, _, err = RemoveActivity(it, 1, 0)
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)

	_, _, err = AddActivity(it, -1, ActivityPatch{}, time.Now())
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
}

func TestTotalInvariantOverEditSequence(t *testing.T) {
	it := sampleItinerary()
	now := time.UnixMilli(1000)
	var err error

	steps := []func(types.Itinerary) (types.Itinerary, error){
		func(it types.Itinerary) (types.Itinerary, error) {
			it, _, err := AddActivity(it, 0, ActivityPatch{Cost: int64Ptr(150000)}, now)
			return it, err
		},
		func(it types.Itinerary) (types.Itinerary, error) {
			return EditActivity(it, 0, 0, ActivityPatch{Cost: int64Ptr(10)})
		},
		func(it types.Itinerary) (types.Itinerary, error) {
			it, _, err := RemoveActivity(it, 0, 1)
			return it, err
		},
		func(it types.Itinerary) (types.Itinerary, error) {
			return ReorderActivities(it, 0, []string{"activity_1000", "a1"})
		},
		func(it types.Itinerary) (types.Itinerary, error) {
			it, _, err := AddActivity(it, 1, ActivityPatch{Cost: int64Ptr(99)}, now)
			return it, err
		},
	}
	for i, step := range steps {
		it, err = step(it)
		require.NoError(t, err, "step %d", i)
		assertTotalsConsistent(t, it)
	}
	assert.Equal(t, types.Totals{Cost: 150109, Activities: 3, Days: 2}, TripTotals(it))
}

func TestReorderActivities(t *testing.T) {
	it := sampleItinerary()
	it, _, err := AddActivity(it, 0, ActivityPatch{}, time.UnixMilli(7))
	require.NoError(t, err)
	ids := ActivityIDs(it.Days[0])
	require.Equal(t, []string{"a1", "a2", "activity_7"}, ids)

	next, err := ReorderActivities(it, 0, []string{"activity_7", "a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"activity_7", "a1", "a2"}, ActivityIDs(next.Days[0]))
	assert.Equal(t, it.Days[0].DayTotal, next.Days[0].DayTotal)
	assert.Equal(t, 1, next.Days[0].DayNumber)
	assert.Equal(t, ids, ActivityIDs(it.Days[0]))

	for name, order := range map[string][]string{
		"omission":  {"a1", "a2"},
		"addition":  {"a1", "a2", "activity_7", "zz"},
		"duplicate": {"a1", "a1", "a2"},
		"unknown":   {"a1", "a2", "zz"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReorderActivities(it, 0, order)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestDayNumbersStableAcrossReorder(t *testing.T) {
	it := sampleItinerary()
	next, err := ReorderActivities(it, 0, []string{"a2", "a1"})
	require.NoError(t, err)
	for i := range it.Days {
		assert.Equal(t, it.Days[i].DayNumber, next.Days[i].DayNumber)
	}
}

func TestUserModifiedNeverReset(t *testing.T) {
	it := sampleItinerary()
	it, err := EditActivity(it, 0, 0, ActivityPatch{Name: strPtr("Beach")})
	require.NoError(t, err)
	it, err = ReorderActivities(it, 0, []string{"a2", "a1"})
	require.NoError(t, err)
	it, err = EditDay(it, 0, DayPatch{Description: strPtr("sun")})
	require.NoError(t, err)
	it = SetSummary(it, "new")

	assert.True(t, it.Days[0].Activities[1].UserModified)
	assert.True(t, it.Days[0].UserModified)
	assert.Equal(t, "new", it.Summary)
}

func TestReplaceActivities(t *testing.T) {
	it := sampleItinerary()
	fresh := []types.Activity{{ID: "s1", Cost: 5}}

	next, err := ReplaceActivities(it, 0, fresh)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ActivityIDs(next.Days[0]))
	assert.Equal(t, int64(5), next.Days[0].DayTotal)

	fresh[0].ID = "mutated"
	assert.Equal(t, "s1", next.Days[0].Activities[0].ID)
}

func TestDayIndexByID(t *testing.T) {
	it := sampleItinerary()
	idx, ok := DayIndexByID(it, "day-2")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = DayIndexByID(it, "nope")
	assert.False(t, ok)
}
