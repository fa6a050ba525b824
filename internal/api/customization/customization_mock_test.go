package customization

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FetchItinerary(ctx context.Context, aiGeneratedID string) (*types.ItineraryView, error) {
	args := m.Called(ctx, aiGeneratedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ItineraryView), args.Error(1)
}

func (m *MockRepository) FetchOrInitializeCustomized(ctx context.Context, aiGeneratedID string) (*types.Itinerary, error) {
	args := m.Called(ctx, aiGeneratedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Itinerary), args.Error(1)
}

func (m *MockRepository) PersistCustomized(ctx context.Context, customizedID, summary string, days []types.Day) error {
	args := m.Called(ctx, customizedID, summary, days)
	return args.Error(0)
}

func (m *MockRepository) UpdateDay(ctx context.Context, dayID string, fields types.DayFields) error {
	args := m.Called(ctx, dayID, fields)
	return args.Error(0)
}

func (m *MockRepository) UpdateActivity(ctx context.Context, dayID, activityID string, activity types.Activity) error {
	args := m.Called(ctx, dayID, activityID, activity)
	return args.Error(0)
}

func (m *MockRepository) AddActivity(ctx context.Context, dayID string, activity types.Activity) (*types.Activity, error) {
	args := m.Called(ctx, dayID, activity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Activity), args.Error(1)
}

func (m *MockRepository) RemoveActivity(ctx context.Context, dayID, activityID string) error {
	args := m.Called(ctx, dayID, activityID)
	return args.Error(0)
}

func (m *MockRepository) ReorderActivities(ctx context.Context, dayID string, orderedIDs []string) error {
	args := m.Called(ctx, dayID, orderedIDs)
	return args.Error(0)
}

func (m *MockRepository) DeleteItinerary(ctx context.Context, aiGeneratedID string) error {
	args := m.Called(ctx, aiGeneratedID)
	return args.Error(0)
}

func (m *MockRepository) SaveOriginal(ctx context.Context, it *types.Itinerary) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}

// sampleItinerary builds a two-day customized itinerary. Days are listed out of order.
func sampleItinerary() types.Itinerary {
	return types.Itinerary{
		ID:            "c1",
		AIGeneratedID: "ai-1",
		Variant:       types.VariantCustomized,
		Destination:   "Hanoi",
		DurationDays:  2,
		Summary:       "Lakes and street food",
		Days: []types.Day{
			{
				ID: "d2", DayNumber: 2, Theme: "Museums",
				Activities: []types.Activity{
					{ID: "b1", Name: "Temple of Literature", TimeSlot: types.TimeSlotMorning, DurationMinutes: 90, Cost: 30000, ActivityType: "culture"},
				},
			},
			{
				ID: "d1", DayNumber: 1, Theme: "Old Quarter",
				Activities: []types.Activity{
					{ID: "a1", Name: "Hoan Kiem Lake", TimeSlot: types.TimeSlotMorning, DurationMinutes: 60, Cost: 0, ActivityType: "sightseeing"},
					{ID: "a2", Name: "Pho breakfast", TimeSlot: types.TimeSlotMorning, DurationMinutes: 45, Cost: 50000, ActivityType: "food"},
					{ID: "a3", Name: "Water puppets", TimeSlot: types.TimeSlotEvening, DurationMinutes: 60, Cost: 150000, ActivityType: "culture", Optional: true},
				},
			},
		},
	}
}
