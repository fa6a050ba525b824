package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveOriginal(ctx context.Context, it *types.Itinerary) error {
	args := m.Called(ctx, it)
	if args.Error(0) == nil {
		it.ID = "o1"
		it.AIGeneratedID = "ai-new"
	}
	return args.Error(0)
}

const modelOutput = `{
  "summary": "  Three days of lakes and food  ",
  "days": [
    {"day_number": 2, "theme": "Old Quarter", "activities": [
      {"name": "Street food tour", "time_slot": "Evening", "duration_minutes": 120, "cost": 250000, "activity_type": "food"}
    ]},
    {"day_number": 1, "theme": "Lakes", "activities": [
      {"name": "Hoan Kiem walk", "time_slot": "morning", "duration_minutes": 60, "cost": 0, "activity_type": "nature"},
      {"name": "", "time_slot": "brunch", "duration_minutes": -5, "cost": -100, "activity_type": ""}
    ]}
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hanoiRequest() types.GenerateItineraryRequest {
	return types.GenerateItineraryRequest{Destination: "Hanoi", DurationDays: 2, Budget: 2000000, Interests: []string{"food"}}
}

func TestGenerateItinerary(t *testing.T) {
	gen := &MockGenerator{}
	store := &MockStore{}
	svc := NewServiceImpl(gen, store, discardLogger())

	gen.On("GenerateJSON", mock.Anything, mock.MatchedBy(func(p string) bool {
		return assert.Contains(t, p, "2-day trip to Hanoi") && assert.Contains(t, p, "[food]")
	})).Return(modelOutput, nil).Once()
	store.On("SaveOriginal", mock.Anything, mock.MatchedBy(func(it *types.Itinerary) bool {
		return it.Variant == types.VariantOriginal && len(it.Days) == 2 && it.Days[0].DayNumber == 1
	})).Return(nil).Once()

	resp, err := svc.GenerateItinerary(context.Background(), hanoiRequest())
	require.NoError(t, err)

	assert.Equal(t, types.VariantOriginal, resp.Shown)
	assert.False(t, resp.HasCustomized)
	assert.Equal(t, "ai-new", resp.Itinerary.AIGeneratedID)
	assert.Equal(t, "Three days of lakes and food", resp.Itinerary.Summary)
	assert.Equal(t, types.Totals{Cost: 250000, Activities: 3, Days: 2}, resp.Totals)

	first := resp.Itinerary.Days[0]
	assert.Equal(t, "Lakes", first.Theme)
	require.Len(t, first.Activities, 2)
	assert.Equal(t, "act_1_1", first.Activities[0].ID)
	fallback := first.Activities[1]
	assert.Equal(t, types.TimeSlotMorning, fallback.TimeSlot)
	assert.Equal(t, int64(0), fallback.Cost)
	assert.Equal(t, itinerary.DefaultActivityDuration, fallback.DurationMinutes)
	assert.Equal(t, "New activity", fallback.Name)
	assert.Equal(t, "other", fallback.ActivityType)

	second := resp.Itinerary.Days[1]
	assert.Equal(t, types.TimeSlotEvening, second.Activities[0].TimeSlot)
	assert.Equal(t, int64(250000), second.DayTotal)

	gen.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestGenerateItinerary_Validation(t *testing.T) {
	svc := NewServiceImpl(&MockGenerator{}, &MockStore{}, discardLogger())

	for name, req := range map[string]types.GenerateItineraryRequest{
		"missing destination": {Destination: "  ", DurationDays: 2},
		"zero days":           {Destination: "Hue", DurationDays: 0},
		"too many days":       {Destination: "Hue", DurationDays: 15},
		"negative budget":     {Destination: "Hue", DurationDays: 2, Budget: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GenerateItinerary(context.Background(), req)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestGenerateItinerary_ModelFailures(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
	}{
		{"call fails", "", errors.New("quota exceeded")},
		{"malformed json", `{"days": [`, nil},
		{"no days", `{"summary":"x","days":[]}`, nil},
		{"duplicate day numbers", `{"days":[{"day_number":1},{"day_number":1}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockGenerator{}
			store := &MockStore{}
			gen.On("GenerateJSON", mock.Anything, mock.Anything).Return(tt.output, tt.err).Once()
			svc := NewServiceImpl(gen, store, discardLogger())

			_, err := svc.GenerateItinerary(context.Background(), hanoiRequest())
			assert.ErrorIs(t, err, types.ErrNetwork)
			store.AssertNotCalled(t, "SaveOriginal", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateItinerary_StoreFailure(t *testing.T) {
	gen := &MockGenerator{}
	store := &MockStore{}
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return(modelOutput, nil).Once()
	store.On("SaveOriginal", mock.Anything, mock.Anything).Return(types.ErrNetwork).Once()
	svc := NewServiceImpl(gen, store, discardLogger())

	_, err := svc.GenerateItinerary(context.Background(), hanoiRequest())
	assert.ErrorIs(t, err, types.ErrNetwork)
	assert.Contains(t, err.Error(), "failed to store generated itinerary")
}

func TestGenerateItineraryPrompt_Defaults(t *testing.T) {
	p := generateItineraryPrompt(types.GenerateItineraryRequest{Destination: "Da Nang", DurationDays: 3})
	assert.Contains(t, p, "3-day trip to Da Nang")
	assert.Contains(t, p, "general sightseeing, local food")
	assert.Contains(t, p, "no fixed budget")
	assert.Contains(t, p, "STRICTLY as a JSON object")
}
