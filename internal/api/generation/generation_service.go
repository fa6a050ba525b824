package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

const maxDurationDays = 14

var _ Service = (*ServiceImpl)(nil)

// Generator produces a JSON document for a prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Store persists a generated itinerary as the original variant.
type Store interface {
	SaveOriginal(ctx context.Context, it *types.Itinerary) error
}

type Service interface {
	GenerateItinerary(ctx context.Context, req types.GenerateItineraryRequest) (*types.ItineraryResponse, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	generator Generator
	store     Store
}

func NewServiceImpl(generator Generator, store Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		generator: generator,
		store:     store,
	}
}

type generatedActivity struct {
	Name            string `json:"name"`
	Location        string `json:"location"`
	TimeSlot        string `json:"time_slot"`
	DurationMinutes int    `json:"duration_minutes"`
	Cost            int64  `json:"cost"`
	ActivityType    string `json:"activity_type"`
	Optional        bool   `json:"optional"`
}

type generatedDay struct {
	DayNumber   int                 `json:"day_number"`
	Theme       string              `json:"theme"`
	Description string              `json:"description"`
	Activities  []generatedActivity `json:"activities"`
}

type generatedItinerary struct {
	Summary string         `json:"summary"`
	Days    []generatedDay `json:"days"`
}

func (s *ServiceImpl) GenerateItinerary(ctx context.Context, req types.GenerateItineraryRequest) (*types.ItineraryResponse, error) {
	ctx, span := otel.Tracer("GenerationService").Start(ctx, "GenerateItinerary", trace.WithAttributes(
		attribute.String("itinerary.destination", req.Destination),
		attribute.Int("itinerary.duration_days", req.DurationDays),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "GenerateItinerary"), slog.String("destination", req.Destination))

	if err := validateRequest(req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	txt, err := s.generator.GenerateJSON(ctx, generateItineraryPrompt(req))
	if err != nil {
		l.ErrorContext(ctx, "Model call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, fmt.Errorf("%w: itinerary generation: %v", types.ErrNetwork, err)
	}

	it, err := parseItinerary(txt, req)
	if err != nil {
		l.ErrorContext(ctx, "Model returned an unusable itinerary", slog.Any("error", err), slog.Int("length", len(txt)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}

	if err := s.store.SaveOriginal(ctx, it); err != nil {
		l.ErrorContext(ctx, "Failed to store generated itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("failed to store generated itinerary: %w", err)
	}

	stored := itinerary.Recompute(*it)
	l.InfoContext(ctx, "Itinerary generated", slog.String("aiGeneratedID", stored.AIGeneratedID), slog.Int("days", len(stored.Days)))
	span.SetAttributes(attribute.String("itinerary.ai_generated_id", stored.AIGeneratedID))
	span.SetStatus(codes.Ok, "")
	return &types.ItineraryResponse{
		Itinerary: stored,
		Totals:    itinerary.TripTotals(stored),
		Shown:     types.VariantOriginal,
	}, nil
}

func validateRequest(req types.GenerateItineraryRequest) error {
	if strings.TrimSpace(req.Destination) == "" {
		return fmt.Errorf("%w: destination is required", types.ErrValidation)
	}
	if req.DurationDays < 1 || req.DurationDays > maxDurationDays {
		return fmt.Errorf("%w: duration_days must be between 1 and %d", types.ErrValidation, maxDurationDays)
	}
	if req.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", types.ErrValidation)
	}
	return nil
}

// parseItinerary turns model output into an original itinerary. Activity ids are
// assigned per day, unknown time slots fall back to morning, negative costs to 0
// and non-positive durations to the add-activity default.
func parseItinerary(txt string, req types.GenerateItineraryRequest) (*types.Itinerary, error) {
	var g generatedItinerary
	if err := json.Unmarshal([]byte(txt), &g); err != nil {
		return nil, fmt.Errorf("%w: malformed itinerary from model: %v", types.ErrNetwork, err)
	}
	if len(g.Days) == 0 {
		return nil, fmt.Errorf("%w: model returned no days", types.ErrNetwork)
	}

	it := &types.Itinerary{
		Variant:      types.VariantOriginal,
		Destination:  req.Destination,
		DurationDays: req.DurationDays,
		Summary:      strings.TrimSpace(g.Summary),
		Days:         make([]types.Day, 0, len(g.Days)),
	}
	for i, gd := range g.Days {
		dayNumber := gd.DayNumber
		if dayNumber < 1 {
			dayNumber = i + 1
		}
		day := types.Day{
			DayNumber:   dayNumber,
			Theme:       gd.Theme,
			Description: gd.Description,
			Activities:  make([]types.Activity, 0, len(gd.Activities)),
		}
		for j, ga := range gd.Activities {
			slot := types.TimeSlot(strings.ToLower(strings.TrimSpace(ga.TimeSlot)))
			if !slot.Valid() {
				slot = types.TimeSlotMorning
			}
			a := types.Activity{
				ID:              fmt.Sprintf("act_%d_%d", dayNumber, j+1),
				Name:            ga.Name,
				Location:        ga.Location,
				TimeSlot:        slot,
				DurationMinutes: ga.DurationMinutes,
				Cost:            max(ga.Cost, 0),
				ActivityType:    ga.ActivityType,
				Optional:        ga.Optional,
			}
			if a.DurationMinutes <= 0 {
				a.DurationMinutes = itinerary.DefaultActivityDuration
			}
			if a.Name == "" {
				a.Name = itinerary.DefaultActivityName
			}
			if a.ActivityType == "" {
				a.ActivityType = itinerary.DefaultActivityType
			}
			day.Activities = append(day.Activities, a)
		}
		it.Days = append(it.Days, day)
	}

	days, err := types.NormalizeDays(it.Days)
	if err != nil {
		return nil, fmt.Errorf("%w: model output: %v", types.ErrNetwork, err)
	}
	it.Days = days
	return it, nil
}
