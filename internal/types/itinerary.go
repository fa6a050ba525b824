package types

import (
	"fmt"
	"sort"
	"time"
)

// Variant identifies which copy of an AI-generated itinerary a read or write targets.
type Variant string

const (
	VariantOriginal   Variant = "original"
	VariantCustomized Variant = "customized"
)

// ParseVariant accepts an empty string as "no preference".
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "":
		return "", nil
	case VariantOriginal, VariantCustomized:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("%w: unknown variant %q", ErrValidation, s)
	}
}

// TimeSlot is the part of the day an activity is scheduled in.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
	TimeSlotNight     TimeSlot = "night"
)

func (t TimeSlot) Valid() bool {
	switch t {
	case TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening, TimeSlotNight:
		return true
	}
	return false
}

// Itinerary is one variant (original or customized) of an AI-generated trip plan.
type Itinerary struct {
	ID            string    `json:"id"`
	AIGeneratedID string    `json:"ai_generated_id"`
	Variant       Variant   `json:"variant"`
	Destination   string    `json:"destination"`
	DurationDays  int       `json:"duration_days"`
	Summary       string    `json:"summary"`
	Days          []Day     `json:"days"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Day is one calendar day of an itinerary. DayTotal is derived from Activities.
type Day struct {
	ID           string     `json:"id"`
	DayNumber    int        `json:"day_number"`
	Theme        string     `json:"theme,omitempty"`
	Description  string     `json:"description,omitempty"`
	Activities   []Activity `json:"activities"`
	DayTotal     int64      `json:"day_total"`
	UserModified bool       `json:"user_modified"`
}

// Activity is a single schedulable item within a day. Cost is an integer VND amount.
type Activity struct {
	ID              string   `json:"activity_id"`
	Name            string   `json:"name"`
	Location        string   `json:"location,omitempty"`
	TimeSlot        TimeSlot `json:"time_slot"`
	DurationMinutes int      `json:"duration_minutes"`
	Cost            int64    `json:"cost"`
	ActivityType    string   `json:"activity_type"`
	Optional        bool     `json:"optional"`
	UserModified    bool     `json:"user_modified"`
}

// ItineraryView is what the itinerary store returns for an AI-generated id.
type ItineraryView struct {
	Original      Itinerary  `json:"original"`
	Customized    *Itinerary `json:"customized,omitempty"`
	HasCustomized bool       `json:"has_customized"`
}

// Totals are trip-level aggregates derived from the day list.
type Totals struct {
	Cost       int64 `json:"total_cost"`
	Activities int   `json:"total_activities"`
	Days       int   `json:"total_days"`
}

// DayFields carries the day-level fields a single day edit may persist.
type DayFields struct {
	Theme       *string `json:"theme,omitempty"`
	Description *string `json:"description,omitempty"`
}

// NormalizeDays orders days by DayNumber and rejects duplicate or non-positive numbers.
// The input slice is not modified.
func NormalizeDays(days []Day) ([]Day, error) {
	out := make([]Day, len(days))
	copy(out, days)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	for i := range out {
		if out[i].DayNumber < 1 {
			return nil, fmt.Errorf("%w: day number %d must be positive", ErrValidation, out[i].DayNumber)
		}
		if i > 0 && out[i].DayNumber == out[i-1].DayNumber {
			return nil, fmt.Errorf("%w: duplicate day number %d", ErrValidation, out[i].DayNumber)
		}
	}
	return out, nil
}

// SaveStatus is the transient autosave indicator shown to the user.
type SaveStatus string

const (
	SaveStatusIdle   SaveStatus = "idle"
	SaveStatusSaving SaveStatus = "saving"
	SaveStatusSaved  SaveStatus = "saved"
	SaveStatusError  SaveStatus = "error"
)

// SessionState is the snapshot an editing session exposes to the view layer.
type SessionState struct {
	AIGeneratedID string     `json:"ai_generated_id"`
	CustomizedID  string     `json:"customized_id"`
	Itinerary     Itinerary  `json:"itinerary"`
	Totals        Totals     `json:"totals"`
	Pending       bool       `json:"pending_changes"`
	SaveStatus    SaveStatus `json:"save_status"`
}

// ItineraryResponse is the read-path payload: the selected variant plus derived totals.
type ItineraryResponse struct {
	Itinerary     Itinerary `json:"itinerary"`
	Totals        Totals    `json:"totals"`
	Shown         Variant   `json:"shown"`
	HasCustomized bool      `json:"has_customized"`
	CustomizedID  string    `json:"customized_id,omitempty"`
}

// GenerateItineraryRequest asks the generation service for a new original itinerary.
type GenerateItineraryRequest struct {
	Destination  string   `json:"destination"`
	DurationDays int      `json:"duration_days"`
	Budget       int64    `json:"budget,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

// UpdateDayRequest is the body of a day edit.
type UpdateDayRequest struct {
	Theme       *string `json:"theme,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ActivityRequest is the body of an activity add or edit. Nil fields are left untouched.
type ActivityRequest struct {
	Name            *string   `json:"name,omitempty"`
	Location        *string   `json:"location,omitempty"`
	TimeSlot        *TimeSlot `json:"time_slot,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Cost            *int64    `json:"cost,omitempty"`
	ActivityType    *string   `json:"activity_type,omitempty"`
	Optional        *bool     `json:"optional,omitempty"`
}

// UpdateSummaryRequest is the body of a summary edit.
type UpdateSummaryRequest struct {
	Summary string `json:"summary"`
}

// ReorderRequest carries either the complete new order or a single move.
type ReorderRequest struct {
	ActivityIDs []string `json:"activity_ids,omitempty"`
	From        *int     `json:"from,omitempty"`
	To          *int     `json:"to,omitempty"`
}
