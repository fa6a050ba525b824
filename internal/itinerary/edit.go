// Package itinerary holds the day-structured itinerary edit model.
//
// Every operation takes a snapshot and returns a new one. Inputs are never mutated:
// the day list and the touched day's activity list are copied, untouched days share
// their activity slices with the previous snapshot.
package itinerary

import (
	"fmt"
	"strconv"
	"time"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

const (
	DefaultActivityName     = "New activity"
	DefaultActivityType     = "other"
	DefaultActivityDuration = 60
	provisionalIDPrefix     = "activity_"
)

// DayPatch holds the day-level fields an edit may set. Nil means unchanged.
type DayPatch struct {
	Theme       *string
	Description *string
}

// ActivityPatch holds the activity fields an edit may set. Nil means unchanged.
type ActivityPatch struct {
	Name            *string
	Location        *string
	TimeSlot        *types.TimeSlot
	DurationMinutes *int
	Cost            *int64
	ActivityType    *string
	Optional        *bool
}

// PatchFromRequest converts an API request body into a patch.
func PatchFromRequest(req types.ActivityRequest) ActivityPatch {
	return ActivityPatch{
		Name:            req.Name,
		Location:        req.Location,
		TimeSlot:        req.TimeSlot,
		DurationMinutes: req.DurationMinutes,
		Cost:            req.Cost,
		ActivityType:    req.ActivityType,
		Optional:        req.Optional,
	}
}

func (p ActivityPatch) validate() error {
	if p.TimeSlot != nil && !p.TimeSlot.Valid() {
		return fmt.Errorf("%w: unknown time slot %q", types.ErrValidation, *p.TimeSlot)
	}
	if p.DurationMinutes != nil && *p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", types.ErrValidation)
	}
	if p.Cost != nil && *p.Cost < 0 {
		return fmt.Errorf("%w: cost must not be negative", types.ErrValidation)
	}
	return nil
}

func (p ActivityPatch) apply(a types.Activity) types.Activity {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.TimeSlot != nil {
		a.TimeSlot = *p.TimeSlot
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.Cost != nil {
		a.Cost = *p.Cost
	}
	if p.ActivityType != nil {
		a.ActivityType = *p.ActivityType
	}
	if p.Optional != nil {
		a.Optional = *p.Optional
	}
	return a
}

// SetSummary replaces the itinerary summary.
func SetSummary(it types.Itinerary, text string) types.Itinerary {
	it.Days = cloneDays(it.Days)
	it.Summary = text
	return it
}

// EditDay merges patch into the day at dayIndex and marks it user-modified.
func EditDay(it types.Itinerary, dayIndex int, patch DayPatch) (types.Itinerary, error) {
	if err := checkDay(it, dayIndex); err != nil {
		return it, err
	}
	days := cloneDays(it.Days)
	d := days[dayIndex]
	if patch.Theme != nil {
		d.Theme = *patch.Theme
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	d.UserModified = true
	days[dayIndex] = d
	it.Days = days
	return it, nil
}

// EditActivity merges patch into one activity, marks it user-modified and recomputes the day total.
func EditActivity(it types.Itinerary, dayIndex, activityIndex int, patch ActivityPatch) (types.Itinerary, error) {
	if err := checkActivity(it, dayIndex, activityIndex); err != nil {
		return it, err
	}
	if err := patch.validate(); err != nil {
		return it, err
	}
	return withActivities(it, dayIndex, func(acts []types.Activity) []types.Activity {
		a := patch.apply(acts[activityIndex])
		a.UserModified = true
		acts[activityIndex] = a
		return acts
	}), nil
}

// NewActivity builds an activity with default values, overridden by patch, and a
// provisional id derived from now that does not collide with any id in existing.
func NewActivity(existing []types.Activity, patch ActivityPatch, now time.Time) (types.Activity, error) {
	if err := patch.validate(); err != nil {
		return types.Activity{}, err
	}
	a := patch.apply(types.Activity{
		Name:            DefaultActivityName,
		TimeSlot:        types.TimeSlotMorning,
		DurationMinutes: DefaultActivityDuration,
		ActivityType:    DefaultActivityType,
	})
	a.ID = provisionalID(existing, now)
	a.UserModified = true
	return a, nil
}

// AddActivity appends a new activity to the day at dayIndex.
func AddActivity(it types.Itinerary, dayIndex int, patch ActivityPatch, now time.Time) (types.Itinerary, types.Activity, error) {
	if err := checkDay(it, dayIndex); err != nil {
		return it, types.Activity{}, err
	}
	a, err := NewActivity(it.Days[dayIndex].Activities, patch, now)
	if err != nil {
		return it, types.Activity{}, err
	}
	return AppendActivity(it, dayIndex, a)
}

// AppendActivity appends an already-built activity, such as one created by the store.
func AppendActivity(it types.Itinerary, dayIndex int, a types.Activity) (types.Itinerary, types.Activity, error) {
	if err := checkDay(it, dayIndex); err != nil {
		return it, types.Activity{}, err
	}
	for _, existing := range it.Days[dayIndex].Activities {
		if existing.ID == a.ID {
			return it, types.Activity{}, fmt.Errorf("%w: activity id %q already in day", types.ErrValidation, a.ID)
		}
	}
	return withActivities(it, dayIndex, func(acts []types.Activity) []types.Activity {
		return append(acts, a)
	}), a, nil
}

// RemoveActivity deletes the activity at activityIndex. Callers confirm with the user first.
func RemoveActivity(it types.Itinerary, dayIndex, activityIndex int) (types.Itinerary, types.Activity, error) {
	if err := checkActivity(it, dayIndex, activityIndex); err != nil {
		return it, types.Activity{}, err
	}
	removed := it.Days[dayIndex].Activities[activityIndex]
	return withActivities(it, dayIndex, func(acts []types.Activity) []types.Activity {
		return append(acts[:activityIndex], acts[activityIndex+1:]...)
	}), removed, nil
}

// ReorderActivities puts the day's activities into the order given by orderedIDs,
// which must be a permutation of the current ids.
func ReorderActivities(it types.Itinerary, dayIndex int, orderedIDs []string) (types.Itinerary, error) {
	if err := checkDay(it, dayIndex); err != nil {
		return it, err
	}
	current := it.Days[dayIndex].Activities
	if err := CheckPermutation(ActivityIDs(it.Days[dayIndex]), orderedIDs); err != nil {
		return it, err
	}
	byID := make(map[string]types.Activity, len(current))
	for _, a := range current {
		byID[a.ID] = a
	}
	reordered := make([]types.Activity, len(orderedIDs))
	for i, id := range orderedIDs {
		reordered[i] = byID[id]
	}
	return withActivities(it, dayIndex, func([]types.Activity) []types.Activity {
		return reordered
	}), nil
}

// ReplaceActivities swaps in an authoritative activity list for one day.
func ReplaceActivities(it types.Itinerary, dayIndex int, acts []types.Activity) (types.Itinerary, error) {
	if err := checkDay(it, dayIndex); err != nil {
		return it, err
	}
	fresh := make([]types.Activity, len(acts))
	copy(fresh, acts)
	return withActivities(it, dayIndex, func([]types.Activity) []types.Activity {
		return fresh
	}), nil
}

// CheckPermutation fails unless ordered holds exactly the ids in current, each once.
func CheckPermutation(current, ordered []string) error {
	if len(ordered) != len(current) {
		return fmt.Errorf("%w: order has %d ids, day has %d activities", types.ErrValidation, len(ordered), len(current))
	}
	remaining := make(map[string]struct{}, len(current))
	for _, id := range current {
		remaining[id] = struct{}{}
	}
	for _, id := range ordered {
		if _, ok := remaining[id]; !ok {
			return fmt.Errorf("%w: unknown or repeated activity id %q", types.ErrValidation, id)
		}
		delete(remaining, id)
	}
	return nil
}

// ActivityIDs lists the ids of a day's activities in order.
func ActivityIDs(d types.Day) []string {
	ids := make([]string, len(d.Activities))
	for i, a := range d.Activities {
		ids[i] = a.ID
	}
	return ids
}

// DayIndexByID finds a day by its storage id.
func DayIndexByID(it types.Itinerary, dayID string) (int, bool) {
	for i, d := range it.Days {
		if d.ID == dayID {
			return i, true
		}
	}
	return -1, false
}

func withActivities(it types.Itinerary, dayIndex int, fn func([]types.Activity) []types.Activity) types.Itinerary {
	days := cloneDays(it.Days)
	d := days[dayIndex]
	acts := make([]types.Activity, len(d.Activities), len(d.Activities)+1)
	copy(acts, d.Activities)
	d.Activities = fn(acts)
	d.DayTotal = DayTotal(d.Activities)
	days[dayIndex] = d
	it.Days = days
	return it
}

func cloneDays(days []types.Day) []types.Day {
	out := make([]types.Day, len(days))
	copy(out, days)
	return out
}

func checkDay(it types.Itinerary, dayIndex int) error {
	if dayIndex < 0 || dayIndex >= len(it.Days) {
		return fmt.Errorf("%w: day %d of %d", types.ErrIndexOutOfRange, dayIndex, len(it.Days))
	}
	return nil
}

func checkActivity(it types.Itinerary, dayIndex, activityIndex int) error {
	if err := checkDay(it, dayIndex); err != nil {
		return err
	}
	n := len(it.Days[dayIndex].Activities)
	if activityIndex < 0 || activityIndex >= n {
		return fmt.Errorf("%w: activity %d of %d in day %d", types.ErrIndexOutOfRange, activityIndex, n, dayIndex)
	}
	return nil
}

func provisionalID(existing []types.Activity, now time.Time) string {
	taken := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		taken[a.ID] = struct{}{}
	}
	ts := now.UnixMilli()
	for {
		id := provisionalIDPrefix + strconv.FormatInt(ts, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		ts++
	}
}
