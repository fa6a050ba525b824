package customization

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	appMiddleware "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/middleware"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/autosave"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/reorder"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

// EditMode selects how an edit reaches the store.
type EditMode string

const (
	// ModeAutosave applies the edit locally and lets the scheduler persist the whole document.
	ModeAutosave EditMode = "autosave"
	// ModeDirect calls the granular store operation first and applies locally only on success.
	ModeDirect EditMode = "direct"
)

func ParseEditMode(s string) (EditMode, error) {
	switch EditMode(s) {
	case "", ModeAutosave:
		return ModeAutosave, nil
	case ModeDirect:
		return ModeDirect, nil
	default:
		return "", fmt.Errorf("%w: unknown edit mode %q", types.ErrValidation, s)
	}
}

// Session is one user's editing session on a customized itinerary. It owns the
// working snapshot, the autosave scheduler and the per-day reorder coordinator.
// Timer callbacks run on their own goroutines, so every access to the snapshot
// goes through mu.
type Session struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time

	userID        string
	aiGeneratedID string
	customizedID  string

	saver    *autosave.Scheduler
	reorders *reorder.Coordinator

	mu     sync.Mutex
	it     types.Itinerary
	closed bool

	tokenMu sync.Mutex
	token   string
}

func newSession(repo Repository, userID string, it types.Itinerary, cfg autosave.Config, logger *slog.Logger) (*Session, error) {
	days, err := types.NormalizeDays(it.Days)
	if err != nil {
		return nil, err
	}
	it.Days = days
	aiGeneratedID := it.AIGeneratedID

	s := &Session{
		repo:          repo,
		now:           time.Now,
		userID:        userID,
		aiGeneratedID: aiGeneratedID,
		customizedID:  it.ID,
		it:            itinerary.Recompute(it),
	}
	s.logger = logger.With(slog.String("customizedID", s.customizedID), slog.String("userID", userID))
	s.saver = autosave.NewScheduler(cfg, s.persist, s.logger)
	s.reorders = reorder.NewCoordinator(s.persistOrder, s.refreshDay, s.logger)
	return s, nil
}

func (s *Session) UserID() string        { return s.userID }
func (s *Session) AIGeneratedID() string { return s.aiGeneratedID }
func (s *Session) CustomizedID() string  { return s.customizedID }

// State returns the current snapshot with derived totals and save status.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	it := s.it
	s.mu.Unlock()
	return types.SessionState{
		AIGeneratedID: s.aiGeneratedID,
		CustomizedID:  s.customizedID,
		Itinerary:     it,
		Totals:        itinerary.TripTotals(it),
		Pending:       s.saver.Pending(),
		SaveStatus:    s.saver.Status(),
	}
}

// touch remembers the caller's bearer token for timer-triggered saves.
func (s *Session) touch(ctx context.Context) {
	if token, ok := appMiddleware.GetTokenFromContext(ctx); ok {
		s.tokenMu.Lock()
		s.token = token
		s.tokenMu.Unlock()
	}
}

func (s *Session) SetSummary(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrSessionNotFound
	}
	s.it = itinerary.SetSummary(s.it, text)
	s.saver.MarkDirty()
	return nil
}

func (s *Session) EditDay(ctx context.Context, dayIndex int, patch itinerary.DayPatch, mode EditMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrSessionNotFound
	}
	next, err := itinerary.EditDay(s.it, dayIndex, patch)
	if err != nil {
		return err
	}
	if mode == ModeDirect {
		fields := types.DayFields{Theme: patch.Theme, Description: patch.Description}
		if err := s.repo.UpdateDay(s.withToken(ctx), next.Days[dayIndex].ID, fields); err != nil {
			return fmt.Errorf("failed to persist day edit: %w", err)
		}
		s.it = next
		return nil
	}
	s.it = next
	s.saver.MarkDirty()
	return nil
}

func (s *Session) EditActivity(ctx context.Context, dayIndex, activityIndex int, patch itinerary.ActivityPatch, mode EditMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrSessionNotFound
	}
	next, err := itinerary.EditActivity(s.it, dayIndex, activityIndex, patch)
	if err != nil {
		return err
	}
	if mode == ModeDirect {
		day := next.Days[dayIndex]
		a := day.Activities[activityIndex]
		if err := s.repo.UpdateActivity(s.withToken(ctx), day.ID, a.ID, a); err != nil {
			return fmt.Errorf("failed to persist activity edit: %w", err)
		}
		s.it = next
		return nil
	}
	s.it = next
	s.saver.MarkDirty()
	return nil
}

// AddActivity appends a new activity. In direct mode the activity returned by the
// store, including its id, replaces the locally built one.
func (s *Session) AddActivity(ctx context.Context, dayIndex int, patch itinerary.ActivityPatch, mode EditMode) (types.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Activity{}, types.ErrSessionNotFound
	}
	if mode != ModeDirect {
		next, a, err := itinerary.AddActivity(s.it, dayIndex, patch, s.now())
		if err != nil {
			return types.Activity{}, err
		}
		s.it = next
		s.saver.MarkDirty()
		return a, nil
	}

	if dayIndex < 0 || dayIndex >= len(s.it.Days) {
		return types.Activity{}, fmt.Errorf("%w: day %d of %d", types.ErrIndexOutOfRange, dayIndex, len(s.it.Days))
	}
	day := s.it.Days[dayIndex]
	a, err := itinerary.NewActivity(day.Activities, patch, s.now())
	if err != nil {
		return types.Activity{}, err
	}
	created, err := s.repo.AddActivity(s.withToken(ctx), day.ID, a)
	if err != nil {
		return types.Activity{}, fmt.Errorf("failed to persist new activity: %w", err)
	}
	if created != nil {
		a = *created
	}
	next, a, err := itinerary.AppendActivity(s.it, dayIndex, a)
	if err != nil {
		return types.Activity{}, err
	}
	s.it = next
	return a, nil
}

// RemoveActivity deletes an activity once the user has confirmed the removal.
func (s *Session) RemoveActivity(ctx context.Context, dayIndex, activityIndex int, confirmed bool, mode EditMode) (types.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Activity{}, types.ErrSessionNotFound
	}
	next, removed, err := itinerary.RemoveActivity(s.it, dayIndex, activityIndex)
	if err != nil {
		return types.Activity{}, err
	}
	if !confirmed {
		return types.Activity{}, fmt.Errorf("%w: activity %q", types.ErrConfirmationRequired, removed.Name)
	}
	if mode == ModeDirect {
		if err := s.repo.RemoveActivity(s.withToken(ctx), s.it.Days[dayIndex].ID, removed.ID); err != nil {
			return types.Activity{}, fmt.Errorf("failed to persist activity removal: %w", err)
		}
		s.it = next
		return removed, nil
	}
	s.it = next
	s.saver.MarkDirty()
	return removed, nil
}

func (s *Session) BeginDrag(dayIndex int) error {
	dayID, err := s.dayID(dayIndex)
	if err != nil {
		return err
	}
	return s.reorders.BeginDrag(dayID)
}

func (s *Session) CancelDrag(dayIndex int) error {
	dayID, err := s.dayID(dayIndex)
	if err != nil {
		return err
	}
	s.reorders.CancelDrag(dayID)
	return nil
}

// Reorder applies a new activity order optimistically and persists the complete
// id list. req carries either the full order or a single from/to move. Pending
// edits are saved first, since the refresh after the commit reads the stored day.
func (s *Session) Reorder(ctx context.Context, dayIndex int, req types.ReorderRequest) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return types.ErrSessionNotFound
	}
	if err := s.saver.Flush(s.withToken(ctx)); err != nil {
		return fmt.Errorf("failed to save pending edits before reorder: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.ErrSessionNotFound
	}
	if dayIndex < 0 || dayIndex >= len(s.it.Days) {
		n := len(s.it.Days)
		s.mu.Unlock()
		return fmt.Errorf("%w: day %d of %d", types.ErrIndexOutOfRange, dayIndex, n)
	}
	day := s.it.Days[dayIndex]
	s.mu.Unlock()

	ordered := req.ActivityIDs
	if req.From != nil || req.To != nil {
		if req.From == nil || req.To == nil || len(req.ActivityIDs) > 0 {
			return fmt.Errorf("%w: send either activity_ids or both from and to", types.ErrValidation)
		}
		var err error
		if ordered, err = reorder.Move(itinerary.ActivityIDs(day), *req.From, *req.To); err != nil {
			return err
		}
	}

	return s.reorders.Commit(s.withToken(ctx), day.ID, ordered, func(ids []string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		i, ok := itinerary.DayIndexByID(s.it, day.ID)
		if !ok {
			return fmt.Errorf("day %s: %w", day.ID, types.ErrNotFound)
		}
		next, err := itinerary.ReorderActivities(s.it, i, ids)
		if err != nil {
			return err
		}
		s.it = next
		return nil
	})
}

// Reload replaces the snapshot with the stored customized itinerary and drops
// unsaved edits. Days with a reorder in progress keep their visible activity list.
func (s *Session) Reload(ctx context.Context) error {
	fresh, err := s.fetchCustomized(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrLoadFailed, err)
	}
	days, err := types.NormalizeDays(fresh.Days)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrLoadFailed, err)
	}
	fresh.Days = days
	next := itinerary.Recompute(*fresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range next.Days {
		if !s.reorders.Suspended(d.ID) {
			continue
		}
		if j, ok := itinerary.DayIndexByID(s.it, d.ID); ok {
			next, _ = itinerary.ReplaceActivities(next, i, s.it.Days[j].Activities)
		}
	}
	s.it = next
	s.saver.Discard()
	s.logger.DebugContext(ctx, "Session reloaded from store")
	return nil
}

// Save persists pending changes now. It is the manual retry after a failed autosave.
func (s *Session) Save(ctx context.Context) error {
	return s.saver.Flush(s.withToken(ctx))
}

// Close flushes pending changes and stops the timers. Later calls are no-ops.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.saver.Flush(s.withToken(ctx))
	s.saver.Stop()
	if err != nil {
		s.logger.ErrorContext(ctx, "Flush on close failed, unsaved changes lost", slog.Any("error", err))
		return fmt.Errorf("failed to flush session: %w", err)
	}
	return nil
}

// abandon stops the session without saving, for itineraries that are being deleted.
func (s *Session) abandon() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.saver.Discard()
	s.saver.Stop()
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	summary, days := s.it.Summary, s.it.Days
	s.mu.Unlock()
	return s.repo.PersistCustomized(s.withToken(ctx), s.customizedID, summary, days)
}

func (s *Session) persistOrder(ctx context.Context, dayID string, orderedIDs []string) error {
	return s.repo.ReorderActivities(s.withToken(ctx), dayID, orderedIDs)
}

// refreshDay pulls one day's activity list from the store unless a reorder on it is in progress.
func (s *Session) refreshDay(ctx context.Context, dayID string) error {
	fresh, err := s.fetchCustomized(ctx)
	if err != nil {
		return err
	}
	src, ok := itinerary.DayIndexByID(*fresh, dayID)
	if !ok {
		return fmt.Errorf("day %s: %w", dayID, types.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reorders.Suspended(dayID) {
		return nil
	}
	i, ok := itinerary.DayIndexByID(s.it, dayID)
	if !ok {
		return fmt.Errorf("day %s: %w", dayID, types.ErrNotFound)
	}
	next, err := itinerary.ReplaceActivities(s.it, i, fresh.Days[src].Activities)
	if err != nil {
		return err
	}
	s.it = next
	return nil
}

func (s *Session) fetchCustomized(ctx context.Context) (*types.Itinerary, error) {
	view, err := s.repo.FetchItinerary(s.withToken(ctx), s.aiGeneratedID)
	if err != nil {
		return nil, err
	}
	if view.Customized == nil {
		return nil, fmt.Errorf("customized copy of %s: %w", s.aiGeneratedID, types.ErrNotFound)
	}
	return view.Customized, nil
}

func (s *Session) dayID(dayIndex int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", types.ErrSessionNotFound
	}
	if dayIndex < 0 || dayIndex >= len(s.it.Days) {
		return "", fmt.Errorf("%w: day %d of %d", types.ErrIndexOutOfRange, dayIndex, len(s.it.Days))
	}
	return s.it.Days[dayIndex].ID, nil
}

// withToken makes calls outside a request, such as timer-triggered saves, carry
// the last token seen for this session.
func (s *Session) withToken(ctx context.Context) context.Context {
	if _, ok := appMiddleware.GetTokenFromContext(ctx); ok {
		return ctx
	}
	s.tokenMu.Lock()
	token := s.token
	s.tokenMu.Unlock()
	if token == "" {
		return ctx
	}
	return appMiddleware.WithToken(ctx, token)
}
