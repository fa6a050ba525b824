// Package reorder coordinates optimistic reordering of a day's activity list.
//
// Per day: idle -> dragging -> (idle | persisting), persisting -> idle.
// While a day is not idle, lists fetched from the store must not replace the
// visible one. A failed persist is rolled back by re-fetching, not by restoring
// the pre-drag order from memory.
package reorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/observability/metrics"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

type State string

const (
	StateIdle       State = "idle"
	StateDragging   State = "dragging"
	StatePersisting State = "persisting"
)

// PersistFunc sends the complete ordered id list of a day to the store.
type PersistFunc func(ctx context.Context, dayID string, orderedIDs []string) error

// RefreshFunc reloads a day's activity list from the source of truth and
// incorporates it into the visible state.
type RefreshFunc func(ctx context.Context, dayID string) error

// ApplyFunc applies an order to the visible list before the store confirms it.
type ApplyFunc func(orderedIDs []string) error

type Coordinator struct {
	persist PersistFunc
	refresh RefreshFunc
	logger  *slog.Logger

	mu     sync.Mutex
	states map[string]State
}

func NewCoordinator(persist PersistFunc, refresh RefreshFunc, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		persist: persist,
		refresh: refresh,
		logger:  logger,
		states:  make(map[string]State),
	}
}

func (c *Coordinator) State(dayID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(dayID)
}

// Suspended reports whether fetched activity lists must be ignored for dayID.
func (c *Coordinator) Suspended(dayID string) bool {
	return c.State(dayID) != StateIdle
}

// BeginDrag moves dayID from idle to dragging.
func (c *Coordinator) BeginDrag(dayID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.stateLocked(dayID); s != StateIdle {
		return fmt.Errorf("%w: day %s is %s", types.ErrReorderInProgress, dayID, s)
	}
	c.states[dayID] = StateDragging
	return nil
}

// CancelDrag returns a dragging day to idle without reordering.
func (c *Coordinator) CancelDrag(dayID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked(dayID) == StateDragging {
		delete(c.states, dayID)
	}
}

// Commit applies orderedIDs locally, persists them and refreshes from the store.
// An idle day is treated as an implicit drag start. On a persist failure the
// optimistic order is discarded by refreshing, and the persist error is returned.
func (c *Coordinator) Commit(ctx context.Context, dayID string, orderedIDs []string, apply ApplyFunc) error {
	c.mu.Lock()
	switch s := c.stateLocked(dayID); s {
	case StateIdle, StateDragging:
		c.states[dayID] = StatePersisting
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: day %s is %s", types.ErrReorderInProgress, dayID, s)
	}
	c.mu.Unlock()

	l := c.logger.With(slog.String("method", "Commit"), slog.String("dayID", dayID))
	if err := apply(orderedIDs); err != nil {
		c.settle(dayID)
		return err
	}

	m := metrics.Get()
	m.ReorderCommitsTotal.Add(ctx, 1)
	err := c.persist(ctx, dayID, orderedIDs)
	c.settle(dayID)
	if err != nil {
		m.ReorderRollbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("day.id", dayID)))
		l.WarnContext(ctx, "Reorder persist failed, restoring order from store", slog.Any("error", err))
		if rerr := c.refresh(ctx, dayID); rerr != nil {
			l.ErrorContext(ctx, "Refetch after failed reorder failed", slog.Any("error", rerr))
		}
		return fmt.Errorf("failed to persist activity order: %w", err)
	}

	if err := c.refresh(ctx, dayID); err != nil {
		// the store accepted the order; the optimistic list already matches it
		l.WarnContext(ctx, "Refetch after reorder failed", slog.Any("error", err))
	}
	l.DebugContext(ctx, "Reorder committed", slog.Int("count", len(orderedIDs)))
	return nil
}

func (c *Coordinator) settle(dayID string) {
	c.mu.Lock()
	delete(c.states, dayID)
	c.mu.Unlock()
}

func (c *Coordinator) stateLocked(dayID string) State {
	if s, ok := c.states[dayID]; ok {
		return s
	}
	return StateIdle
}

// Move returns ids with the element at from moved to position to, as a drop does.
func Move(ids []string, from, to int) ([]string, error) {
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return nil, fmt.Errorf("%w: move %d -> %d in list of %d", types.ErrIndexOutOfRange, from, to, len(ids))
	}
	out := make([]string, 0, len(ids))
	out = append(out, ids[:from]...)
	out = append(out, ids[from+1:]...)
	moved := ids[from]
	out = append(out[:to], append([]string{moved}, out[to:]...)...)
	return out, nil
}
