package reorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

// fakeDay is a single day's visible list backed by a fake store.
type fakeDay struct {
	mu         sync.Mutex
	visible    []string
	confirmed  []string
	persisted  [][]string
	persistErr error
	refreshes  int
}

func (f *fakeDay) persist(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, append([]string(nil), ids...))
	if f.persistErr != nil {
		return f.persistErr
	}
	f.confirmed = append([]string(nil), ids...)
	return nil
}

func (f *fakeDay) refresh(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.visible = append([]string(nil), f.confirmed...)
	return nil
}

func (f *fakeDay) apply(ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = append([]string(nil), ids...)
	return nil
}

func newFakeDay(ids ...string) *fakeDay {
	return &fakeDay{visible: append([]string(nil), ids...), confirmed: append([]string(nil), ids...)}
}

func newTestCoordinator(f *fakeDay) *Coordinator {
	return NewCoordinator(f.persist, f.refresh, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCoordinator_SuccessfulReorderSendsCompleteOrder(t *testing.T) {
	f := newFakeDay("a", "b", "c")
	c := newTestCoordinator(f)
	ctx := context.Background()

	require.NoError(t, c.BeginDrag("d1"))
	assert.True(t, c.Suspended("d1"))
	assert.False(t, c.Suspended("d2"))

	order, err := Move(f.visible, 2, 0)
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx, "d1", order, f.apply))

	require.Len(t, f.persisted, 1)
	assert.Equal(t, []string{"c", "a", "b"}, f.persisted[0])
	assert.Equal(t, []string{"c", "a", "b"}, f.visible)
	assert.Equal(t, 1, f.refreshes)
	assert.Equal(t, StateIdle, c.State("d1"))
}

func TestCoordinator_FailedPersistRestoresConfirmedOrder(t *testing.T) {
	f := newFakeDay("a", "b", "c")
	f.persistErr = errors.New("502 bad gateway")
	c := newTestCoordinator(f)

	var seenDuringPersist []string
	apply := func(ids []string) error {
		require.NoError(t, f.apply(ids))
		seenDuringPersist = append([]string(nil), f.visible...)
		return nil
	}

	require.NoError(t, c.BeginDrag("d1"))
	err := c.Commit(context.Background(), "d1", []string{"c", "a", "b"}, apply)
	require.Error(t, err)
	assert.ErrorIs(t, err, f.persistErr)

	assert.Equal(t, []string{"c", "a", "b"}, seenDuringPersist, "optimistic order shown before confirmation")
	assert.Equal(t, []string{"a", "b", "c"}, f.visible, "order restored from the store")
	assert.Equal(t, StateIdle, c.State("d1"))
}

func TestCoordinator_ApplyValidationErrorSkipsPersist(t *testing.T) {
	f := newFakeDay("a", "b")
	c := newTestCoordinator(f)
	bad := errors.New("bad order")

	err := c.Commit(context.Background(), "d1", []string{"a"}, func([]string) error { return bad })
	assert.ErrorIs(t, err, bad)
	assert.Empty(t, f.persisted)
	assert.Equal(t, StateIdle, c.State("d1"))
}

func TestCoordinator_DragLifecycle(t *testing.T) {
	f := newFakeDay("a", "b")
	c := newTestCoordinator(f)

	require.NoError(t, c.BeginDrag("d1"))
	assert.ErrorIs(t, c.BeginDrag("d1"), types.ErrReorderInProgress)
	assert.Equal(t, StateDragging, c.State("d1"))

	c.CancelDrag("d1")
	assert.Equal(t, StateIdle, c.State("d1"))
	assert.Empty(t, f.persisted)
	assert.Equal(t, []string{"a", "b"}, f.visible)
}

func TestCoordinator_RejectsCommitWhilePersisting(t *testing.T) {
	f := newFakeDay("a", "b")
	release := make(chan struct{})
	entered := make(chan struct{})
	c := NewCoordinator(func(ctx context.Context, dayID string, ids []string) error {
		close(entered)
		<-release
		return nil
	}, f.refresh, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- c.Commit(context.Background(), "d1", []string{"b", "a"}, f.apply) }()
	<-entered

	assert.Equal(t, StatePersisting, c.State("d1"))
	assert.True(t, c.Suspended("d1"))
	assert.ErrorIs(t, c.Commit(context.Background(), "d1", []string{"a", "b"}, f.apply), types.ErrReorderInProgress)
	assert.ErrorIs(t, c.BeginDrag("d1"), types.ErrReorderInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, c.State("d1"))
}

func TestMove(t *testing.T) {
	cases := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"last to first", 2, 0, []string{"c", "a", "b"}},
		{"first to last", 0, 2, []string{"b", "c", "a"}},
		{"same place", 1, 1, []string{"a", "b", "c"}},
		{"middle down", 1, 2, []string{"a", "c", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := []string{"a", "b", "c"}
			got, err := Move(ids, tc.from, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, []string{"a", "b", "c"}, ids)
		})
	}

	_, err := Move([]string{"a"}, 0, 1)
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
}
