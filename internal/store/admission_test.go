package store

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindat/backend"
	"remindat/internal/utils"
)

// memLocal is an in-memory LocalStore
type memLocal struct {
	initial *backend.ReminderStore
	saved   *backend.ReminderStore
	saves   int
	failErr error
}

func (m *memLocal) Load() *backend.ReminderStore {
	if m.initial == nil {
		return backend.NewReminderStore()
	}
	return m.initial.Clone()
}

func (m *memLocal) Save(store *backend.ReminderStore) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.saved = store.Clone()
	return nil
}

func (m *memLocal) Path() string { return "memory" }

var fixedNow = time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC) // a Wednesday

func newLocalStore(t *testing.T, initial *backend.ReminderStore) (*Store, *memLocal) {
	t.Helper()
	local := &memLocal{initial: initial}
	s, err := New(context.Background(), Config{
		Local: local,
		Now:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, local
}

func pending(id int64, lt backend.ListType, order int64) backend.Reminder {
	return backend.Reminder{
		ID:        id,
		Message:   "task",
		Urgency:   backend.UrgencyToday,
		ListType:  lt,
		CreatedAt: backend.FormatTime(fixedNow.Add(-time.Hour)),
		SortOrder: order,
	}
}

func fullActual() *backend.ReminderStore {
	data := backend.NewReminderStore()
	for i := int64(0); i < backend.MaxActualTasks; i++ {
		data.Pending = append(data.Pending, pending(i+1, backend.ListActual, i))
	}
	return data
}

func find(t *testing.T, data *backend.ReminderStore, id int64) backend.Reminder {
	t.Helper()
	idx := data.FindPending(id)
	require.GreaterOrEqual(t, idx, 0, "reminder %d not pending", id)
	return data.Pending[idx]
}

func TestAdd_EvictsWhenActualFull(t *testing.T) {
	s, local := newLocalStore(t, fullActual())

	id, err := s.Add(context.Background(), "new", backend.UrgencyNow, backend.ListActual)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	data := s.Snapshot()
	evicted := find(t, data, 6)
	assert.Equal(t, backend.ListBacklog, evicted.ListType)
	assert.Equal(t, int64(0), evicted.SortOrder, "empty backlog places the evicted item at 0")

	for i := int64(1); i <= 5; i++ {
		r := find(t, data, i)
		assert.Equal(t, backend.ListActual, r.ListType)
		assert.Equal(t, i, r.SortOrder, "reminder %d shifts down by one", i)
	}

	added := find(t, data, 7)
	assert.Equal(t, backend.ListActual, added.ListType)
	assert.Equal(t, int64(0), added.SortOrder)
	assert.Equal(t, backend.MaxActualTasks, data.CountList(backend.ListActual))
	assert.Equal(t, 1, local.saves)
}

func TestAdd_EvictsAboveExistingBacklog(t *testing.T) {
	data := fullActual()
	data.Pending = append(data.Pending, pending(10, backend.ListBacklog, 0), pending(11, backend.ListBacklog, 4))
	s, _ := newLocalStore(t, data)

	_, err := s.Add(context.Background(), "new", backend.UrgencyNow, backend.ListActual)
	require.NoError(t, err)

	assert.Equal(t, int64(-1), find(t, s.Snapshot(), 6).SortOrder)
}

func TestAdd_ToBacklogGoesOnTop(t *testing.T) {
	data := backend.NewReminderStore()
	data.Pending = append(data.Pending, pending(1, backend.ListBacklog, -2))
	s, _ := newLocalStore(t, data)

	id, err := s.Add(context.Background(), "later", backend.UrgencyWhenever, backend.ListBacklog)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), find(t, s.Snapshot(), id).SortOrder)

	empty, _ := newLocalStore(t, nil)
	id, err = empty.Add(context.Background(), "first", backend.UrgencySoon, backend.ListBacklog)
	require.NoError(t, err)
	assert.Equal(t, int64(0), find(t, empty.Snapshot(), id).SortOrder)
}

func TestAdd_RejectsBlankMessage(t *testing.T) {
	s, local := newLocalStore(t, nil)

	_, err := s.Add(context.Background(), "   ", backend.UrgencyNow, backend.ListActual)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindValidation))
	assert.Equal(t, 0, local.saves)
}

func TestDelete_PromotesTopOfBacklog(t *testing.T) {
	data := fullActual()
	data.Pending = append(data.Pending,
		pending(10, backend.ListBacklog, 3),
		pending(11, backend.ListBacklog, -1),
	)
	s, _ := newLocalStore(t, data)

	require.NoError(t, s.Delete(context.Background(), 2))

	snap := s.Snapshot()
	assert.Equal(t, -1, snap.FindPending(2))
	promoted := find(t, snap, 11)
	assert.Equal(t, backend.ListActual, promoted.ListType)
	assert.Equal(t, int64(6), promoted.SortOrder, "max actual order 5 plus one")
	assert.Equal(t, backend.ListBacklog, find(t, snap, 10).ListType)
}

func TestDelete_BacklogItemDoesNotPromote(t *testing.T) {
	data := backend.NewReminderStore()
	data.Pending = append(data.Pending,
		pending(1, backend.ListActual, 0),
		pending(2, backend.ListBacklog, 0),
		pending(3, backend.ListBacklog, 1),
	)
	s, _ := newLocalStore(t, data)

	require.NoError(t, s.Delete(context.Background(), 2))
	assert.Equal(t, backend.ListBacklog, find(t, s.Snapshot(), 3).ListType)
}

func TestDelete_UnknownIDIsNoop(t *testing.T) {
	s, local := newLocalStore(t, fullActual())
	require.NoError(t, s.Delete(context.Background(), 99))
	assert.Equal(t, 0, local.saves)
}

func TestComplete_StampsAndPromotes(t *testing.T) {
	data := backend.NewReminderStore()
	data.Pending = append(data.Pending,
		pending(1, backend.ListActual, 0),
		pending(2, backend.ListBacklog, 5),
	)
	s, _ := newLocalStore(t, data)

	require.NoError(t, s.Complete(context.Background(), 1))

	snap := s.Snapshot()
	require.Len(t, snap.Completed, 1)
	done := snap.Completed[0]
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, backend.FormatTime(fixedNow), *done.CompletedAt)

	promoted := find(t, snap, 2)
	assert.Equal(t, backend.ListActual, promoted.ListType)
	assert.Equal(t, int64(0), promoted.SortOrder, "empty Actual places the promoted item at 0")
}

func TestUncomplete_Placement(t *testing.T) {
	t.Run("room in actual", func(t *testing.T) {
		data := backend.NewReminderStore()
		data.Pending = append(data.Pending, pending(1, backend.ListActual, 0))
		done := pending(2, backend.ListBacklog, 9)
		done.MarkCompleted(fixedNow)
		data.Completed = append(data.Completed, done)
		s, _ := newLocalStore(t, data)

		require.NoError(t, s.Uncomplete(context.Background(), 2))

		snap := s.Snapshot()
		r := find(t, snap, 2)
		assert.Equal(t, backend.ListActual, r.ListType)
		assert.Equal(t, int64(0), r.SortOrder)
		assert.False(t, r.IsCompleted)
		assert.Nil(t, r.CompletedAt)
		assert.Equal(t, int64(1), find(t, snap, 1).SortOrder)
		assert.Empty(t, snap.Completed)
	})

	t.Run("actual full", func(t *testing.T) {
		data := fullActual()
		data.Pending = append(data.Pending, pending(10, backend.ListBacklog, 2))
		done := pending(20, backend.ListActual, 0)
		done.MarkCompleted(fixedNow)
		data.Completed = append(data.Completed, done)
		s, _ := newLocalStore(t, data)

		require.NoError(t, s.Uncomplete(context.Background(), 20))

		r := find(t, s.Snapshot(), 20)
		assert.Equal(t, backend.ListBacklog, r.ListType)
		assert.Equal(t, int64(1), r.SortOrder)
	})
}

func TestMove(t *testing.T) {
	t.Run("to full actual evicts", func(t *testing.T) {
		data := fullActual()
		data.Pending = append(data.Pending, pending(10, backend.ListBacklog, 0))
		s, _ := newLocalStore(t, data)

		require.NoError(t, s.Move(10, backend.ListActual))

		snap := s.Snapshot()
		moved := find(t, snap, 10)
		assert.Equal(t, backend.ListActual, moved.ListType)
		assert.Equal(t, int64(0), moved.SortOrder)
		assert.Equal(t, backend.ListBacklog, find(t, snap, 6).ListType)
		assert.Equal(t, backend.MaxActualTasks, snap.CountList(backend.ListActual))
	})

	t.Run("to backlog goes on top", func(t *testing.T) {
		data := backend.NewReminderStore()
		data.Pending = append(data.Pending,
			pending(1, backend.ListActual, 0),
			pending(2, backend.ListBacklog, 4),
		)
		s, _ := newLocalStore(t, data)

		require.NoError(t, s.Move(1, backend.ListBacklog))
		r := find(t, s.Snapshot(), 1)
		assert.Equal(t, backend.ListBacklog, r.ListType)
		assert.Equal(t, int64(3), r.SortOrder)
	})

	t.Run("same list is a noop", func(t *testing.T) {
		s, local := newLocalStore(t, fullActual())
		require.NoError(t, s.Move(1, backend.ListActual))
		require.NoError(t, s.Move(42, backend.ListBacklog))
		assert.Equal(t, 0, local.saves)
	})
}

func TestReorder(t *testing.T) {
	data := backend.NewReminderStore()
	for _, id := range []int64{3, 5, 7, 9} {
		data.Pending = append(data.Pending, pending(id, backend.ListActual, 10+id))
	}
	s, _ := newLocalStore(t, data)

	require.NoError(t, s.Reorder([]int64{5, 3, 7, 100}))

	snap := s.Snapshot()
	assert.Equal(t, int64(0), find(t, snap, 5).SortOrder)
	assert.Equal(t, int64(1), find(t, snap, 3).SortOrder)
	assert.Equal(t, int64(2), find(t, snap, 7).SortOrder)
	assert.Equal(t, int64(19), find(t, snap, 9).SortOrder, "unlisted ids are untouched")
}

func TestUpdateAndSetUrgency(t *testing.T) {
	s, local := newLocalStore(t, fullActual())

	require.NoError(t, s.Update(context.Background(), 3, " renamed ", backend.UrgencySoon))
	r := find(t, s.Snapshot(), 3)
	assert.Equal(t, "renamed", r.Message)
	assert.Equal(t, backend.UrgencySoon, r.Urgency)

	require.NoError(t, s.SetUrgency(3, backend.UrgencyNow))
	assert.Equal(t, backend.UrgencyNow, find(t, s.Snapshot(), 3).Urgency)

	require.NoError(t, s.Update(context.Background(), 99, "ghost", backend.UrgencyNow))
	require.NoError(t, s.SetUrgency(99, backend.UrgencyNow))
	assert.Equal(t, 2, local.saves)
}

func TestLocalSaveFailureIsReturned(t *testing.T) {
	s, local := newLocalStore(t, nil)
	local.failErr = utils.StorageError("disk full", nil)

	_, err := s.Add(context.Background(), "x", backend.UrgencyNow, backend.ListActual)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindStorage))

	var syncErr *CloudSyncError
	assert.False(t, errors.As(err, &syncErr))
}

func TestActualNeverExceedsCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, _ := newLocalStore(t, nil)
	ctx := context.Background()

	for step := 0; step < 500; step++ {
		snap := s.Snapshot()
		switch op := rng.Intn(6); {
		case op <= 2 || len(snap.Pending) == 0:
			list := backend.ListActual
			if rng.Intn(4) == 0 {
				list = backend.ListBacklog
			}
			_, err := s.Add(ctx, "task", backend.UrgencyToday, list)
			require.NoError(t, err)
		case op == 3:
			require.NoError(t, s.Delete(ctx, snap.Pending[rng.Intn(len(snap.Pending))].ID))
		case op == 4:
			require.NoError(t, s.Complete(ctx, snap.Pending[rng.Intn(len(snap.Pending))].ID))
		default:
			if len(snap.Completed) > 0 {
				require.NoError(t, s.Uncomplete(ctx, snap.Completed[rng.Intn(len(snap.Completed))].ID))
			}
		}

		after := s.Snapshot()
		require.LessOrEqual(t, after.CountList(backend.ListActual), backend.MaxActualTasks, "step %d", step)

		seen := make(map[int64]bool)
		for _, r := range append(after.Pending, after.Completed...) {
			require.False(t, seen[r.ID], "id %d appears twice at step %d", r.ID, step)
			seen[r.ID] = true
		}
	}
}

func TestNew_NormalizesOversizedActual(t *testing.T) {
	data := fullActual()
	data.Pending = append(data.Pending, pending(7, backend.ListActual, 6), pending(8, backend.ListActual, 7))
	s, local := newLocalStore(t, data)

	snap := s.Snapshot()
	assert.Equal(t, backend.MaxActualTasks, snap.CountList(backend.ListActual))
	assert.Equal(t, backend.ListBacklog, find(t, snap, 8).ListType)
	assert.Equal(t, backend.ListBacklog, find(t, snap, 7).ListType)
	assert.Less(t, find(t, snap, 7).SortOrder, find(t, snap, 8).SortOrder, "later eviction lands on top")
	assert.Equal(t, 1, local.saves)
}

func TestReloadLocal(t *testing.T) {
	s, local := newLocalStore(t, nil)

	other := backend.NewReminderStore()
	other.Pending = append(other.Pending, pending(5, backend.ListActual, 0))
	local.initial = other

	s.ReloadLocal()
	assert.Equal(t, int64(5), find(t, s.Snapshot(), 5).ID)
}
