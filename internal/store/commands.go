package store

import (
	"context"

	"remindat/backend"
	"remindat/internal/analytics"
	"remindat/internal/utils"
)

// Add creates a reminder at the top of its list and returns its id.
// Adding to a full Actual list moves the least important Actual item to the backlog.
func (s *Store) Add(ctx context.Context, message string, urgency backend.Urgency, list backend.ListType) (int64, error) {
	msg, err := utils.ValidateMessage(message)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.mutate("add", func(data *backend.ReminderStore) bool {
		r := backend.NewReminder(msg, urgency, list, s.now())
		r.ID = data.NextID()
		if list == backend.ListActual {
			r.SortOrder = makeRoomAtTop(data, 0)
		} else {
			r.SortOrder = topOfBacklog(data)
		}
		data.Pending = append(data.Pending, r)
		id = r.ID
		return true
	})
	if err != nil {
		return 0, err
	}
	return id, s.mirror(ctx)
}

// Update replaces the message and urgency of a pending reminder.
// Unknown ids are ignored.
func (s *Store) Update(ctx context.Context, id int64, message string, urgency backend.Urgency) error {
	msg, err := utils.ValidateMessage(message)
	if err != nil {
		return err
	}

	changed := false
	err = s.mutate("update", func(data *backend.ReminderStore) bool {
		idx := data.FindPending(id)
		if idx < 0 {
			return false
		}
		data.Pending[idx].Message = msg
		data.Pending[idx].Urgency = urgency
		changed = true
		return true
	})
	if err != nil || !changed {
		return err
	}
	return s.mirror(ctx)
}

// Move puts a pending reminder at the top of another list. Only the local
// snapshot is written; SyncToCloud pushes the change.
func (s *Store) Move(id int64, to backend.ListType) error {
	return s.mutate("move", func(data *backend.ReminderStore) bool {
		idx := data.FindPending(id)
		if idx < 0 || data.Pending[idx].ListType == to {
			return false
		}
		if to == backend.ListActual {
			order := makeRoomAtTop(data, id)
			data.Pending[idx].ListType = backend.ListActual
			data.Pending[idx].SortOrder = order
		} else {
			order := topOfBacklog(data)
			data.Pending[idx].ListType = backend.ListBacklog
			data.Pending[idx].SortOrder = order
		}
		return true
	})
}

// SetUrgency changes the urgency of a pending reminder, writing locally only
func (s *Store) SetUrgency(id int64, urgency backend.Urgency) error {
	return s.mutate("urgency", func(data *backend.ReminderStore) bool {
		idx := data.FindPending(id)
		if idx < 0 {
			return false
		}
		data.Pending[idx].Urgency = urgency
		return true
	})
}

// Delete removes a reminder from either list. Deleting an Actual item
// promotes the top Backlog item when there is room.
func (s *Store) Delete(ctx context.Context, id int64) error {
	changed := false
	err := s.mutate("delete", func(data *backend.ReminderStore) bool {
		wasActual := false
		pending := data.Pending[:0]
		for _, r := range data.Pending {
			if r.ID == id {
				wasActual = r.ListType == backend.ListActual
				changed = true
				continue
			}
			pending = append(pending, r)
		}
		data.Pending = pending

		completed := data.Completed[:0]
		for _, r := range data.Completed {
			if r.ID == id {
				changed = true
				continue
			}
			completed = append(completed, r)
		}
		data.Completed = completed

		if wasActual {
			promoteIfRoom(data)
		}
		return changed
	})
	if err != nil || !changed {
		return err
	}
	return s.mirror(ctx)
}

// Complete moves a pending reminder to the completed list
func (s *Store) Complete(ctx context.Context, id int64) error {
	changed := false
	err := s.mutate("complete", func(data *backend.ReminderStore) bool {
		idx := data.FindPending(id)
		if idx < 0 {
			return false
		}
		r := data.Pending[idx]
		data.Pending = append(data.Pending[:idx], data.Pending[idx+1:]...)
		r.MarkCompleted(s.now())
		data.Completed = append(data.Completed, r)

		if r.ListType == backend.ListActual {
			promoteIfRoom(data)
		}
		changed = true
		return true
	})
	if err != nil || !changed {
		return err
	}
	return s.mirror(ctx)
}

// Uncomplete returns a completed reminder to the top of Actual, or to the
// top of the Backlog when Actual is full.
func (s *Store) Uncomplete(ctx context.Context, id int64) error {
	changed := false
	err := s.mutate("uncomplete", func(data *backend.ReminderStore) bool {
		idx := data.FindCompleted(id)
		if idx < 0 {
			return false
		}
		r := data.Completed[idx]
		data.Completed = append(data.Completed[:idx], data.Completed[idx+1:]...)
		r.MarkPending()

		if data.CountList(backend.ListActual) < backend.MaxActualTasks {
			shiftActual(data)
			r.ListType = backend.ListActual
			r.SortOrder = 0
		} else {
			r.ListType = backend.ListBacklog
			r.SortOrder = topOfBacklog(data)
		}
		data.Pending = append(data.Pending, r)
		changed = true
		return true
	})
	if err != nil || !changed {
		return err
	}
	return s.mirror(ctx)
}

// Reorder sets each listed pending reminder's sort order to its position in
// ids. Unknown ids are skipped; unlisted reminders keep their order.
// Only the local snapshot is written.
func (s *Store) Reorder(ids []int64) error {
	return s.mutate("reorder", func(data *backend.ReminderStore) bool {
		changed := false
		for pos, id := range ids {
			if idx := data.FindPending(id); idx >= 0 {
				data.Pending[idx].SortOrder = int64(pos)
				changed = true
			}
		}
		return changed
	})
}

// mutate applies fn under the data lock and writes the local snapshot when
// fn reports a change. A failed write leaves memory ahead of disk; the next
// successful write catches up.
func (s *Store) mutate(command string, fn func(data *backend.ReminderStore) bool) error {
	return s.track(command, analytics.TargetLocal, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !fn(s.data) {
			return nil
		}
		return s.cfg.Local.Save(s.data)
	})
}
