package store

import (
	"remindat/backend"
	"remindat/internal/utils"
)

// The helpers below keep the Actual list within backend.MaxActualTasks.
// They mutate the store in place and assume the caller holds the data lock.

func minSortOrder(data *backend.ReminderStore, lt backend.ListType) (int64, bool) {
	var min int64
	found := false
	for _, r := range data.Pending {
		if r.ListType != lt {
			continue
		}
		if !found || r.SortOrder < min {
			min = r.SortOrder
			found = true
		}
	}
	return min, found
}

func maxSortOrder(data *backend.ReminderStore, lt backend.ListType) (int64, bool) {
	var max int64
	found := false
	for _, r := range data.Pending {
		if r.ListType != lt {
			continue
		}
		if !found || r.SortOrder > max {
			max = r.SortOrder
			found = true
		}
	}
	return max, found
}

// topOfBacklog is the sort order that places an item above every Backlog item
func topOfBacklog(data *backend.ReminderStore) int64 {
	if min, ok := minSortOrder(data, backend.ListBacklog); ok {
		return min - 1
	}
	return 0
}

// evictLeastImportant moves the Actual item with the largest sort order to
// the top of the Backlog. It reports the evicted id.
func evictLeastImportant(data *backend.ReminderStore) (int64, bool) {
	idx := -1
	for i, r := range data.Pending {
		if r.ListType != backend.ListActual {
			continue
		}
		if idx < 0 || r.SortOrder > data.Pending[idx].SortOrder {
			idx = i
		}
	}
	if idx < 0 {
		return 0, false
	}
	top := topOfBacklog(data)
	data.Pending[idx].ListType = backend.ListBacklog
	data.Pending[idx].SortOrder = top
	return data.Pending[idx].ID, true
}

// shiftActual pushes every Actual item down one slot to free sort order 0
func shiftActual(data *backend.ReminderStore) {
	for i := range data.Pending {
		if data.Pending[i].ListType == backend.ListActual {
			data.Pending[i].SortOrder++
		}
	}
}

// makeRoomAtTop evicts if Actual is full (not counting exclude), then frees
// sort order 0. It returns the sort order for the incoming item.
func makeRoomAtTop(data *backend.ReminderStore, exclude int64) int64 {
	count := 0
	for _, r := range data.Pending {
		if r.ListType == backend.ListActual && r.ID != exclude {
			count++
		}
	}
	if count >= backend.MaxActualTasks {
		if id, ok := evictLeastImportant(data); ok {
			utils.Debugf("Actual list full, moved reminder %d to backlog", id)
		}
	}
	shiftActual(data)
	return 0
}

// promoteIfRoom moves the top Backlog item to the bottom of Actual when a slot is free
func promoteIfRoom(data *backend.ReminderStore) {
	if data.CountList(backend.ListActual) >= backend.MaxActualTasks {
		return
	}

	idx := -1
	for i, r := range data.Pending {
		if r.ListType != backend.ListBacklog {
			continue
		}
		if idx < 0 || r.SortOrder < data.Pending[idx].SortOrder {
			idx = i
		}
	}
	if idx < 0 {
		return
	}

	bottom := int64(0)
	if max, ok := maxSortOrder(data, backend.ListActual); ok {
		bottom = max + 1
	}
	data.Pending[idx].ListType = backend.ListActual
	data.Pending[idx].SortOrder = bottom
	utils.Debugf("Promoted reminder %d from backlog", data.Pending[idx].ID)
}

// normalizeActual demotes the least important Actual items until the list
// fits. Loaded and merged snapshots can exceed the capacity. It reports
// whether anything moved.
func normalizeActual(data *backend.ReminderStore) bool {
	changed := false
	for data.CountList(backend.ListActual) > backend.MaxActualTasks {
		if _, ok := evictLeastImportant(data); !ok {
			break
		}
		changed = true
	}
	return changed
}
