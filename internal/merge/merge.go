// Package merge reconciles two independently edited copies of the reminder store.
package merge

import (
	"sort"

	"remindat/backend"
)

// Merge combines local and cloud into a new store.
//
// Pending items are keyed by id with local inserted first; a cloud copy
// replaces the local one only when its version time is strictly later and
// both times parse. Completed items are local first, then cloud items not
// already present. An id completed on either side is dropped from pending.
// Neither input is modified.
func Merge(local, cloud *backend.ReminderStore) *backend.ReminderStore {
	pending := make(map[int64]backend.Reminder, len(local.Pending)+len(cloud.Pending))
	for _, r := range local.Pending {
		pending[r.ID] = r
	}
	for _, r := range cloud.Pending {
		existing, ok := pending[r.ID]
		if !ok || cloudIsNewer(existing, r) {
			pending[r.ID] = r
		}
	}

	completed := make(map[int64]backend.Reminder, len(local.Completed)+len(cloud.Completed))
	for _, r := range local.Completed {
		completed[r.ID] = r
	}
	for _, r := range cloud.Completed {
		if _, ok := completed[r.ID]; !ok {
			completed[r.ID] = r
		}
	}

	// Completed wins a status conflict
	for id := range completed {
		delete(pending, id)
	}

	out := backend.NewReminderStore()
	for _, r := range pending {
		out.Pending = append(out.Pending, r)
	}
	for _, r := range completed {
		out.Completed = append(out.Completed, r)
	}
	out = out.Clone()
	sortStore(out)
	return out
}

// sortStore orders pending by (list type, sort order, id) and completed by id
func sortStore(s *backend.ReminderStore) {
	sort.Slice(s.Pending, func(i, j int) bool {
		a, b := s.Pending[i], s.Pending[j]
		if a.ListType != b.ListType {
			return a.ListType == backend.ListActual
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
	sort.Slice(s.Completed, func(i, j int) bool {
		return s.Completed[i].ID < s.Completed[j].ID
	})
}

func cloudIsNewer(local, cloud backend.Reminder) bool {
	lt, err := backend.ParseTime(local.VersionTime())
	if err != nil {
		return false
	}
	ct, err := backend.ParseTime(cloud.VersionTime())
	if err != nil {
		return false
	}
	return ct.After(lt)
}
