// Package migrate converts snapshots written by the first, due-time based
// release into the current urgency/list-type schema.
package migrate

import (
	"encoding/json"
	"fmt"
	"time"

	"remindat/backend"
)

// legacyReminder is the v1 item shape. Recurrence and snooze state are read
// so that the document parses but are not carried forward.
type legacyReminder struct {
	ID              *int64          `json:"id"`
	Message         *string         `json:"message"`
	DueTime         *string         `json:"due_time"`
	CreatedAt       *string         `json:"created_at"`
	Recurrence      json.RawMessage `json:"recurrence"`
	IsCompleted     *bool           `json:"is_completed"`
	IsSnoozed       bool            `json:"is_snoozed"`
	OriginalDueTime *string         `json:"original_due_time"`
	CompletedAt     *string         `json:"completed_at"`
	SortOrder       int64           `json:"sort_order"`
}

type legacyStore struct {
	Pending   *[]legacyReminder `json:"pending"`
	Completed *[]legacyReminder `json:"completed"`
}

// TryMigrate converts a legacy snapshot. It returns false when raw is not a
// legacy document, including when it already parses as the current schema.
func TryMigrate(raw []byte, now time.Time) (*backend.ReminderStore, bool) {
	if _, err := backend.ParseStore(raw); err == nil {
		return nil, false
	}
	legacy, err := parseLegacy(raw)
	if err != nil {
		return nil, false
	}

	store := backend.NewReminderStore()
	for _, lr := range *legacy.Pending {
		store.Pending = append(store.Pending, lr.convert(now))
	}
	for _, lr := range *legacy.Completed {
		store.Completed = append(store.Completed, lr.convert(now))
	}
	return store, true
}

func parseLegacy(raw []byte) (*legacyStore, error) {
	var ls legacyStore
	if err := json.Unmarshal(raw, &ls); err != nil {
		return nil, err
	}
	if ls.Pending == nil || ls.Completed == nil {
		return nil, fmt.Errorf("missing pending or completed list")
	}
	for _, list := range [][]legacyReminder{*ls.Pending, *ls.Completed} {
		for i, lr := range list {
			if err := lr.validate(); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return &ls, nil
}

func (lr legacyReminder) validate() error {
	switch {
	case lr.ID == nil:
		return fmt.Errorf("missing field `id`")
	case lr.Message == nil:
		return fmt.Errorf("missing field `message`")
	case lr.DueTime == nil:
		return fmt.Errorf("missing field `due_time`")
	case lr.CreatedAt == nil:
		return fmt.Errorf("missing field `created_at`")
	case lr.IsCompleted == nil:
		return fmt.Errorf("missing field `is_completed`")
	}
	return nil
}

func (lr legacyReminder) convert(now time.Time) backend.Reminder {
	return backend.Reminder{
		ID:          *lr.ID,
		Message:     *lr.Message,
		Urgency:     UrgencyForDue(*lr.DueTime, now),
		ListType:    backend.ListActual,
		CreatedAt:   *lr.CreatedAt,
		IsCompleted: *lr.IsCompleted,
		CompletedAt: lr.CompletedAt,
		SortOrder:   lr.SortOrder,
	}
}

// UrgencyForDue buckets a v1 due time by whole hours remaining, truncated
// toward zero. Overdue items land in Now; unparsable times in Whenever.
func UrgencyForDue(dueTime string, now time.Time) backend.Urgency {
	due, err := backend.ParseTime(dueTime)
	if err != nil {
		return backend.UrgencyWhenever
	}

	hours := int64(due.Sub(now) / time.Hour)
	switch {
	case hours <= 1:
		return backend.UrgencyNow
	case hours <= 24:
		return backend.UrgencyToday
	case hours <= 168:
		return backend.UrgencySoon
	default:
		return backend.UrgencyWhenever
	}
}
