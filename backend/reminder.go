package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxActualTasks is the capacity of the Actual list
const MaxActualTasks = 6

// Urgency describes how soon a reminder needs attention
type Urgency string

const (
	UrgencyNow      Urgency = "now"
	UrgencyToday    Urgency = "today"
	UrgencySoon     Urgency = "soon"
	UrgencyWhenever Urgency = "whenever"
)

// Urgencies lists all valid urgency values in display order
var Urgencies = []Urgency{UrgencyNow, UrgencyToday, UrgencySoon, UrgencyWhenever}

// ParseUrgency converts a case-insensitive string into an Urgency
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Urgencies {
		if u == valid {
			return u, nil
		}
	}
	return "", fmt.Errorf("invalid urgency: %q", s)
}

// Next returns the following urgency, wrapping around after Whenever
func (u Urgency) Next() Urgency {
	for i, valid := range Urgencies {
		if u == valid {
			return Urgencies[(i+1)%len(Urgencies)]
		}
	}
	return UrgencyToday
}

// UnmarshalJSON rejects unknown urgency strings
func (u *Urgency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUrgency(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ListType identifies which pending list a reminder belongs to
type ListType string

const (
	ListActual  ListType = "actual"
	ListBacklog ListType = "backlog"
)

// ParseListType converts a case-insensitive string into a ListType
func ParseListType(s string) (ListType, error) {
	switch ListType(strings.ToLower(strings.TrimSpace(s))) {
	case ListActual:
		return ListActual, nil
	case ListBacklog:
		return ListBacklog, nil
	}
	return "", fmt.Errorf("invalid list type: %q", s)
}

// UnmarshalJSON rejects unknown list type strings
func (l *ListType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseListType(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Reminder represents a single task in the store
type Reminder struct {
	ID          int64    `json:"id"`
	Message     string   `json:"message"`
	Urgency     Urgency  `json:"urgency"`
	ListType    ListType `json:"list_type"`
	CreatedAt   string   `json:"created_at"`
	IsCompleted bool     `json:"is_completed"`
	CompletedAt *string  `json:"completed_at"`
	SortOrder   int64    `json:"sort_order"` // lower = higher priority
}

// NewReminder creates a pending reminder stamped with the given creation time.
// The ID and sort order are assigned by the store.
func NewReminder(message string, urgency Urgency, listType ListType, now time.Time) Reminder {
	return Reminder{
		Message:   message,
		Urgency:   urgency,
		ListType:  listType,
		CreatedAt: FormatTime(now),
	}
}

// VersionTime returns completed_at when set, otherwise created_at
func (r *Reminder) VersionTime() string {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.CreatedAt
}

// MarkCompleted stamps the reminder as completed at the given time
func (r *Reminder) MarkCompleted(now time.Time) {
	ts := FormatTime(now)
	r.IsCompleted = true
	r.CompletedAt = &ts
}

// MarkPending clears completion state
func (r *Reminder) MarkPending() {
	r.IsCompleted = false
	r.CompletedAt = nil
}

// ReminderStore holds pending and completed reminders.
// An ID appears in at most one of the two lists.
type ReminderStore struct {
	Pending   []Reminder `json:"pending"`
	Completed []Reminder `json:"completed"`
}

// NewReminderStore returns an empty store with non-nil slices
func NewReminderStore() *ReminderStore {
	return &ReminderStore{
		Pending:   []Reminder{},
		Completed: []Reminder{},
	}
}

// Clone returns a deep copy of the store
func (s *ReminderStore) Clone() *ReminderStore {
	out := &ReminderStore{
		Pending:   make([]Reminder, len(s.Pending)),
		Completed: make([]Reminder, len(s.Completed)),
	}
	copy(out.Pending, s.Pending)
	copy(out.Completed, s.Completed)
	for i := range out.Pending {
		out.Pending[i].CompletedAt = cloneString(out.Pending[i].CompletedAt)
	}
	for i := range out.Completed {
		out.Completed[i].CompletedAt = cloneString(out.Completed[i].CompletedAt)
	}
	return out
}

// Len returns the total number of reminders in both lists
func (s *ReminderStore) Len() int {
	return len(s.Pending) + len(s.Completed)
}

// IsEmpty reports whether the store holds no reminders
func (s *ReminderStore) IsEmpty() bool {
	return s.Len() == 0
}

// NextID returns max(existing ids)+1 across both lists
func (s *ReminderStore) NextID() int64 {
	var maxID int64
	for _, r := range s.Pending {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	for _, r := range s.Completed {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID + 1
}

// FindPending returns the index of a pending reminder or -1
func (s *ReminderStore) FindPending(id int64) int {
	for i := range s.Pending {
		if s.Pending[i].ID == id {
			return i
		}
	}
	return -1
}

// FindCompleted returns the index of a completed reminder or -1
func (s *ReminderStore) FindCompleted(id int64) int {
	for i := range s.Completed {
		if s.Completed[i].ID == id {
			return i
		}
	}
	return -1
}

// CountList returns how many pending reminders are in the given list
func (s *ReminderStore) CountList(lt ListType) int {
	n := 0
	for _, r := range s.Pending {
		if r.ListType == lt {
			n++
		}
	}
	return n
}

// SortedList returns a copy of the pending reminders in one list, ordered by sort_order
func (s *ReminderStore) SortedList(lt ListType) []Reminder {
	var out []Reminder
	for _, r := range s.Pending {
		if r.ListType == lt {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// MarshalIndent serializes the store in the on-disk snapshot format
func (s *ReminderStore) MarshalIndent() ([]byte, error) {
	normalized := s
	if s.Pending == nil || s.Completed == nil {
		normalized = s.Clone()
	}
	return json.MarshalIndent(normalized, "", "  ")
}

// wireReminder mirrors Reminder with pointer fields so that missing
// required keys can be told apart from zero values.
type wireReminder struct {
	ID          *int64    `json:"id"`
	Message     *string   `json:"message"`
	Urgency     *Urgency  `json:"urgency"`
	ListType    *ListType `json:"list_type"`
	CreatedAt   *string   `json:"created_at"`
	IsCompleted *bool     `json:"is_completed"`
	CompletedAt *string   `json:"completed_at"`
	SortOrder   int64     `json:"sort_order"`
}

type wireStore struct {
	Pending   *[]wireReminder `json:"pending"`
	Completed *[]wireReminder `json:"completed"`
}

// ParseStore parses a snapshot in the current schema. Every reminder must
// carry id, message, urgency, list_type, created_at and is_completed;
// sort_order defaults to 0 and completed_at may be null or absent.
func ParseStore(data []byte) (*ReminderStore, error) {
	var ws wireStore
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	if ws.Pending == nil {
		return nil, fmt.Errorf("missing field `pending`")
	}
	if ws.Completed == nil {
		return nil, fmt.Errorf("missing field `completed`")
	}

	store := NewReminderStore()
	for i, w := range *ws.Pending {
		r, err := w.toReminder()
		if err != nil {
			return nil, fmt.Errorf("pending[%d]: %w", i, err)
		}
		store.Pending = append(store.Pending, r)
	}
	for i, w := range *ws.Completed {
		r, err := w.toReminder()
		if err != nil {
			return nil, fmt.Errorf("completed[%d]: %w", i, err)
		}
		store.Completed = append(store.Completed, r)
	}
	return store, nil
}

func (w wireReminder) toReminder() (Reminder, error) {
	switch {
	case w.ID == nil:
		return Reminder{}, fmt.Errorf("missing field `id`")
	case w.Message == nil:
		return Reminder{}, fmt.Errorf("missing field `message`")
	case w.Urgency == nil:
		return Reminder{}, fmt.Errorf("missing field `urgency`")
	case w.ListType == nil:
		return Reminder{}, fmt.Errorf("missing field `list_type`")
	case w.CreatedAt == nil:
		return Reminder{}, fmt.Errorf("missing field `created_at`")
	case w.IsCompleted == nil:
		return Reminder{}, fmt.Errorf("missing field `is_completed`")
	}
	return Reminder{
		ID:          *w.ID,
		Message:     *w.Message,
		Urgency:     *w.Urgency,
		ListType:    *w.ListType,
		CreatedAt:   *w.CreatedAt,
		IsCompleted: *w.IsCompleted,
		CompletedAt: w.CompletedAt,
		SortOrder:   w.SortOrder,
	}, nil
}

// FormatTime renders a timestamp the way the snapshot stores it (RFC 3339, UTC)
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses an RFC 3339 timestamp from the snapshot
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
