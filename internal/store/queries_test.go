package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindat/backend"
)

func completedReminder(id int64, at time.Time) backend.Reminder {
	r := pending(id, backend.ListActual, 0)
	r.MarkCompleted(at)
	return r
}

func TestQueries_Ordering(t *testing.T) {
	data := backend.NewReminderStore()
	data.Pending = append(data.Pending,
		pending(1, backend.ListActual, 2),
		pending(2, backend.ListBacklog, -1),
		pending(3, backend.ListActual, 0),
	)
	data.Completed = append(data.Completed,
		completedReminder(4, fixedNow.Add(-48*time.Hour)),
		completedReminder(5, fixedNow.Add(-time.Hour)),
	)
	s, _ := newLocalStore(t, data)

	ids := func(rs []backend.Reminder) []int64 {
		var out []int64
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []int64{2, 3, 1}, ids(s.Pending()))
	assert.Equal(t, []int64{3, 1}, ids(s.Actual()))
	assert.Equal(t, []int64{2}, ids(s.Backlog()))
	assert.Equal(t, []int64{5, 4}, ids(s.Completed()), "newest completion first")
}

func TestCompletionStats(t *testing.T) {
	data := backend.NewReminderStore()
	data.Completed = append(data.Completed,
		completedReminder(1, fixedNow.Add(-time.Hour)),     // today
		completedReminder(2, fixedNow.Add(-24*time.Hour)),  // Tuesday
		completedReminder(3, fixedNow.Add(-48*time.Hour)),  // Monday
		completedReminder(4, fixedNow.Add(-72*time.Hour)),  // last Sunday
		completedReminder(5, fixedNow.Add(-240*time.Hour)), // older
	)
	s, _ := newLocalStore(t, data)

	stats := s.CompletionStats()
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 3, stats.ThisWeek)
}

func TestHistoricalStats(t *testing.T) {
	data := backend.NewReminderStore()
	data.Pending = append(data.Pending,
		pending(1, backend.ListBacklog, 0),
		pending(2, backend.ListBacklog, 1),
		pending(3, backend.ListActual, 0),
	)
	data.Completed = append(data.Completed,
		completedReminder(10, fixedNow.Add(-time.Hour)),    // Wed 14:30
		completedReminder(11, fixedNow.Add(-2*time.Hour)),  // Wed 13:30
		completedReminder(12, fixedNow.Add(-26*time.Hour)), // Tue 13:30
		completedReminder(13, fixedNow.AddDate(0, 0, -30)), // outside the window
	)
	bad := pending(14, backend.ListActual, 0)
	bad.IsCompleted = true
	garbage := "not a time"
	bad.CompletedAt = &garbage
	data.Completed = append(data.Completed, bad)
	s, _ := newLocalStore(t, data)

	stats := s.HistoricalStats()

	require.Len(t, stats.Daily, 14)
	assert.Equal(t, "2024-02-29", stats.Daily[0].Date)
	assert.Equal(t, DayCount{Date: "2024-03-13", Count: 2}, stats.Daily[13])
	assert.Equal(t, DayCount{Date: "2024-03-12", Count: 1}, stats.Daily[12])

	assert.Equal(t, 2, stats.Hourly[13])
	assert.Equal(t, 1, stats.Hourly[14])

	assert.Equal(t, 1, stats.Weekday[1], "Tuesday")
	assert.Equal(t, 2, stats.Weekday[2], "Wednesday")
	assert.Equal(t, 2, stats.BacklogSize)
}
