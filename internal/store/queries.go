package store

import (
	"sort"
	"time"

	"remindat/backend"
)

// Pending returns every pending reminder ordered by sort order
func (s *Store) Pending() []backend.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]backend.Reminder(nil), s.data.Pending...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// Actual returns the focus list ordered by sort order
func (s *Store) Actual() []backend.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SortedList(backend.ListActual)
}

// Backlog returns the overflow list ordered by sort order
func (s *Store) Backlog() []backend.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SortedList(backend.ListBacklog)
}

// Completed returns completed reminders, most recently completed first
func (s *Store) Completed() []backend.Reminder {
	s.mu.Lock()
	out := s.data.Clone().Completed
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return completedAt(out[i]).After(completedAt(out[j]))
	})
	return out
}

// =============================================================================
// Statistics
// =============================================================================

// CompletionStats counts completions since midnight and since Monday (UTC)
type CompletionStats struct {
	Today    int
	ThisWeek int
}

// DayCount is the number of completions on one calendar day
type DayCount struct {
	Date  string // YYYY-MM-DD
	Count int
}

// HistoricalStats summarizes completion history
type HistoricalStats struct {
	Daily       []DayCount // last 14 days, oldest first, today last
	Hourly      [24]int    // by hour of day
	Weekday     [7]int     // Monday = 0
	BacklogSize int
}

// CompletionStats returns today's and this week's completion counts
func (s *Store) CompletionStats() CompletionStats {
	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := todayStart.AddDate(0, 0, -mondayIndex(now.Weekday()))

	var stats CompletionStats
	for _, t := range s.completionTimes() {
		if !t.Before(todayStart) {
			stats.Today++
		}
		if !t.Before(weekStart) {
			stats.ThisWeek++
		}
	}
	return stats
}

// HistoricalStats returns daily, hourly and weekday completion histograms
func (s *Store) HistoricalStats() HistoricalStats {
	now := s.now().UTC()
	times := s.completionTimes()

	var stats HistoricalStats
	perDay := make(map[string]int)
	for _, t := range times {
		perDay[t.Format("2006-01-02")]++
		stats.Hourly[t.Hour()]++
		stats.Weekday[mondayIndex(t.Weekday())]++
	}
	for daysAgo := 13; daysAgo >= 0; daysAgo-- {
		date := now.AddDate(0, 0, -daysAgo).Format("2006-01-02")
		stats.Daily = append(stats.Daily, DayCount{Date: date, Count: perDay[date]})
	}

	s.mu.Lock()
	stats.BacklogSize = s.data.CountList(backend.ListBacklog)
	s.mu.Unlock()
	return stats
}

// completionTimes returns the parsable completion times in UTC
func (s *Store) completionTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, r := range s.data.Completed {
		t := completedAt(r)
		if !t.IsZero() {
			out = append(out, t.UTC())
		}
	}
	return out
}

func completedAt(r backend.Reminder) time.Time {
	if r.CompletedAt == nil {
		return time.Time{}
	}
	t, err := backend.ParseTime(*r.CompletedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
