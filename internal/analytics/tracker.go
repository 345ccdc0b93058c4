package analytics

import (
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"remindat/internal/utils"
)

// Tracker records journal events
type Tracker struct {
	db      *sql.DB
	enabled bool
	mu      sync.Mutex
	pending sync.WaitGroup
}

// NewTracker creates a journal tracker.
// If enabled is false, nothing is recorded but the database is still created.
func NewTracker(dbPath string, enabled bool) (*Tracker, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		db:      db,
		enabled: enabled,
	}, nil
}

// Close waits for queued writes and closes the database connection
func (t *Tracker) Close() error {
	t.Flush()
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// Flush blocks until every asynchronously logged event is written
func (t *Tracker) Flush() {
	t.pending.Wait()
}

// TrackCommand runs fn and journals its outcome. fn always runs; events are
// only recorded when the tracker is enabled.
func (t *Tracker) TrackCommand(command, target string, fn func() error) error {
	if t == nil || !t.enabled {
		return fn()
	}

	start := time.Now()
	err := fn()

	event := Event{
		Timestamp:  time.Now().Unix(),
		Command:    command,
		Target:     target,
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
		ErrorKind:  categorizeError(err),
	}

	// Log asynchronously to avoid slowing down commands
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		t.logEvent(event)
	}()

	return err
}

// logEvent records an event to the database
func (t *Tracker) logEvent(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.Exec(`
		INSERT INTO sync_events (timestamp, command, target, success, duration_ms, error_kind)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.Timestamp, event.Command, event.Target, boolToInt(event.Success), event.DurationMs, nullString(event.ErrorKind))
	if err != nil {
		utils.Debugf("journal write failed: %v", err)
	}
}

// LastSuccess returns when command last succeeded
func (t *Tracker) LastSuccess(command string) (time.Time, bool, error) {
	t.Flush()

	var ts int64
	err := t.db.QueryRow(
		"SELECT timestamp FROM sync_events WHERE command = ? AND success = 1 ORDER BY timestamp DESC, id DESC LIMIT 1",
		command,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(ts, 0), true, nil
}

// Recent returns the newest events, newest first
func (t *Tracker) Recent(limit int) ([]Event, error) {
	t.Flush()

	rows, err := t.db.Query(`
		SELECT id, timestamp, command, target, success, duration_ms, error_kind
		FROM sync_events ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var duration sql.NullInt64
		var kind sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Command, &e.Target, &e.Success, &duration, &kind); err != nil {
			return nil, err
		}
		e.DurationMs = duration.Int64
		e.ErrorKind = kind.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Cleanup removes events older than the retention period and returns how many were deleted.
func (t *Tracker) Cleanup(retentionDays int) (int64, error) {
	t.Flush()
	cutoff := time.Now().Unix() - int64(retentionDays*86400)

	t.mu.Lock()
	defer t.mu.Unlock()

	result, err := t.db.Exec("DELETE FROM sync_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	// Vacuum to reclaim space
	_, _ = t.db.Exec("VACUUM")

	return deleted, nil
}

// categorizeError maps an error to its kind, falling back to message heuristics
func categorizeError(err error) string {
	if err == nil {
		return ""
	}
	if kind, ok := utils.KindOf(err); ok {
		return strings.ToLower(kind.String())
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return "network"
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "token"):
		return "oauth"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	default:
		return "unknown"
	}
}

// nullString returns nil for empty strings
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
