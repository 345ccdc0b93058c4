package analytics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Schema for the journal database
const schema = `
CREATE TABLE IF NOT EXISTS sync_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    command TEXT NOT NULL,
    target TEXT NOT NULL,
    success INTEGER NOT NULL,
    duration_ms INTEGER,
    error_kind TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_events_timestamp ON sync_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_sync_events_command ON sync_events(command, success);
`

// openDB opens or creates the journal database at the given path
func openDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the async logger and readers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return db, nil
}
