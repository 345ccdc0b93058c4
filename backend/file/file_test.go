package file_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remindat/backend"
	"remindat/backend/file"
)

// =============================================================================
// Test Helpers
// =============================================================================

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newBackend creates a backend in a temp dir, optionally seeding reminders.json
func newBackend(t *testing.T, content string) *file.Backend {
	t.Helper()

	dir := t.TempDir()
	if content != "" {
		if err := os.WriteFile(filepath.Join(dir, "reminders.json"), []byte(content), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	be, err := file.New(file.Config{DataDir: dir, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("failed to create file backend: %v", err)
	}
	return be
}

// =============================================================================
// Load
// =============================================================================

func TestLoadMissingFile(t *testing.T) {
	be := newBackend(t, "")

	store := be.Load()
	if store == nil || !store.IsEmpty() {
		t.Fatalf("expected empty store, got %+v", store)
	}
	if _, err := os.Stat(be.Path()); !os.IsNotExist(err) {
		t.Error("Load must not create the file")
	}
}

func TestLoadCurrentSchema(t *testing.T) {
	be := newBackend(t, `{
		"pending": [
			{"id": 1, "message": "write report", "urgency": "soon", "list_type": "backlog",
			 "created_at": "2026-03-01T10:00:00Z", "is_completed": false, "completed_at": null}
		],
		"completed": []
	}`)

	store := be.Load()
	if len(store.Pending) != 1 {
		t.Fatalf("expected 1 pending reminder, got %d", len(store.Pending))
	}
	r := store.Pending[0]
	if r.Message != "write report" || r.Urgency != backend.UrgencySoon || r.ListType != backend.ListBacklog {
		t.Errorf("unexpected reminder: %+v", r)
	}
	if r.SortOrder != 0 {
		t.Errorf("expected sort_order default 0, got %d", r.SortOrder)
	}
}

func TestLoadUnrecognizedFallsBackToEmpty(t *testing.T) {
	tests := []string{
		"{not json",
		`{"pending": [{"id": 1, "message": "x", "urgency": "later", "list_type": "actual",
		  "created_at": "2026-03-01T10:00:00Z", "is_completed": false}], "completed": []}`,
		`[]`,
	}

	for _, content := range tests {
		be := newBackend(t, content)
		if store := be.Load(); !store.IsEmpty() {
			t.Errorf("expected empty store for %q, got %+v", content, store)
		}
		if _, err := os.Stat(be.BackupPath()); !os.IsNotExist(err) {
			t.Errorf("unexpected backup for %q", content)
		}
	}
}

func TestLoadMigratesLegacy(t *testing.T) {
	legacy := `{
		"pending": [
			{"id": 4, "message": "dentist", "due_time": "2026-03-02T09:30:00Z",
			 "created_at": "2026-02-20T10:00:00Z", "recurrence": "None",
			 "is_completed": false, "is_snoozed": false, "sort_order": 2}
		],
		"completed": []
	}`
	be := newBackend(t, legacy)

	store := be.Load()
	if len(store.Pending) != 1 {
		t.Fatalf("expected 1 migrated reminder, got %d", len(store.Pending))
	}
	r := store.Pending[0]
	if r.Urgency != backend.UrgencyNow || r.ListType != backend.ListActual || r.SortOrder != 2 {
		t.Errorf("unexpected migrated reminder: %+v", r)
	}

	backup, err := os.ReadFile(be.BackupPath())
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(backup) != legacy {
		t.Error("backup should hold the raw legacy content")
	}

	// The migrated snapshot replaced the original on disk.
	data, err := os.ReadFile(be.Path())
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), `"urgency": "now"`) {
		t.Errorf("expected migrated content on disk, got %s", data)
	}
	if reloaded := be.Load(); len(reloaded.Pending) != 1 || reloaded.Pending[0].ID != 4 {
		t.Errorf("expected reload to parse migrated file, got %+v", reloaded)
	}
}

// =============================================================================
// Save
// =============================================================================

func TestSaveRoundTrip(t *testing.T) {
	be := newBackend(t, "")

	store := backend.NewReminderStore()
	r := backend.NewReminder("call mom", backend.UrgencyToday, backend.ListActual, fixedNow)
	r.ID = 1
	store.Pending = append(store.Pending, r)
	done := backend.NewReminder("pay rent", backend.UrgencyNow, backend.ListActual, fixedNow)
	done.ID = 2
	done.MarkCompleted(fixedNow.Add(time.Hour))
	store.Completed = append(store.Completed, done)

	if err := be.Save(store); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	data, err := os.ReadFile(be.Path())
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"pending\"") {
		t.Errorf("expected pretty-printed JSON, got %s", data)
	}
	if !strings.Contains(string(data), `"completed_at": null`) {
		t.Errorf("expected explicit null completed_at, got %s", data)
	}

	loaded := be.Load()
	if len(loaded.Pending) != 1 || len(loaded.Completed) != 1 {
		t.Fatalf("expected 1/1 after reload, got %d/%d", len(loaded.Pending), len(loaded.Completed))
	}
	if loaded.Completed[0].CompletedAt == nil {
		t.Error("expected completed_at to survive reload")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	be := newBackend(t, "")
	for i := 0; i < 3; i++ {
		if err := be.Save(backend.NewReminderStore()); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(be.Path()))
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "reminders.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only reminders.json, got %v", names)
	}
}

func TestSaveFailsWhenDirectoryIsAFile(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "data")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	be, err := file.New(file.Config{DataDir: blocker})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := be.Save(backend.NewReminderStore()); err == nil {
		t.Error("expected Save to fail when the data dir is a file")
	}
}
