// Package file implements the local snapshot backend: the whole reminder
// store as one pretty-printed JSON document in the data directory.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"remindat/backend"
	"remindat/internal/migrate"
	"remindat/internal/utils"
)

// BackupFileName receives the raw v1 content before a migration overwrites it
const BackupFileName = "reminders_backup_v1.json"

// Config holds file backend configuration
type Config struct {
	DataDir string           // Directory holding reminders.json
	Now     func() time.Time // Clock used for legacy migration; defaults to time.Now
}

// Backend implements backend.LocalStore on the filesystem
type Backend struct {
	config   Config
	filePath string // Resolved absolute path of reminders.json
	now      func() time.Time
}

// New creates a new file backend
func New(cfg Config) (*Backend, error) {
	dir := cfg.DataDir
	if dir == "" {
		dir = "."
	}

	// Resolve relative paths
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		dir = abs
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Backend{
		config:   cfg,
		filePath: filepath.Join(dir, backend.SnapshotFileName),
		now:      now,
	}, nil
}

// Path returns the snapshot file path
func (b *Backend) Path() string {
	return b.filePath
}

// BackupPath returns where legacy content is preserved
func (b *Backend) BackupPath() string {
	return filepath.Join(filepath.Dir(b.filePath), BackupFileName)
}

// =============================================================================
// Load / Save
// =============================================================================

// Load reads the snapshot. A missing, unreadable or unrecognized file yields
// an empty store. A v1 file is backed up, migrated and rewritten.
func (b *Backend) Load() *backend.ReminderStore {
	data, err := os.ReadFile(b.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return backend.NewReminderStore()
	}
	if err != nil {
		utils.Warnf("Could not read %s, starting empty: %v", b.filePath, err)
		return backend.NewReminderStore()
	}

	store, parseErr := backend.ParseStore(data)
	if parseErr == nil {
		return store
	}

	migrated, ok := migrate.TryMigrate(data, b.now())
	if !ok {
		utils.Warnf("Unrecognized format in %s, starting empty: %v", b.filePath, parseErr)
		return backend.NewReminderStore()
	}

	utils.Infof("Migrating %d reminders from the v1 format", migrated.Len())
	if err := os.WriteFile(b.BackupPath(), data, 0644); err != nil {
		utils.Warnf("Failed to write backup %s: %v", b.BackupPath(), err)
	}
	if err := b.Save(migrated); err != nil {
		utils.Warnf("Failed to save migrated reminders: %v", err)
	}
	return migrated
}

// Save writes the snapshot atomically (temp file + rename)
func (b *Backend) Save(store *backend.ReminderStore) error {
	data, err := store.MarshalIndent()
	if err != nil {
		return utils.StorageError("failed to encode reminders", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(b.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return utils.StorageError("failed to create directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".reminders-*.json")
	if err != nil {
		return utils.StorageError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return utils.StorageError("failed to write reminders", err)
	}
	if err := tmp.Close(); err != nil {
		return utils.StorageError("failed to write reminders", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return utils.StorageError("failed to set permissions", err)
	}
	if err := os.Rename(tmpPath, b.filePath); err != nil {
		return utils.StorageError("failed to replace "+backend.SnapshotFileName, err)
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.LocalStore = (*Backend)(nil)
