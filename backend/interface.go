package backend

import (
	"context"
)

// DefaultDriveFolderID is the Drive folder used when the user has not configured one
const DefaultDriveFolderID = "1F0qYeAVU_7H73kX9uz-1ZF3i2KS_V-mk"

// SnapshotFileName is the name of the snapshot both locally and in Drive
const SnapshotFileName = "reminders.json"

// LocalStore persists the whole reminder snapshot on this machine.
// Load never fails: unreadable or unrecognized content degrades to an empty store.
type LocalStore interface {
	Load() *ReminderStore
	Save(store *ReminderStore) error
	Path() string
}

// CloudStore persists the snapshot remotely under a per-user access token
type CloudStore interface {
	// FindOrCreate locates the snapshot file in folderID, creating it from seed if absent
	FindOrCreate(ctx context.Context, token, folderID string, seed *ReminderStore) (string, error)
	Load(ctx context.Context, token, fileID string) (*ReminderStore, error)
	Save(ctx context.Context, token, fileID string, store *ReminderStore) error
}
