package store

import (
	"context"
	"errors"
	"fmt"

	"remindat/backend"
	"remindat/backend/google"
	"remindat/internal/analytics"
	"remindat/internal/merge"
	"remindat/internal/utils"
)

// CloudSyncError reports a command whose local write succeeded but whose
// Drive write failed. The local write is never rolled back.
type CloudSyncError struct {
	Err error
}

func (e *CloudSyncError) Error() string {
	return fmt.Sprintf("saved locally but cloud sync failed: %v", e.Err)
}

func (e *CloudSyncError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Public cloud operations
// =============================================================================

// SyncToCloud pushes the current state to Drive. It is a no-op without a session.
func (s *Store) SyncToCloud(ctx context.Context) error {
	if !s.cloudEnabled() {
		return nil
	}
	return s.track("sync", analytics.TargetDrive, func() error {
		s.cloudMu.Lock()
		defer s.cloudMu.Unlock()
		return s.pushLocked(ctx, &authRetry{})
	})
}

// RefreshFromCloud pulls the Drive copy, merges it into the local state and
// writes the result to both sides. It returns false when no session exists.
func (s *Store) RefreshFromCloud(ctx context.Context) (bool, error) {
	if !s.cloudEnabled() {
		return false, nil
	}
	err := s.track("refresh", analytics.TargetDrive, func() error {
		s.cloudMu.Lock()
		defer s.cloudMu.Unlock()
		return s.pullLocked(ctx, &authRetry{})
	})
	return true, err
}

// SyncToCloudAsync runs SyncToCloud on the worker pool
func (s *Store) SyncToCloudAsync(ctx context.Context) <-chan error {
	return s.submit(ctx, s.SyncToCloud)
}

// RefreshFromCloudAsync runs RefreshFromCloud on the worker pool
func (s *Store) RefreshFromCloudAsync(ctx context.Context) <-chan error {
	return s.submit(ctx, func(ctx context.Context) error {
		_, err := s.RefreshFromCloud(ctx)
		return err
	})
}

// submit queues fn; it is cancelled by either the caller's context or a pool abort
func (s *Store) submit(ctx context.Context, fn func(context.Context) error) <-chan error {
	return s.pool.Submit(func(poolCtx context.Context) error {
		jobCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		return fn(jobCtx)
	})
}

// =============================================================================
// Internals (callers hold cloudMu)
// =============================================================================

// initCloud locates the Drive file and reconciles it with the local state
func (s *Store) initCloud(ctx context.Context) error {
	if !s.cloudEnabled() {
		return nil
	}
	return s.track("init", analytics.TargetDrive, func() error {
		s.cloudMu.Lock()
		defer s.cloudMu.Unlock()
		if err := s.pullLocked(ctx, &authRetry{}); err != nil {
			return err
		}
		snap := s.Snapshot()
		utils.Infof("Drive sync initialized: %d pending, %d completed reminders", len(snap.Pending), len(snap.Completed))
		return nil
	})
}

// mirror pushes after a full-save command, wrapping failures as CloudSyncError
func (s *Store) mirror(ctx context.Context) error {
	if !s.cloudEnabled() {
		return nil
	}
	if err := s.SyncToCloud(ctx); err != nil {
		utils.Warnf("Failed to save to Drive: %v", err)
		return &CloudSyncError{Err: err}
	}
	return nil
}

// authRetry tracks the single token refresh a cloud operation may spend
// across all of its Drive calls.
type authRetry struct {
	refreshed bool
}

func (s *Store) ensureFileLocked(ctx context.Context, ar *authRetry) (string, error) {
	sess := s.cfg.Auth.Session()
	if sess.FileID != "" {
		return sess.FileID, nil
	}

	seed := s.Snapshot()
	var fileID string
	err := s.withAuthRetry(ctx, ar, func(token string) error {
		id, err := s.cfg.Cloud.FindOrCreate(ctx, token, sess.FolderID, seed)
		fileID = id
		return err
	})
	if err != nil {
		return "", err
	}
	s.cfg.Auth.SetFileID(fileID)
	utils.Debugf("Using Drive file %s", fileID)
	return fileID, nil
}

// pushLocked uploads the latest snapshot, read after cloudMu is held so
// pushes land in order
func (s *Store) pushLocked(ctx context.Context, ar *authRetry) error {
	fileID, err := s.ensureFileLocked(ctx, ar)
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	return s.withAuthRetry(ctx, ar, func(token string) error {
		return s.cfg.Cloud.Save(ctx, token, fileID, snap)
	})
}

// pullLocked loads, merges and writes back. A failed write-back to Drive
// leaves the merge saved locally and is reported as CloudSyncError.
func (s *Store) pullLocked(ctx context.Context, ar *authRetry) error {
	fileID, err := s.ensureFileLocked(ctx, ar)
	if err != nil {
		return err
	}

	var cloud *backend.ReminderStore
	err = s.withAuthRetry(ctx, ar, func(token string) error {
		loaded, err := s.cfg.Cloud.Load(ctx, token, fileID)
		cloud = loaded
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	local := s.data
	switch {
	case !local.IsEmpty() && !cloud.IsEmpty():
		utils.Debugf("Merging %d local items with %d cloud items", local.Len(), cloud.Len())
		s.data = merge.Merge(local, cloud)
	case !cloud.IsEmpty():
		s.data = cloud.Clone()
	}
	if normalizeActual(s.data) {
		utils.Debugf("Actual list exceeded %d items after merge; demoted the extra items", backend.MaxActualTasks)
	}
	saveErr := s.cfg.Local.Save(s.data)
	snap := s.data.Clone()
	s.mu.Unlock()

	if saveErr != nil {
		return saveErr
	}

	err = s.withAuthRetry(ctx, ar, func(token string) error {
		return s.cfg.Cloud.Save(ctx, token, fileID, snap)
	})
	if err != nil {
		utils.Warnf("Merged reminders saved locally but not to Drive: %v", err)
		return &CloudSyncError{Err: err}
	}
	return nil
}

// withAuthRetry runs op with the session token. The first expired token of
// an operation is refreshed and op retried once; any later expiry, or a
// failed retry, marks the session failed.
func (s *Store) withAuthRetry(ctx context.Context, ar *authRetry, op func(token string) error) error {
	err := op(s.cfg.Auth.Session().AccessToken)
	if !errors.Is(err, google.ErrAuthExpired) {
		return err
	}
	if ar.refreshed {
		s.cfg.Auth.MarkFailed(err)
		return err
	}
	ar.refreshed = true

	utils.Debugf("Drive token expired, refreshing")
	token, err := s.cfg.Auth.Refresh(ctx)
	if err != nil {
		return err
	}

	if err := op(token); err != nil {
		s.cfg.Auth.MarkFailed(err)
		return err
	}
	return nil
}
