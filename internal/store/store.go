// Package store is the single entry point for reading and mutating reminders.
// It owns the in-memory snapshot, keeps the Actual list bounded, writes
// every mutation to the local backend and mirrors full saves to Google Drive.
package store

import (
	"context"
	"sync"
	"time"

	"remindat/backend"
	"remindat/internal/oauth"
	"remindat/internal/utils"
	"remindat/internal/worker"
)

// Authenticator is the slice of the OAuth session manager the store relies on.
// *oauth.Manager satisfies it.
type Authenticator interface {
	Session() oauth.Session
	IsAuthenticated() bool
	SetFileID(id string)
	Refresh(ctx context.Context) (string, error)
	MarkFailed(err error)
	Reload() bool
	Status() (bool, bool)
	LoadCredentials() (*oauth.Credentials, error)
	SaveCredentials(creds oauth.Credentials) error
	StartFlow(ctx context.Context) (*oauth.Flow, error)
	Disconnect() error
}

// Journal records command outcomes. *analytics.Tracker satisfies it.
type Journal interface {
	TrackCommand(command, target string, fn func() error) error
}

// Config wires the store to its collaborators
type Config struct {
	Local backend.LocalStore // required
	Cloud backend.CloudStore // nil disables Drive sync
	Auth  Authenticator      // nil disables Drive sync

	Pool    *worker.Pool     // runs async cloud calls; a 2-worker pool is created if nil
	Journal Journal          // optional
	Now     func() time.Time // defaults to time.Now
}

// Store holds the reminder snapshot for the process lifetime
type Store struct {
	cfg Config

	// mu guards data; every command holds it for its mutation and local write
	mu   sync.Mutex
	data *backend.ReminderStore

	// cloudMu serializes Drive and token traffic; never acquired while holding mu
	cloudMu sync.Mutex

	pool     *worker.Pool
	ownsPool bool
}

// New loads the local snapshot and, when a Drive session exists, reconciles
// it with the cloud copy. Cloud failures leave the store running on local
// data and are returned alongside a usable store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Store{cfg: cfg, pool: cfg.Pool}
	if s.pool == nil {
		s.pool = worker.New(2, 16)
		s.ownsPool = true
	}

	s.data = cfg.Local.Load()
	if normalizeActual(s.data) {
		utils.Warnf("Actual list exceeded %d items after load; moved the extra items to the backlog", backend.MaxActualTasks)
		if err := cfg.Local.Save(s.data); err != nil {
			utils.Warnf("Failed to save normalized reminders: %v", err)
		}
	}
	utils.Debugf("Loaded %d pending, %d completed reminders", len(s.data.Pending), len(s.data.Completed))

	if err := s.initCloud(ctx); err != nil {
		utils.Warnf("Drive initialization failed, using local storage: %v", err)
		return s, err
	}
	return s, nil
}

// Close stops the worker pool if the store created it
func (s *Store) Close() {
	if s.ownsPool {
		s.pool.Close()
	}
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() *backend.ReminderStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// LocalPath returns the path of the local snapshot file
func (s *Store) LocalPath() string {
	return s.cfg.Local.Path()
}

func (s *Store) now() time.Time {
	return s.cfg.Now()
}

// track runs fn through the journal when one is configured
func (s *Store) track(command, target string, fn func() error) error {
	if s.cfg.Journal == nil {
		return fn()
	}
	return s.cfg.Journal.TrackCommand(command, target, fn)
}

func (s *Store) cloudConfigured() bool {
	return s.cfg.Cloud != nil && s.cfg.Auth != nil
}

// cloudEnabled reports whether Drive writes should be attempted
func (s *Store) cloudEnabled() bool {
	return s.cloudConfigured() && s.cfg.Auth.IsAuthenticated()
}

// CloudConnected reports whether this store currently mirrors to Drive
func (s *Store) CloudConnected() bool {
	return s.cloudEnabled()
}

// ReloadLocal replaces the in-memory state with the local snapshot, picking
// up edits written by another process.
func (s *Store) ReloadLocal() {
	data := s.cfg.Local.Load()
	normalizeActual(data)

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}
