// Package notification raises desktop notifications for background sync events.
package notification

import (
	"time"

	"remindat/internal/utils"
)

// Type identifies the event behind a notification
type Type string

const (
	SyncError     Type = "sync_error"     // Drive calls keep failing; sync paused
	SyncRecovered Type = "sync_recovered" // first success after a pause
	Refreshed     Type = "refreshed"      // a refresh changed local reminders
	Test          Type = "test"
)

// Notification represents a notification to be sent
type Notification struct {
	Type      Type
	Title     string
	Message   string
	Timestamp time.Time
}

// Notifier delivers notifications
type Notifier interface {
	Send(n Notification) error
}

// Config selects which events are shown
type Config struct {
	Enabled     bool
	OnSyncError bool // also covers SyncRecovered
	OnRefresh   bool
}

// CommandExecutor runs the platform notification command
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor is a CommandExecutor for tests
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

// Execute implements CommandExecutor
func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option configures a Manager
type Option func(*Manager)

// WithCommandExecutor sets a custom command executor
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(m *Manager) {
		if executor != nil {
			m.channel.executor = executor
		}
	}
}

// WithPlatform overrides runtime.GOOS
func WithPlatform(platform string) Option {
	return func(m *Manager) {
		m.channel.platform = platform
	}
}

// Manager filters events by Config and hands them to the OS channel
type Manager struct {
	cfg     Config
	channel *osChannel
}

// NewManager creates a Manager from configuration
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg, channel: newOSChannel()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether any notification can be shown
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

func (m *Manager) wants(t Type) bool {
	if !m.cfg.Enabled {
		return false
	}
	switch t {
	case SyncError, SyncRecovered:
		return m.cfg.OnSyncError
	case Refreshed:
		return m.cfg.OnRefresh
	default:
		return true
	}
}

// Send shows n if its type is enabled
func (m *Manager) Send(n Notification) error {
	if !m.wants(n.Type) {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	utils.Debugf("Notification %s: %s", n.Type, n.Title)
	return m.channel.send(n)
}
