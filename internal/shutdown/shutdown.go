// Package shutdown coordinates process teardown: it turns SIGINT/SIGTERM into
// a cancelled context and runs registered cleanups in reverse order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"remindat/internal/utils"
)

// CleanupFunc releases one resource. ctx carries the shutdown deadline.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager owns the shutdown context and the cleanup stack.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	signal   os.Signal

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	stopCh chan struct{}
}

// NewManager creates a manager whose context derives from parent.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
}

// RegisterCleanup pushes fn onto the cleanup stack (LIFO).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// ListenForSignals cancels the manager context on SIGINT or SIGTERM.
// The returned function stops listening.
func (m *Manager) ListenForSignals() func() {
	return m.listen(syscall.SIGINT, syscall.SIGTERM)
}

func (m *Manager) listen(sigs ...os.Signal) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		select {
		case sig := <-ch:
			utils.Debugf("Received %s, shutting down", sig)
			m.mu.Lock()
			m.signal = sig
			m.mu.Unlock()
			m.Shutdown()
		case <-m.stopCh:
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(m.stopCh)
		})
	}
}

// Shutdown cancels the manager context. Only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()
		m.cancel()
	})
}

// Wait runs the cleanups in LIFO order under ctx and joins their errors.
// A cleanup failure does not stop the remaining ones.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	cleanups := m.cleanups
	m.cleanups = nil
	m.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if err := c.fn(ctx); err != nil {
				utils.Warnf("Cleanup %s failed: %v", c.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether shutdown has started.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Signal returns the signal that triggered shutdown, if any.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signal
}

// Context is cancelled once shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Done is closed once shutdown starts.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}
