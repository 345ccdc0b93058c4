// Package daemon runs the background sync loop: it periodically pulls the
// Drive copy into the local snapshot, pushes local edits made by other
// processes, and answers status requests over a Unix socket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"remindat/internal/notification"
	"remindat/internal/ratelimit"
	"remindat/internal/utils"
	"remindat/internal/watcher"
)

// DefaultInterval is the refresh cadence when none is configured
const DefaultInterval = 5 * time.Minute

// MaintenanceInterval is how often Config.Maintenance runs after startup
const MaintenanceInterval = 24 * time.Hour

// Syncer is the store surface the daemon drives
type Syncer interface {
	ReloadLocal()
	RefreshFromCloud(ctx context.Context) (bool, error)
	SyncToCloud(ctx context.Context) error
	ReloadOAuthState(ctx context.Context) error
	CloudConnected() bool
	LocalPath() string
}

// Config holds daemon settings
type Config struct {
	PIDPath     string                  // PID file, removed on exit
	SocketPath  string                  // Unix socket for the client; empty disables IPC
	Interval    time.Duration           // Refresh cadence
	WatchLocal  bool                    // Push when the local snapshot changes
	Debounce    time.Duration           // Watcher debounce
	Breaker     *CircuitBreaker         // Defaults to threshold 3, cooldown 5m
	Logger      *utils.BackgroundLogger // Optional JSON-lines log
	Maintenance func() error            // Optional; run at start and every MaintenanceInterval
	Notifier    notification.Notifier   // Optional desktop notifications
}

// Message is a client request
type Message struct {
	Type string `json:"type"` // "notify", "refresh", "status", "stop"
}

// Response answers a Message
type Response struct {
	Status       string `json:"status"` // "ok", "error"
	Message      string `json:"message,omitempty"`
	Running      bool   `json:"running"`
	PID          int    `json:"pid,omitempty"`
	Interval     string `json:"interval,omitempty"`
	RefreshCount int    `json:"refresh_count"`
	SyncCount    int    `json:"sync_count"`
	ErrorCount   int    `json:"error_count"`
	LastRefresh  string `json:"last_refresh,omitempty"`
	LastSync     string `json:"last_sync,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	Circuit      string `json:"circuit,omitempty"`
	Connected    bool   `json:"connected"`
}

// Stats counts completed cloud operations
type Stats struct {
	RefreshCount int
	SyncCount    int
	ErrorCount   int
	LastRefresh  time.Time
	LastSync     time.Time
	LastError    string
}

// Daemon is a running sync loop
type Daemon struct {
	cfg     Config
	syncer  Syncer
	breaker *CircuitBreaker

	mu       sync.RWMutex
	stats    Stats
	lastSeen time.Time // local snapshot mtime after the daemon's own write
	stop     context.CancelFunc

	changeCh  chan struct{}
	notifyCh  chan struct{}
	refreshCh chan struct{}
}

// New creates a daemon driving syncer
func New(cfg Config, syncer Syncer) *Daemon {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerThreshold, DefaultCircuitBreakerCooldown)
	}
	return &Daemon{
		cfg:       cfg,
		syncer:    syncer,
		breaker:   breaker,
		changeCh:  make(chan struct{}, 1),
		notifyCh:  make(chan struct{}, 1),
		refreshCh: make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled or a stop request arrives
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.stop = cancel
	d.mu.Unlock()

	if d.cfg.PIDPath != "" {
		if err := writePID(d.cfg.PIDPath); err != nil {
			return err
		}
		defer func() { _ = os.Remove(d.cfg.PIDPath) }()
	}

	if d.cfg.SocketPath != "" {
		ln, err := listenSocket(d.cfg.SocketPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = ln.Close()
			_ = os.Remove(d.cfg.SocketPath)
		}()
		go d.serve(ctx, ln)
	}

	if d.cfg.WatchLocal {
		w, err := watcher.New(&watcher.Config{
			Path:             d.syncer.LocalPath(),
			DebounceDuration: d.cfg.Debounce,
			OnChange:         func() { signal(d.changeCh) },
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	d.logf("Daemon started (PID: %d, interval: %v, watch: %v)", os.Getpid(), d.cfg.Interval, d.cfg.WatchLocal)
	d.maintain()
	d.refresh(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	maintenance := time.NewTicker(MaintenanceInterval)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logf("Daemon stopped")
			return nil
		case <-ticker.C:
			d.refresh(ctx)
		case <-d.refreshCh:
			d.refresh(ctx)
		case <-d.changeCh:
			if d.changedSinceSeen() {
				d.sync(ctx)
			}
		case <-d.notifyCh:
			d.sync(ctx)
		case <-maintenance.C:
			d.maintain()
		}
	}
}

// Stop ends a running Run
func (d *Daemon) Stop() {
	d.mu.RLock()
	stop := d.stop
	d.mu.RUnlock()
	if stop != nil {
		stop()
	}
}

// Stats returns a copy of the counters
func (d *Daemon) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// Breaker returns the Drive circuit breaker
func (d *Daemon) Breaker() *CircuitBreaker {
	return d.breaker
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// =============================================================================
// Cloud operations
// =============================================================================

// refresh re-reads the local snapshot, then merges the Drive copy into it
func (d *Daemon) refresh(ctx context.Context) {
	if !d.connected(ctx) {
		return
	}
	if !d.breaker.Allow() {
		d.logf("Skipping refresh: circuit %s", d.breaker.State())
		return
	}

	d.syncer.ReloadLocal()
	changed, err := d.syncer.RefreshFromCloud(ctx)
	d.markSeen()
	d.record(err, func(s *Stats) {
		s.RefreshCount++
		s.LastRefresh = time.Now()
	})
	if err == nil && changed {
		d.notify(notification.Refreshed, "Reminders updated", "Changes from Google Drive were merged")
	}
}

// sync pushes the local snapshot as another process left it
func (d *Daemon) sync(ctx context.Context) {
	if !d.connected(ctx) {
		return
	}
	if !d.breaker.Allow() {
		d.logf("Skipping sync: circuit %s", d.breaker.State())
		return
	}

	d.syncer.ReloadLocal()
	err := d.syncer.SyncToCloud(ctx)
	d.markSeen()
	d.record(err, func(s *Stats) {
		s.SyncCount++
		s.LastSync = time.Now()
	})
}

// connected picks up a login completed by another process
func (d *Daemon) connected(ctx context.Context) bool {
	if d.syncer.CloudConnected() {
		return true
	}
	if err := d.syncer.ReloadOAuthState(ctx); err != nil {
		d.record(err, nil)
		return false
	}
	return d.syncer.CloudConnected()
}

func (d *Daemon) record(err error, onSuccess func(*Stats)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.breaker.State()
	if err != nil {
		if wait, ok := ratelimit.RetryAfter(err); ok && wait > 0 {
			d.breaker.RecordThrottled(wait)
		} else {
			d.breaker.RecordFailure()
		}
		d.stats.ErrorCount++
		d.stats.LastError = err.Error()
		d.errorf("Drive operation failed: %v (errors: %d, circuit: %s)", err, d.stats.ErrorCount, d.breaker.State())
		if prev == CircuitClosed && d.breaker.State() == CircuitOpen {
			d.notify(notification.SyncError, "Drive sync paused",
				fmt.Sprintf("%d failures in a row, last: %v", d.stats.ErrorCount, err))
		}
		return
	}

	d.breaker.RecordSuccess()
	if prev != CircuitClosed {
		d.notify(notification.SyncRecovered, "Drive sync resumed", "Google Drive is reachable again")
	}
	d.stats.ErrorCount = 0
	d.stats.LastError = ""
	if onSuccess != nil {
		onSuccess(&d.stats)
		d.logf("Drive operation completed (refreshes: %d, syncs: %d)", d.stats.RefreshCount, d.stats.SyncCount)
	}
}

// notify never blocks the loop
func (d *Daemon) notify(t notification.Type, title, message string) {
	if d.cfg.Notifier == nil {
		return
	}
	n := notification.Notification{Type: t, Title: title, Message: message, Timestamp: time.Now()}
	go func() {
		if err := d.cfg.Notifier.Send(n); err != nil {
			d.errorf("Notification failed: %v", err)
		}
	}()
}

func (d *Daemon) maintain() {
	if d.cfg.Maintenance == nil {
		return
	}
	if err := d.cfg.Maintenance(); err != nil {
		d.errorf("Maintenance failed: %v", err)
	}
}

// markSeen records the snapshot mtime so the daemon's own writes do not
// trigger a push
func (d *Daemon) markSeen() {
	info, err := os.Stat(d.syncer.LocalPath())
	if err != nil {
		return
	}
	d.mu.Lock()
	d.lastSeen = info.ModTime()
	d.mu.Unlock()
}

func (d *Daemon) changedSinceSeen() bool {
	info, err := os.Stat(d.syncer.LocalPath())
	if err != nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !info.ModTime().Equal(d.lastSeen)
}

func (d *Daemon) logf(format string, args ...interface{}) {
	utils.Debugf(format, args...)
	if d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}

func (d *Daemon) errorf(format string, args ...interface{}) {
	utils.Debugf(format, args...)
	if d.cfg.Logger != nil {
		d.cfg.Logger.Errorf(format, args...)
	}
}

// =============================================================================
// IPC
// =============================================================================

func writePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return utils.StorageError("failed to create PID directory", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return utils.StorageError("failed to write PID file", err)
	}
	return nil
}

func listenSocket(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, utils.StorageError("failed to create socket directory", err)
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}
	return ln, nil
}

func (d *Daemon) serve(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			d.errorf("Accept error: %v", err)
			continue
		}
		go d.handle(conn)
	}
}

func (d *Daemon) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}

	var resp Response
	switch msg.Type {
	case "notify":
		signal(d.notifyCh)
		resp = Response{Status: "ok", Running: true}
	case "refresh":
		signal(d.refreshCh)
		resp = Response{Status: "ok", Running: true}
	case "status":
		resp = d.status()
	case "stop":
		resp = Response{Status: "ok", Running: false}
		_ = json.NewEncoder(conn).Encode(resp)
		d.Stop()
		return
	default:
		resp = Response{Status: "error", Message: "unknown message type"}
	}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (d *Daemon) status() Response {
	stats := d.Stats()
	resp := Response{
		Status:       "ok",
		Running:      true,
		PID:          os.Getpid(),
		Interval:     d.cfg.Interval.String(),
		RefreshCount: stats.RefreshCount,
		SyncCount:    stats.SyncCount,
		ErrorCount:   stats.ErrorCount,
		LastError:    stats.LastError,
		Circuit:      d.breaker.State().String(),
		Connected:    d.syncer.CloudConnected(),
	}
	if !stats.LastRefresh.IsZero() {
		resp.LastRefresh = stats.LastRefresh.Format(time.RFC3339)
	}
	if !stats.LastSync.IsZero() {
		resp.LastSync = stats.LastSync.Format(time.RFC3339)
	}
	return resp
}

// Client talks to a running daemon
type Client struct {
	socketPath string
}

// NewClient creates a client for the daemon listening on socketPath
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Notify asks the daemon to push the local snapshot
func (c *Client) Notify() error {
	_, err := c.roundTrip(Message{Type: "notify"})
	return err
}

// Refresh asks the daemon to pull from Drive now
func (c *Client) Refresh() error {
	_, err := c.roundTrip(Message{Type: "refresh"})
	return err
}

// Status returns the daemon's counters
func (c *Client) Status() (*Response, error) {
	return c.roundTrip(Message{Type: "status"})
}

// Stop asks the daemon to exit
func (c *Client) Stop() error {
	_, err := c.roundTrip(Message{Type: "stop"})
	return err
}

func (c *Client) roundTrip(msg Message) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return nil, err
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return &resp, fmt.Errorf("daemon: %s", resp.Message)
	}
	return &resp, nil
}

// =============================================================================
// Process management
// =============================================================================

// Fork starts "<executable> daemon run [--config path]" in a new session
func Fork(executable, configPath string) error {
	if executable == "" {
		var err error
		executable, err = os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
	}

	args := []string{"daemon", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}
	return cmd.Process.Release()
}

// IsRunning checks the PID file and the socket. A stale PID file is removed.
func IsRunning(pidPath, socketPath string) bool {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(pidPath)
		_ = os.Remove(socketPath)
		return false
	}

	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "remindat")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("remindat-%d", os.Getuid()))
}

// GetSocketPath returns the default socket path
func GetSocketPath() string {
	return filepath.Join(runtimeDir(), "daemon.sock")
}

// GetPIDPath returns the default PID file path
func GetPIDPath() string {
	return filepath.Join(runtimeDir(), "daemon.pid")
}
