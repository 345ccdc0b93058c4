package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestShutdown_CancelsContext(t *testing.T) {
	mgr := NewManager(context.Background())
	if mgr.IsShutdown() {
		t.Fatal("IsShutdown() = true before Shutdown")
	}

	mgr.Shutdown()
	mgr.Shutdown()

	select {
	case <-mgr.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Shutdown")
	}
	if !mgr.IsShutdown() {
		t.Error("IsShutdown() = false after Shutdown")
	}
	if mgr.Context().Err() == nil {
		t.Error("Context().Err() = nil after Shutdown")
	}
}

func TestShutdown_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	mgr := NewManager(parent)
	cancel()

	select {
	case <-mgr.Done():
	case <-time.After(time.Second):
		t.Fatal("manager context should follow its parent")
	}
}

func TestWait_RunsCleanupsInReverseOrder(t *testing.T) {
	mgr := NewManager(context.Background())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"journal", "pool", "watcher"} {
		mgr.RegisterCleanup(name, func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	mgr.Shutdown()
	if err := mgr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	got := strings.Join(order, ",")
	if got != "watcher,pool,journal" {
		t.Errorf("cleanup order = %s, want watcher,pool,journal", got)
	}
}

func TestWait_ContinuesAfterFailure(t *testing.T) {
	mgr := NewManager(context.Background())

	ran := false
	mgr.RegisterCleanup("first", func(ctx context.Context) error {
		ran = true
		return nil
	})
	boom := errors.New("boom")
	mgr.RegisterCleanup("second", func(ctx context.Context) error {
		return boom
	})

	err := mgr.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Wait() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "second") {
		t.Errorf("Wait() error = %q, want cleanup name", err)
	}
	if !ran {
		t.Error("first cleanup did not run after second failed")
	}
}

func TestWait_Timeout(t *testing.T) {
	mgr := NewManager(context.Background())

	release := make(chan struct{})
	defer close(release)
	mgr.RegisterCleanup("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := mgr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestWait_CleanupsRunOnce(t *testing.T) {
	mgr := NewManager(context.Background())

	calls := 0
	mgr.RegisterCleanup("once", func(ctx context.Context) error {
		calls++
		return nil
	})

	_ = mgr.Wait(context.Background())
	_ = mgr.Wait(context.Background())
	if calls != 1 {
		t.Errorf("cleanup calls = %d, want 1", calls)
	}
}

func TestListen_SignalTriggersShutdown(t *testing.T) {
	mgr := NewManager(context.Background())
	stop := mgr.listen(syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	select {
	case <-mgr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
	if mgr.Signal() != syscall.SIGUSR1 {
		t.Errorf("Signal() = %v, want SIGUSR1", mgr.Signal())
	}
}

func TestListen_StopIsIdempotent(t *testing.T) {
	mgr := NewManager(context.Background())
	stop := mgr.ListenForSignals()
	stop()
	stop()
	if mgr.IsShutdown() {
		t.Error("stopping the listener must not shut down")
	}
}
