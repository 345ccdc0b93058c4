package notification_test

import (
	"strings"
	"testing"

	"remindat/internal/notification"
)

type recorder struct {
	cmd   string
	args  []string
	calls int
}

func (r *recorder) executor() *notification.MockCommandExecutor {
	return &notification.MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			r.cmd, r.args = cmd, args
			r.calls++
			return nil
		},
	}
}

func TestLinuxUsesNotifySend(t *testing.T) {
	rec := &recorder{}
	m := notification.NewManager(notification.Config{Enabled: true, OnSyncError: true},
		notification.WithCommandExecutor(rec.executor()), notification.WithPlatform("linux"))

	err := m.Send(notification.Notification{Type: notification.SyncError, Title: "Drive sync paused", Message: "3 failures"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if rec.cmd != "notify-send" {
		t.Errorf("expected notify-send, got %q", rec.cmd)
	}
	joined := strings.Join(rec.args, " ")
	if !strings.Contains(joined, "Drive sync paused") || !strings.Contains(joined, "3 failures") {
		t.Errorf("expected title and message in args, got %v", rec.args)
	}
}

func TestDarwinEscapesQuotes(t *testing.T) {
	rec := &recorder{}
	m := notification.NewManager(notification.Config{Enabled: true},
		notification.WithCommandExecutor(rec.executor()), notification.WithPlatform("darwin"))

	_ = m.Send(notification.Notification{Type: notification.Test, Title: `say "hi"`, Message: `back\slash`})

	if rec.cmd != "osascript" || len(rec.args) != 2 {
		t.Fatalf("unexpected command %q %v", rec.cmd, rec.args)
	}
	if !strings.Contains(rec.args[1], `say \"hi\"`) || !strings.Contains(rec.args[1], `back\\slash`) {
		t.Errorf("expected escaped AppleScript, got %s", rec.args[1])
	}
}

func TestWindowsEscapesSubexpressions(t *testing.T) {
	rec := &recorder{}
	m := notification.NewManager(notification.Config{Enabled: true},
		notification.WithCommandExecutor(rec.executor()), notification.WithPlatform("windows"))

	_ = m.Send(notification.Notification{Type: notification.Test, Title: "t", Message: "$(rm x)"})

	if rec.cmd != "powershell" {
		t.Fatalf("expected powershell, got %q", rec.cmd)
	}
	if !strings.Contains(rec.args[1], "`$(rm x)") {
		t.Errorf("expected escaped $, got %s", rec.args[1])
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	m := notification.NewManager(notification.Config{Enabled: true}, notification.WithPlatform("plan9"))
	if err := m.Send(notification.Notification{Type: notification.Test}); err == nil {
		t.Error("expected an error for an unsupported platform")
	}
}

func TestFiltering(t *testing.T) {
	tests := []struct {
		name string
		cfg  notification.Config
		typ  notification.Type
		want bool
	}{
		{"disabled", notification.Config{Enabled: false, OnSyncError: true}, notification.SyncError, false},
		{"disabled test", notification.Config{Enabled: false}, notification.Test, false},
		{"sync error on", notification.Config{Enabled: true, OnSyncError: true}, notification.SyncError, true},
		{"sync error off", notification.Config{Enabled: true}, notification.SyncError, false},
		{"recovered follows errors", notification.Config{Enabled: true, OnSyncError: true}, notification.SyncRecovered, true},
		{"refresh off", notification.Config{Enabled: true, OnSyncError: true}, notification.Refreshed, false},
		{"refresh on", notification.Config{Enabled: true, OnRefresh: true}, notification.Refreshed, true},
		{"test always", notification.Config{Enabled: true}, notification.Test, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			m := notification.NewManager(tt.cfg,
				notification.WithCommandExecutor(rec.executor()), notification.WithPlatform("linux"))
			_ = m.Send(notification.Notification{Type: tt.typ, Title: "x"})
			if got := rec.calls == 1; got != tt.want {
				t.Errorf("sent = %v, want %v", got, tt.want)
			}
		})
	}
}
