package tui_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"remindat/backend"
	"remindat/backend/file"
	"remindat/internal/store"
	"remindat/internal/tui"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	local, err := file.New(file.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("file.New() error = %v", err)
	}
	s, err := store.New(context.Background(), store.Config{Local: local})
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func seeded(t *testing.T, actual, backlog []string) *store.Store {
	t.Helper()
	s := newStore(t)
	ctx := context.Background()
	// Add puts each reminder on top, so add in reverse to keep the given order
	for i := len(backlog) - 1; i >= 0; i-- {
		if _, err := s.Add(ctx, backlog[i], backend.UrgencySoon, backend.ListBacklog); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	for i := len(actual) - 1; i >= 0; i-- {
		if _, err := s.Add(ctx, actual[i], backend.UrgencyToday, backend.ListActual); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return s
}

func messages(items []backend.Reminder) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.Message
	}
	return out
}

// drive feeds msg to the model and runs the resulting commands the way the
// tea runtime would. Commands that block, like cursor blinking, are dropped.
func drive(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		var cmd tea.Cmd
		m, cmd = m.Update(queue[0])
		queue = append(queue[1:], execute(cmd)...)
	}
	return m
}

func execute(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		switch msg := msg.(type) {
		case nil, tea.QuitMsg:
			return nil
		case tea.BatchMsg:
			var out []tea.Msg
			for _, c := range msg {
				out = append(out, execute(c)...)
			}
			return out
		}
		if strings.HasPrefix(fmt.Sprintf("%T", msg), "cursor.") {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func start(t *testing.T, s *store.Store) tea.Model {
	t.Helper()
	m := tui.New(context.Background(), s)
	return drive(t, m, m.Init()())
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	return drive(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// =============================================================================
// Commands
// =============================================================================

func TestBoard_AddToFocusedList(t *testing.T) {
	s := seeded(t, []string{"one"}, nil)
	m := start(t, s)

	m = drive(t, m, key("a"))
	m = typeText(t, m, "call Bob")
	m = drive(t, m, key("enter"))

	if got := messages(s.Actual()); strings.Join(got, ",") != "call Bob,one" {
		t.Errorf("Actual = %v, want new reminder on top", got)
	}

	m = drive(t, m, key("tab"))
	m = drive(t, m, key("a"))
	m = typeText(t, m, "later")
	drive(t, m, key("enter"))

	if got := messages(s.Backlog()); len(got) != 1 || got[0] != "later" {
		t.Errorf("Backlog = %v, want [later]", got)
	}
}

func TestBoard_AddCancelAndBlank(t *testing.T) {
	s := newStore(t)
	m := start(t, s)

	m = drive(t, m, key("a"))
	m = typeText(t, m, "discard me")
	m = drive(t, m, key("esc"))

	m = drive(t, m, key("a"))
	m = typeText(t, m, "   ")
	drive(t, m, key("enter"))

	if n := len(s.Pending()); n != 0 {
		t.Errorf("Pending = %d, want 0", n)
	}
}

func TestBoard_EditKeepsUrgency(t *testing.T) {
	s := seeded(t, []string{"old text"}, nil)
	m := start(t, s)

	m = drive(t, m, key("e"))
	// clear the prefilled value
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	m = typeText(t, m, "new text")
	drive(t, m, key("enter"))

	got := s.Actual()
	if len(got) != 1 || got[0].Message != "new text" || got[0].Urgency != backend.UrgencyToday {
		t.Errorf("Actual = %+v", got)
	}
}

func TestBoard_CompleteSelected(t *testing.T) {
	s := seeded(t, []string{"first", "second"}, []string{"waiting"})
	m := start(t, s)

	m = drive(t, m, key("j"))
	drive(t, m, key("c"))

	if got := messages(s.Actual()); strings.Join(got, ",") != "first,waiting" {
		t.Errorf("Actual = %v, want backlog item promoted", got)
	}
	if got := messages(s.Completed()); len(got) != 1 || got[0] != "second" {
		t.Errorf("Completed = %v", got)
	}
}

func TestBoard_DeleteNeedsConfirmation(t *testing.T) {
	s := seeded(t, []string{"keep", "drop"}, nil)
	m := start(t, s)

	m = drive(t, m, key("j"))
	m = drive(t, m, key("d"))
	m = drive(t, m, key("n"))
	if n := len(s.Actual()); n != 2 {
		t.Fatalf("Actual = %d after declining, want 2", n)
	}

	m = drive(t, m, key("d"))
	drive(t, m, key("y"))
	if got := messages(s.Actual()); len(got) != 1 || got[0] != "keep" {
		t.Errorf("Actual = %v, want [keep]", got)
	}
}

func TestBoard_MoveBetweenLists(t *testing.T) {
	s := seeded(t, []string{"focus"}, []string{"someday"})
	m := start(t, s)

	m = drive(t, m, key("m"))
	if got := messages(s.Backlog()); strings.Join(got, ",") != "focus,someday" {
		t.Fatalf("Backlog = %v, want moved item on top", got)
	}

	m = drive(t, m, key("tab"))
	m = drive(t, m, key("j"))
	drive(t, m, key("m"))
	if got := messages(s.Actual()); len(got) != 1 || got[0] != "someday" {
		t.Errorf("Actual = %v, want [someday]", got)
	}
}

func TestBoard_CycleUrgency(t *testing.T) {
	s := seeded(t, []string{"task"}, nil)
	m := start(t, s)

	m = drive(t, m, key("u"))
	drive(t, m, key("u"))

	if got := s.Actual()[0].Urgency; got != backend.UrgencyWhenever {
		t.Errorf("Urgency = %s, want whenever after today→soon→whenever", got)
	}
}

func TestBoard_Reorder(t *testing.T) {
	s := seeded(t, []string{"a", "b", "c"}, nil)
	m := start(t, s)

	m = drive(t, m, key("J"))
	if got := messages(s.Actual()); strings.Join(got, ",") != "b,a,c" {
		t.Fatalf("Actual = %v after J, want b,a,c", got)
	}
	m = drive(t, m, key("J"))
	if got := messages(s.Actual()); strings.Join(got, ",") != "b,c,a" {
		t.Fatalf("Actual = %v after second J, want b,c,a", got)
	}
	m = drive(t, m, key("J"))
	drive(t, m, key("K"))
	if got := messages(s.Actual()); strings.Join(got, ",") != "b,a,c" {
		t.Errorf("Actual = %v after J at bottom then K, want b,a,c", got)
	}
}

func TestBoard_SyncWithoutDriveIsNoop(t *testing.T) {
	s := seeded(t, []string{"x"}, nil)
	m := start(t, s)

	m = drive(t, m, key("s"))
	if !strings.Contains(m.View(), "Not connected to Drive") {
		t.Error("status bar should report a missing session on sync")
	}
	m = drive(t, m, key("j"))
	m = drive(t, m, key("r"))
	if !strings.Contains(m.View(), "Not connected to Drive") {
		t.Error("status bar should report a missing session")
	}
}

// =============================================================================
// Errors
// =============================================================================

type failingBoard struct {
	*store.Store
	err error
}

func (f failingBoard) Complete(ctx context.Context, id int64) error {
	return f.err
}

func TestBoard_ShowsCloudSyncError(t *testing.T) {
	s := seeded(t, []string{"x"}, nil)
	b := failingBoard{Store: s, err: &store.CloudSyncError{Err: errors.New("quota exceeded")}}
	m := tui.New(context.Background(), b)
	m2 := drive(t, m, m.Init()())

	m2 = drive(t, m2, key("c"))
	if view := m2.View(); !strings.Contains(view, "saved locally but cloud sync failed") {
		t.Errorf("View() missing cloud warning:\n%s", view)
	}
}

// =============================================================================
// Rendering
// =============================================================================

func TestBoard_ViewShowsBothPanes(t *testing.T) {
	s := seeded(t, []string{"write report"}, []string{"clean garage"})
	m := start(t, s)
	m = drive(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	for _, want := range []string{"Actual 1/6", "Backlog 1", "write report", "clean garage", "today", "soon"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	m = drive(t, m, key("?"))
	if !strings.Contains(m.View(), "Key Bindings") {
		t.Error("help dialog not shown")
	}
	m = drive(t, m, key("x"))
	if strings.Contains(m.View(), "Key Bindings") {
		t.Error("help dialog should close on any key")
	}
}

func TestBoard_Launch(t *testing.T) {
	s := seeded(t, []string{"launch check"}, nil)
	tm := teatest.NewTestModel(t, tui.New(context.Background(), s), teatest.WithInitialTermSize(80, 24))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return strings.Contains(string(b), "launch check")
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	if _, ok := tm.FinalModel(t).(*tui.Model); !ok {
		t.Error("FinalModel() is not a *tui.Model")
	}
}
