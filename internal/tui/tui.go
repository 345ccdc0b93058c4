// Package tui provides the terminal board: the Actual list beside the
// Backlog, with single-key commands for every store operation.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"remindat/backend"
	"remindat/internal/store"
)

// Board is the store surface the TUI drives
type Board interface {
	Actual() []backend.Reminder
	Backlog() []backend.Reminder
	Add(ctx context.Context, message string, urgency backend.Urgency, list backend.ListType) (int64, error)
	Update(ctx context.Context, id int64, message string, urgency backend.Urgency) error
	Move(id int64, to backend.ListType) error
	SetUrgency(id int64, urgency backend.Urgency) error
	Delete(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64) error
	Reorder(ids []int64) error
	SyncToCloud(ctx context.Context) error
	RefreshFromCloud(ctx context.Context) (bool, error)
	CloudConnected() bool
}

// Focus indicates which pane has focus
type Focus int

const (
	FocusActual Focus = iota
	FocusBacklog
)

func (f Focus) list() backend.ListType {
	if f == FocusBacklog {
		return backend.ListBacklog
	}
	return backend.ListActual
}

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeEdit
	ModeHelp
	ModeConfirmDelete
)

// Model represents the TUI state
type Model struct {
	board Board
	ctx   context.Context

	actual  []backend.Reminder
	backlog []backend.Reminder

	focus   Focus
	cursors [2]int

	mode      Mode
	textInput textinput.Model
	status    string
	statusErr bool

	width  int
	height int

	paneStyle      lipgloss.Style
	focusedStyle   lipgloss.Style
	selectedStyle  lipgloss.Style
	titleStyle     lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
	errorStyle     lipgloss.Style
	urgencyStyles  map[backend.Urgency]lipgloss.Style
}

type loadedMsg struct {
	actual  []backend.Reminder
	backlog []backend.Reminder
}

// doneMsg reports a finished command; the board reloads after each one
type doneMsg struct {
	status string
	err    error
}

// New creates a board model
func New(ctx context.Context, b Board) *Model {
	ti := textinput.New()
	ti.Placeholder = "Reminder text..."
	ti.CharLimit = 256

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	return &Model{
		board:        b,
		ctx:          ctx,
		textInput:    ti,
		paneStyle:    border,
		focusedStyle: border.BorderForeground(lipgloss.Color("62")),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		titleStyle: lipgloss.NewStyle().Bold(true),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		errorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		urgencyStyles: map[backend.Urgency]lipgloss.Style{
			backend.UrgencyNow:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			backend.UrgencyToday:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			backend.UrgencySoon:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			backend.UrgencyWhenever: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		},
	}
}

// Init loads both lists
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{actual: m.board.Actual(), backlog: m.board.Backlog()}
	}
}

// run executes fn off the UI goroutine and reports status on success
func (m *Model) run(status string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{status: status, err: fn()}
	}
}

func (m *Model) items(f Focus) []backend.Reminder {
	if f == FocusBacklog {
		return m.backlog
	}
	return m.actual
}

func (m *Model) selected() (backend.Reminder, bool) {
	items := m.items(m.focus)
	c := m.cursors[m.focus]
	if c < 0 || c >= len(items) {
		return backend.Reminder{}, false
	}
	return items[c], true
}

func (m *Model) clampCursors() {
	for _, f := range []Focus{FocusActual, FocusBacklog} {
		n := len(m.items(f))
		if m.cursors[f] >= n {
			m.cursors[f] = n - 1
		}
		if m.cursors[f] < 0 {
			m.cursors[f] = 0
		}
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.actual = msg.actual
		m.backlog = msg.backlog
		m.clampCursors()
		return m, nil

	case doneMsg:
		m.setStatus(msg.status, msg.err)
		return m, m.load()

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd:
			return m.handleInput(msg, m.addCmd)
		case ModeEdit:
			return m.handleInput(msg, m.editCmd)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case ModeConfirmDelete:
			return m.handleConfirmDelete(msg)
		}
		return m.handleNormal(msg)
	}

	if m.mode == ModeAdd || m.mode == ModeEdit {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setStatus(status string, err error) {
	var cloudErr *store.CloudSyncError
	switch {
	case errors.As(err, &cloudErr):
		m.status = cloudErr.Error()
		m.statusErr = true
	case err != nil:
		m.status = "Error: " + firstLine(err.Error())
		m.statusErr = true
	default:
		m.status = status
		m.statusErr = false
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (m *Model) handleNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab", "h", "l", "left", "right":
		if m.focus == FocusActual {
			m.focus = FocusBacklog
		} else {
			m.focus = FocusActual
		}
		return m, nil

	case "up", "k":
		if m.cursors[m.focus] > 0 {
			m.cursors[m.focus]--
		}
		return m, nil

	case "down", "j":
		if m.cursors[m.focus] < len(m.items(m.focus))-1 {
			m.cursors[m.focus]++
		}
		return m, nil

	case "a":
		m.mode = ModeAdd
		m.textInput.Reset()
		m.textInput.Placeholder = fmt.Sprintf("New %s reminder...", m.focus.list())
		m.textInput.Focus()
		return m, textinput.Blink

	case "e":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = ModeEdit
		m.textInput.Reset()
		m.textInput.SetValue(r.Message)
		m.textInput.Focus()
		return m, textinput.Blink

	case "c":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.run("Completed: "+r.Message, func() error {
			return m.board.Complete(m.ctx, r.ID)
		})

	case "d":
		if _, ok := m.selected(); ok {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case "m":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		to := backend.ListBacklog
		if r.ListType == backend.ListBacklog {
			to = backend.ListActual
		}
		return m, m.run(fmt.Sprintf("Moved to %s: %s", to, r.Message), func() error {
			return m.board.Move(r.ID, to)
		})

	case "u":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		next := r.Urgency.Next()
		return m, m.run(fmt.Sprintf("Urgency %s: %s", next, r.Message), func() error {
			return m.board.SetUrgency(r.ID, next)
		})

	case "K", "shift+up":
		return m, m.reorder(-1)

	case "J", "shift+down":
		return m, m.reorder(1)

	case "s":
		if !m.board.CloudConnected() {
			m.setStatus("Not connected to Drive", nil)
			return m, nil
		}
		m.status = "Syncing to Drive..."
		return m, m.run("Synced to Drive", func() error {
			return m.board.SyncToCloud(m.ctx)
		})

	case "r":
		m.status = "Refreshing from Drive..."
		return m, func() tea.Msg {
			ok, err := m.board.RefreshFromCloud(m.ctx)
			if err == nil && !ok {
				return doneMsg{status: "Not connected to Drive"}
			}
			return doneMsg{status: "Refreshed from Drive", err: err}
		}

	case "?":
		m.mode = ModeHelp
		return m, nil
	}
	return m, nil
}

// reorder swaps the selected reminder with its neighbour and persists the
// pane's new order
func (m *Model) reorder(delta int) tea.Cmd {
	items := m.items(m.focus)
	from := m.cursors[m.focus]
	to := from + delta
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil
	}

	ids := make([]int64, len(items))
	for i, r := range items {
		ids[i] = r.ID
	}
	ids[from], ids[to] = ids[to], ids[from]
	m.cursors[m.focus] = to

	return m.run("Reordered", func() error {
		return m.board.Reorder(ids)
	})
}

func (m *Model) addCmd(text string) tea.Cmd {
	list := m.focus.list()
	return m.run("Added: "+text, func() error {
		_, err := m.board.Add(m.ctx, text, backend.UrgencyToday, list)
		return err
	})
}

func (m *Model) editCmd(text string) tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	return m.run("Updated: "+text, func() error {
		return m.board.Update(m.ctx, r.ID, text, r.Urgency)
	})
}

func (m *Model) handleInput(msg tea.KeyMsg, submit func(string) tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := strings.TrimSpace(m.textInput.Value())
		m.mode = ModeNormal
		m.textInput.Blur()
		if value == "" {
			return m, nil
		}
		return m, submit(value)
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.textInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	switch msg.String() {
	case "y", "Y":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.run("Deleted: "+r.Message, func() error {
			return m.board.Delete(m.ctx, r.ID)
		})
	}
	return m, nil
}

// =============================================================================
// Rendering
// =============================================================================

// View renders the board
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog(fmt.Sprintf("Add to %s", m.focus.list()))
	case ModeEdit:
		title := "Edit reminder"
		if r, ok := m.selected(); ok {
			title = fmt.Sprintf("Edit #%d", r.ID)
		}
		return m.renderInputDialog(title)
	case ModeHelp:
		return m.centerDialog(m.dialogStyle.Render(helpText))
	case ModeConfirmDelete:
		return m.centerDialog(m.dialogStyle.Render(
			"Delete selected reminder?\n\n" + m.helpStyle.Render("y: yes  n: no"),
		))
	}

	paneWidth := m.width/2 - 2
	paneHeight := m.height - 4

	actualTitle := fmt.Sprintf("Actual %d/%d", len(m.actual), backend.MaxActualTasks)
	backlogTitle := fmt.Sprintf("Backlog %d", len(m.backlog))

	left := m.renderPane(FocusActual, actualTitle, paneWidth, paneHeight)
	right := m.renderPane(FocusBacklog, backlogTitle, paneWidth, paneHeight)

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderPane(f Focus, title string, width, height int) string {
	var b strings.Builder
	b.WriteString(m.titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(width-4, 1)))
	b.WriteString("\n")

	items := m.items(f)
	if len(items) == 0 {
		b.WriteString(m.helpStyle.Render("(empty)"))
		b.WriteString("\n")
	}
	for i, r := range items {
		focused := f == m.focus && i == m.cursors[f]
		cursor := " "
		msg := r.Message
		if focused {
			cursor = ">"
			msg = m.selectedStyle.Render(msg)
		}
		badge := m.urgencyStyles[r.Urgency].Render(fmt.Sprintf("%-8s", r.Urgency))
		fmt.Fprintf(&b, "%s %3d %s %s\n", cursor, r.ID, badge, msg)
	}

	style := m.paneStyle
	if f == m.focus {
		style = m.focusedStyle
	}
	return style.Width(width).Height(height).Render(b.String())
}

func (m *Model) renderStatusBar() string {
	left := m.status
	if m.statusErr {
		left = m.errorStyle.Render(left)
	}
	right := "?:help  q:quit"

	padding := m.width - lipgloss.Width(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title string) string {
	return m.centerDialog(m.dialogStyle.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.helpStyle.Render("Enter: confirm  Esc: cancel"),
	))
}

const helpText = `Key Bindings

Navigation:
  j/k      Move down/up
  Tab/h/l  Switch between Actual and Backlog

Reminders:
  a        Add to the focused list
  e        Edit message
  c        Complete
  d        Delete (with confirm)
  m        Move to the other list
  u        Cycle urgency
  J/K      Move down/up within the list

Drive:
  s        Sync to Drive
  r        Refresh from Drive

  ?        Show this help
  q        Quit

Press any key to close`

func (m *Model) centerDialog(dialog string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}
