// Package prompt handles interactive reminder selection and the interactive
// add mode, with no-prompt mode support.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"remindat/backend"
	"remindat/internal/utils"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoReminders        = errors.New("no reminders available")
	ErrNoMatches          = errors.New("no reminders match the filter")
)

// Selector picks one reminder by filter text and number.
type Selector struct {
	Reminders []backend.Reminder
	Prompt    string
	Reader    io.Reader
	Writer    io.Writer
	NoPrompt  bool
}

// Run executes the selection prompt. A single candidate, before or after
// filtering, is selected without asking.
func (s *Selector) Run() (*backend.Reminder, error) {
	if s.NoPrompt {
		return nil, ErrNoPromptMode
	}
	if len(s.Reminders) == 0 {
		return nil, ErrNoReminders
	}
	if len(s.Reminders) == 1 {
		return &s.Reminders[0], nil
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(s.Reader)

	_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", s.Prompt)
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}
	filtered := Filter(s.Reminders, scanner.Text())
	if len(filtered) == 0 {
		return nil, ErrNoMatches
	}
	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", filtered[0].Message)
		return &filtered[0], nil
	}

	for i, r := range filtered {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, formatLine(r))
	}
	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}

	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return nil, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}
	return &filtered[num-1], nil
}

// Filter keeps reminders whose message contains text, ignoring case.
func Filter(reminders []backend.Reminder, text string) []backend.Reminder {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return reminders
	}
	var out []backend.Reminder
	for _, r := range reminders {
		if strings.Contains(strings.ToLower(r.Message), needle) {
			out = append(out, r)
		}
	}
	return out
}

func formatLine(r backend.Reminder) string {
	return fmt.Sprintf("#%d %s [%s, %s]", r.ID, r.Message, r.Urgency, r.ListType)
}

// AddFields holds the values collected during interactive add mode.
type AddFields struct {
	Message string
	Urgency backend.Urgency
	List    backend.ListType
}

// InteractiveAdder asks for the fields of a new reminder when no message
// is given on the command line.
type InteractiveAdder struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run prompts for message (required), urgency and list. Blank answers keep
// the defaults: today, actual.
func (a *InteractiveAdder) Run() (*AddFields, error) {
	if a.NoPrompt {
		return nil, ErrNoPromptMode
	}

	writer := a.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(a.Reader)
	fields := &AddFields{Urgency: backend.UrgencyToday, List: backend.ListActual}

	for {
		_, _ = fmt.Fprint(writer, "Message (required): ")
		if !scanner.Scan() {
			return nil, errors.New("no input for message")
		}
		msg, err := utils.ValidateMessage(scanner.Text())
		if err == nil {
			fields.Message = msg
			break
		}
		_, _ = fmt.Fprintln(writer, "Message cannot be empty.")
	}

	for {
		_, _ = fmt.Fprint(writer, "Urgency (now, today, soon, whenever) [today]: ")
		if !scanner.Scan() {
			return fields, nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			break
		}
		u, err := backend.ParseUrgency(input)
		if err != nil {
			_, _ = fmt.Fprintf(writer, "Invalid urgency: %s\n", input)
			continue
		}
		fields.Urgency = u
		break
	}

	for {
		_, _ = fmt.Fprint(writer, "List (actual, backlog) [actual]: ")
		if !scanner.Scan() {
			return fields, nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			break
		}
		lt, err := backend.ParseListType(input)
		if err != nil {
			_, _ = fmt.Fprintf(writer, "Invalid list: %s\n", input)
			continue
		}
		fields.List = lt
		break
	}

	return fields, nil
}
