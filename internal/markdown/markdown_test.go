package markdown

import (
	"strings"
	"testing"

	"remindat/backend"
)

func reminder(id int64, msg string, u backend.Urgency, lt backend.ListType) backend.Reminder {
	return backend.Reminder{ID: id, Message: msg, Urgency: u, ListType: lt}
}

func TestFormat(t *testing.T) {
	done := reminder(3, "file taxes", backend.UrgencyNow, backend.ListActual)
	done.IsCompleted = true

	out := Format(
		[]backend.Reminder{reminder(1, "call Bob", backend.UrgencyNow, backend.ListActual)},
		[]backend.Reminder{reminder(2, "buy stamps", backend.UrgencySoon, backend.ListBacklog)},
		[]backend.Reminder{done},
	)

	want := "## Actual\n\n- [ ] call Bob !now\n\n## Backlog\n\n- [ ] buy stamps !soon\n\n## Completed\n\n- [x] file taxes !now\n"
	if out != want {
		t.Errorf("Format() =\n%s\nwant\n%s", out, want)
	}
}

func TestParseItemText(t *testing.T) {
	tests := []struct {
		text    string
		msg     string
		urgency backend.Urgency
	}{
		{"call Bob !now", "call Bob", backend.UrgencyNow},
		{"!Soon buy stamps", "buy stamps", backend.UrgencySoon},
		{"plain text", "plain text", backend.UrgencyToday},
		{"email a!b@example.com", "email a!b@example.com", backend.UrgencyToday},
		{"  spaced   out  !whenever ", "spaced out", backend.UrgencyWhenever},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			msg, urgency := ParseItemText(tt.text)
			if msg != tt.msg || urgency != tt.urgency {
				t.Errorf("ParseItemText(%q) = %q, %s; want %q, %s", tt.text, msg, urgency, tt.msg, tt.urgency)
			}
		})
	}
}

func TestParse(t *testing.T) {
	text := strings.Join([]string{
		"# My reminders",
		"- [ ] loose item",
		"## Actual",
		"- [ ] call Bob !now",
		"* [x] done already",
		"- [ ]    ",
		"not a checklist line",
		"## backlog",
		"  - [ ] buy stamps !soon",
	}, "\n")

	items := Parse(text)
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(items), items)
	}

	want := []Item{
		{Message: "loose item", Urgency: backend.UrgencyToday, List: backend.ListBacklog},
		{Message: "call Bob", Urgency: backend.UrgencyNow, List: backend.ListActual},
		{Message: "done already", Urgency: backend.UrgencyToday, List: backend.ListActual, Done: true},
		{Message: "buy stamps", Urgency: backend.UrgencySoon, List: backend.ListBacklog},
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	actual := []backend.Reminder{reminder(1, "a", backend.UrgencySoon, backend.ListActual)}
	backlog := []backend.Reminder{reminder(2, "b", backend.UrgencyWhenever, backend.ListBacklog)}

	items := Parse(Format(actual, backlog, nil))
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].List != backend.ListActual || items[0].Urgency != backend.UrgencySoon {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if items[1].List != backend.ListBacklog || items[1].Urgency != backend.UrgencyWhenever {
		t.Errorf("unexpected second item %+v", items[1])
	}
}
