// Package markdown renders reminders as a markdown checklist and reads such
// checklists back for import.
package markdown

import (
	"bufio"
	"regexp"
	"strings"

	"remindat/backend"
)

// Item is one checklist line
type Item struct {
	Message string
	Urgency backend.Urgency
	List    backend.ListType
	Done    bool
}

var (
	itemPattern    = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.*)$`)
	urgencyPattern = regexp.MustCompile(`(?i)(^|\s)!(now|today|soon|whenever)\b`)
	headingPattern = regexp.MustCompile(`^#+\s+(.*)$`)
)

// Format writes the three lists as sections of a checklist
func Format(actual, backlog, completed []backend.Reminder) string {
	var sb strings.Builder
	writeSection(&sb, "Actual", actual)
	writeSection(&sb, "Backlog", backlog)
	writeSection(&sb, "Completed", completed)
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, items []backend.Reminder) {
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("## ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for i := range items {
		sb.WriteString(FormatItem(&items[i]))
		sb.WriteString("\n")
	}
}

// FormatItem renders "- [ ] message !urgency"
func FormatItem(r *backend.Reminder) string {
	check := " "
	if r.IsCompleted {
		check = "x"
	}
	return "- [" + check + "] " + r.Message + " !" + string(r.Urgency)
}

// ParseItemText splits the urgency tag from the message. Untagged text is
// UrgencyToday.
func ParseItemText(text string) (string, backend.Urgency) {
	urgency := backend.UrgencyToday
	if m := urgencyPattern.FindStringSubmatch(text); m != nil {
		urgency = backend.Urgency(strings.ToLower(m[2]))
		text = urgencyPattern.ReplaceAllString(text, "$1")
	}
	return strings.Join(strings.Fields(text), " "), urgency
}

// Parse reads checklist items. "Actual" and "Backlog" headings select the
// list of the items below them; anything else lands in the Backlog.
func Parse(text string) []Item {
	var items []Item
	list := backend.ListBacklog

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if lt, err := backend.ParseListType(m[1]); err == nil {
				list = lt
			} else {
				list = backend.ListBacklog
			}
			continue
		}

		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		msg, urgency := ParseItemText(m[2])
		if msg == "" {
			continue
		}
		items = append(items, Item{
			Message: msg,
			Urgency: urgency,
			List:    list,
			Done:    strings.EqualFold(m[1], "x"),
		})
	}
	return items
}
