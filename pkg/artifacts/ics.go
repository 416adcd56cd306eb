package artifacts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is an actionable item with timing extracted from a meeting.
type CalendarEvent struct {
	EventID       string `json:"event_id" yaml:"event_id"`
	Title         string `json:"title" yaml:"title"`
	Description   string `json:"description" yaml:"description"`
	StartDatetime string `json:"start_datetime" yaml:"start_datetime"` // ISO 8601
	EndDatetime   string `json:"end_datetime" yaml:"end_datetime"`     // ISO 8601
	SourceContext string `json:"source_context,omitempty" yaml:"source_context,omitempty"`
}

const icsTimestampLayout = "20060102T150405Z"

// WriteICS renders calendar events as an RFC 5545 VCALENDAR document.
// Events with unparseable timestamps are skipped rather than producing a
// broken calendar.
func WriteICS(meetingID string, events []CalendarEvent) string {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:-//scribe//meeting pipeline//EN")
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")

	now := time.Now().UTC().Format(icsTimestampLayout)

	for _, ev := range events {
		start, err := parseEventTime(ev.StartDatetime)
		if err != nil {
			continue
		}
		end, err := parseEventTime(ev.EndDatetime)
		if err != nil {
			end = start.Add(time.Hour)
		}

		uid := ev.EventID
		if uid == "" {
			uid = uuid.New().String()
		}

		writeLine(&b, "BEGIN:VEVENT")
		writeLine(&b, "UID:"+escapeICS(uid)+"@scribe")
		writeLine(&b, "DTSTAMP:"+now)
		writeLine(&b, "DTSTART:"+start.UTC().Format(icsTimestampLayout))
		writeLine(&b, "DTEND:"+end.UTC().Format(icsTimestampLayout))
		writeLine(&b, "SUMMARY:"+escapeICS(ev.Title))
		if ev.Description != "" {
			writeLine(&b, "DESCRIPTION:"+escapeICS(ev.Description))
		}
		if meetingID != "" {
			writeLine(&b, "RELATED-TO:"+escapeICS(meetingID))
		}
		writeLine(&b, "END:VEVENT")
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

// parseEventTime accepts RFC 3339 and a handful of common date formats the
// model emits.
func parseEventTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", value)
}

// writeLine emits one content line, folded at 75 octets per RFC 5545.
func writeLine(b *strings.Builder, line string) {
	const limit = 75
	for len(line) > limit {
		b.WriteString(line[:limit])
		b.WriteString("\r\n ")
		line = line[limit:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

// escapeICS escapes text per RFC 5545 section 3.3.11.
func escapeICS(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
		"\r", "",
	)
	return r.Replace(s)
}
