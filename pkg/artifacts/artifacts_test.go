package artifacts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
)

func TestNormalizeQAGroups_TypeSynonyms(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"qa_exchange", QATypeExchange},
		{"Q&A", QATypeExchange},
		{"QA Exchange", QATypeExchange},
		{"question-answer", QATypeExchange},
		{"question and answer", QATypeExchange},
		{"q and a", QATypeExchange},
		{"monologue", QATypeMonologue},
		{"housekeeping", QATypeHousekeeping},
		{"banter", QATypeDiscussion},
		{"", QATypeDiscussion},
	}

	for _, tt := range tests {
		groups := []QAGroup{{GroupID: 1, Type: tt.in}}
		NormalizeQAGroups(groups, nil)
		assert.Equal(t, tt.want, groups[0].Type, "type %q", tt.in)
	}
}

func TestNormalizeQAGroups_BackfillsGroupIDs(t *testing.T) {
	groups := []QAGroup{
		{GroupID: 5, Type: "discussion"},
		{GroupID: 0, Type: "discussion"},
		{GroupID: -1, Type: "discussion"},
	}
	NormalizeQAGroups(groups, nil)

	assert.Equal(t, 5, groups[0].GroupID)
	assert.Equal(t, 2, groups[1].GroupID)
	assert.Equal(t, 3, groups[2].GroupID)
}

func TestNormalizeQAGroups_RoleSynonyms(t *testing.T) {
	groups := []QAGroup{{
		GroupID: 1,
		Type:    "qa_exchange",
		Turns: []QATurn{
			{Idx: 0, Role: "Questioning"},
			{Idx: 1, Role: "answering"},
			{Idx: 2, Role: "follow-up"},
			{Idx: 3, Role: "contextual"},
			{Idx: 4, Role: "question"},
		},
	}}
	NormalizeQAGroups(groups, nil)

	roles := make([]string, len(groups[0].Turns))
	for i, tr := range groups[0].Turns {
		roles[i] = tr.Role
	}
	assert.Equal(t, []string{"question", "answer", "followup", "context", "question"}, roles)
}

func TestWriteICS_BasicDocument(t *testing.T) {
	events := []CalendarEvent{
		{
			EventID:       "ev-1",
			Title:         "Budget review",
			Description:   "Finalize quarterly numbers",
			StartDatetime: "2026-09-04T10:00:00Z",
			EndDatetime:   "2026-09-04T11:00:00Z",
		},
	}

	ics := WriteICS("mt-abc123", events)

	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(ics, "END:VCALENDAR\r\n"))
	assert.Contains(t, ics, "VERSION:2.0")
	assert.Contains(t, ics, "BEGIN:VEVENT")
	assert.Contains(t, ics, "UID:ev-1@scribe")
	assert.Contains(t, ics, "DTSTART:20260904T100000Z")
	assert.Contains(t, ics, "DTEND:20260904T110000Z")
	assert.Contains(t, ics, "SUMMARY:Budget review")
	assert.Contains(t, ics, "RELATED-TO:mt-abc123")
}

func TestWriteICS_SkipsUnparseableEvents(t *testing.T) {
	events := []CalendarEvent{
		{EventID: "bad", Title: "No date", StartDatetime: "sometime next week"},
		{EventID: "good", Title: "Has date", StartDatetime: "2026-09-04", EndDatetime: ""},
	}

	ics := WriteICS("mt-abc123", events)

	assert.NotContains(t, ics, "UID:bad@scribe")
	assert.Contains(t, ics, "UID:good@scribe")
	// Missing end time defaults to one hour after start.
	assert.Contains(t, ics, "DTEND:20260904T010000Z")
}

func TestWriteICS_EscapesText(t *testing.T) {
	events := []CalendarEvent{
		{
			EventID:       "ev-1",
			Title:         "Review; plan, and\nnext steps",
			StartDatetime: "2026-09-04T10:00:00Z",
			EndDatetime:   "2026-09-04T11:00:00Z",
		},
	}

	ics := WriteICS("", events)
	assert.Contains(t, ics, `Review\; plan\, and\nnext steps`)
}

func TestWriteICS_FoldsLongLines(t *testing.T) {
	events := []CalendarEvent{
		{
			EventID:       "ev-1",
			Title:         strings.Repeat("long title ", 20),
			StartDatetime: "2026-09-04T10:00:00Z",
			EndDatetime:   "2026-09-04T11:00:00Z",
		},
	}

	ics := WriteICS("", events)
	for _, line := range strings.Split(ics, "\r\n") {
		assert.LessOrEqual(t, len(line), 76, "line exceeds fold limit: %q", line)
	}
}

func TestAssessQuality_EmptyTurns(t *testing.T) {
	m := AssessQuality(nil)
	assert.Equal(t, 0.0, m.SpeakerIdentification)
	assert.Equal(t, 1.0, m.TimestampAccuracy)
}

func TestAssessQuality_Metrics(t *testing.T) {
	turns := []analyzer.Turn{
		{Speaker: "Alice", QuestionLikelihood: 0.0, Text: strings.Repeat("a", 100)},
		{Speaker: "unknown", QuestionLikelihood: 0.5, Text: strings.Repeat("b", 100)},
	}

	m := AssessQuality(turns)
	assert.Equal(t, 0.5, m.SpeakerIdentification)
	assert.Equal(t, 1.0, m.ContentCompleteness)
	// Clarity terms: likelihood 0.0 contributes 0.0, likelihood 0.5
	// contributes 1.0, averaging to 0.5.
	assert.InDelta(t, 0.5, m.TranscriptClarity, 1e-9)
}

func TestTurnsQualityScore(t *testing.T) {
	assert.Equal(t, 0.8, TurnsQualityScore(nil))

	allNamed := []analyzer.Turn{{Speaker: "Alice"}, {Speaker: "Bob"}}
	assert.InDelta(t, 1.0, TurnsQualityScore(allNamed), 1e-9)

	half := []analyzer.Turn{{Speaker: "Alice"}, {Speaker: "unknown"}}
	assert.InDelta(t, 0.8, TurnsQualityScore(half), 1e-9)
}

func TestQAQualityScore(t *testing.T) {
	assert.Equal(t, 0.8, QAQualityScore(nil))

	groups := []QAGroup{{Topic: "budget"}, {Topic: ""}}
	assert.InDelta(t, 0.85, QAQualityScore(groups), 1e-9)
}

func TestParseEventTime(t *testing.T) {
	for _, ok := range []string{
		"2026-09-04T10:00:00Z",
		"2026-09-04T10:00:00",
		"2026-09-04 10:00:00",
		"2026-09-04T10:00",
		"2026-09-04",
	} {
		_, err := parseEventTime(ok)
		require.NoError(t, err, "should parse %q", ok)
	}

	for _, bad := range []string{"", "next tuesday", "04/09/2026"} {
		_, err := parseEventTime(bad)
		assert.Error(t, err, "should reject %q", bad)
	}
}

func TestGroupTurns_QAExchange(t *testing.T) {
	turns := []analyzer.Turn{
		{Idx: 0, StartTS: "00:00:01", EndTS: "00:00:05", Speaker: "alice", Type: "question", QuestionLikelihood: 0.9, Text: "What is the deadline?"},
		{Idx: 1, StartTS: "00:00:06", EndTS: "00:00:12", Speaker: "bob", Type: "answer", Text: "End of the month."},
		{Idx: 2, StartTS: "00:00:13", EndTS: "00:00:18", Speaker: "alice", Type: "followup", Text: "Including testing?"},
	}

	groups := GroupTurns(turns)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, 1, g.GroupID)
	assert.Equal(t, QATypeExchange, g.Type)
	assert.Equal(t, "00:00:01", g.StartTS)
	assert.Equal(t, "00:00:18", g.EndTS)
	require.Len(t, g.Turns, 3)
	assert.Equal(t, "question", g.Turns[0].Role)
	assert.Equal(t, "answer", g.Turns[1].Role)
	assert.Equal(t, "followup", g.Turns[2].Role)
}

func TestGroupTurns_MonologueStandsAlone(t *testing.T) {
	turns := []analyzer.Turn{
		{Idx: 0, Speaker: "alice", Type: "question", QuestionLikelihood: 0.8, Text: "Status update?"},
		{Idx: 1, Speaker: "bob", Type: "monologue", Text: "Long status recap covering the whole sprint."},
		{Idx: 2, Speaker: "carol", Type: "housekeeping", Text: "Next meeting same time."},
	}

	groups := GroupTurns(turns)
	require.Len(t, groups, 3)
	assert.Equal(t, QATypeExchange, groups[0].Type)
	assert.Equal(t, QATypeMonologue, groups[1].Type)
	assert.Equal(t, QATypeHousekeeping, groups[2].Type)
}

func TestGroupTurns_LowLikelihoodQuestionJoinsDiscussion(t *testing.T) {
	turns := []analyzer.Turn{
		{Idx: 0, Speaker: "alice", Type: "answer", Text: "Picking up from last time."},
		{Idx: 1, Speaker: "bob", Type: "question", QuestionLikelihood: 0.2, Text: "Right?"},
	}

	groups := GroupTurns(turns)
	require.Len(t, groups, 1)
	assert.Equal(t, QATypeDiscussion, groups[0].Type)
	require.Len(t, groups[0].Turns, 2)
	assert.Equal(t, "context", groups[0].Turns[1].Role)
}

func TestGroupTurns_Empty(t *testing.T) {
	assert.Empty(t, GroupTurns(nil))
}
