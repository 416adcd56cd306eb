// Package segment partitions a merged turn sequence into analysis segments
// bounded by an approximate token budget.
package segment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
)

// DefaultMaxTokens is the default token budget per segment.
const DefaultMaxTokens = 3000

// Segment is a consecutive run of turns small enough for downstream
// per-segment analysis. IDs start at 1 for readability.
type Segment struct {
	ID        int      `json:"id" yaml:"id"`
	StartSecs *float64 `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndSecs   *float64 `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Topic     string   `json:"topic" yaml:"topic"`
	Speakers  []string `json:"speakers" yaml:"speakers"`
	Text      string   `json:"text" yaml:"text"`
	TurnCount int      `json:"turn_count" yaml:"turn_count"`
}

// estimateTokens approximates token count at 4 chars per token, minimum 1 for
// non-empty text.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// FromTurns groups consecutive turns into segments limited by the token
// budget. maxTokens <= 0 uses DefaultMaxTokens. The topic is a placeholder
// for later enrichment.
func FromTurns(turns []analyzer.Turn, maxTokens int) []Segment {
	if len(turns) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var segments []Segment
	var current []analyzer.Turn
	currentTokens := 0

	for _, t := range turns {
		turnTokens := estimateTokens(t.Text)

		if len(current) > 0 && currentTokens+turnTokens > maxTokens {
			segments = append(segments, build(len(segments)+1, current))
			current = nil
			currentTokens = 0
		}

		current = append(current, t)
		currentTokens += turnTokens
	}

	if len(current) > 0 {
		segments = append(segments, build(len(segments)+1, current))
	}

	return segments
}

// build constructs a Segment from a non-empty run of turns.
func build(id int, turns []analyzer.Turn) Segment {
	speakers := collectSpeakers(turns)

	texts := make([]string, len(turns))
	for i, t := range turns {
		texts[i] = t.Text
	}

	return Segment{
		ID:        id,
		StartSecs: timestampSeconds(turns[0].StartTS),
		EndSecs:   timestampSeconds(turns[len(turns)-1].EndTS),
		Topic:     fmt.Sprintf("Segment %d", id),
		Speakers:  speakers,
		Text:      strings.Join(texts, "\n"),
		TurnCount: len(turns),
	}
}

// collectSpeakers returns unique speakers in first-appearance order.
func collectSpeakers(turns []analyzer.Turn) []string {
	seen := make(map[string]bool)
	var speakers []string
	for _, t := range turns {
		speaker := t.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		if !seen[speaker] {
			seen[speaker] = true
			speakers = append(speakers, speaker)
		}
	}
	return speakers
}

// timestampSeconds converts an HH:MM:SS timestamp to seconds, or nil when the
// timestamp is missing or malformed.
func timestampSeconds(ts string) *float64 {
	if ts == "" {
		return nil
	}
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return nil
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		total = total*60 + v
	}
	return &total
}
