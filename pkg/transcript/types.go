// Package transcript provides parsing of raw meeting transcript exports into
// a canonical form the chunking and analysis stages consume.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Segment represents a single speaker-attributed span of a transcript.
type Segment struct {
	Speaker   string `json:"speaker,omitempty"`
	SpeakerID string `json:"speaker_id,omitempty"`
	Text      string `json:"text"`
	StartMs   int    `json:"start_ms"`
	EndMs     int    `json:"end_ms"`
}

// Transcript is the result of parsing a transcript file.
type Transcript struct {
	Segments        []Segment `json:"segments"`
	Speakers        []string  `json:"speakers"`
	DurationSeconds int       `json:"duration_seconds"`
	Format          string    `json:"format"` // "vtt", "txt"
}

// Render produces the canonical text form fed to chunking and analysis: one
// line per segment, timestamped and speaker-prefixed, blank line between
// speaker changes so natural chunk boundaries exist.
func (t *Transcript) Render() string {
	var b strings.Builder
	prevSpeaker := ""
	for i, s := range t.Segments {
		if i > 0 {
			b.WriteByte('\n')
			if s.Speaker != prevSpeaker {
				b.WriteByte('\n')
			}
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s", FormatTimestamp(s.StartMs), s.Speaker, s.Text))
		prevSpeaker = s.Speaker
	}
	return b.String()
}

// IsEmpty reports whether the transcript has no usable segments.
func (t *Transcript) IsEmpty() bool {
	return t == nil || len(t.Segments) == 0
}

// FormatTimestamp renders milliseconds as HH:MM:SS.
func FormatTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// ParseFile parses a transcript file, dispatching on extension.
// Supported: .vtt (WebVTT), .txt (timestamped plain text).
func ParseFile(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		return ParseVTT(f)
	case ".txt":
		return ParseTXT(f)
	default:
		return nil, fmt.Errorf("unsupported transcript format: %s", filepath.Ext(path))
	}
}
