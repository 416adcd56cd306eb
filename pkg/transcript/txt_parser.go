package transcript

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Matches transcript line: 0:11 : Speaker Name : Text content
// or: 12:45 : Speaker Name (pronouns) : Text content
var txtLineRegex = regexp.MustCompile(`^(\d+):(\d{2})\s*:\s*([^:]+?)\s*:\s*(.+)$`)

// ParseTXT parses a plain text transcript.
// Format: timestamp : Speaker Name : text
func ParseTXT(r io.Reader) (*Transcript, error) {
	scanner := bufio.NewScanner(r)
	result := &Transcript{
		Segments: make([]Segment, 0),
		Speakers: make([]string, 0),
		Format:   "txt",
	}

	speakerSet := make(map[string]bool)
	var lastTimestampMs int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		matches := txtLineRegex.FindStringSubmatch(line)
		if matches == nil {
			// Skip malformed lines.
			continue
		}

		minutes, _ := strconv.Atoi(matches[1])
		seconds, _ := strconv.Atoi(matches[2])
		speaker := strings.TrimSpace(matches[3])
		text := strings.TrimSpace(matches[4])

		timestampMs := (minutes*60 + seconds) * 1000

		result.Segments = append(result.Segments, Segment{
			Speaker: speaker,
			Text:    text,
			StartMs: timestampMs,
			EndMs:   timestampMs, // TXT format carries no end times
		})

		if !speakerSet[speaker] {
			speakerSet[speaker] = true
			result.Speakers = append(result.Speakers, speaker)
		}

		if timestampMs > lastTimestampMs {
			lastTimestampMs = timestampMs
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	result.DurationSeconds = lastTimestampMs / 1000

	return result, nil
}
