package analyzer

import (
	"fmt"
	"strings"
)

// turnsSystemPrompt instructs the model to emit structured turn JSON.
const turnsSystemPrompt = `Convert raw meeting transcript text into structured turns with timestamps and speaker labels.
Output valid JSON with a single "turns" array.
Each turn must have: idx, start_ts, end_ts, speaker, type, question_likelihood, text.
Timestamps are HH:MM:SS. idx starts at 0 and increments by 1.
type is one of: question, answer, followup, monologue, housekeeping.
question_likelihood is a number between 0 and 1.
Respond with valid JSON only.`

// buildUserPrompt renders the per-chunk user message. The overlap region is
// called out so the model knows the chunk boundary is not a hard stop.
func buildUserPrompt(req ChunkRequest) string {
	var b strings.Builder
	b.WriteString("Please process this meeting transcript into structured turns:\n\nTRANSCRIPT:\n")
	b.WriteString(req.Text)
	b.WriteString("\n\n")
	if req.OverlapText != "" {
		b.WriteString(fmt.Sprintf("NOTE: the final %d characters of the transcript are shared with the next chunk. Emit complete turns for them anyway.\n", len(req.OverlapText)))
	}
	if req.TimeZone != "" {
		b.WriteString(fmt.Sprintf("TIME_ZONE: %s\n", req.TimeZone))
	}
	b.WriteString(fmt.Sprintf("CHUNK_INDEX: %d\n", req.ChunkIndex))
	b.WriteString("\nOutput valid JSON following the schema specified in the system prompt.")
	return b.String()
}
