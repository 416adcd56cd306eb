// Package analyzer turns chunk text into structured turn records using an
// OpenAI-compatible chat completion endpoint, and fans the per-chunk calls out
// under bounded concurrency.
package analyzer

import (
	"context"
	"time"
)

// Turn type values produced by the model. Anything else is remapped by
// NormalizeTurns or defaulted to TurnTypeMonologue.
const (
	TurnTypeQuestion     = "question"
	TurnTypeAnswer       = "answer"
	TurnTypeFollowup     = "followup"
	TurnTypeMonologue    = "monologue"
	TurnTypeHousekeeping = "housekeeping"
)

// Turn is the atomic unit of speech extracted from a chunk. Idx is locally
// unique within one chunk's result; the merger assigns the global sequence.
type Turn struct {
	Idx                int     `json:"idx" yaml:"idx"`
	StartTS            string  `json:"start_ts" yaml:"start_ts"` // HH:MM:SS
	EndTS              string  `json:"end_ts" yaml:"end_ts"`     // HH:MM:SS
	Speaker            string  `json:"speaker" yaml:"speaker"`
	Type               string  `json:"type" yaml:"type"`
	QuestionLikelihood float64 `json:"question_likelihood" yaml:"question_likelihood"`
	Text               string  `json:"text" yaml:"text"`
}

// ChunkRequest is one unit of analysis work.
type ChunkRequest struct {
	// ChunkIndex identifies the chunk within the meeting.
	ChunkIndex int

	// Text is the chunk's slice of the transcript.
	Text string

	// OverlapText is the region shared with the next chunk, passed as extra
	// context so the model does not truncate turns at the boundary. Empty for
	// the last chunk.
	OverlapText string

	// TimeZone is the meeting time zone (IANA name), used by the model to
	// interpret clock times mentioned in the transcript.
	TimeZone string
}

// ChunkResult is the outcome of analyzing one chunk.
type ChunkResult struct {
	ChunkIndex int    `json:"chunk_index" yaml:"chunk_index"`
	Turns      []Turn `json:"turns" yaml:"turns"`

	// Model and token accounting for observability.
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	InputTokens  int           `json:"input_tokens,omitempty" yaml:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
	Latency      time.Duration `json:"-" yaml:"-"`
}

// Analyzer extracts turns from a single chunk. Implementations must be safe
// for concurrent use: the runner invokes AnalyzeChunk from multiple workers.
type Analyzer interface {
	AnalyzeChunk(ctx context.Context, req ChunkRequest) (*ChunkResult, error)
}
