// Package chunker splits transcripts that are too large for single-pass
// analysis into overlapping chunks. Each chunk carries enough metadata for the
// analyzer fan-out and for the merger to reconcile the overlap regions.
package chunker

import (
	"unicode"

	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// Default chunking parameters.
const (
	DefaultChunkSizeTokens = 15000
	DefaultOverlapTokens   = 2000
	DefaultThresholdTokens = 50000
	DefaultCharsPerToken   = 4
)

// Config holds chunking parameters. Token counts are approximations derived
// from CharsPerToken; no real tokenizer is involved.
type Config struct {
	// ChunkSizeTokens is the target size of each chunk.
	ChunkSizeTokens int

	// OverlapTokens is the size of the region shared with the next chunk.
	OverlapTokens int

	// ThresholdTokens is the size below which no splitting happens at all.
	ThresholdTokens int

	// CharsPerToken converts between characters and estimated tokens.
	CharsPerToken int
}

// DefaultConfig returns a Config with the standard pipeline parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSizeTokens: DefaultChunkSizeTokens,
		OverlapTokens:   DefaultOverlapTokens,
		ThresholdTokens: DefaultThresholdTokens,
		CharsPerToken:   DefaultCharsPerToken,
	}
}

// normalized fills zero or negative fields with defaults so a partially
// populated Config from file/flags still behaves.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.ChunkSizeTokens <= 0 {
		c.ChunkSizeTokens = d.ChunkSizeTokens
	}
	if c.OverlapTokens <= 0 {
		c.OverlapTokens = d.OverlapTokens
	}
	if c.ThresholdTokens <= 0 {
		c.ThresholdTokens = d.ThresholdTokens
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = d.CharsPerToken
	}
	return c
}

// Chunk describes one slice of the original transcript text. Ranges are
// half-open character offsets into the full text. Chunks are immutable once
// created.
type Chunk struct {
	Index            int  `json:"chunk_index" yaml:"chunk_index"`
	StartChar        int  `json:"start_char" yaml:"start_char"`
	EndChar          int  `json:"end_char" yaml:"end_char"`
	OverlapStartChar int  `json:"overlap_start_char" yaml:"overlap_start_char"`
	EstimatedTokens  int  `json:"estimated_tokens" yaml:"estimated_tokens"`
	HasNextChunk     bool `json:"has_next_chunk" yaml:"has_next_chunk"`
}

// Text returns the chunk's slice of the full transcript text.
func (c Chunk) Text(full string) string {
	return full[c.StartChar:c.EndChar]
}

// OverlapText returns the region shared with the next chunk, or "" for the
// last chunk.
func (c Chunk) OverlapText(full string) string {
	if !c.HasNextChunk {
		return ""
	}
	return full[c.OverlapStartChar:c.EndChar]
}

// EstimateTokens approximates the token count of text using the configured
// characters-per-token ratio.
func (c Config) EstimateTokens(text string) int {
	cfg := c.normalized()
	return len(text) / cfg.CharsPerToken
}

// Chunker splits transcript text into overlapping chunks.
type Chunker struct {
	cfg    Config
	logger logging.Logger
}

// New creates a Chunker. A nil logger is replaced with a nop logger.
func New(cfg Config, logger logging.Logger) *Chunker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Chunker{cfg: cfg.normalized(), logger: logger}
}

// Split produces an ordered sequence of chunks exactly covering [0, len(text)).
// Empty input yields zero chunks. Transcripts at or below the token threshold
// take the fast path: a single chunk with no overlap and none of the
// boundary-search machinery.
func (ch *Chunker) Split(text string) []Chunk {
	if len(text) == 0 {
		return nil
	}

	cfg := ch.cfg
	if cfg.EstimateTokens(text) <= cfg.ThresholdTokens {
		return []Chunk{{
			Index:            0,
			StartChar:        0,
			EndChar:          len(text),
			OverlapStartChar: len(text),
			EstimatedTokens:  cfg.EstimateTokens(text),
			HasNextChunk:     false,
		}}
	}

	chunkSizeChars := cfg.ChunkSizeTokens * cfg.CharsPerToken
	overlapChars := cfg.OverlapTokens * cfg.CharsPerToken

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + chunkSizeChars
		if end >= len(text) {
			end = len(text)
		} else {
			// The lookback window is capped at the overlap width so the
			// search is bounded and the next start can never regress past
			// the previous chunk's start.
			end = ch.adjustBoundary(text, start, end, overlapChars)
		}

		chunk := Chunk{
			Index:           len(chunks),
			StartChar:       start,
			EndChar:         end,
			EstimatedTokens: (end - start) / cfg.CharsPerToken,
		}

		if end < len(text) {
			chunk.HasNextChunk = true
			chunk.OverlapStartChar = end - overlapChars
			if chunk.OverlapStartChar < start {
				chunk.OverlapStartChar = start
			}
		} else {
			chunk.OverlapStartChar = end
		}

		chunks = append(chunks, chunk)

		if !chunk.HasNextChunk {
			break
		}
		// The next chunk starts at the overlap, derived from the actual
		// adjusted end. Advancing by a precomputed stride instead would let
		// the overlap width drift after every boundary adjustment.
		next := chunk.OverlapStartChar
		if next <= start {
			// Degenerate config (overlap >= chunk size). Fall forward to the
			// chunk end so the loop always makes progress.
			ch.logger.Warn("overlap spans entire chunk, advancing without overlap",
				logging.F("chunk_index", chunk.Index))
			next = end
		}
		start = next
	}

	ch.logger.Debug("transcript split into chunks",
		logging.F("chunk_count", len(chunks)),
		logging.F("total_chars", len(text)))

	return chunks
}

// adjustBoundary searches backward from the tentative end for a natural break
// point, bounded by the lookback window. Priority: paragraph break, then line
// break, then sentence terminator followed by whitespace, then any whitespace.
// As a last resort the tentative end is kept as a hard cut, which is logged
// because it can split a word.
func (ch *Chunker) adjustBoundary(text string, start, end, lookback int) int {
	floor := end - lookback
	if floor < start+1 {
		floor = start + 1
	}

	// Paragraph break: cut just after the blank line.
	for i := end; i >= floor; i-- {
		if i >= 2 && text[i-1] == '\n' && text[i-2] == '\n' {
			return i
		}
	}

	// Line break.
	for i := end; i >= floor; i-- {
		if text[i-1] == '\n' {
			return i
		}
	}

	// Sentence terminator followed by whitespace.
	for i := end; i >= floor+1; i-- {
		if isSentenceEnd(text[i-2]) && isSpace(text[i-1]) {
			return i
		}
	}

	// Any whitespace: never split inside a word when whitespace exists.
	for i := end; i >= floor; i-- {
		if isSpace(text[i-1]) {
			return i
		}
	}

	ch.logger.Warn("no natural break in lookback window, hard character cut",
		logging.F("start_char", start),
		logging.F("end_char", end),
		logging.F("lookback_chars", lookback))
	return end
}

func isSentenceEnd(b byte) bool {
	switch b {
	case '.', '!', '?':
		return true
	}
	return false
}

func isSpace(b byte) bool {
	return unicode.IsSpace(rune(b))
}
