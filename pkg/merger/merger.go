// Package merger reconciles independently produced per-chunk turn lists into
// one gap-free, duplicate-free, chronologically ordered turn sequence.
//
// True duplicates can only occur in the small text region consecutive chunks
// share, so each incoming turn is compared against a bounded tail window of
// the accumulated result rather than the whole sequence. That keeps the fold
// at O(chunks x window) and avoids false matches against unrelated but
// textually similar turns elsewhere in the meeting.
package merger

import (
	"fmt"
	"sort"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// Default merge tuning. The similarity threshold and the turns-per-overlap
// heuristic are empirical; both are Options fields, not behavior to hardcode.
const (
	DefaultSimilarityThreshold = 0.75
	DefaultAvgTokensPerTurn    = 50
	DefaultMaxWindowTurns      = 50
)

// Options tunes the overlap deduplication.
type Options struct {
	// SimilarityThreshold is the minimum Jaccard similarity for two turns to
	// be considered duplicates (0..1).
	SimilarityThreshold float64

	// AvgTokensPerTurn sizes the comparison window: overlap tokens divided by
	// this estimate gives the number of tail turns to inspect. Too small
	// risks missed duplicates, too large risks false merges and extra cost.
	AvgTokensPerTurn int

	// MaxWindowTurns caps the comparison window regardless of the estimate.
	MaxWindowTurns int
}

// DefaultOptions returns the standard merge tuning.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		AvgTokensPerTurn:    DefaultAvgTokensPerTurn,
		MaxWindowTurns:      DefaultMaxWindowTurns,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.AvgTokensPerTurn <= 0 {
		o.AvgTokensPerTurn = d.AvgTokensPerTurn
	}
	if o.MaxWindowTurns <= 0 {
		o.MaxWindowTurns = d.MaxWindowTurns
	}
	return o
}

// Result is the canonical merged transcript plus merge diagnostics.
type Result struct {
	// Turns is the ordered sequence with gapless global idx values.
	Turns []analyzer.Turn `json:"turns" yaml:"turns"`

	// DuplicatesMerged counts turns folded into an existing entry.
	DuplicatesMerged int `json:"duplicates_merged" yaml:"duplicates_merged"`

	// MissingChunks lists chunk indices with no result (upstream failure).
	MissingChunks []int `json:"missing_chunks,omitempty" yaml:"missing_chunks,omitempty"`

	// Warnings holds non-fatal structural validation findings.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Merger folds per-chunk turn lists into a single sequence.
type Merger struct {
	opts     Options
	chunkCfg chunker.Config
	logger   logging.Logger
}

// New creates a Merger. The chunker config supplies the overlap width used to
// size the comparison window. A nil logger is replaced with a nop logger.
func New(opts Options, chunkCfg chunker.Config, logger logging.Logger) *Merger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Merger{opts: opts.normalized(), chunkCfg: chunkCfg, logger: logger}
}

// Merge folds the per-chunk results, in ascending chunk index order, into one
// canonical turn sequence. results maps chunk index to that chunk's turns; a
// missing key means the analysis of that chunk failed upstream, which is
// recorded and skipped rather than aborting the fold. The merged result is
// always returned; structural problems surface as warnings.
func (m *Merger) Merge(chunks []chunker.Chunk, results map[int][]analyzer.Turn) *Result {
	res := &Result{}

	// Process in chunk order regardless of completion order of the parallel
	// analysis fan-out.
	indices := make([]int, 0, len(chunks))
	for _, c := range chunks {
		indices = append(indices, c.Index)
	}
	sort.Ints(indices)

	window := m.windowSize()
	merged := make([]analyzer.Turn, 0)

	for _, idx := range indices {
		turns, ok := results[idx]
		if !ok {
			res.MissingChunks = append(res.MissingChunks, idx)
			m.logger.Warn("chunk result missing, continuing with remaining chunks",
				logging.F("chunk_index", idx))
			continue
		}

		if len(merged) == 0 {
			// First chunk with a present result: append wholesale.
			merged = append(merged, turns...)
			continue
		}

		duplicates := 0
		for _, t := range turns {
			if pos := m.findDuplicate(merged, t, window); pos >= 0 {
				merged[pos] = mergeTurns(merged[pos], t)
				duplicates++
			} else {
				merged = append(merged, t)
			}
		}
		res.DuplicatesMerged += duplicates
		m.logger.Debug("chunk folded",
			logging.F("chunk_index", idx),
			logging.F("new_turns", len(turns)-duplicates),
			logging.F("duplicates_merged", duplicates))
	}

	// Renumber to a gapless global sequence. Insertion order is already
	// chronological, so this is a straight reindex.
	for i := range merged {
		merged[i].Idx = i
	}
	res.Turns = merged

	res.Warnings = validateTurns(merged)
	for _, w := range res.Warnings {
		m.logger.Warn("merged transcript validation", logging.F("finding", w))
	}

	return res
}

// windowSize derives the number of tail turns to compare against from the
// overlap width and the average-turn-size heuristic.
func (m *Merger) windowSize() int {
	overlap := m.chunkCfg.OverlapTokens
	if overlap <= 0 {
		overlap = chunker.DefaultOverlapTokens
	}
	n := overlap / m.opts.AvgTokensPerTurn
	if n < 1 {
		n = 1
	}
	if n > m.opts.MaxWindowTurns {
		n = m.opts.MaxWindowTurns
	}
	return n
}

// findDuplicate returns the absolute position in merged of the best-matching
// candidate within the tail window, or -1 when no candidate with a matching
// speaker reaches the similarity threshold.
func (m *Merger) findDuplicate(merged []analyzer.Turn, t analyzer.Turn, window int) int {
	lo := len(merged) - window
	if lo < 0 {
		lo = 0
	}

	speaker := normalizeSpeaker(t.Speaker)
	text := tokenSet(normalizeText(t.Text))

	best := -1
	bestScore := 0.0
	for i := lo; i < len(merged); i++ {
		if normalizeSpeaker(merged[i].Speaker) != speaker {
			continue
		}
		score := jaccard(text, tokenSet(normalizeText(merged[i].Text)))
		if score >= m.opts.SimilarityThreshold && score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// mergeTurns combines a duplicate pair in place: the longer text survives and
// the timestamp span widens to cover both.
func mergeTurns(existing, incoming analyzer.Turn) analyzer.Turn {
	out := existing
	if len(incoming.Text) > len(existing.Text) {
		out = incoming
		out.Idx = existing.Idx
	}
	out.StartTS = minTS(existing.StartTS, incoming.StartTS)
	out.EndTS = maxTS(existing.EndTS, incoming.EndTS)
	return out
}

// minTS returns the earlier of two HH:MM:SS strings; empty values lose.
func minTS(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b < a {
		return b
	}
	return a
}

// maxTS returns the later of two HH:MM:SS strings; empty values lose.
func maxTS(a, b string) string {
	if b > a {
		return b
	}
	return a
}

// validateTurns checks structural well-formedness of the merged sequence.
// Findings are warnings: a best-effort merge is preferred over no output.
func validateTurns(turns []analyzer.Turn) []string {
	var warnings []string
	prevEnd := ""
	for i, t := range turns {
		if t.Idx != i {
			warnings = append(warnings, fmt.Sprintf("turn %d: idx %d not sequential", i, t.Idx))
		}
		if t.Speaker == "" {
			warnings = append(warnings, fmt.Sprintf("turn %d: missing speaker", i))
		}
		if t.Text == "" {
			warnings = append(warnings, fmt.Sprintf("turn %d: empty text", i))
		}
		if t.StartTS == "" || t.EndTS == "" {
			warnings = append(warnings, fmt.Sprintf("turn %d: missing timestamps", i))
			continue
		}
		if t.EndTS < t.StartTS {
			warnings = append(warnings, fmt.Sprintf("turn %d: end_ts %s before start_ts %s", i, t.EndTS, t.StartTS))
		}
		if prevEnd != "" && t.StartTS < prevEnd {
			warnings = append(warnings, fmt.Sprintf("turn %d: start_ts %s regresses before previous end_ts %s", i, t.StartTS, prevEnd))
		}
		prevEnd = t.EndTS
	}
	return warnings
}
