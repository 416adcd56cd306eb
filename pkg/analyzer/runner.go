package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
	scribeerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// DefaultConcurrency is the default number of concurrent chunk analyses.
const DefaultConcurrency = 5

// RunnerConfig configures the analysis fan-out.
type RunnerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int

	// TimeZone is forwarded to every chunk request.
	TimeZone string
}

// RunResult is the aggregate outcome of a fan-out over all chunks.
type RunResult struct {
	// Results maps chunk index to that chunk's turns. Chunks whose analysis
	// failed are absent; the merger tolerates the gaps.
	Results map[int][]Turn

	// ChunkResults holds the full per-chunk outcomes for observability.
	ChunkResults map[int]*ChunkResult

	// Errors maps failed chunk indices to their errors.
	Errors map[int]error

	// Duration is the wall time of the whole fan-out.
	Duration time.Duration
}

// Failed reports whether every chunk failed.
func (r *RunResult) Failed() bool {
	return len(r.Results) == 0 && len(r.Errors) > 0
}

// Runner fans chunk analysis out over a bounded worker pool.
type Runner struct {
	cfg      RunnerConfig
	analyzer Analyzer
	logger   logging.Logger
}

// NewRunner creates a Runner. A nil logger is replaced with a nop logger.
func NewRunner(analyzer Analyzer, cfg RunnerConfig, logger logging.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{
		cfg:      cfg,
		analyzer: analyzer,
		logger:   logger.With(logging.F("component", "analyzer_runner")),
	}
}

type chunkOutcome struct {
	index  int
	result *ChunkResult
	err    error
}

// Run analyzes every chunk, at most Concurrency at a time, and collects the
// per-chunk results keyed by chunk index. Individual chunk failures are
// recorded, not fatal: the merge stage decides what a partial result means.
func (r *Runner) Run(ctx context.Context, fullText string, chunks []chunker.Chunk) *RunResult {
	start := time.Now()
	res := &RunResult{
		Results:      make(map[int][]Turn, len(chunks)),
		ChunkResults: make(map[int]*ChunkResult, len(chunks)),
		Errors:       make(map[int]error),
	}
	if len(chunks) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	chunksCh := make(chan chunker.Chunk, len(chunks))
	resultsCh := make(chan chunkOutcome, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunksCh {
				if ctx.Err() != nil {
					resultsCh <- chunkOutcome{
						index: c.Index,
						err: &scribeerrors.PipelineError{
							Code: scribeerrors.ErrContextCancelled, Stage: "analyze",
							ChunkIndex: c.Index, Message: ctx.Err().Error(), Cause: ctx.Err(),
						},
					}
					continue
				}
				result, err := r.analyzer.AnalyzeChunk(ctx, ChunkRequest{
					ChunkIndex:  c.Index,
					Text:        c.Text(fullText),
					OverlapText: c.OverlapText(fullText),
					TimeZone:    r.cfg.TimeZone,
				})
				resultsCh <- chunkOutcome{index: c.Index, result: result, err: err}
			}
		}()
	}

	for _, c := range chunks {
		chunksCh <- c
	}
	close(chunksCh)

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for o := range resultsCh {
		if o.err != nil {
			res.Errors[o.index] = o.err
			r.logger.Error("chunk analysis failed",
				logging.Err(o.err),
				logging.F("chunk_index", o.index))
			continue
		}
		res.Results[o.index] = o.result.Turns
		res.ChunkResults[o.index] = o.result
		r.logger.Debug("chunk analyzed",
			logging.F("chunk_index", o.index),
			logging.F("turn_count", len(o.result.Turns)),
			logging.F("latency_ms", o.result.Latency.Milliseconds()))
	}

	res.Duration = time.Since(start)
	r.logger.Info("analysis fan-out complete",
		logging.F("chunks", len(chunks)),
		logging.F("succeeded", len(res.Results)),
		logging.F("failed", len(res.Errors)),
		logging.F("duration_ms", res.Duration.Milliseconds()))

	return res
}
