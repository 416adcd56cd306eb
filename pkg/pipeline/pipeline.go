// Package pipeline orchestrates the full transcript flow: parse, chunk,
// fan-out analysis, merge, segment, artifacts, persistence, events.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/artifacts"
	"github.com/otherjamesbrown/scribe-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
	"github.com/otherjamesbrown/scribe-cli/pkg/contentid"
	scribeerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/merger"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
	"github.com/otherjamesbrown/scribe-cli/pkg/segment"
	"github.com/otherjamesbrown/scribe-cli/pkg/storage"
	"github.com/otherjamesbrown/scribe-cli/pkg/transcript"
)

// Stage names used for spans, metrics and error records.
const (
	StageParse     = "parse"
	StageChunk     = "chunk"
	StageAnalyze   = "analyze"
	StageMerge     = "merge"
	StageSegment   = "segment"
	StageArtifacts = "artifacts"
	StagePersist   = "persist"
)

// Config tunes the pipeline stages.
type Config struct {
	Chunking    chunker.Config
	Merge       merger.Options
	Concurrency int
	TimeZone    string
	Model       string

	// SegmentMaxTokens bounds analysis segments; zero uses the default.
	SegmentMaxTokens int
}

// Deps are the pipeline's collaborators. Analyzer and Store are required;
// Repository, Publisher and Metrics are optional and skipped when nil.
type Deps struct {
	Analyzer   analyzer.Analyzer
	Store      *storage.ArtifactStore
	Repository *storage.Repository
	Publisher  *events.Publisher
	Metrics    *observability.PipelineMetrics
	Tracer     *observability.Tracer
}

// RunRequest identifies one transcript to process.
type RunRequest struct {
	// MeetingID is the external meeting identifier. Empty derives one from
	// the transcript filename.
	MeetingID string

	// TranscriptPath is the .txt or .vtt file to process.
	TranscriptPath string

	// Title is an optional human-readable meeting title.
	Title string
}

// RunResult is the aggregate outcome of one pipeline run.
type RunResult struct {
	MeetingID        string            `json:"meeting_id" yaml:"meeting_id"`
	JobID            string            `json:"job_id" yaml:"job_id"`
	Format           string            `json:"format" yaml:"format"`
	EstimatedTokens  int               `json:"estimated_tokens" yaml:"estimated_tokens"`
	ChunkCount       int               `json:"chunk_count" yaml:"chunk_count"`
	Turns            []analyzer.Turn   `json:"turns" yaml:"turns"`
	Segments         []segment.Segment `json:"segments" yaml:"segments"`
	DuplicatesMerged int               `json:"duplicates_merged" yaml:"duplicates_merged"`
	MissingChunks    []int             `json:"missing_chunks,omitempty" yaml:"missing_chunks,omitempty"`
	Warnings         []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	ChunkErrors      map[int]error     `json:"-" yaml:"-"`
	Artifacts        []string          `json:"artifacts" yaml:"artifacts"`
	StartedAt        time.Time         `json:"started_at" yaml:"started_at"`
	CompletedAt      time.Time         `json:"completed_at" yaml:"completed_at"`
}

// Pipeline runs the transcript flow end to end.
type Pipeline struct {
	cfg     Config
	deps    Deps
	chunker *chunker.Chunker
	merger  *merger.Merger
	tracer  *observability.Tracer
	logger  logging.Logger
}

// New creates a Pipeline. A nil logger is replaced with a nop logger.
func New(cfg Config, deps Deps, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = analyzer.DefaultConcurrency
	}
	if cfg.SegmentMaxTokens <= 0 {
		cfg.SegmentMaxTokens = segment.DefaultMaxTokens
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	return &Pipeline{
		cfg:     cfg,
		deps:    deps,
		chunker: chunker.New(cfg.Chunking, logger),
		merger:  merger.New(cfg.Merge, cfg.Chunking, logger),
		tracer:  tracer,
		logger:  logger.With(logging.F("component", "pipeline")),
	}
}

// Run processes one transcript through every stage. One chunk's failure
// degrades to partial output plus diagnostics; the run fails only when the
// transcript cannot be parsed or every chunk fails.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	meetingID := req.MeetingID
	if meetingID == "" {
		meetingID = meetingIDFromPath(req.TranscriptPath)
	}

	result := &RunResult{
		MeetingID: meetingID,
		JobID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	logger := p.logger.With(
		logging.F("meeting_id", meetingID),
		logging.F("job_id", result.JobID))

	ctx, rootSpan := p.tracer.StartMeetingSpan(ctx, meetingID, "")
	defer rootSpan.End()
	root := observability.NewSpanHelper(rootSpan)

	// Parse
	tr, err := p.runParse(ctx, req.TranscriptPath, result)
	if err != nil {
		root.SetError(err, string(errorCode(err)), scribeerrors.IsErrorRetryable(err))
		p.publishFailure(ctx, result, StageParse, err)
		return nil, err
	}
	fullText := tr.Render()
	result.Format = tr.Format
	result.EstimatedTokens = p.cfg.Chunking.EstimateTokens(fullText)
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordTranscript(tr.Format, "success")
	}

	// Chunk
	chunks := p.runChunk(ctx, meetingID, fullText, tr.Format, result)

	// Analyze
	runRes, err := p.runAnalyze(ctx, meetingID, fullText, chunks, result)
	if err != nil {
		root.SetError(err, string(errorCode(err)), scribeerrors.IsErrorRetryable(err))
		p.publishFailure(ctx, result, StageAnalyze, err)
		p.persistResults(ctx, result, fullText, req, storage.JobStatusFailed)
		return nil, err
	}

	// Merge
	merged := p.runMerge(ctx, chunks, runRes, result)
	root.SetMergeResult(len(merged.Turns), merged.DuplicatesMerged, len(merged.MissingChunks))

	// Segment
	p.runSegment(ctx, merged.Turns, result)

	// Artifacts
	p.runArtifacts(ctx, meetingID, req.Title, tr.DurationSeconds, result)

	// Persist
	status := storage.JobStatusCompleted
	if len(result.ChunkErrors) > 0 {
		status = storage.JobStatusCompletedErrors
	}
	p.persistResults(ctx, result, fullText, req, status)

	result.CompletedAt = time.Now()

	// Completion event, best effort.
	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.PublishMeetingProcessed(ctx, events.ProcessedParams{
			MeetingID:      meetingID,
			JobID:          result.JobID,
			TranscriptPath: req.TranscriptPath,
			Format:         result.Format,
			ChunkCount:     result.ChunkCount,
			TurnCount:      len(result.Turns),
			SegmentCount:   len(result.Segments),
			Artifacts:      result.Artifacts,
			StartedAt:      result.StartedAt,
			CompletedAt:    result.CompletedAt,
			Success:        len(result.ChunkErrors) == 0,
			FinalStatus:    string(status),
		}); err != nil {
			logger.Warn("Failed to publish completion event", logging.Err(err))
		}
	}

	root.SetSuccess()
	logger.Info("Meeting processed",
		logging.F("chunks", result.ChunkCount),
		logging.F("turns", len(result.Turns)),
		logging.F("segments", len(result.Segments)),
		logging.F("duplicates_merged", result.DuplicatesMerged),
		logging.F("failed_chunks", len(result.ChunkErrors)))

	return result, nil
}

func (p *Pipeline) runParse(ctx context.Context, path string, result *RunResult) (*transcript.Transcript, error) {
	_, span := p.tracer.StartStageSpan(ctx, StageParse)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StageParse, start)

	tr, err := transcript.ParseFile(path)
	if err != nil {
		p.recordStageError(StageParse, err)
		return nil, &scribeerrors.PipelineError{
			Code:       scribeerrors.ErrParseError,
			Stage:      StageParse,
			ChunkIndex: -1,
			Message:    err.Error(),
			Cause:      err,
		}
	}
	if tr.IsEmpty() {
		err := scribeerrors.NewPipelineError(scribeerrors.ErrEmptyTranscript, StageParse, "transcript contains no segments")
		p.recordStageError(StageParse, err)
		return nil, err
	}
	return tr, nil
}

func (p *Pipeline) runChunk(ctx context.Context, meetingID, fullText, format string, result *RunResult) []chunker.Chunk {
	_, span := p.tracer.StartStageSpan(ctx, StageChunk)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StageChunk, start)

	chunks := p.chunker.Split(fullText)
	result.ChunkCount = len(chunks)
	observability.NewSpanHelper(span).SetChunking(len(chunks))

	for _, c := range chunks {
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordChunk(format, c.EstimatedTokens)
		}
		if p.deps.Store != nil {
			if err := p.deps.Store.SaveChunkText(meetingID, c.Index, c.Text(fullText), c.OverlapText(fullText)); err != nil {
				p.logger.Warn("Failed to save chunk text", logging.Err(err), logging.F("chunk_index", c.Index))
			}
		}
	}

	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.PublishChunkingCompleted(ctx, events.ChunkingParams{
			MeetingID:       meetingID,
			JobID:           result.JobID,
			Format:          format,
			EstimatedTokens: result.EstimatedTokens,
			ChunkCount:      len(chunks),
		}); err != nil {
			p.logger.Warn("Failed to publish chunking event", logging.Err(err))
		}
	}

	return chunks
}

func (p *Pipeline) runAnalyze(ctx context.Context, meetingID, fullText string, chunks []chunker.Chunk, result *RunResult) (*analyzer.RunResult, error) {
	ctx, span := p.tracer.StartStageSpan(ctx, StageAnalyze)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StageAnalyze, start)

	runner := analyzer.NewRunner(p.deps.Analyzer, analyzer.RunnerConfig{
		Concurrency: p.cfg.Concurrency,
		TimeZone:    p.cfg.TimeZone,
	}, p.logger)

	runRes := runner.Run(ctx, fullText, chunks)
	result.ChunkErrors = runRes.Errors

	for index, cr := range runRes.ChunkResults {
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordAnalysis(cr.Model, "success", cr.Latency.Seconds(), cr.InputTokens, cr.OutputTokens)
		}
		if p.deps.Store != nil {
			if err := p.deps.Store.SaveChunkTurns(meetingID, index, cr.Turns); err != nil {
				p.logger.Warn("Failed to save chunk turns", logging.Err(err), logging.F("chunk_index", index))
			}
		}
	}
	for index, chunkErr := range runRes.Errors {
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordAnalysis(p.cfg.Model, "failed", 0, 0, 0)
		}
		p.logger.Warn("Chunk analysis failed",
			logging.Err(chunkErr),
			logging.F("chunk_index", index))
	}

	if len(chunks) > 0 && runRes.Failed() {
		err := scribeerrors.NewPipelineError(scribeerrors.ErrProcessingError, StageAnalyze, "analysis failed for every chunk")
		p.recordStageError(StageAnalyze, err)
		return nil, err
	}

	return runRes, nil
}

func (p *Pipeline) runMerge(ctx context.Context, chunks []chunker.Chunk, runRes *analyzer.RunResult, result *RunResult) *merger.Result {
	_, span := p.tracer.StartStageSpan(ctx, StageMerge)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StageMerge, start)

	merged := p.merger.Merge(chunks, runRes.Results)
	result.Turns = merged.Turns
	result.DuplicatesMerged = merged.DuplicatesMerged
	result.MissingChunks = merged.MissingChunks
	result.Warnings = merged.Warnings

	status := "success"
	if len(merged.MissingChunks) > 0 {
		status = "partial"
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordMerge(status, merged.DuplicatesMerged, len(merged.MissingChunks), len(merged.Turns))
	}

	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.PublishMergeCompleted(ctx, events.MergeParams{
			MeetingID:        result.MeetingID,
			JobID:            result.JobID,
			TurnCount:        len(merged.Turns),
			DuplicatesMerged: merged.DuplicatesMerged,
			MissingChunks:    merged.MissingChunks,
			WarningCount:     len(merged.Warnings),
		}); err != nil {
			p.logger.Warn("Failed to publish merge event", logging.Err(err))
		}
	}

	return merged
}

func (p *Pipeline) runSegment(ctx context.Context, turns []analyzer.Turn, result *RunResult) {
	_, span := p.tracer.StartStageSpan(ctx, StageSegment)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StageSegment, start)

	result.Segments = segment.FromTurns(turns, p.cfg.SegmentMaxTokens)
}

func (p *Pipeline) runArtifacts(ctx context.Context, meetingID, title string, durationSeconds int, result *RunResult) {
	_, span := p.tracer.StartStageSpan(ctx, StageArtifacts)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StageArtifacts, start)

	if p.deps.Store == nil {
		return
	}

	if err := p.deps.Store.SaveMergedTurns(meetingID, result.Turns); err != nil {
		p.logger.Warn("Failed to save merged turns", logging.Err(err))
	} else {
		result.Artifacts = append(result.Artifacts, storage.FileMergedTurns)
		p.recordArtifact(storage.FileMergedTurns)
	}

	if err := p.deps.Store.SaveJSON(meetingID, storage.FileSegments, result.Segments); err != nil {
		p.logger.Warn("Failed to save segments", logging.Err(err))
	} else {
		result.Artifacts = append(result.Artifacts, storage.FileSegments)
		p.recordArtifact(storage.FileSegments)
	}

	groups := artifacts.GroupTurns(result.Turns)
	artifacts.NormalizeQAGroups(groups, p.logger)
	if err := p.deps.Store.SaveJSON(meetingID, storage.FileQAGroups, groups); err != nil {
		p.logger.Warn("Failed to save QA groups", logging.Err(err))
	} else {
		result.Artifacts = append(result.Artifacts, storage.FileQAGroups)
		p.recordArtifact(storage.FileQAGroups)
	}

	if ics := p.buildCalendar(meetingID, title, durationSeconds, result); ics != "" {
		if err := p.deps.Store.SaveRaw(meetingID, storage.FileCalendar, []byte(ics)); err != nil {
			p.logger.Warn("Failed to save calendar", logging.Err(err))
		} else {
			result.Artifacts = append(result.Artifacts, storage.FileCalendar)
			p.recordArtifact(storage.FileCalendar)
		}
	}

	manifest := p.buildManifest(meetingID, groups, result)
	if err := p.deps.Store.SaveJSON(meetingID, storage.FileManifest, manifest); err != nil {
		p.logger.Warn("Failed to save manifest", logging.Err(err))
	} else {
		result.Artifacts = append(result.Artifacts, storage.FileManifest)
		p.recordArtifact(storage.FileManifest)
	}
}

// buildCalendar renders a single calendar entry for the processed meeting,
// anchored at processing time since transcripts carry only relative offsets.
func (p *Pipeline) buildCalendar(meetingID, title string, durationSeconds int, result *RunResult) string {
	if len(result.Turns) == 0 {
		return ""
	}
	if title == "" {
		title = "Meeting " + meetingID
	}
	if durationSeconds <= 0 {
		durationSeconds = 30 * 60
	}

	start := result.StartedAt
	if loc, err := time.LoadLocation(p.cfg.TimeZone); err == nil && p.cfg.TimeZone != "" {
		start = start.In(loc)
	}

	event := artifacts.CalendarEvent{
		EventID:       result.JobID,
		Title:         title,
		Description:   "Processed transcript: " + result.MeetingID,
		StartDatetime: start.Format(time.RFC3339),
		EndDatetime:   start.Add(time.Duration(durationSeconds) * time.Second).Format(time.RFC3339),
	}
	return artifacts.WriteICS(meetingID, []artifacts.CalendarEvent{event})
}

func (p *Pipeline) buildManifest(meetingID string, groups []artifacts.QAGroup, result *RunResult) artifacts.Manifest {
	now := time.Now()
	manifest := artifacts.Manifest{
		ManifestID: contentid.New(contentid.TypeManifest),
		MeetingID:  meetingID,
		Processing: artifacts.ProcessingInfo{
			StartTime:            result.StartedAt,
			EndTime:              now,
			TotalDurationSeconds: int(now.Sub(result.StartedAt).Seconds()),
			PipelineVersion:      buildinfo.Version,
		},
		Quality:  artifacts.AssessQuality(result.Turns),
		Warnings: result.Warnings,
	}

	for _, name := range result.Artifacts {
		info := artifacts.ArtifactInfo{Filename: name}
		switch name {
		case storage.FileMergedTurns:
			info.RecordCount = len(result.Turns)
			info.QualityScore = artifacts.TurnsQualityScore(result.Turns)
		case storage.FileSegments:
			info.RecordCount = len(result.Segments)
			info.QualityScore = artifacts.TurnsQualityScore(result.Turns)
		case storage.FileQAGroups:
			info.RecordCount = len(groups)
			info.QualityScore = artifacts.QAQualityScore(groups)
		case storage.FileCalendar:
			info.RecordCount = 1
		}
		if stat, err := os.Stat(p.deps.Store.Path(meetingID, name)); err == nil {
			info.SizeBytes = int(stat.Size())
		}
		manifest.Artifacts = append(manifest.Artifacts, info)
	}

	return manifest
}

// persistResults writes meeting, job and turn records. Storage failures are
// logged, never fatal: the artifacts on disk remain the source of truth.
func (p *Pipeline) persistResults(ctx context.Context, result *RunResult, fullText string, req RunRequest, status storage.JobStatus) {
	if p.deps.Repository == nil {
		return
	}

	_, span := p.tracer.StartStageSpan(ctx, StagePersist)
	defer span.End()
	start := time.Now()
	defer p.recordStage(StagePersist, start)

	repo := p.deps.Repository

	if _, err := repo.GetMeeting(ctx, result.MeetingID); err != nil {
		hash := sha256.Sum256([]byte(fullText))
		_, err := repo.CreateMeeting(ctx, &storage.Meeting{
			MeetingID:       result.MeetingID,
			Title:           req.Title,
			TranscriptPath:  req.TranscriptPath,
			Format:          result.Format,
			ContentHash:     hex.EncodeToString(hash[:]),
			RawTranscript:   fullText,
			EstimatedTokens: result.EstimatedTokens,
			SourceTimestamp: result.StartedAt,
		})
		if err != nil {
			p.logger.Warn("Failed to create meeting record", logging.Err(err))
			return
		}
	}

	job := &storage.ProcessingJob{
		ID:          result.JobID,
		MeetingID:   result.MeetingID,
		Status:      storage.JobStatusInProgress,
		Model:       p.cfg.Model,
		TotalChunks: result.ChunkCount,
		Options: map[string]interface{}{
			"concurrency": p.cfg.Concurrency,
			"time_zone":   p.cfg.TimeZone,
		},
	}
	if err := repo.CreateJob(ctx, job); err != nil {
		p.logger.Warn("Failed to create job record", logging.Err(err))
	}

	for index, chunkErr := range result.ChunkErrors {
		if err := repo.RecordError(ctx, result.JobID, StageAnalyze, index, storage.ErrorTypeAnalysis, chunkErr.Error(), nil); err != nil {
			p.logger.Warn("Failed to record chunk error", logging.Err(err))
		}
	}

	if len(result.Turns) > 0 {
		if err := repo.SaveMergedTurns(ctx, result.MeetingID, result.Turns); err != nil {
			p.logger.Warn("Failed to persist merged turns", logging.Err(err))
		}
	}

	processed := result.ChunkCount - len(result.ChunkErrors)
	if err := repo.UpdateJobProgress(ctx, result.JobID, processed, len(result.ChunkErrors)); err != nil {
		p.logger.Warn("Failed to update job progress", logging.Err(err))
	}
	if err := repo.CompleteJob(ctx, result.JobID, status); err != nil {
		p.logger.Warn("Failed to complete job record", logging.Err(err))
	}

	meetingStatus := storage.ProcessingStatusCompleted
	if status == storage.JobStatusFailed {
		meetingStatus = storage.ProcessingStatusFailed
	}
	if err := repo.UpdateMeetingStatus(ctx, result.MeetingID, meetingStatus); err != nil {
		p.logger.Warn("Failed to update meeting status", logging.Err(err))
	}
}

func (p *Pipeline) publishFailure(ctx context.Context, result *RunResult, stage string, err error) {
	if p.deps.Publisher == nil {
		return
	}

	pe := scribeerrors.ClassifyError(err, stage)
	if pubErr := p.deps.Publisher.PublishMeetingFailed(ctx, events.FailedParams{
		MeetingID:    result.MeetingID,
		JobID:        result.JobID,
		Stage:        stage,
		ErrorCode:    string(pe.Code),
		ErrorMessage: pe.Message,
		ChunkIndex:   pe.ChunkIndex,
		Retryable:    scribeerrors.IsErrorRetryable(err),
	}); pubErr != nil {
		p.logger.Warn("Failed to publish failure event", logging.Err(pubErr))
	}
}

func (p *Pipeline) recordStage(stage string, start time.Time) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordStage(stage, time.Since(start).Seconds())
	}
}

func (p *Pipeline) recordStageError(stage string, err error) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordStageError(stage, string(errorCode(err)))
	}
}

func (p *Pipeline) recordArtifact(name string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordArtifact(strings.TrimSuffix(name, filepath.Ext(name)))
	}
}

func errorCode(err error) scribeerrors.ErrorCode {
	pe := scribeerrors.ClassifyError(err, "")
	if pe == nil {
		return scribeerrors.ErrProcessingError
	}
	return pe.Code
}

// meetingIDFromPath derives a meeting identifier from the transcript filename.
func meetingIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
