// Package storage provides database and filesystem persistence for the
// transcript pipeline.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// ProcessingStatus represents the current state of meeting processing.
const (
	ProcessingStatusPending    = "pending"
	ProcessingStatusProcessing = "processing"
	ProcessingStatusCompleted  = "completed"
	ProcessingStatusFailed     = "failed"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusInProgress      JobStatus = "in_progress"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusCompletedErrors JobStatus = "completed_with_errors"
	JobStatusFailed          JobStatus = "failed"
	JobStatusCancelled       JobStatus = "cancelled"
)

// JobErrorType identifies the type of error during processing.
type JobErrorType string

const (
	ErrorTypeParse      JobErrorType = "parse_error"
	ErrorTypeAnalysis   JobErrorType = "analysis_error"
	ErrorTypeMerge      JobErrorType = "merge_error"
	ErrorTypeIO         JobErrorType = "io_error"
	ErrorTypeValidation JobErrorType = "validation_error"
	ErrorTypeStorage    JobErrorType = "storage_error"
	ErrorTypeUnexpected JobErrorType = "unexpected_error"
)

// Meeting represents the data needed to create a meeting record.
type Meeting struct {
	MeetingID       string
	Title           string
	TranscriptPath  string
	Format          string
	ContentHash     string
	RawTranscript   string
	EstimatedTokens int
	Metadata        map[string]interface{}
	SourceTimestamp time.Time
}

// CreatedMeeting contains the result of creating a meeting.
type CreatedMeeting struct {
	ID        int64
	CreatedAt time.Time
}

// ProcessingJob tracks a pipeline run for a meeting.
type ProcessingJob struct {
	ID             string
	MeetingID      string
	Status         JobStatus
	Model          string
	TotalChunks    int
	ProcessedCount int
	FailedCount    int
	Options        map[string]interface{}
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobError records an error for a specific chunk or stage during processing.
type JobError struct {
	ID           string
	JobID        string
	Stage        string
	ChunkIndex   int
	ErrorType    JobErrorType
	ErrorMsg     string
	ErrorDetails map[string]interface{}
	CreatedAt    time.Time
}

// Repository provides database operations for the transcript pipeline.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new pipeline repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "pipeline_repository")),
	}
}

// CreateMeeting inserts a new meeting record and returns the created ID.
func (r *Repository) CreateMeeting(ctx context.Context, meeting *Meeting) (*CreatedMeeting, error) {
	metadataJSON, err := json.Marshal(meeting.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO meetings (
			meeting_id, title, transcript_path, format, content_hash,
			raw_transcript, estimated_tokens, metadata,
			processing_status, source_timestamp, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, NOW(), NOW()
		)
		RETURNING id, created_at
	`

	var result CreatedMeeting
	err = r.pool.QueryRow(ctx, query,
		meeting.MeetingID,
		meeting.Title,
		meeting.TranscriptPath,
		meeting.Format,
		meeting.ContentHash,
		meeting.RawTranscript,
		meeting.EstimatedTokens,
		metadataJSON,
		ProcessingStatusPending,
		meeting.SourceTimestamp,
	).Scan(&result.ID, &result.CreatedAt)

	if err != nil {
		r.logger.Error("Failed to create meeting",
			logging.Err(err),
			logging.F("meeting_id", meeting.MeetingID))
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	r.logger.Debug("Meeting created",
		logging.F("id", result.ID),
		logging.F("meeting_id", meeting.MeetingID))

	return &result, nil
}

// ExistsByContentHash checks if a meeting with the given transcript hash exists.
func (r *Repository) ExistsByContentHash(ctx context.Context, contentHash string) (bool, int64, error) {
	query := `
		SELECT id FROM meetings
		WHERE content_hash = $1 AND deleted_at IS NULL
		LIMIT 1
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, contentHash).Scan(&id)

	if err == pgx.ErrNoRows {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to check existence by content_hash: %w", err)
	}

	return true, id, nil
}

// MeetingRecord represents a meeting retrieved from the database.
type MeetingRecord struct {
	ID               int64
	MeetingID        string
	Title            string
	TranscriptPath   string
	Format           string
	ContentHash      string
	RawTranscript    string
	EstimatedTokens  int
	ProcessingStatus string
}

// GetMeeting retrieves a meeting by its external identifier.
func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (*MeetingRecord, error) {
	query := `
		SELECT id, meeting_id, title, transcript_path, format, content_hash,
		       raw_transcript, estimated_tokens, processing_status
		FROM meetings
		WHERE meeting_id = $1 AND deleted_at IS NULL
	`

	meeting := &MeetingRecord{}
	err := r.pool.QueryRow(ctx, query, meetingID).Scan(
		&meeting.ID,
		&meeting.MeetingID,
		&meeting.Title,
		&meeting.TranscriptPath,
		&meeting.Format,
		&meeting.ContentHash,
		&meeting.RawTranscript,
		&meeting.EstimatedTokens,
		&meeting.ProcessingStatus,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("meeting not found: %s", meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting %s: %w", meetingID, err)
	}

	return meeting, nil
}

// UpdateMeetingStatus updates the processing status of a meeting.
func (r *Repository) UpdateMeetingStatus(ctx context.Context, meetingID, status string) error {
	query := `
		UPDATE meetings
		SET processing_status = $2, updated_at = NOW()
		WHERE meeting_id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, meetingID, status)
	if err != nil {
		return fmt.Errorf("failed to update meeting %s status: %w", meetingID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("meeting not found: %s", meetingID)
	}

	r.logger.Debug("Meeting status updated",
		logging.F("meeting_id", meetingID),
		logging.F("status", status))

	return nil
}

// SaveMergedTurns replaces the stored merged turn list for a meeting.
func (r *Repository) SaveMergedTurns(ctx context.Context, meetingID string, turns []analyzer.Turn) error {
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}

	query := `
		INSERT INTO meeting_turns (meeting_id, turns, turn_count, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (meeting_id)
		DO UPDATE SET turns = EXCLUDED.turns, turn_count = EXCLUDED.turn_count, updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query, meetingID, turnsJSON, len(turns))
	if err != nil {
		return fmt.Errorf("failed to save merged turns: %w", err)
	}

	r.logger.Debug("Merged turns saved",
		logging.F("meeting_id", meetingID),
		logging.F("turn_count", len(turns)))

	return nil
}

// GetMergedTurns retrieves the stored merged turn list for a meeting.
// Returns nil when no turns have been persisted.
func (r *Repository) GetMergedTurns(ctx context.Context, meetingID string) ([]analyzer.Turn, error) {
	query := `
		SELECT turns FROM meeting_turns
		WHERE meeting_id = $1
	`

	var turnsJSON []byte
	err := r.pool.QueryRow(ctx, query, meetingID).Scan(&turnsJSON)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merged turns: %w", err)
	}

	var turns []analyzer.Turn
	if err := json.Unmarshal(turnsJSON, &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turns: %w", err)
	}

	return turns, nil
}

// CreateJob creates a new processing job record.
func (r *Repository) CreateJob(ctx context.Context, job *ProcessingJob) error {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	query := `
		INSERT INTO processing_jobs (
			id, meeting_id, status, model,
			total_chunks, processed_count, failed_count, options,
			started_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			NOW(), NOW(), NOW()
		)
	`

	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.MeetingID,
		job.Status,
		job.Model,
		job.TotalChunks,
		job.ProcessedCount,
		job.FailedCount,
		optionsJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Debug("Processing job created",
		logging.F("job_id", job.ID),
		logging.F("meeting_id", job.MeetingID))

	return nil
}

// GetJob retrieves a processing job by ID.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*ProcessingJob, error) {
	query := `
		SELECT
			id, meeting_id, status, model,
			total_chunks, processed_count, failed_count, options,
			started_at, completed_at, created_at, updated_at
		FROM processing_jobs
		WHERE id = $1
	`

	job := &ProcessingJob{}
	var optionsJSON []byte
	err := r.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.MeetingID,
		&job.Status,
		&job.Model,
		&job.TotalChunks,
		&job.ProcessedCount,
		&job.FailedCount,
		&optionsJSON,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
		job.Options = map[string]interface{}{}
	}

	return job, nil
}

// UpdateJobProgress updates the progress of a processing job.
func (r *Repository) UpdateJobProgress(ctx context.Context, jobID string, processed, failed int) error {
	query := `
		UPDATE processing_jobs
		SET processed_count = $2, failed_count = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, jobID, processed, failed)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}

	return nil
}

// CompleteJob marks a processing job as completed.
func (r *Repository) CompleteJob(ctx context.Context, jobID string, status JobStatus) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, jobID, status)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}

	r.logger.Debug("Job completed",
		logging.F("job_id", jobID),
		logging.F("status", string(status)))

	return nil
}

// RecordError records an error that occurred during processing.
func (r *Repository) RecordError(ctx context.Context, jobID, stage string, chunkIndex int, errorType JobErrorType, errorMsg string, details map[string]interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	query := `
		INSERT INTO processing_errors (job_id, stage, chunk_index, error_type, error_message, error_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err = r.pool.Exec(ctx, query, jobID, stage, chunkIndex, errorType, errorMsg, detailsJSON)
	if err != nil {
		return fmt.Errorf("failed to record error: %w", err)
	}

	return nil
}

// GetJobErrors retrieves all errors for a job.
func (r *Repository) GetJobErrors(ctx context.Context, jobID string) ([]*JobError, error) {
	query := `
		SELECT id, job_id, stage, chunk_index, error_type, error_message, error_details, created_at
		FROM processing_errors
		WHERE job_id = $1
		ORDER BY created_at ASC
		LIMIT 1000
	`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job errors: %w", err)
	}
	defer rows.Close()

	var errors []*JobError
	for rows.Next() {
		e := &JobError{}
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.ChunkIndex, &e.ErrorType, &e.ErrorMsg, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		if err := json.Unmarshal(detailsJSON, &e.ErrorDetails); err != nil {
			e.ErrorDetails = map[string]interface{}{}
		}
		errors = append(errors, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating errors: %w", err)
	}

	return errors, nil
}
