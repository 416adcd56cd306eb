// Package events provides event publishing for the transcript pipeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// Redis channels for pipeline events
const (
	ChannelMeetingChunked   = "events.meeting.chunked"
	ChannelMeetingMerged    = "events.meeting.merged"
	ChannelMeetingProcessed = "events.meeting.processed"
	ChannelMeetingFailed    = "events.meeting.failed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	Version       string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "scribe",
		Version:   "1.0",
	}
}

// ChunkingCompletedEvent is published after a transcript is split into chunks.
type ChunkingCompletedEvent struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
	JobID     string `json:"job_id,omitempty"`

	Format          string `json:"format"`
	EstimatedTokens int    `json:"estimated_tokens"`
	ChunkCount      int    `json:"chunk_count"`
	SinglePass      bool   `json:"single_pass"`
}

// MergeCompletedEvent is published after chunk results are merged.
type MergeCompletedEvent struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
	JobID     string `json:"job_id,omitempty"`

	TurnCount        int   `json:"turn_count"`
	DuplicatesMerged int   `json:"duplicates_merged"`
	MissingChunks    []int `json:"missing_chunks,omitempty"`
	WarningCount     int   `json:"warning_count"`
}

// MeetingProcessedEvent is published when the full pipeline finishes for a meeting.
type MeetingProcessedEvent struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
	JobID     string `json:"job_id,omitempty"`

	TranscriptPath string   `json:"transcript_path"`
	Format         string   `json:"format"`
	ChunkCount     int      `json:"chunk_count"`
	TurnCount      int      `json:"turn_count"`
	SegmentCount   int      `json:"segment_count"`
	Artifacts      []string `json:"artifacts,omitempty"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	Success     bool   `json:"success"`
	FinalStatus string `json:"final_status"`
}

// MeetingFailedEvent is published when the pipeline fails for a meeting.
type MeetingFailedEvent struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
	JobID     string `json:"job_id,omitempty"`

	Stage        string `json:"stage"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	ChunkIndex   int    `json:"chunk_index,omitempty"`
	Retryable    bool   `json:"retryable"`
}

// Publisher publishes pipeline events to Redis.
type Publisher struct {
	client *redis.Client
	logger logging.Logger
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewPublisher creates a new event publisher.
func NewPublisher(client *redis.Client, logger logging.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
func NewPublisherFromConfig(cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPublisher(client, logger), nil
}

// PublishChunkingCompleted publishes an event for a chunked transcript.
func (p *Publisher) PublishChunkingCompleted(ctx context.Context, params ChunkingParams) error {
	event := ChunkingCompletedEvent{
		BaseEvent:       NewBaseEvent("meeting.chunked"),
		MeetingID:       params.MeetingID,
		JobID:           params.JobID,
		Format:          params.Format,
		EstimatedTokens: params.EstimatedTokens,
		ChunkCount:      params.ChunkCount,
		SinglePass:      params.ChunkCount == 1,
	}

	return p.publish(ctx, ChannelMeetingChunked, event)
}

// PublishMergeCompleted publishes an event for merged chunk results.
func (p *Publisher) PublishMergeCompleted(ctx context.Context, params MergeParams) error {
	event := MergeCompletedEvent{
		BaseEvent:        NewBaseEvent("meeting.merged"),
		MeetingID:        params.MeetingID,
		JobID:            params.JobID,
		TurnCount:        params.TurnCount,
		DuplicatesMerged: params.DuplicatesMerged,
		MissingChunks:    params.MissingChunks,
		WarningCount:     params.WarningCount,
	}

	return p.publish(ctx, ChannelMeetingMerged, event)
}

// PublishMeetingProcessed publishes a completion event for a meeting.
func (p *Publisher) PublishMeetingProcessed(ctx context.Context, params ProcessedParams) error {
	event := MeetingProcessedEvent{
		BaseEvent:       NewBaseEvent("meeting.processed"),
		MeetingID:       params.MeetingID,
		JobID:           params.JobID,
		TranscriptPath:  params.TranscriptPath,
		Format:          params.Format,
		ChunkCount:      params.ChunkCount,
		TurnCount:       params.TurnCount,
		SegmentCount:    params.SegmentCount,
		Artifacts:       params.Artifacts,
		StartedAt:       params.StartedAt,
		CompletedAt:     params.CompletedAt,
		DurationSeconds: params.CompletedAt.Sub(params.StartedAt).Seconds(),
		Success:         params.Success,
		FinalStatus:     params.FinalStatus,
	}

	return p.publish(ctx, ChannelMeetingProcessed, event)
}

// PublishMeetingFailed publishes a failure event for a meeting.
func (p *Publisher) PublishMeetingFailed(ctx context.Context, params FailedParams) error {
	event := MeetingFailedEvent{
		BaseEvent:    NewBaseEvent("meeting.failed"),
		MeetingID:    params.MeetingID,
		JobID:        params.JobID,
		Stage:        params.Stage,
		ErrorCode:    params.ErrorCode,
		ErrorMessage: params.ErrorMessage,
		ChunkIndex:   params.ChunkIndex,
		Retryable:    params.Retryable,
	}

	return p.publish(ctx, ChannelMeetingFailed, event)
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// ChunkingParams contains parameters for publishing a chunking event.
type ChunkingParams struct {
	MeetingID       string
	JobID           string
	Format          string
	EstimatedTokens int
	ChunkCount      int
}

// MergeParams contains parameters for publishing a merge event.
type MergeParams struct {
	MeetingID        string
	JobID            string
	TurnCount        int
	DuplicatesMerged int
	MissingChunks    []int
	WarningCount     int
}

// ProcessedParams contains parameters for publishing a completion event.
type ProcessedParams struct {
	MeetingID      string
	JobID          string
	TranscriptPath string
	Format         string
	ChunkCount     int
	TurnCount      int
	SegmentCount   int
	Artifacts      []string
	StartedAt      time.Time
	CompletedAt    time.Time
	Success        bool
	FinalStatus    string
}

// FailedParams contains parameters for publishing a failure event.
type FailedParams struct {
	MeetingID    string
	JobID        string
	Stage        string
	ErrorCode    string
	ErrorMessage string
	ChunkIndex   int
	Retryable    bool
}
