package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for pipeline operations.
	TracerName = "scribe"
)

// Span attribute keys
const (
	AttrMeetingID    = "meeting_id"
	AttrFormat       = "transcript_format"
	AttrStage        = "stage"
	AttrChunkIndex   = "chunk_index"
	AttrChunkCount   = "chunk_count"
	AttrTurnCount    = "turn_count"
	AttrModel        = "model"
	AttrInputTokens  = "input_tokens"
	AttrOutputTokens = "output_tokens"
	AttrDurationMs   = "duration_ms"
	AttrDuplicates   = "duplicates_merged"
	AttrMissing      = "missing_chunks"
	AttrArtifact     = "artifact"
	AttrErrorCode    = "error_code"
	AttrRetryable    = "retryable"
)

// Span names
const (
	SpanProcessMeeting = "scribe.process_meeting"
	SpanStageParse     = "scribe.stage.parse"
	SpanStageChunk     = "scribe.stage.chunk"
	SpanStageAnalyze   = "scribe.stage.analyze"
	SpanStageMerge     = "scribe.stage.merge"
	SpanStageSegment   = "scribe.stage.segment"
	SpanStageArtifacts = "scribe.stage.artifacts"
	SpanStagePersist   = "scribe.stage.persist"
	SpanAnalyzerCall   = "scribe.analyzer_call"
)

// Tracer provides distributed tracing for pipeline operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new pipeline tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartMeetingSpan starts a root span for processing a meeting transcript.
func (t *Tracer) StartMeetingSpan(ctx context.Context, meetingID, format string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, SpanProcessMeeting,
		trace.WithAttributes(
			attribute.String(AttrFormat, format),
		),
	)
	if meetingID != "" {
		span.SetAttributes(attribute.String(AttrMeetingID, meetingID))
	}
	return ctx, span
}

// StartStageSpan starts a span for a pipeline stage.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("scribe.stage.%s", stage)
	return t.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String(AttrStage, stage),
		),
	)
}

// StartAnalyzerSpan starts a span for a single chunk analysis call.
func (t *Tracer) StartAnalyzerSpan(ctx context.Context, model string, chunkIndex int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanAnalyzerCall,
		trace.WithAttributes(
			attribute.String(AttrModel, model),
			attribute.Int(AttrChunkIndex, chunkIndex),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetChunking sets chunking attributes on the span.
func (h *SpanHelper) SetChunking(chunkCount int) {
	h.span.SetAttributes(attribute.Int(AttrChunkCount, chunkCount))
}

// SetMergeResult sets merge outcome attributes on the span.
func (h *SpanHelper) SetMergeResult(turnCount, duplicates, missing int) {
	h.span.SetAttributes(
		attribute.Int(AttrTurnCount, turnCount),
		attribute.Int(AttrDuplicates, duplicates),
		attribute.Int(AttrMissing, missing),
	)
}

// SetAnalyzerResult sets analyzer result attributes.
func (h *SpanHelper) SetAnalyzerResult(inputTokens, outputTokens int, latencyMs int64) {
	h.span.SetAttributes(
		attribute.Int(AttrInputTokens, inputTokens),
		attribute.Int(AttrOutputTokens, outputTokens),
		attribute.Int64(AttrDurationMs, latencyMs),
	)
}

// SetArtifact sets the artifact attribute.
func (h *SpanHelper) SetArtifact(artifact string) {
	h.span.SetAttributes(attribute.String(AttrArtifact, artifact))
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorCode string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, errorCode),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// InjectTraceContext extracts trace context for propagation to event payloads.
func InjectTraceContext(ctx context.Context) map[string]string {
	headers := make(map[string]string)
	traceID := GetTraceID(ctx)
	spanID := GetSpanID(ctx)
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	if spanID != "" {
		headers["span_id"] = spanID
	}
	return headers
}
