package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a classified pipeline error.
type ErrorCode string

const (
	ErrTimeout            ErrorCode = "timeout"
	ErrRateLimit          ErrorCode = "rate_limit"
	ErrModelUnavailable   ErrorCode = "model_unavailable"
	ErrContextCancelled   ErrorCode = "context_cancelled"
	ErrParseError         ErrorCode = "parse_error"
	ErrEmptyTranscript    ErrorCode = "empty_transcript"
	ErrChunkResultMissing ErrorCode = "chunk_result_missing"
	ErrDegradedBoundary   ErrorCode = "degraded_boundary"
	ErrMergeValidation    ErrorCode = "merge_validation"
	ErrStorageError       ErrorCode = "storage_error"
	ErrProcessingError    ErrorCode = "processing_error"
)

// PipelineError is a structured error for pipeline stage failures.
type PipelineError struct {
	Code       ErrorCode
	Stage      string
	ChunkIndex int // -1 when the error is not tied to a chunk
	Message    string
	Duration   time.Duration
	Timeout    time.Duration
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Timeout > 0 && e.Duration > 0 {
		return fmt.Sprintf("%s: %s timed out after %s (limit: %s)", e.Code, e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
	}
	if e.Stage != "" && e.ChunkIndex >= 0 {
		return fmt.Sprintf("%s: %s (chunk %d): %s", e.Code, e.Stage, e.ChunkIndex, e.Message)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError builds a PipelineError for a stage-level failure.
func NewPipelineError(code ErrorCode, stage, message string) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, ChunkIndex: -1, Message: message}
}

// ClassifyError inspects an error and returns a *PipelineError with the
// appropriate code. Errors that match no known pattern get ErrProcessingError.
func ClassifyError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}

	pe := &PipelineError{
		Stage:      stage,
		ChunkIndex: -1,
		Cause:      err,
	}

	// An already-classified error keeps its code.
	var existing *PipelineError
	if errors.As(err, &existing) {
		pe.Code = existing.Code
		pe.ChunkIndex = existing.ChunkIndex
		pe.Message = existing.Message
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		pe.Code = ErrTimeout
		pe.Message = "operation timed out"
		return pe
	}

	if errors.Is(err, context.Canceled) {
		pe.Code = ErrContextCancelled
		pe.Message = "operation cancelled"
		return pe
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	pe.Message = msg

	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") ||
		strings.Contains(lower, "too many requests") || strings.Contains(lower, "quota exceeded"):
		pe.Code = ErrRateLimit

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "no such host"):
		pe.Code = ErrModelUnavailable

	case strings.Contains(lower, "empty transcript") || strings.Contains(lower, "transcript is empty") ||
		strings.Contains(lower, "no transcript"):
		pe.Code = ErrEmptyTranscript

	case strings.Contains(lower, "parse") || strings.Contains(lower, "unmarshal") ||
		strings.Contains(lower, "invalid json"):
		pe.Code = ErrParseError

	case strings.Contains(lower, "database") || strings.Contains(lower, "storage") ||
		strings.Contains(lower, "connection pool"):
		pe.Code = ErrStorageError

	default:
		pe.Code = ErrProcessingError
	}

	return pe
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrTimeout
	}
	return false
}

// IsErrorRetryable returns true if the error is likely transient and worth
// retrying, based on the ErrorCodeRegistry.
func IsErrorRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		if info, ok := ErrorCodeRegistry[pe.Code]; ok {
			return info.Retryable
		}
		// Default to non-retryable for unknown codes
		return false
	}
	return false
}
