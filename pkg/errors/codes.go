package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Increase the timeout in ~/.scribe/config.yaml or retry with --timeout",
	},
	ErrRateLimit: {
		Code:            ErrRateLimit,
		Retryable:       true,
		Description:     "Analyzer API rate limit exceeded",
		SuggestedAction: "Lower analyzer concurrency (analyzer.concurrency) or wait and retry",
	},
	ErrModelUnavailable: {
		Code:            ErrModelUnavailable,
		Retryable:       true,
		Description:     "Analyzer model or endpoint unavailable",
		SuggestedAction: "Check the analyzer endpoint: scribe auth show, then verify the service is up",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Check if cancellation was intentional, or investigate upstream cancellation",
	},
	ErrParseError: {
		Code:            ErrParseError,
		Retryable:       false,
		Description:     "Transcript or analyzer output parsing failed (malformed structure)",
		SuggestedAction: "Inspect the raw file or chunk output under the meeting's artifacts directory",
	},
	ErrEmptyTranscript: {
		Code:            ErrEmptyTranscript,
		Retryable:       false,
		Description:     "Transcript is empty or contains no parseable segments",
		SuggestedAction: "Verify the input file format: scribe process expects TXT or VTT transcripts",
	},
	ErrChunkResultMissing: {
		Code:            ErrChunkResultMissing,
		Retryable:       true,
		Description:     "A chunk's analysis result is absent; merged output has a gap",
		SuggestedAction: "Re-run the failed chunks: scribe merge picks up any results that exist",
	},
	ErrDegradedBoundary: {
		Code:            ErrDegradedBoundary,
		Retryable:       false,
		Description:     "No natural break found near a chunk boundary; fell back to a hard cut",
		SuggestedAction: "Usually harmless; widen overlap_tokens if boundary turns look truncated",
	},
	ErrMergeValidation: {
		Code:            ErrMergeValidation,
		Retryable:       false,
		Description:     "Merged transcript failed structural validation (best-effort result kept)",
		SuggestedAction: "Inspect warnings: scribe meeting show <meeting-id> --output json",
	},
	ErrStorageError: {
		Code:            ErrStorageError,
		Retryable:       true,
		Description:     "Database or artifact store operation failed",
		SuggestedAction: "Check database connectivity and the artifacts directory permissions",
	},
	ErrProcessingError: {
		Code:            ErrProcessingError,
		Retryable:       false,
		Description:     "Unclassified processing error",
		SuggestedAction: "Run with --debug for stage-level logs",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Run with --debug for stage-level logs"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
