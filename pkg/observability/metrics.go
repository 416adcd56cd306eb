package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the transcript pipeline.
type PipelineMetrics struct {
	// Chunking metrics
	TranscriptsProcessedTotal *prometheus.CounterVec
	ChunksProducedTotal       *prometheus.CounterVec
	ChunkTokens               *prometheus.HistogramVec
	DegradedBoundariesTotal   *prometheus.CounterVec

	// Analysis metrics
	AnalysisOperationsTotal *prometheus.CounterVec
	AnalysisLatencySeconds  *prometheus.HistogramVec
	AnalysisTokensTotal     *prometheus.CounterVec
	ChunksInFlight          *prometheus.GaugeVec

	// Merge metrics
	DuplicatesMergedTotal *prometheus.CounterVec
	MissingChunksTotal    *prometheus.CounterVec
	MergedTurns           *prometheus.HistogramVec

	// Stage metrics
	StageSeconds     *prometheus.HistogramVec
	StageErrorsTotal *prometheus.CounterVec
	ArtifactsWritten *prometheus.CounterVec
}

// DefaultPipelineMetrics creates metrics registered against the default registerer.
func DefaultPipelineMetrics() *PipelineMetrics {
	return NewPipelineMetrics(prometheus.DefaultRegisterer)
}

// NewPipelineMetrics creates a new set of pipeline metrics.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		// Chunking metrics
		TranscriptsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_transcripts_processed_total",
				Help: "Total transcripts processed",
			},
			[]string{"format", "status"},
		),
		ChunksProducedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_chunks_produced_total",
				Help: "Total chunks produced by the splitter",
			},
			[]string{"format"},
		),
		ChunkTokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_chunk_tokens",
				Help:    "Estimated token count per chunk",
				Buckets: []float64{1000, 2500, 5000, 7500, 10000, 12500, 15000, 20000},
			},
			[]string{"format"},
		),
		DegradedBoundariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_degraded_boundaries_total",
				Help: "Total chunk boundaries cut without a natural break",
			},
			[]string{"format"},
		),

		// Analysis metrics
		AnalysisOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_analysis_operations_total",
				Help: "Total chunk analysis operations",
			},
			[]string{"model", "status"},
		),
		AnalysisLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_analysis_latency_seconds",
				Help:    "Chunk analysis latency",
				Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120},
			},
			[]string{"model"},
		),
		AnalysisTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_analysis_tokens_total",
				Help: "Total tokens sent to and received from the analyzer",
			},
			[]string{"direction", "model"},
		),
		ChunksInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scribe_chunks_in_flight",
				Help: "Chunks currently being analyzed",
			},
			[]string{"model"},
		),

		// Merge metrics
		DuplicatesMergedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_duplicates_merged_total",
				Help: "Total overlap duplicate turns merged",
			},
			[]string{"status"},
		),
		MissingChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_missing_chunks_total",
				Help: "Total chunks absent from merge input",
			},
			[]string{"status"},
		),
		MergedTurns: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_merged_turns",
				Help:    "Turn count of merged transcripts",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"status"},
		),

		// Stage metrics
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_stage_seconds",
				Help:    "Pipeline stage latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		StageErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_stage_errors_total",
				Help: "Total pipeline stage failures",
			},
			[]string{"stage", "error_code"},
		),
		ArtifactsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_artifacts_written_total",
				Help: "Total artifact files written",
			},
			[]string{"artifact"},
		),
	}
}

// RecordTranscript records a processed transcript.
func (m *PipelineMetrics) RecordTranscript(format, status string) {
	m.TranscriptsProcessedTotal.WithLabelValues(format, status).Inc()
}

// RecordChunk records a produced chunk and its estimated size.
func (m *PipelineMetrics) RecordChunk(format string, tokens int) {
	m.ChunksProducedTotal.WithLabelValues(format).Inc()
	m.ChunkTokens.WithLabelValues(format).Observe(float64(tokens))
}

// RecordDegradedBoundary records a chunk boundary cut mid-word.
func (m *PipelineMetrics) RecordDegradedBoundary(format string) {
	m.DegradedBoundariesTotal.WithLabelValues(format).Inc()
}

// RecordAnalysis records a completed chunk analysis call.
func (m *PipelineMetrics) RecordAnalysis(model, status string, latencySeconds float64, inputTokens, outputTokens int) {
	m.AnalysisOperationsTotal.WithLabelValues(model, status).Inc()
	m.AnalysisLatencySeconds.WithLabelValues(model).Observe(latencySeconds)
	m.AnalysisTokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.AnalysisTokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// SetChunksInFlight sets the number of chunks currently being analyzed.
func (m *PipelineMetrics) SetChunksInFlight(model string, count float64) {
	m.ChunksInFlight.WithLabelValues(model).Set(count)
}

// RecordMerge records the outcome of a merge pass.
func (m *PipelineMetrics) RecordMerge(status string, duplicates, missing, turns int) {
	m.DuplicatesMergedTotal.WithLabelValues(status).Add(float64(duplicates))
	m.MissingChunksTotal.WithLabelValues(status).Add(float64(missing))
	m.MergedTurns.WithLabelValues(status).Observe(float64(turns))
}

// RecordStage records a completed pipeline stage.
func (m *PipelineMetrics) RecordStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordStageError records a pipeline stage failure.
func (m *PipelineMetrics) RecordStageError(stage, errorCode string) {
	m.StageErrorsTotal.WithLabelValues(stage, errorCode).Inc()
}

// RecordArtifact records an artifact file written to disk.
func (m *PipelineMetrics) RecordArtifact(artifact string) {
	m.ArtifactsWritten.WithLabelValues(artifact).Inc()
}
