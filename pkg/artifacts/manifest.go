package artifacts

import (
	"time"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
)

// ArtifactInfo describes one output file in the manifest.
type ArtifactInfo struct {
	Filename     string  `json:"filename" yaml:"filename"`
	SizeBytes    int     `json:"size_bytes" yaml:"size_bytes"`
	RecordCount  int     `json:"record_count" yaml:"record_count"`
	QualityScore float64 `json:"quality_score" yaml:"quality_score"` // 0.0 to 1.0
}

// QualityMetrics summarizes transcript quality for the manifest.
type QualityMetrics struct {
	TranscriptClarity     float64 `json:"transcript_clarity" yaml:"transcript_clarity"`
	SpeakerIdentification float64 `json:"speaker_identification" yaml:"speaker_identification"`
	TimestampAccuracy     float64 `json:"timestamp_accuracy" yaml:"timestamp_accuracy"`
	ContentCompleteness   float64 `json:"content_completeness" yaml:"content_completeness"`
}

// ProcessingInfo records pipeline timing for the manifest.
type ProcessingInfo struct {
	StartTime            time.Time `json:"start_time" yaml:"start_time"`
	EndTime              time.Time `json:"end_time" yaml:"end_time"`
	TotalDurationSeconds int       `json:"total_duration_seconds" yaml:"total_duration_seconds"`
	PipelineVersion      string    `json:"pipeline_version" yaml:"pipeline_version"`
}

// Manifest is the summary document for one processed meeting.
type Manifest struct {
	ManifestID string         `json:"manifest_id" yaml:"manifest_id"`
	MeetingID  string         `json:"meeting_id" yaml:"meeting_id"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
	Artifacts  []ArtifactInfo `json:"artifacts" yaml:"artifacts"`
	Quality    QualityMetrics `json:"quality_metrics" yaml:"quality_metrics"`
	Warnings   []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// AssessQuality derives transcript quality metrics from the merged turns.
func AssessQuality(turns []analyzer.Turn) QualityMetrics {
	if len(turns) == 0 {
		return QualityMetrics{TimestampAccuracy: 1.0}
	}

	identified := 0
	totalLen := 0
	claritySum := 0.0
	for _, t := range turns {
		if t.Speaker != "" && t.Speaker != "unknown" {
			identified++
		}
		totalLen += len(t.Text)

		// Likelihood near 0 or 1 indicates a confident classification.
		conf := t.QuestionLikelihood
		if 1-conf < conf {
			conf = 1 - conf
		}
		claritySum += conf * 2
	}

	n := float64(len(turns))
	completeness := float64(totalLen) / n / 50 // 50 chars is a reasonable minimum turn
	if completeness > 1 {
		completeness = 1
	}

	return QualityMetrics{
		TranscriptClarity:     claritySum / n,
		SpeakerIdentification: float64(identified) / n,
		TimestampAccuracy:     0.9,
		ContentCompleteness:   completeness,
	}
}

// TurnsQualityScore scores a turns artifact by how well speakers were
// identified.
func TurnsQualityScore(turns []analyzer.Turn) float64 {
	if len(turns) == 0 {
		return 0.8
	}
	identified := 0
	for _, t := range turns {
		if t.Speaker != "" && t.Speaker != "unknown" {
			identified++
		}
	}
	return 0.6 + 0.4*float64(identified)/float64(len(turns))
}

// QAQualityScore scores a Q&A artifact by how many groups carry a topic.
func QAQualityScore(groups []QAGroup) float64 {
	if len(groups) == 0 {
		return 0.8
	}
	withTopic := 0
	for _, g := range groups {
		if g.Topic != "" {
			withTopic++
		}
	}
	return 0.7 + 0.3*float64(withTopic)/float64(len(groups))
}
