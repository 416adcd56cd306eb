package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// Artifact filenames within a meeting directory.
const (
	FileMergedTurns = "turns.json"
	FileSegments    = "segments.json"
	FileQAGroups    = "qa.json"
	FileManifest    = "manifest.json"
	FileCalendar    = "meeting.ics"

	chunksDirName = "chunks"
)

// ArtifactStore persists pipeline artifacts on the local filesystem.
//
// Layout under the base directory:
//
//	<meeting_id>/chunks/chunk_0003.txt
//	<meeting_id>/chunks/overlap_0003.txt
//	<meeting_id>/chunks/turns_0003.json
//	<meeting_id>/turns.json
//	<meeting_id>/segments.json
//	<meeting_id>/qa.json
//	<meeting_id>/manifest.json
//	<meeting_id>/meeting.ics
type ArtifactStore struct {
	baseDir string
	logger  logging.Logger
}

// NewArtifactStore creates an artifact store rooted at baseDir.
func NewArtifactStore(baseDir string, logger logging.Logger) *ArtifactStore {
	return &ArtifactStore{
		baseDir: baseDir,
		logger:  logger.With(logging.F("component", "artifact_store")),
	}
}

// MeetingDir returns the directory holding artifacts for a meeting.
func (s *ArtifactStore) MeetingDir(meetingID string) string {
	return filepath.Join(s.baseDir, meetingID)
}

// Path returns the full path of a named artifact for a meeting.
func (s *ArtifactStore) Path(meetingID, name string) string {
	return filepath.Join(s.MeetingDir(meetingID), name)
}

func (s *ArtifactStore) chunksDir(meetingID string) string {
	return filepath.Join(s.MeetingDir(meetingID), chunksDirName)
}

func chunkTextName(index int) string {
	return fmt.Sprintf("chunk_%04d.txt", index)
}

func overlapTextName(index int) string {
	return fmt.Sprintf("overlap_%04d.txt", index)
}

func chunkTurnsName(index int) string {
	return fmt.Sprintf("turns_%04d.json", index)
}

// SaveChunkText writes the chunk body and its trailing overlap to disk.
func (s *ArtifactStore) SaveChunkText(meetingID string, index int, text, overlap string) error {
	dir := s.chunksDir(meetingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chunks directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, chunkTextName(index)), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write chunk %d: %w", index, err)
	}

	if overlap != "" {
		if err := os.WriteFile(filepath.Join(dir, overlapTextName(index)), []byte(overlap), 0o644); err != nil {
			return fmt.Errorf("failed to write chunk %d overlap: %w", index, err)
		}
	}

	return nil
}

// SaveChunkTurns persists the analyzer output for one chunk.
func (s *ArtifactStore) SaveChunkTurns(meetingID string, index int, turns []analyzer.Turn) error {
	dir := s.chunksDir(meetingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chunks directory: %w", err)
	}

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunk %d turns: %w", index, err)
	}

	if err := os.WriteFile(filepath.Join(dir, chunkTurnsName(index)), data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunk %d turns: %w", index, err)
	}

	s.logger.Debug("Chunk turns saved",
		logging.F("meeting_id", meetingID),
		logging.F("chunk_index", index),
		logging.F("turn_count", len(turns)))

	return nil
}

// LoadChunkTurns reads all persisted per-chunk turn files for a meeting,
// keyed by chunk index. Meetings whose pipeline was interrupted can be
// merged again from these files.
func (s *ArtifactStore) LoadChunkTurns(meetingID string) (map[int][]analyzer.Turn, error) {
	pattern := filepath.Join(s.chunksDir(meetingID), "turns_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk turn files: %w", err)
	}

	results := make(map[int][]analyzer.Turn, len(matches))
	for _, path := range matches {
		var index int
		if _, err := fmt.Sscanf(filepath.Base(path), "turns_%d.json", &index); err != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var turns []analyzer.Turn
		if err := json.Unmarshal(data, &turns); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		results[index] = turns
	}

	return results, nil
}

// ChunkIndices returns the sorted chunk indices with persisted turn files.
func (s *ArtifactStore) ChunkIndices(meetingID string) ([]int, error) {
	results, err := s.LoadChunkTurns(meetingID)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(results))
	for i := range results {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	return indices, nil
}

// SaveMergedTurns writes the merged turn list for a meeting.
func (s *ArtifactStore) SaveMergedTurns(meetingID string, turns []analyzer.Turn) error {
	return s.SaveJSON(meetingID, FileMergedTurns, turns)
}

// LoadMergedTurns reads the merged turn list for a meeting.
func (s *ArtifactStore) LoadMergedTurns(meetingID string) ([]analyzer.Turn, error) {
	data, err := os.ReadFile(s.Path(meetingID, FileMergedTurns))
	if err != nil {
		return nil, fmt.Errorf("failed to read merged turns: %w", err)
	}

	var turns []analyzer.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse merged turns: %w", err)
	}

	return turns, nil
}

// SaveJSON writes a named JSON artifact for a meeting.
func (s *ArtifactStore) SaveJSON(meetingID, name string, v interface{}) error {
	dir := s.MeetingDir(meetingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create meeting directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	s.logger.Debug("Artifact saved",
		logging.F("meeting_id", meetingID),
		logging.F("artifact", name))

	return nil
}

// SaveRaw writes a named artifact with raw bytes.
func (s *ArtifactStore) SaveRaw(meetingID, name string, data []byte) error {
	dir := s.MeetingDir(meetingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create meeting directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}
