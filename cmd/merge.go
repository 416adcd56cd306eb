package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
	"github.com/otherjamesbrown/scribe-cli/pkg/merger"
	"github.com/otherjamesbrown/scribe-cli/pkg/segment"
	"github.com/otherjamesbrown/scribe-cli/pkg/storage"
)

// Merge command flags.
var (
	mergeOutput string
	mergeSave   bool
)

// mergeReport is the aggregate output of 'scribe merge'.
type mergeReport struct {
	MeetingID        string            `json:"meeting_id" yaml:"meeting_id"`
	ChunkCount       int               `json:"chunk_count" yaml:"chunk_count"`
	Turns            []analyzer.Turn   `json:"turns" yaml:"turns"`
	Segments         []segment.Segment `json:"segments" yaml:"segments"`
	DuplicatesMerged int               `json:"duplicates_merged" yaml:"duplicates_merged"`
	MissingChunks    []int             `json:"missing_chunks,omitempty" yaml:"missing_chunks,omitempty"`
	Warnings         []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewMergeCommand creates the 'merge' command.
func NewMergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <meeting-id>",
		Short: "Re-run the merge step from persisted chunk results",
		Long: `Merge per-chunk analysis results already persisted in the artifacts
directory into a single deduplicated turn sequence.

This re-runs only the merge and segmentation steps, so dedup tuning
(similarity threshold, window size) can be iterated without re-analyzing
chunks. Chunks whose turn files are missing are reported as gaps, matching
the degraded behavior of a partial pipeline run.

Examples:
  # Re-merge a processed meeting
  scribe merge weekly-standup

  # Re-merge with a stricter threshold and persist the result
  scribe merge weekly-standup --save
  SCRIBE_OUTPUT_FORMAT=json scribe merge weekly-standup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(args[0])
		},
	}

	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&mergeSave, "save", false, "Overwrite the persisted merged turns and segments")

	return cmd
}

// runMerge executes the merge command.
func runMerge(meetingID string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)

	store, err := newArtifactStore(cfg, logger)
	if err != nil {
		return err
	}

	results, err := store.LoadChunkTurns(meetingID)
	if err != nil {
		return fmt.Errorf("loading chunk results: %w", err)
	}

	chunks, err := storedChunks(store, meetingID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunk artifacts found for meeting %s", meetingID)
	}
	if len(results) == 0 {
		return fmt.Errorf("no chunk results found for meeting %s; run 'scribe process' first", meetingID)
	}

	m := merger.New(mergerOptions(cfg), chunkerConfig(cfg), logger)
	merged := m.Merge(chunks, results)
	segments := segment.FromTurns(merged.Turns, 0)

	report := mergeReport{
		MeetingID:        meetingID,
		ChunkCount:       len(chunks),
		Turns:            merged.Turns,
		Segments:         segments,
		DuplicatesMerged: merged.DuplicatesMerged,
		MissingChunks:    merged.MissingChunks,
		Warnings:         merged.Warnings,
	}

	if mergeSave {
		if err := store.SaveMergedTurns(meetingID, merged.Turns); err != nil {
			return fmt.Errorf("saving merged turns: %w", err)
		}
		if err := store.SaveJSON(meetingID, storage.FileSegments, segments); err != nil {
			return fmt.Errorf("saving segments: %w", err)
		}
	}

	switch resolveOutputFormat(cfg, mergeOutput) {
	case config.OutputFormatJSON:
		return writeJSON(os.Stdout, report)
	case config.OutputFormatYAML:
		return writeYAML(os.Stdout, report)
	default:
		printMergeReport(&report)
	}

	return nil
}

// storedChunks reconstructs the chunk index set from persisted chunk text
// and turn files. Chunk text indices cover chunks whose analysis failed, so
// the merge still reports them as gaps.
func storedChunks(store *storage.ArtifactStore, meetingID string) ([]chunker.Chunk, error) {
	seen := make(map[int]bool)

	pattern := filepath.Join(store.MeetingDir(meetingID), "chunks", "chunk_*.txt")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing chunk files: %w", err)
	}
	for _, match := range matches {
		var index int
		if _, err := fmt.Sscanf(filepath.Base(match), "chunk_%d.txt", &index); err == nil {
			seen[index] = true
		}
	}

	turnIndices, err := store.ChunkIndices(meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing chunk results: %w", err)
	}
	for _, index := range turnIndices {
		seen[index] = true
	}

	indices := make([]int, 0, len(seen))
	for index := range seen {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	chunks := make([]chunker.Chunk, 0, len(indices))
	for _, index := range indices {
		chunks = append(chunks, chunker.Chunk{Index: index})
	}
	return chunks, nil
}

// printMergeReport prints the human-readable merge summary.
func printMergeReport(report *mergeReport) {
	fmt.Println("Merge Complete")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("  Meeting:     %s\n", report.MeetingID)
	fmt.Printf("  Chunks:      %d\n", report.ChunkCount)
	fmt.Printf("  Turns:       \033[32m%d\033[0m\n", len(report.Turns))
	fmt.Printf("  Segments:    %d\n", len(report.Segments))
	fmt.Printf("  Duplicates:  %d merged\n", report.DuplicatesMerged)
	if len(report.MissingChunks) > 0 {
		fmt.Printf("  Missing:     \033[31m%v\033[0m\n", report.MissingChunks)
	}

	if len(report.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range report.Warnings {
			fmt.Printf("  \033[33m- %s\033[0m\n", w)
		}
	}
}
