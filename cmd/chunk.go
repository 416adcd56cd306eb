package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
	"github.com/otherjamesbrown/scribe-cli/pkg/transcript"
)

// Chunk command flags.
var (
	chunkMeetingID string
	chunkOutput    string
	chunkSave      bool
)

// chunkInfo is the per-chunk row reported by 'scribe chunk'.
type chunkInfo struct {
	Index           int  `json:"index" yaml:"index"`
	StartChar       int  `json:"start_char" yaml:"start_char"`
	EndChar         int  `json:"end_char" yaml:"end_char"`
	OverlapChars    int  `json:"overlap_chars" yaml:"overlap_chars"`
	EstimatedTokens int  `json:"estimated_tokens" yaml:"estimated_tokens"`
	HasNextChunk    bool `json:"has_next_chunk" yaml:"has_next_chunk"`
}

// chunkReport is the aggregate output of 'scribe chunk'.
type chunkReport struct {
	MeetingID       string      `json:"meeting_id" yaml:"meeting_id"`
	Format          string      `json:"format" yaml:"format"`
	EstimatedTokens int         `json:"estimated_tokens" yaml:"estimated_tokens"`
	SinglePass      bool        `json:"single_pass" yaml:"single_pass"`
	Chunks          []chunkInfo `json:"chunks" yaml:"chunks"`
}

// NewChunkCommand creates the 'chunk' command.
func NewChunkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <transcript>",
		Short: "Split a transcript into analysis chunks",
		Long: `Split a meeting transcript into overlapping chunks without running
analysis.

Transcripts at or below the chunking threshold produce a single chunk. Larger
transcripts are split at natural boundaries (paragraph, line, sentence) found
by searching backward from the target size; consecutive chunks share an
overlap region so the merge step can deduplicate turns across boundaries.

With --save, chunk and overlap text files are written to the artifacts
directory so the chunks can be inspected or analyzed out of band.

Examples:
  # Preview chunk boundaries
  scribe chunk ./allhands.vtt

  # Persist chunk text to the artifacts directory
  scribe chunk ./allhands.vtt --save

  # Machine-readable boundaries
  scribe chunk ./allhands.vtt --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(args[0])
		},
	}

	cmd.Flags().StringVar(&chunkMeetingID, "meeting-id", "", "Meeting identifier (default: transcript filename)")
	cmd.Flags().StringVarP(&chunkOutput, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&chunkSave, "save", false, "Write chunk text files to the artifacts directory")

	return cmd
}

// runChunk executes the chunk command.
func runChunk(path string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)

	t, err := transcript.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing transcript: %w", err)
	}
	if t.IsEmpty() {
		return fmt.Errorf("transcript contains no segments: %s", path)
	}

	meetingID := chunkMeetingID
	if meetingID == "" {
		base := filepath.Base(path)
		meetingID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	fullText := t.Render()
	chunkCfg := chunkerConfig(cfg)
	chunks := chunker.New(chunkCfg, logger).Split(fullText)

	report := chunkReport{
		MeetingID:       meetingID,
		Format:          t.Format,
		EstimatedTokens: chunkCfg.EstimateTokens(fullText),
		SinglePass:      len(chunks) == 1,
	}
	for _, c := range chunks {
		overlap := 0
		if c.HasNextChunk {
			overlap = c.EndChar - c.OverlapStartChar
		}
		report.Chunks = append(report.Chunks, chunkInfo{
			Index:           c.Index,
			StartChar:       c.StartChar,
			EndChar:         c.EndChar,
			OverlapChars:    overlap,
			EstimatedTokens: c.EstimatedTokens,
			HasNextChunk:    c.HasNextChunk,
		})
	}

	if chunkSave {
		store, err := newArtifactStore(cfg, logger)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if err := store.SaveChunkText(meetingID, c.Index, c.Text(fullText), c.OverlapText(fullText)); err != nil {
				return fmt.Errorf("saving chunk %d: %w", c.Index, err)
			}
		}
	}

	switch resolveOutputFormat(cfg, chunkOutput) {
	case config.OutputFormatJSON:
		return writeJSON(os.Stdout, report)
	case config.OutputFormatYAML:
		return writeYAML(os.Stdout, report)
	default:
		printChunkReport(&report)
	}

	return nil
}

// printChunkReport prints the human-readable chunk table.
func printChunkReport(report *chunkReport) {
	fmt.Printf("Meeting: %s (%s, ~%d tokens)\n", report.MeetingID, report.Format, report.EstimatedTokens)
	if report.SinglePass {
		fmt.Println("Below chunking threshold: single chunk")
	}
	fmt.Println()
	fmt.Printf("%-7s %-10s %-10s %-9s %s\n", "CHUNK", "START", "END", "OVERLAP", "TOKENS")
	for _, c := range report.Chunks {
		fmt.Printf("%-7d %-10d %-10d %-9d %d\n", c.Index, c.StartChar, c.EndChar, c.OverlapChars, c.EstimatedTokens)
	}
	fmt.Printf("\n%d chunk(s)\n", len(report.Chunks))
}
