package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
	"github.com/otherjamesbrown/scribe-cli/pkg/pipeline"
)

// Process command flags.
var (
	processMeetingID string
	processTitle     string
	processOutput    string
	processNoPersist bool
	processNoEvents  bool
)

// NewProcessCommand creates the 'process' command.
func NewProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <transcript>",
		Short: "Run the full pipeline on a meeting transcript",
		Long: `Process a meeting transcript end to end: parse, chunk, analyze,
merge, segment, and write artifacts.

Supports WebVTT (.vtt) and plain text (.txt) transcripts. Large transcripts
are split into overlapping chunks analyzed in parallel; per-chunk turns are
deduplicated across overlap regions into a single merged sequence. A failed
chunk degrades the run to partial output instead of failing it.

Artifacts (chunk text, per-chunk turns, merged turns, segments, manifest) are
written under the configured artifacts directory, keyed by meeting ID.

Examples:
  # Process a transcript
  scribe process ./standup.vtt

  # Explicit meeting ID and title
  scribe process ./standup.vtt --meeting-id weekly-standup --title "Weekly Standup"

  # Machine-readable result
  scribe process ./standup.vtt --output json

  # Skip database persistence and event publishing
  scribe process ./standup.vtt --no-persist --no-events`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&processMeetingID, "meeting-id", "", "Meeting identifier (default: transcript filename)")
	cmd.Flags().StringVar(&processTitle, "title", "", "Meeting title")
	cmd.Flags().StringVarP(&processOutput, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&processNoPersist, "no-persist", false, "Skip database persistence")
	cmd.Flags().BoolVar(&processNoEvents, "no-events", false, "Skip event publishing")

	return cmd
}

// runProcess executes the process command.
func runProcess(ctx context.Context, path string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("transcript not found: %s", path)
	}

	logger := newLogger(cfg)

	store, err := newArtifactStore(cfg, logger)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	deps := pipeline.Deps{
		Analyzer: newAnalyzer(cfg, logger),
		Store:    store,
		Metrics:  observability.DefaultPipelineMetrics(),
	}

	if !processNoPersist {
		repo, pool, err := connectRepository(runCtx, cfg, logger)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
			deps.Repository = repo
		}
	}

	if !processNoEvents {
		publisher, err := newEventsPublisher(cfg, logger)
		if err != nil {
			logger.Warn("event publishing disabled", logging.Err(err))
		} else if publisher != nil {
			defer publisher.Close()
			deps.Publisher = publisher
		}
	}

	p := pipeline.New(pipeline.Config{
		Chunking:    chunkerConfig(cfg),
		Merge:       mergerOptions(cfg),
		Concurrency: cfg.Analyzer.Concurrency,
		TimeZone:    cfg.TimeZone,
		Model:       cfg.Analyzer.Model,
	}, deps, logger)

	result, err := p.Run(runCtx, pipeline.RunRequest{
		MeetingID:      processMeetingID,
		TranscriptPath: path,
		Title:          processTitle,
	})
	if err != nil {
		return err
	}

	switch resolveOutputFormat(cfg, processOutput) {
	case config.OutputFormatJSON:
		return writeJSON(os.Stdout, result)
	case config.OutputFormatYAML:
		return writeYAML(os.Stdout, result)
	default:
		printProcessResult(result)
	}

	if len(result.MissingChunks) > 0 {
		return fmt.Errorf("%d of %d chunks failed; output is partial", len(result.MissingChunks), result.ChunkCount)
	}
	return nil
}

// printProcessResult prints the human-readable run summary.
func printProcessResult(result *pipeline.RunResult) {
	duration := result.CompletedAt.Sub(result.StartedAt)

	fmt.Println("Processing Complete")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("  Meeting:     %s\n", result.MeetingID)
	fmt.Printf("  Format:      %s\n", result.Format)
	fmt.Printf("  Est. tokens: %d\n", result.EstimatedTokens)
	fmt.Printf("  Chunks:      %d\n", result.ChunkCount)
	fmt.Printf("  Turns:       \033[32m%d\033[0m\n", len(result.Turns))
	fmt.Printf("  Segments:    %d\n", len(result.Segments))
	fmt.Printf("  Duplicates:  %d merged\n", result.DuplicatesMerged)
	if len(result.MissingChunks) > 0 {
		fmt.Printf("  Missing:     \033[31m%v\033[0m\n", result.MissingChunks)
	}
	fmt.Printf("  Duration:    %s\n", formatDuration(duration))

	if len(result.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range result.Warnings {
			fmt.Printf("  \033[33m- %s\033[0m\n", w)
		}
	}

	if len(result.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		for _, a := range result.Artifacts {
			fmt.Printf("  - %s\n", a)
		}
	}
}
