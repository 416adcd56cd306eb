package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/artifacts"
	"github.com/otherjamesbrown/scribe-cli/pkg/storage"
)

// Meeting command flags.
var (
	meetingOutput string
	turnsLimit    int
)

// NewMeetingCommand creates the 'meeting' command with all subcommands.
func NewMeetingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Inspect processed meetings",
		Long: `Inspect meetings processed by the pipeline.

Reads from the artifacts directory; no database connection is required.

Examples:
  scribe meeting list
  scribe meeting show weekly-standup
  scribe meeting turns weekly-standup --limit 20
  scribe meeting segments weekly-standup`,
	}

	cmd.PersistentFlags().StringVarP(&meetingOutput, "output", "o", "", "Output format: text, json, yaml")

	cmd.AddCommand(newMeetingListCommand())
	cmd.AddCommand(newMeetingShowCommand())
	cmd.AddCommand(newMeetingTurnsCommand())
	cmd.AddCommand(newMeetingSegmentsCommand())

	return cmd
}

// newMeetingListCommand creates the 'meeting list' subcommand.
func newMeetingListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processed meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			dir, err := cfg.GetArtifactsDir()
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(dir)
			if os.IsNotExist(err) {
				fmt.Println("No meetings processed yet.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading artifacts directory: %w", err)
			}

			var ids []string
			for _, e := range entries {
				if e.IsDir() {
					ids = append(ids, e.Name())
				}
			}
			sort.Strings(ids)

			switch resolveOutputFormat(cfg, meetingOutput) {
			case config.OutputFormatJSON:
				return writeJSON(os.Stdout, ids)
			case config.OutputFormatYAML:
				return writeYAML(os.Stdout, ids)
			default:
				if len(ids) == 0 {
					fmt.Println("No meetings processed yet.")
					return nil
				}
				for _, id := range ids {
					fmt.Println(id)
				}
			}
			return nil
		},
	}
}

// newMeetingShowCommand creates the 'meeting show' subcommand.
func newMeetingShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show the processing manifest for a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			logger := newLogger(cfg)
			store, err := newArtifactStore(cfg, logger)
			if err != nil {
				return err
			}

			manifest, err := loadManifest(store, args[0])
			if err != nil {
				return err
			}

			switch resolveOutputFormat(cfg, meetingOutput) {
			case config.OutputFormatJSON:
				return writeJSON(os.Stdout, manifest)
			case config.OutputFormatYAML:
				return writeYAML(os.Stdout, manifest)
			default:
				printManifest(manifest)
			}
			return nil
		},
	}
}

// newMeetingTurnsCommand creates the 'meeting turns' subcommand.
func newMeetingTurnsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turns <meeting-id>",
		Short: "Show the merged turn sequence for a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			logger := newLogger(cfg)
			store, err := newArtifactStore(cfg, logger)
			if err != nil {
				return err
			}

			turns, err := store.LoadMergedTurns(args[0])
			if err != nil {
				return fmt.Errorf("loading merged turns: %w", err)
			}

			if turnsLimit > 0 && len(turns) > turnsLimit {
				turns = turns[:turnsLimit]
			}

			switch resolveOutputFormat(cfg, meetingOutput) {
			case config.OutputFormatJSON:
				return writeJSON(os.Stdout, turns)
			case config.OutputFormatYAML:
				return writeYAML(os.Stdout, turns)
			default:
				for _, t := range turns {
					fmt.Printf("[%s-%s] %-16s %-12s %s\n",
						t.StartTS, t.EndTS, truncateText(t.Speaker, 16), t.Type, truncateText(t.Text, 80))
				}
				fmt.Printf("\n%d turn(s)\n", len(turns))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&turnsLimit, "limit", 0, "Maximum number of turns to show (0 = all)")

	return cmd
}

// newMeetingSegmentsCommand creates the 'meeting segments' subcommand.
func newMeetingSegmentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "segments <meeting-id>",
		Short: "Show the analysis segments for a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			logger := newLogger(cfg)
			store, err := newArtifactStore(cfg, logger)
			if err != nil {
				return err
			}

			path := store.Path(args[0], storage.FileSegments)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("loading segments: %w", err)
			}

			var segments []map[string]interface{}
			if err := json.Unmarshal(data, &segments); err != nil {
				return fmt.Errorf("parsing segments: %w", err)
			}

			switch resolveOutputFormat(cfg, meetingOutput) {
			case config.OutputFormatJSON:
				return writeJSON(os.Stdout, segments)
			case config.OutputFormatYAML:
				return writeYAML(os.Stdout, segments)
			default:
				for _, s := range segments {
					speakers := ""
					if raw, ok := s["speakers"].([]interface{}); ok {
						for i, sp := range raw {
							if i > 0 {
								speakers += ", "
							}
							speakers += fmt.Sprint(sp)
						}
					}
					fmt.Printf("Segment %v: %v turn(s), speakers: %s\n", s["id"], s["turn_count"], speakers)
				}
				fmt.Printf("\n%d segment(s)\n", len(segments))
			}
			return nil
		},
	}
}

// loadManifest reads the manifest artifact for a meeting.
func loadManifest(store *storage.ArtifactStore, meetingID string) (*artifacts.Manifest, error) {
	data, err := os.ReadFile(store.Path(meetingID, storage.FileManifest))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no manifest for meeting %s; run 'scribe process' first", meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	var manifest artifacts.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &manifest, nil
}

// printManifest prints the human-readable manifest summary.
func printManifest(m *artifacts.Manifest) {
	fmt.Printf("Meeting: %s\n", m.MeetingID)
	fmt.Printf("  Processed:  %s (%ds)\n",
		m.Processing.StartTime.Format("2006-01-02 15:04:05"), m.Processing.TotalDurationSeconds)
	fmt.Printf("  Pipeline:   %s\n", m.Processing.PipelineVersion)
	fmt.Println()
	fmt.Println("Artifacts:")
	fmt.Printf("  %-20s %-10s %-9s %s\n", "FILE", "SIZE", "RECORDS", "QUALITY")
	for _, a := range m.Artifacts {
		fmt.Printf("  %-20s %-10d %-9d %.2f\n", a.Filename, a.SizeBytes, a.RecordCount, a.QualityScore)
	}
	fmt.Println()
	fmt.Println("Quality:")
	fmt.Printf("  Clarity:      %.2f\n", m.Quality.TranscriptClarity)
	fmt.Printf("  Speakers:     %.2f\n", m.Quality.SpeakerIdentification)
	fmt.Printf("  Timestamps:   %.2f\n", m.Quality.TimestampAccuracy)
	fmt.Printf("  Completeness: %.2f\n", m.Quality.ContentCompleteness)

	if len(m.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range m.Warnings {
			fmt.Printf("  \033[33m- %s\033[0m\n", w)
		}
	}
}
