package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/runlog"
)

var (
	historyLimit    int
	historyOperator string
	historyAll      bool
	historyOutput   string
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent CLI invocations",
		Long: `Show recent CLI invocations recorded in the run log database.

Requires a run_log section in the configuration file. Each command
invocation is recorded with its operator, arguments, duration, and
outcome, which makes it possible to see what was run against which
meetings and when.

Examples:
  # Show your recent invocations
  scribe history

  # Show the last 50 invocations across all operators
  scribe history --all --limit 50

  # Show invocations by a specific operator
  scribe history --operator jbrown`,
		RunE: runHistory,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries to show")
	cmd.Flags().StringVar(&historyOperator, "operator", "", "Filter by operator (defaults to current user)")
	cmd.Flags().BoolVar(&historyAll, "all", false, "Show invocations from all operators")
	cmd.Flags().StringVarP(&historyOutput, "output", "o", "", "Output format (text, json, yaml)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.RunLog.IsConfigured() {
		return fmt.Errorf("run log is not configured; add a run_log section to the config file")
	}

	client, err := runlog.NewClient(cfg.RunLog)
	if err != nil {
		return fmt.Errorf("connecting to run log: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	operator := historyOperator
	if operator == "" && !historyAll {
		operator = cfg.RunLog.GetOperator()
	}

	entries, err := client.History(ctx, operator, historyLimit)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	switch resolveOutputFormat(cfg, historyOutput) {
	case "json":
		return writeJSON(os.Stdout, entries)
	case "yaml":
		return writeYAML(os.Stdout, entries)
	default:
		printHistory(entries, operator)
	}
	return nil
}

func printHistory(entries []runlog.RunEntry, operator string) {
	if len(entries) == 0 {
		if operator != "" {
			fmt.Printf("No recorded invocations for operator %s.\n", operator)
		} else {
			fmt.Println("No recorded invocations.")
		}
		return
	}

	fmt.Printf("%-20s %-10s %-12s %-10s %-8s %s\n",
		"TIME", "OPERATOR", "COMMAND", "DURATION", "STATUS", "MEETING")
	fmt.Println(strings.Repeat("-", 80))

	for _, e := range entries {
		status := "\033[32mok\033[0m"
		if !e.Success {
			status = "\033[31mfail\033[0m"
		}
		meeting := e.MeetingID
		if meeting == "" {
			meeting = "-"
		}
		fmt.Printf("%-20s %-10s %-12s %-10s %-17s %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncateText(e.Operator, 10),
			truncateText(e.Command, 12),
			formatDuration(time.Duration(e.DurationMs)*time.Millisecond),
			status,
			meeting)
		if !e.Success && e.ErrorMessage != "" {
			fmt.Printf("  \033[31m%s\033[0m\n", truncateText(e.ErrorMessage, 76))
		}
	}

	fmt.Printf("\n%d invocation(s)\n", len(entries))
}
