// Package main provides the scribe CLI entry point.
// scribe is the command-line interface for processing meeting transcripts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/scribe-cli/cmd"
	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/scribe-cli/pkg/runlog"
)

// Global flags and state.
var (
	timeout      time.Duration
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Process meeting transcripts into structured turns and segments",
	Long: `scribe is a command-line tool for processing meeting transcripts.

It splits long transcripts into overlapping chunks, sends each chunk to an
analyzer endpoint for turn extraction, reconciles the overlapping results
back into a single ordered list of turns, and writes segments and artifacts
to disk. Results can optionally be persisted to PostgreSQL and announced
on a Redis stream.

Common workflows:
  scribe process meeting.vtt --meeting-id standup-0829   Full pipeline run
  scribe chunk meeting.txt                               Preview chunk boundaries
  scribe merge standup-0829                              Re-merge saved chunk results
  scribe meeting list                                    List processed meetings
  scribe meeting show standup-0829                       Show a meeting's manifest

Configuration is read from ~/.scribe/config.yaml and can be overridden
with SCRIBE_* environment variables and command-line flags.`,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		switch c.Name() {
		case "version", "help", "completion", "init":
			return nil
		}

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		// Flag overrides take precedence over config file and env
		if c.Flags().Changed("timeout") {
			cfg.Timeout = timeout
		}
		if c.Flags().Changed("output") {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
		}
		if c.Flags().Changed("debug") {
			cfg.Debug = debug
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get("scribe-cli")
		if outputFormat == "json" {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("scribe %s\n", info.Version)
		fmt.Printf("  commit:     %s\n", info.Commit)
		fmt.Printf("  built:      %s\n", info.BuildTime)
		fmt.Printf("  go version: %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage the scribe CLI configuration file.

The configuration file lives at ~/.scribe/config.yaml (override the
directory with SCRIBE_CONFIG_DIR).`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(c *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Printf("Config file: %s\n\n", path)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(c *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}

		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save the config file.

Supported keys:
  timeout          Overall command timeout (e.g. 10m, 90s)
  output_format    Default output format (text, json, yaml)
  time_zone        IANA time zone for rendered timestamps
  artifacts_dir    Directory for meeting artifacts
  debug            Enable debug logging (true/false)

Examples:
  scribe config set timeout 15m
  scribe config set output_format json
  scribe config set time_zone Europe/London`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		switch key {
		case "timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", value, err)
			}
			cfg.Timeout = d
		case "output_format":
			f := config.OutputFormat(value)
			if !f.IsValid() {
				return fmt.Errorf("invalid output format %q (use text, json, or yaml)", value)
			}
			cfg.OutputFormat = f
		case "time_zone":
			if _, err := time.LoadLocation(value); err != nil {
				return fmt.Errorf("invalid time zone %q: %w", value, err)
			}
			cfg.TimeZone = value
		case "artifacts_dir":
			cfg.ArtifactsDir = value
		case "debug":
			cfg.Debug = value == "true"
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}

		if err := config.SaveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for scribe.

Examples:
  # Bash (add to ~/.bashrc)
  source <(scribe completion bash)

  # Zsh
  scribe completion zsh > "${fpath[1]}/_scribe"

  # Fish
  scribe completion fish > ~/.config/fish/completions/scribe.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "Overall command timeout")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipeline Commands:"},
		&cobra.Group{ID: "inspect", Title: "Inspection Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
	)

	processCmd := cmd.NewProcessCommand()
	processCmd.GroupID = "pipeline"
	chunkCmd := cmd.NewChunkCommand()
	chunkCmd.GroupID = "pipeline"
	mergeCmd := cmd.NewMergeCommand()
	mergeCmd.GroupID = "pipeline"

	meetingCmd := cmd.NewMeetingCommand()
	meetingCmd.GroupID = "inspect"
	historyCmd := cmd.NewHistoryCommand()
	historyCmd.GroupID = "inspect"

	dbCmd := cmd.NewDBCommand()
	dbCmd.GroupID = "setup"

	cmd.AuthCmd.GroupID = "setup"
	configCmd.GroupID = "setup"

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(meetingCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(cmd.AuthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C gracefully
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	start := time.Now()
	err := rootCmd.ExecuteContext(ctx)
	logCommandExecution(start, err)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// logCommandExecution records the invocation in the run log database.
// Logging is best-effort: failures never affect the command's outcome.
func logCommandExecution(start time.Time, cmdErr error) {
	if cfg == nil || !cfg.RunLog.IsConfigured() {
		return
	}

	name := getCommandName(os.Args)
	switch name {
	case "", "version", "help", "completion", "history":
		return
	}

	client, err := runlog.NewClient(cfg.RunLog)
	if err != nil {
		return
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &runlog.RunEntry{
		Command:     name,
		Args:        getCommandArgs(os.Args),
		FullCommand: strings.Join(os.Args[1:], " "),
		DurationMs:  int(time.Since(start).Milliseconds()),
		Success:     cmdErr == nil,
		MeetingID:   extractMeetingID(os.Args),
	}
	if cmdErr != nil {
		entry.ErrorMessage = cmdErr.Error()
	}

	_ = client.LogRun(ctx, entry)
}

// getCommandName returns the first non-flag argument after the program name.
func getCommandName(args []string) string {
	for _, arg := range args[1:] {
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
	}
	return ""
}

// getCommandArgs returns the arguments after the command name.
func getCommandArgs(args []string) []string {
	for i, arg := range args[1:] {
		if !strings.HasPrefix(arg, "-") {
			return args[i+2:]
		}
	}
	return nil
}

// extractMeetingID pulls a --meeting-id flag value out of the raw args,
// or the positional argument for commands that take a meeting ID.
func extractMeetingID(args []string) string {
	for i, arg := range args {
		if arg == "--meeting-id" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--meeting-id=") {
			return strings.TrimPrefix(arg, "--meeting-id=")
		}
	}
	if getCommandName(args) == "merge" {
		rest := getCommandArgs(args)
		for _, arg := range rest {
			if !strings.HasPrefix(arg, "-") {
				return arg
			}
		}
	}
	return ""
}
