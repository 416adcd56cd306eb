package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/credentials"
	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
	"github.com/otherjamesbrown/scribe-cli/pkg/db"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/merger"
	"github.com/otherjamesbrown/scribe-cli/pkg/storage"
)

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// newLogger builds the CLI logger from configuration. Debug mode switches to
// verbose console output; otherwise warnings and up keep command output clean.
func newLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.LevelWarn
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "scribe",
		Environment: "cli",
		JSONFormat:  false,
		Output:      os.Stderr,
	})
}

// chunkerConfig converts the CLI chunking section to a chunker.Config.
func chunkerConfig(cfg *config.CLIConfig) chunker.Config {
	return chunker.Config{
		ChunkSizeTokens: cfg.Chunking.ChunkSizeTokens,
		OverlapTokens:   cfg.Chunking.OverlapTokens,
		ThresholdTokens: cfg.Chunking.ThresholdTokens,
		CharsPerToken:   cfg.Chunking.CharsPerToken,
	}
}

// mergerOptions converts the CLI merge section to merger.Options.
func mergerOptions(cfg *config.CLIConfig) merger.Options {
	return merger.Options{
		SimilarityThreshold: cfg.Merge.SimilarityThreshold,
		AvgTokensPerTurn:    cfg.Merge.AvgTokensPerTurn,
		MaxWindowTurns:      cfg.Merge.MaxWindowTurns,
	}
}

// newArtifactStore opens the artifact store at the configured directory.
func newArtifactStore(cfg *config.CLIConfig, logger logging.Logger) (*storage.ArtifactStore, error) {
	dir, err := cfg.GetArtifactsDir()
	if err != nil {
		return nil, fmt.Errorf("resolving artifacts directory: %w", err)
	}
	return storage.NewArtifactStore(dir, logger), nil
}

// analyzerAPIKey returns the analyzer API key from the environment or the
// credential store. A missing key is not an error; local endpoints accept
// unauthenticated requests.
func analyzerAPIKey() string {
	store, err := credentials.NewStore()
	if err != nil {
		return ""
	}
	creds, err := store.GetActiveCredential()
	if err != nil || creds == nil {
		return ""
	}
	if creds.APIKey != "" {
		return creds.APIKey
	}
	return creds.Token
}

// newAnalyzer builds the HTTP analyzer provider from configuration.
func newAnalyzer(cfg *config.CLIConfig, logger logging.Logger) *analyzer.HTTPProvider {
	return analyzer.NewHTTPProvider(analyzer.ProviderConfig{
		BaseURL:   cfg.Analyzer.BaseURL,
		Model:     cfg.Analyzer.Model,
		APIKey:    analyzerAPIKey(),
		Timeout:   cfg.Analyzer.Timeout,
		MaxTokens: cfg.Analyzer.MaxTokens,
	}, logger)
}

// connectRepository opens the meeting database if configured. Returns nil
// without error when no database is configured; persistence is optional.
func connectRepository(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (*storage.Repository, *pgxpool.Pool, error) {
	if !cfg.Database.IsConfigured() && os.Getenv("DB_HOST") == "" && os.Getenv("DATABASE_URL") == "" {
		return nil, nil, nil
	}

	dbCfg := db.ConfigFromEnv()
	if cfg.Database.IsConfigured() {
		dbCfg.Host = cfg.Database.Host
		if cfg.Database.Port != 0 {
			dbCfg.Port = cfg.Database.Port
		}
		dbCfg.Database = cfg.Database.Database
		dbCfg.User = cfg.Database.User
		if cfg.Database.Password != "" {
			dbCfg.Password = cfg.Database.Password
		}
		if cfg.Database.SSLMode != "" {
			dbCfg.SSLMode = cfg.Database.SSLMode
		}
	}

	pool, err := db.Connect(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.RegisterPoolStatsCollector(pool, "scribe", "cli"); err != nil {
		logger.Warn("pool stats collector not registered", logging.Err(err))
	}

	return storage.NewRepository(pool, logger), pool, nil
}

// newEventsPublisher connects to Redis if configured. Returns nil without
// error when no Redis is configured; events are optional.
func newEventsPublisher(cfg *config.CLIConfig, logger logging.Logger) (*events.Publisher, error) {
	if !cfg.Redis.IsConfigured() {
		return nil, nil
	}
	return events.NewPublisherFromConfig(events.PublisherConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML writes v as YAML.
func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// resolveOutputFormat picks the per-command --output value over the
// configured default.
func resolveOutputFormat(cfg *config.CLIConfig, flagValue string) config.OutputFormat {
	if flagValue != "" {
		return config.OutputFormat(flagValue)
	}
	return cfg.OutputFormat
}

// formatDuration formats a duration for command summaries.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// truncateText truncates a string to maxLen characters with an ellipsis.
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
