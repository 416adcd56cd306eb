// Package config provides CLI configuration management for the scribe
// command-line tool. It supports loading configuration from YAML files,
// environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultTimeout      = 10 * time.Minute
	DefaultOutputFormat = OutputFormatText
	DefaultConfigDir    = ".scribe"
	DefaultConfigFile   = "config.yaml"
	DefaultTimeZone     = "UTC"
)

// ChunkingConfig holds the sliding-window chunking parameters.
type ChunkingConfig struct {
	// ChunkSizeTokens is the target size of each chunk.
	ChunkSizeTokens int `yaml:"chunk_size_tokens,omitempty"`

	// OverlapTokens is the shared region between consecutive chunks.
	OverlapTokens int `yaml:"overlap_tokens,omitempty"`

	// ThresholdTokens is the transcript size below which no chunking happens.
	ThresholdTokens int `yaml:"threshold_tokens,omitempty"`

	// CharsPerToken converts characters to estimated tokens.
	CharsPerToken int `yaml:"chars_per_token,omitempty"`
}

// MergeConfig holds the overlap deduplication tuning.
type MergeConfig struct {
	// SimilarityThreshold is the minimum Jaccard similarity for a duplicate
	// match (0..1).
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`

	// AvgTokensPerTurn sizes the dedup comparison window.
	AvgTokensPerTurn int `yaml:"avg_tokens_per_turn,omitempty"`

	// MaxWindowTurns caps the dedup comparison window.
	MaxWindowTurns int `yaml:"max_window_turns,omitempty"`
}

// AnalyzerConfig holds the per-chunk analysis endpoint settings.
type AnalyzerConfig struct {
	// BaseURL is the OpenAI-compatible endpoint base URL.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the model identifier sent with each request.
	Model string `yaml:"model,omitempty"`

	// Timeout bounds a single chunk analysis call.
	Timeout time.Duration `yaml:"-"`

	// Concurrency is the maximum number of simultaneous chunk analyses.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxTokens caps the completion size per chunk.
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// DatabaseConfig holds PostgreSQL connection settings for meeting storage.
type DatabaseConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// IsConfigured returns true if the database connection is usable.
func (d *DatabaseConfig) IsConfigured() bool {
	return d != nil && d.Host != "" && d.Database != "" && d.User != ""
}

// RedisConfig holds Redis connection settings for event publishing.
type RedisConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// IsConfigured returns true if event publishing is enabled.
func (r *RedisConfig) IsConfigured() bool {
	return r != nil && r.Host != ""
}

// RunLogConfig holds the optional ops-database settings for CLI invocation
// logging.
type RunLogConfig struct {
	// Host is the database server hostname.
	Host string `yaml:"host,omitempty"`

	// Port is the database server port (default: 5432).
	Port int `yaml:"port,omitempty"`

	// Database is the database name.
	Database string `yaml:"database,omitempty"`

	// User is the database username.
	User string `yaml:"user,omitempty"`

	// SSLMode is the SSL connection mode (disable, require, verify-ca, verify-full).
	SSLMode string `yaml:"sslmode,omitempty"`

	// Operator is the operator identity recorded with each invocation.
	Operator string `yaml:"operator,omitempty"`
}

// ConnectionString returns the PostgreSQL connection string for the run log.
// Returns empty string if the run log is not configured.
func (c *RunLogConfig) ConnectionString() string {
	if !c.IsConfigured() {
		return ""
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}

	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=%s",
		c.Host, port, c.Database, c.User, sslmode)
}

// IsConfigured returns true if the run log has required fields set.
func (c *RunLogConfig) IsConfigured() bool {
	return c != nil && c.Host != "" && c.Database != "" && c.User != ""
}

// GetOperator returns the operator name, defaulting to the OS username.
func (c *RunLogConfig) GetOperator() string {
	if c != nil && c.Operator != "" {
		return c.Operator
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// Timeout is the default timeout for a whole pipeline run.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// TimeZone is the default meeting time zone (IANA name).
	TimeZone string `yaml:"time_zone,omitempty"`

	// ArtifactsDir is where chunk and merge artifacts are written.
	// Defaults to <config dir>/artifacts.
	ArtifactsDir string `yaml:"artifacts_dir,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Chunking holds the sliding-window chunking parameters.
	Chunking ChunkingConfig `yaml:"chunking,omitempty"`

	// Merge holds the overlap deduplication tuning.
	Merge MergeConfig `yaml:"merge,omitempty"`

	// Analyzer holds the per-chunk analysis endpoint settings.
	Analyzer AnalyzerConfig `yaml:"analyzer,omitempty"`

	// Database holds meeting storage settings.
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Redis holds event publishing settings.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// RunLog holds optional ops-database invocation logging settings.
	RunLog *RunLogConfig `yaml:"run_log,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		TimeZone:     DefaultTimeZone,
		Chunking: ChunkingConfig{
			ChunkSizeTokens: 15000,
			OverlapTokens:   2000,
			ThresholdTokens: 50000,
			CharsPerToken:   4,
		},
		Merge: MergeConfig{
			SimilarityThreshold: 0.75,
			AvgTokensPerTurn:    50,
			MaxWindowTurns:      50,
		},
		Analyzer: AnalyzerConfig{
			BaseURL:     "http://localhost:8000",
			Model:       "scribe-turns-v1",
			Timeout:     2 * time.Minute,
			Concurrency: 5,
			MaxTokens:   8192,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $SCRIBE_CONFIG_DIR if set, otherwise ~/.scribe
func ConfigDir() (string, error) {
	if dir := os.Getenv("SCRIBE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.scribe/config.yaml or $SCRIBE_CONFIG_DIR/config.yaml)
// 3. Environment variables (SCRIBE_TIMEOUT, SCRIBE_OUTPUT_FORMAT, ...)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// We need a temp struct for unmarshaling durations as strings.
	type analyzerFile struct {
		BaseURL     string `yaml:"base_url"`
		Model       string `yaml:"model"`
		Timeout     string `yaml:"timeout"`
		Concurrency int    `yaml:"concurrency"`
		MaxTokens   int    `yaml:"max_tokens"`
	}
	type configFile struct {
		Timeout      string          `yaml:"timeout"`
		OutputFormat OutputFormat    `yaml:"output_format"`
		TimeZone     string          `yaml:"time_zone"`
		ArtifactsDir string          `yaml:"artifacts_dir"`
		Debug        bool            `yaml:"debug"`
		Chunking     ChunkingConfig  `yaml:"chunking"`
		Merge        MergeConfig     `yaml:"merge"`
		Analyzer     analyzerFile    `yaml:"analyzer"`
		Database     *DatabaseConfig `yaml:"database"`
		Redis        *RedisConfig    `yaml:"redis"`
		RunLog       *RunLogConfig   `yaml:"run_log"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.TimeZone != "" {
		cfg.TimeZone = fileCfg.TimeZone
	}
	if fileCfg.ArtifactsDir != "" {
		cfg.ArtifactsDir = fileCfg.ArtifactsDir
	}
	cfg.Debug = fileCfg.Debug

	if fileCfg.Chunking.ChunkSizeTokens > 0 {
		cfg.Chunking.ChunkSizeTokens = fileCfg.Chunking.ChunkSizeTokens
	}
	if fileCfg.Chunking.OverlapTokens > 0 {
		cfg.Chunking.OverlapTokens = fileCfg.Chunking.OverlapTokens
	}
	if fileCfg.Chunking.ThresholdTokens > 0 {
		cfg.Chunking.ThresholdTokens = fileCfg.Chunking.ThresholdTokens
	}
	if fileCfg.Chunking.CharsPerToken > 0 {
		cfg.Chunking.CharsPerToken = fileCfg.Chunking.CharsPerToken
	}

	if fileCfg.Merge.SimilarityThreshold > 0 {
		cfg.Merge.SimilarityThreshold = fileCfg.Merge.SimilarityThreshold
	}
	if fileCfg.Merge.AvgTokensPerTurn > 0 {
		cfg.Merge.AvgTokensPerTurn = fileCfg.Merge.AvgTokensPerTurn
	}
	if fileCfg.Merge.MaxWindowTurns > 0 {
		cfg.Merge.MaxWindowTurns = fileCfg.Merge.MaxWindowTurns
	}

	if fileCfg.Analyzer.BaseURL != "" {
		cfg.Analyzer.BaseURL = fileCfg.Analyzer.BaseURL
	}
	if fileCfg.Analyzer.Model != "" {
		cfg.Analyzer.Model = fileCfg.Analyzer.Model
	}
	if fileCfg.Analyzer.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Analyzer.Timeout)
		if err != nil {
			return fmt.Errorf("parsing analyzer timeout: %w", err)
		}
		cfg.Analyzer.Timeout = timeout
	}
	if fileCfg.Analyzer.Concurrency > 0 {
		cfg.Analyzer.Concurrency = fileCfg.Analyzer.Concurrency
	}
	if fileCfg.Analyzer.MaxTokens > 0 {
		cfg.Analyzer.MaxTokens = fileCfg.Analyzer.MaxTokens
	}

	if fileCfg.Database != nil {
		cfg.Database = fileCfg.Database
	}
	if fileCfg.Redis != nil {
		cfg.Redis = fileCfg.Redis
	}
	if fileCfg.RunLog != nil {
		cfg.RunLog = fileCfg.RunLog
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("SCRIBE_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("SCRIBE_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("SCRIBE_TIME_ZONE"); v != "" {
		cfg.TimeZone = v
	}

	if v := os.Getenv("SCRIBE_ARTIFACTS_DIR"); v != "" {
		cfg.ArtifactsDir = v
	}

	if v := os.Getenv("SCRIBE_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("SCRIBE_ANALYZER_BASE_URL"); v != "" {
		cfg.Analyzer.BaseURL = v
	}

	if v := os.Getenv("SCRIBE_ANALYZER_MODEL"); v != "" {
		cfg.Analyzer.Model = v
	}

	if v := os.Getenv("SCRIBE_ANALYZER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Analyzer.Concurrency = n
		}
	}

	if v := os.Getenv("SCRIBE_CHUNK_SIZE_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chunking.ChunkSizeTokens = n
		}
	}

	if v := os.Getenv("SCRIBE_OVERLAP_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chunking.OverlapTokens = n
		}
	}

	if v := os.Getenv("SCRIBE_THRESHOLD_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chunking.ThresholdTokens = n
		}
	}

	loadRunLogFromEnv(cfg)
}

// loadRunLogFromEnv overlays run-log environment variables.
func loadRunLogFromEnv(cfg *CLIConfig) {
	host := os.Getenv("SCRIBE_RUNLOG_HOST")
	database := os.Getenv("SCRIBE_RUNLOG_DATABASE")
	user := os.Getenv("SCRIBE_RUNLOG_USER")

	if host == "" && database == "" && user == "" {
		return // No env vars set.
	}

	if cfg.RunLog == nil {
		cfg.RunLog = &RunLogConfig{}
	}

	if host != "" {
		cfg.RunLog.Host = host
	}
	if database != "" {
		cfg.RunLog.Database = database
	}
	if user != "" {
		cfg.RunLog.User = user
	}
	if v := os.Getenv("SCRIBE_RUNLOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RunLog.Port = port
		}
	}
	if v := os.Getenv("SCRIBE_RUNLOG_SSLMODE"); v != "" {
		cfg.RunLog.SSLMode = v
	}
	if v := os.Getenv("SCRIBE_RUNLOG_OPERATOR"); v != "" {
		cfg.RunLog.Operator = v
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if c.Chunking.OverlapTokens >= c.Chunking.ChunkSizeTokens {
		return fmt.Errorf("overlap_tokens (%d) must be smaller than chunk_size_tokens (%d)",
			c.Chunking.OverlapTokens, c.Chunking.ChunkSizeTokens)
	}

	if c.Merge.SimilarityThreshold <= 0 || c.Merge.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %v", c.Merge.SimilarityThreshold)
	}

	if c.Analyzer.Concurrency <= 0 {
		return fmt.Errorf("analyzer concurrency must be positive")
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// GetArtifactsDir returns the expanded artifacts directory, defaulting to
// <config dir>/artifacts.
func (c *CLIConfig) GetArtifactsDir() (string, error) {
	if c.ArtifactsDir != "" {
		return ExpandPath(c.ArtifactsDir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "artifacts"), nil
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	// Ensure config directory exists.
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	// Convert to YAML-friendly format with durations as strings.
	type analyzerFile struct {
		BaseURL     string `yaml:"base_url,omitempty"`
		Model       string `yaml:"model,omitempty"`
		Timeout     string `yaml:"timeout,omitempty"`
		Concurrency int    `yaml:"concurrency,omitempty"`
		MaxTokens   int    `yaml:"max_tokens,omitempty"`
	}
	type configFile struct {
		Timeout      string          `yaml:"timeout"`
		OutputFormat OutputFormat    `yaml:"output_format"`
		TimeZone     string          `yaml:"time_zone,omitempty"`
		ArtifactsDir string          `yaml:"artifacts_dir,omitempty"`
		Debug        bool            `yaml:"debug,omitempty"`
		Chunking     ChunkingConfig  `yaml:"chunking,omitempty"`
		Merge        MergeConfig     `yaml:"merge,omitempty"`
		Analyzer     analyzerFile    `yaml:"analyzer,omitempty"`
		Database     *DatabaseConfig `yaml:"database,omitempty"`
		Redis        *RedisConfig    `yaml:"redis,omitempty"`
		RunLog       *RunLogConfig   `yaml:"run_log,omitempty"`
	}

	fileCfg := configFile{
		Timeout:      cfg.Timeout.String(),
		OutputFormat: cfg.OutputFormat,
		TimeZone:     cfg.TimeZone,
		ArtifactsDir: cfg.ArtifactsDir,
		Debug:        cfg.Debug,
		Chunking:     cfg.Chunking,
		Merge:        cfg.Merge,
		Analyzer: analyzerFile{
			BaseURL:     cfg.Analyzer.BaseURL,
			Model:       cfg.Analyzer.Model,
			Timeout:     cfg.Analyzer.Timeout.String(),
			Concurrency: cfg.Analyzer.Concurrency,
			MaxTokens:   cfg.Analyzer.MaxTokens,
		},
		Database: cfg.Database,
		Redis:    cfg.Redis,
		RunLog:   cfg.RunLog,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
	}
	return path, nil
}
