// Package config provides CLI configuration management for the scribe command-line tool.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.TimeZone != DefaultTimeZone {
		t.Errorf("TimeZone = %v, want %v", cfg.TimeZone, DefaultTimeZone)
	}
	if cfg.Debug {
		t.Error("Debug should be false by default")
	}
	if cfg.Chunking.ChunkSizeTokens != 15000 {
		t.Errorf("ChunkSizeTokens = %v, want 15000", cfg.Chunking.ChunkSizeTokens)
	}
	if cfg.Chunking.OverlapTokens != 2000 {
		t.Errorf("OverlapTokens = %v, want 2000", cfg.Chunking.OverlapTokens)
	}
	if cfg.Chunking.ThresholdTokens != 50000 {
		t.Errorf("ThresholdTokens = %v, want 50000", cfg.Chunking.ThresholdTokens)
	}
	if cfg.Merge.SimilarityThreshold != 0.75 {
		t.Errorf("SimilarityThreshold = %v, want 0.75", cfg.Merge.SimilarityThreshold)
	}
	if cfg.Analyzer.Concurrency != 5 {
		t.Errorf("Analyzer.Concurrency = %v, want 5", cfg.Analyzer.Concurrency)
	}
}

// TestDefaultConstants verifies default constant values.
func TestDefaultConstants(t *testing.T) {
	if DefaultTimeout != 10*time.Minute {
		t.Errorf("DefaultTimeout = %v, want 10m", DefaultTimeout)
	}
	if DefaultOutputFormat != OutputFormatText {
		t.Errorf("DefaultOutputFormat = %v, want text", DefaultOutputFormat)
	}
	if DefaultConfigDir != ".scribe" {
		t.Errorf("DefaultConfigDir = %v, want .scribe", DefaultConfigDir)
	}
	if DefaultConfigFile != "config.yaml" {
		t.Errorf("DefaultConfigFile = %v, want config.yaml", DefaultConfigFile)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		want   bool
	}{
		{"text format", OutputFormatText, true},
		{"json format", OutputFormatJSON, true},
		{"yaml format", OutputFormatYAML, true},
		{"invalid format", OutputFormat("xml"), false},
		{"empty format", OutputFormat(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestConfigDir_EnvOverride verifies SCRIBE_CONFIG_DIR takes precedence.
func TestConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_DIR", "/tmp/scribe-test-config")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if dir != "/tmp/scribe-test-config" {
		t.Errorf("ConfigDir() = %v, want /tmp/scribe-test-config", dir)
	}
}

// TestConfigDir_Default verifies the default config directory.
func TestConfigDir_Default(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_DIR", "")
	os.Unsetenv("SCRIBE_CONFIG_DIR")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, DefaultConfigDir)
	if dir != want {
		t.Errorf("ConfigDir() = %v, want %v", dir, want)
	}
}

// TestLoadConfig_Defaults verifies loading with no config file present.
func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Chunking.ChunkSizeTokens != 15000 {
		t.Errorf("ChunkSizeTokens = %v, want 15000", cfg.Chunking.ChunkSizeTokens)
	}
	if cfg.OutputFormat != OutputFormatText {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
}

// TestLoadConfig_FromFile verifies config file values override defaults.
func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIBE_CONFIG_DIR", dir)

	content := `timeout: 5m
output_format: json
time_zone: Europe/London
chunking:
  chunk_size_tokens: 12000
  overlap_tokens: 1500
merge:
  similarity_threshold: 0.8
analyzer:
  base_url: http://analyzer.internal:8000
  model: turns-v2
  timeout: 90s
  concurrency: 3
database:
  host: db.internal
  database: scribe
  user: scribe
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want 5m", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.TimeZone != "Europe/London" {
		t.Errorf("TimeZone = %v, want Europe/London", cfg.TimeZone)
	}
	if cfg.Chunking.ChunkSizeTokens != 12000 {
		t.Errorf("ChunkSizeTokens = %v, want 12000", cfg.Chunking.ChunkSizeTokens)
	}
	if cfg.Chunking.OverlapTokens != 1500 {
		t.Errorf("OverlapTokens = %v, want 1500", cfg.Chunking.OverlapTokens)
	}
	// Unset fields keep their defaults.
	if cfg.Chunking.ThresholdTokens != 50000 {
		t.Errorf("ThresholdTokens = %v, want 50000", cfg.Chunking.ThresholdTokens)
	}
	if cfg.Merge.SimilarityThreshold != 0.8 {
		t.Errorf("SimilarityThreshold = %v, want 0.8", cfg.Merge.SimilarityThreshold)
	}
	if cfg.Analyzer.BaseURL != "http://analyzer.internal:8000" {
		t.Errorf("Analyzer.BaseURL = %v", cfg.Analyzer.BaseURL)
	}
	if cfg.Analyzer.Timeout != 90*time.Second {
		t.Errorf("Analyzer.Timeout = %v, want 90s", cfg.Analyzer.Timeout)
	}
	if cfg.Analyzer.Concurrency != 3 {
		t.Errorf("Analyzer.Concurrency = %v, want 3", cfg.Analyzer.Concurrency)
	}
	if cfg.Database == nil || !cfg.Database.IsConfigured() {
		t.Error("Database should be configured")
	}
}

// TestLoadConfig_EnvOverridesFile verifies env vars take precedence over file.
func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIBE_CONFIG_DIR", dir)

	content := `output_format: json
chunking:
  chunk_size_tokens: 12000
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("SCRIBE_OUTPUT_FORMAT", "yaml")
	t.Setenv("SCRIBE_CHUNK_SIZE_TOKENS", "10000")
	t.Setenv("SCRIBE_ANALYZER_BASE_URL", "http://override:9000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OutputFormat != OutputFormatYAML {
		t.Errorf("OutputFormat = %v, want yaml", cfg.OutputFormat)
	}
	if cfg.Chunking.ChunkSizeTokens != 10000 {
		t.Errorf("ChunkSizeTokens = %v, want 10000", cfg.Chunking.ChunkSizeTokens)
	}
	if cfg.Analyzer.BaseURL != "http://override:9000" {
		t.Errorf("Analyzer.BaseURL = %v, want http://override:9000", cfg.Analyzer.BaseURL)
	}
}

// TestLoadConfig_InvalidOverlap verifies overlap >= chunk size is rejected.
func TestLoadConfig_InvalidOverlap(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIBE_CONFIG_DIR", dir)

	content := `chunking:
  chunk_size_tokens: 1000
  overlap_tokens: 1000
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject overlap_tokens >= chunk_size_tokens")
	}
}

// TestValidate verifies configuration validation rules.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr bool
	}{
		{"valid defaults", func(c *CLIConfig) {}, false},
		{"zero timeout", func(c *CLIConfig) { c.Timeout = 0 }, true},
		{"bad output format", func(c *CLIConfig) { c.OutputFormat = "csv" }, true},
		{"similarity above one", func(c *CLIConfig) { c.Merge.SimilarityThreshold = 1.5 }, true},
		{"similarity zero", func(c *CLIConfig) { c.Merge.SimilarityThreshold = 0 }, true},
		{"zero concurrency", func(c *CLIConfig) { c.Analyzer.Concurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestSaveConfig_RoundTrip verifies saved config can be loaded back.
func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIBE_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	cfg.OutputFormat = OutputFormatJSON
	cfg.TimeZone = "America/New_York"
	cfg.Chunking.ChunkSizeTokens = 20000
	cfg.Chunking.OverlapTokens = 2500

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", loaded.OutputFormat)
	}
	if loaded.TimeZone != "America/New_York" {
		t.Errorf("TimeZone = %v, want America/New_York", loaded.TimeZone)
	}
	if loaded.Chunking.ChunkSizeTokens != 20000 {
		t.Errorf("ChunkSizeTokens = %v, want 20000", loaded.Chunking.ChunkSizeTokens)
	}
	if loaded.Chunking.OverlapTokens != 2500 {
		t.Errorf("OverlapTokens = %v, want 2500", loaded.Chunking.OverlapTokens)
	}
}

// TestRunLogConfig verifies run-log helpers.
func TestRunLogConfig(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		var c *RunLogConfig
		if c.IsConfigured() {
			t.Error("nil RunLogConfig should not be configured")
		}
		if got := c.ConnectionString(); got != "" {
			t.Errorf("ConnectionString() = %q, want empty", got)
		}
	})

	t.Run("configured with defaults", func(t *testing.T) {
		c := &RunLogConfig{Host: "ops.internal", Database: "opsdb", User: "scribe"}
		if !c.IsConfigured() {
			t.Error("RunLogConfig should be configured")
		}
		want := "host=ops.internal port=5432 dbname=opsdb user=scribe sslmode=require"
		if got := c.ConnectionString(); got != want {
			t.Errorf("ConnectionString() = %q, want %q", got, want)
		}
	})

	t.Run("operator from env", func(t *testing.T) {
		t.Setenv("USER", "testop")
		c := &RunLogConfig{}
		if got := c.GetOperator(); got != "testop" {
			t.Errorf("GetOperator() = %q, want testop", got)
		}
	})
}

// TestExpandPath verifies tilde expansion.
func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"absolute", "/var/scribe", "/var/scribe"},
		{"tilde", "~/artifacts", filepath.Join(home, "artifacts")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.in)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
