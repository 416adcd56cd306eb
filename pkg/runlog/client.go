// Package runlog records scribe CLI invocations in an optional ops database.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/scribe-cli/config"
)

// Schema creates the run-log table. The ops database is separate from the
// meeting database, so this is applied on demand rather than through the
// migration runner.
const Schema = `
CREATE TABLE IF NOT EXISTS cli_runs (
    id BIGSERIAL PRIMARY KEY,
    operator TEXT NOT NULL,
    command TEXT NOT NULL,
    args TEXT[],
    full_command TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    success BOOLEAN NOT NULL DEFAULT false,
    error_message TEXT,
    meeting_id TEXT,
    hostname TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_cli_runs_operator ON cli_runs (operator, created_at DESC);
`

// Client provides run-log database operations.
type Client struct {
	db       *sql.DB
	config   *config.RunLogConfig
	operator string
}

// RunEntry represents a single CLI invocation record.
type RunEntry struct {
	ID           int64     `json:"id"`
	Operator     string    `json:"operator"`
	Command      string    `json:"command"`
	Args         []string  `json:"args"`
	FullCommand  string    `json:"full_command"`
	DurationMs   int       `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	MeetingID    string    `json:"meeting_id,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewClient creates a new run-log client from configuration.
func NewClient(cfg *config.RunLogConfig) (*Client, error) {
	if cfg == nil || !cfg.IsConfigured() {
		return nil, fmt.Errorf("run log not configured")
	}

	connStr := cfg.ConnectionString()
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Keep the pool small; the CLI writes one row per invocation.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{
		db:       db,
		config:   cfg,
		operator: cfg.GetOperator(),
	}, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// EnsureSchema creates the run-log table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating run log schema: %w", err)
	}
	return nil
}

// LogRun records a CLI invocation.
func (c *Client) LogRun(ctx context.Context, entry *RunEntry) error {
	operator := entry.Operator
	if operator == "" {
		operator = c.operator
	}

	hostname := entry.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	// Error messages are truncated so a runaway stack trace cannot bloat
	// the run log.
	errorMsg := truncate(entry.ErrorMessage, 500)

	query := `
		INSERT INTO cli_runs
		    (operator, command, args, full_command, duration_ms, success,
		     error_message, meeting_id, hostname)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := c.db.ExecContext(ctx, query,
		operator,
		entry.Command,
		pq.Array(entry.Args),
		entry.FullCommand,
		entry.DurationMs,
		entry.Success,
		nullIfEmpty(errorMsg),
		nullIfEmpty(entry.MeetingID),
		nullIfEmpty(hostname),
	)
	if err != nil {
		return fmt.Errorf("logging run: %w", err)
	}

	return nil
}

// History retrieves recent CLI invocations, most recent first.
// An empty operator returns runs from all operators.
func (c *Client) History(ctx context.Context, operator string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, operator, command, full_command, duration_ms, success,
		       error_message, meeting_id, created_at
		FROM cli_runs
		WHERE ($1::text IS NULL OR operator = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := c.db.QueryContext(ctx, query, nullIfEmpty(operator), limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var errorMsg, meetingID sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.Operator,
			&e.Command,
			&e.FullCommand,
			&e.DurationMs,
			&e.Success,
			&errorMsg,
			&meetingID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		e.ErrorMessage = errorMsg.String
		e.MeetingID = meetingID.String

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return entries, nil
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// nullIfEmpty returns nil if s is empty, otherwise returns s.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
