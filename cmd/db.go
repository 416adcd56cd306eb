package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/db"
	"github.com/otherjamesbrown/scribe-cli/pkg/runlog"
)

var dbMigrationsDir string

// NewDBCommand creates the db command group.
func NewDBCommand() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the meeting database",
		Long: `Manage the PostgreSQL database used for meeting persistence.

Requires a database section in the configuration file or DB_* environment
variables (DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SSLMODE).`,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations to the meeting database.

Also creates the run log table when a run_log section is configured.

Examples:
  scribe db migrate
  scribe db migrate --migrations-dir ./migrations`,
		RunE: runDBMigrate,
	}
	migrateCmd.Flags().StringVar(&dbMigrationsDir, "migrations-dir", "migrations", "Directory containing .sql migration files")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE:  runDBStatus,
	}
	statusCmd.Flags().StringVar(&dbMigrationsDir, "migrations-dir", "migrations", "Directory containing .sql migration files")

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check database connectivity",
		RunE:  runDBPing,
	}

	dbCmd.AddCommand(migrateCmd)
	dbCmd.AddCommand(statusCmd)
	dbCmd.AddCommand(pingCmd)
	return dbCmd
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := cmd.Context()
	repo, pool, err := connectRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("no database configured")
	}
	defer pool.Close()

	result, err := db.RunMigrations(ctx, pool, dbMigrationsDir)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for _, version := range result.Applied {
		fmt.Printf("applied  %s\n", version)
	}
	for _, version := range result.Skipped {
		fmt.Printf("skipped  %s\n", version)
	}
	fmt.Printf("\n%d applied, %d already up to date\n", len(result.Applied), len(result.Skipped))

	if cfg.RunLog.IsConfigured() {
		client, err := runlog.NewClient(cfg.RunLog)
		if err != nil {
			return fmt.Errorf("connecting to run log: %w", err)
		}
		defer client.Close()
		if err := client.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("creating run log schema: %w", err)
		}
		fmt.Println("run log schema ensured")
	}

	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := cmd.Context()
	repo, pool, err := connectRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("no database configured")
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, dbMigrationsDir)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	for _, entry := range status.Applied {
		fmt.Printf("\033[32mapplied\033[0m  %-40s %s\n", entry.Version, entry.AppliedAt.Format(time.RFC3339))
	}
	for _, entry := range status.Pending {
		fmt.Printf("\033[33mpending\033[0m  %s\n", entry.Version)
	}
	for _, entry := range status.Drift {
		fmt.Printf("\033[31mdrift\033[0m    %-40s applied but file missing\n", entry.Version)
	}

	fmt.Printf("\n%d applied, %d pending, %d drift\n",
		len(status.Applied), len(status.Pending), len(status.Drift))
	return nil
}

func runDBPing(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := cmd.Context()
	repo, pool, err := connectRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("no database configured")
	}
	defer pool.Close()

	health := db.Check(ctx, pool)
	if !health.Healthy {
		return fmt.Errorf("database unhealthy: %v", health.Error)
	}

	fmt.Printf("Database healthy (latency %s)\n", formatDuration(health.Latency))
	fmt.Printf("  connections: %d total, %d idle, %d acquired\n",
		health.TotalConns, health.IdleConns, health.AcquiredConns)
	return nil
}
