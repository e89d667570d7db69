package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/movies-etl/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Provision the content schema",
		Long: `Provision the content schema on a development or test database. Use with
'up' or 'down' subcommands. The sync loop itself only reads from the database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, "apply pending migrations", database.MigrateUp)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, err := cmd.Flags().GetInt("num-steps")
			if err != nil {
				return fmt.Errorf("failed to get num-steps flag: %w", err)
			}
			if steps <= 0 {
				return fmt.Errorf("num-steps must be positive, got %d", steps)
			}
			return runMigrate(cmd, fmt.Sprintf("roll back %d migrations", steps), func(connString string) error {
				return database.MigrateDown(connString, steps)
			})
		},
	}
	down.Flags().IntP("num-steps", "n", 1, "Number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func runMigrate(cmd *cobra.Command, action string, apply func(connString string) error) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	connString, err := cfg.Postgres.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	if !yes {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "About to %s on %s@%s:%d/%s. Continue? (yes/no): ",
			action, cfg.Postgres.User, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
		var response string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
			return fmt.Errorf("failed to read user input: %w", err)
		}
		if response != "yes" && response != "y" {
			slog.Info("Migration cancelled by user")
			return nil
		}
	}

	if err := apply(connString); err != nil {
		return err
	}

	version, dirty, err := database.GetVersion(connString)
	switch {
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state", "version", version)
	default:
		slog.Info("Migrations applied", "version", version)
	}
	return nil
}
