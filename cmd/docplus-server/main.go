package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manan-gakkhar/Doc-Plus/internal/config"
	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/db"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docplus-server",
		Short: "Doc Plus patient dashboard server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server (landing page, signup, dashboard)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Run or seed the reference records API",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve /backend/patients, /backend/pdinteraction and /backend/doctors from Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			schema, _ := cmd.Flags().GetString("schema")
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runRecords(port, schema, migrate)
		},
	}
	serve.Flags().String("port", "8000", "Port for the records API")
	serve.Flags().String("schema", "public", "Schema for --migrate; set search_path in DATABASE_URL to match")
	serve.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	cmd.AddCommand(serve)

	seed := &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Load patients, doctors and interactions from a JSON fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(args[0])
		},
	}
	cmd.AddCommand(seed)

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run records database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, schema)
			if err != nil {
				return err
			}
			defer closePool()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			var count int
			if target > 0 {
				count, err = migrator.UpTo(ctx, target)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, schema)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, schema string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	migrator, err := db.NewMigrator(pool, records.Migrations(), schema)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return migrator, pool.Close, nil
}
