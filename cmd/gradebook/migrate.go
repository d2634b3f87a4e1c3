package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/aula-hub/gradebook/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status]",
	Short: "Manage the PostgreSQL session schema",
	Long: `Apply, roll back or list migrations of the postgres session store.

Examples:
  GRADEBOOK_DATABASE_URL=postgres://... gradebook migrate up
  gradebook migrate status --config prod.yaml`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	conn, err := openPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	m := postgres.NewMigrator(conn)
	out := cmd.OutOrStdout()

	switch action {
	case "up":
		applied, err := m.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations complete", logger.Any("applied", applied))
		fmt.Fprintf(out, "applied %d migration(s)\n", len(applied))

	case "down":
		v, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if v == 0 {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(out, "rolled back migration %d\n", v)

	case "status":
		status, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, mig := range status {
			state := "pending"
			if mig.IsApplied {
				state = "applied " + mig.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%4d  %-32s %s\n", mig.Version, mig.Name, state)
		}

	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	return nil
}
