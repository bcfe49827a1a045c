package main

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/chat2test/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return err
		}
		status, err := db.MigrationStatus()
		if err != nil {
			return err
		}
		slog.Info("Migrations applied", "version", status.CurrentVersion)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied and latest schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := db.MigrationStatus()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "current: %d\nlatest:  %d\n", status.CurrentVersion, status.LatestVersion)
		if status.Dirty {
			fmt.Fprintln(out, "state:   dirty (a previous migration failed)")
		} else if status.Pending {
			fmt.Fprintln(out, "state:   pending")
		} else {
			fmt.Fprintln(out, "state:   up to date")
		}
		return nil
	},
}

func openStore() (*store.SQLiteStore, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DBPath)
}
