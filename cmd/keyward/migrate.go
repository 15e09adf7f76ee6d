// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations (destructive)")

	return cmd
}

func runMigrate(cmd *cobra.Command, down bool) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to migration outcome

	if down {
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
	} else {
		cmd.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			return err
		}
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	return nil
}
