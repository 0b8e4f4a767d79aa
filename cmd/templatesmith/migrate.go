package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joestump/templatesmith/internal/config"
	"github.com/joestump/templatesmith/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run generation history migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DB.Driver == "" {
				return errors.New("TSMITH_DB_DRIVER is not set; generation history is disabled")
			}

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations complete")
			return nil
		},
	}
}
