package main

import (
	"github.com/spf13/cobra"

	"farmtrace/internal/db"
)

var migrateReset bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		gormDB, err := db.NewMySQL(cfg.MySQL.DSN)
		if err != nil {
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}

		if migrateReset {
			log.Warn("Dropping all tables")
			if err := db.Reset(gormDB); err != nil {
				return err
			}
		}
		if err := db.Migrate(gormDB); err != nil {
			return err
		}
		log.Info("Database migrations completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "drop all tables before migrating")
}
