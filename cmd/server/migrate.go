package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Ledger.Store == "memory" {
			return fmt.Errorf("migrate needs the postgres store")
		}

		_, db, err := openStore(cfg, true)
		if err != nil {
			return err
		}
		defer closeStore(db)

		logrus.Info("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
