package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trade-ledger/pkg/database"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample counterparties and trades into an empty store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, db, err := openStore(cfg, true)
		if err != nil {
			return err
		}
		defer closeStore(db)

		trades, counterparties := newEngines(cfg, store, nil)
		if err := database.SeedData(cmd.Context(), counterparties, trades, time.Now()); err != nil {
			return err
		}

		stats, err := trades.TradeStats(cmd.Context())
		if err != nil {
			return err
		}
		logrus.WithField("trades", stats.Total).Info("Seeding finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
