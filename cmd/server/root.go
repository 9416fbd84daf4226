package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/config"
	"trade-ledger/pkg/database"
	"trade-ledger/pkg/repository"
)

var (
	// Global flags
	storeFlag    string
	logLevelFlag string
)

// rootCmd serves the API when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "trade-ledger",
	Short: "Trade and counterparty lifecycle service",
	Long: `Trade Ledger books trades against registered counterparties and tracks them
from PENDING through CONFIRMED to SETTLED.

Examples:
  trade-ledger serve
  trade-ledger migrate
  trade-ledger seed --store memory`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "backing store: postgres or memory (default LEDGER_STORE)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (default LOG_LEVEL)")
}

// loadConfig reads the environment and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if storeFlag != "" {
		cfg.Ledger.Store = strings.ToLower(storeFlag)
	}
	if logLevelFlag != "" {
		cfg.Server.LogLevel = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	if cfg.Server.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.Server.LogLevel)
		if err != nil {
			logrus.WithField("level", cfg.Server.LogLevel).Warn("Unknown log level, keeping default")
		} else {
			logrus.SetLevel(level)
		}
	}

	logrus.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"level":       logrus.GetLevel().String(),
	}).Debug("Logging initialized")
}

// openStore returns the configured store. db is nil for the in-memory store.
func openStore(cfg *config.Config, migrate bool) (lifecycle.Store, *gorm.DB, error) {
	if cfg.Ledger.Store == "memory" {
		logrus.Warn("Using in-memory store, data is lost on exit")
		return repository.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := database.AutoMigrate(db); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
	}
	return repository.NewGormStore(db), db, nil
}

func closeStore(db *gorm.DB) {
	if db == nil {
		return
	}
	if err := database.Close(db); err != nil {
		logrus.WithError(err).Error("Failed to close database")
	}
}

// newEngines builds both lifecycle engines over store
func newEngines(cfg *config.Config, store lifecycle.Store, observer lifecycle.Observer) (*lifecycle.TradeEngine, *lifecycle.CounterpartyEngine) {
	opts := []lifecycle.Option{
		lifecycle.WithLogger(logrus.StandardLogger()),
		lifecycle.WithPageLimits(cfg.Ledger.DefaultPageSize, cfg.Ledger.MaxPageSize),
	}
	if observer != nil {
		opts = append(opts, lifecycle.WithObserver(observer))
	}
	return lifecycle.NewTradeEngine(store, opts...), lifecycle.NewCounterpartyEngine(store, opts...)
}
