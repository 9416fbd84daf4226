package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/api"
	"trade-ledger/pkg/cache"
	"trade-ledger/pkg/config"
	"trade-ledger/pkg/database"
	"trade-ledger/pkg/metrics"
	"trade-ledger/pkg/middleware"
	"trade-ledger/pkg/models"
	"trade-ledger/pkg/websocket"
)

var portFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (default)",
	Long: `Start the HTTP API.

Endpoints:
  /api/v1/trades          - trade lifecycle
  /api/v1/counterparties  - counterparty lifecycle
  /api/v1/ws              - live lifecycle feed
  /health                 - health checks
  /docs/index.html        - API documentation`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&portFlag, "port", "", "listen port (default SERVER_PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	logrus.Info("Starting Trade Ledger...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer closeStore(db)

	var redisClient *cache.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close Redis")
			}
		}()
	}

	provider, err := metrics.NewMeterProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to flush metrics")
		}
	}()

	gauges := metrics.NewGauges()
	recorder, err := metrics.NewRecorder(provider.Meter("trade-ledger"), gauges)
	if err != nil {
		return err
	}
	defer func() { _ = recorder.Close() }()

	stats := cache.NewStatsCache(redisClient, cfg.Redis.StatsCacheTTL)
	hub := websocket.NewHub()
	trades, counterparties := newEngines(cfg, store, lifecycle.Observers{recorder, stats, hub})

	if cfg.Ledger.SeedSampleData {
		if err := database.SeedData(ctx, counterparties, trades, time.Now()); err != nil {
			return fmt.Errorf("failed to seed sample data: %w", err)
		}
	}

	snapshot, err := loadSnapshot(ctx, trades, counterparties)
	if err != nil {
		return err
	}
	gauges.Prime(snapshot)
	logStatistics(ctx, "Trade Ledger started", trades, counterparties)

	go hub.Run(ctx)

	var rdb *redis.Client
	if redisClient != nil {
		rdb = redisClient.Redis()
	}
	limiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	})

	router := newRouter(cfg)
	api.SetupRoutes(router, api.Dependencies{
		Trades:         trades,
		Counterparties: counterparties,
		Stats:          stats,
		Hub:            hub,
		DB:             db,
		Redis:          redisClient,
		RateLimiter:    limiter,
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.Infof("Trade Ledger listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logrus.Info("Shutting down Trade Ledger...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logStatistics(shutdownCtx, "Trade Ledger stopped", trades, counterparties)
	return nil
}

func newRouter(cfg *config.Config) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logrus.StandardLogger()))

	corsConfig := cors.DefaultConfig()
	if cfg.IsDevelopment() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins()
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		middleware.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{
		middleware.RequestIDHeader,
		middleware.LimitHeader,
		middleware.RemainingHeader,
		"Retry-After",
	}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	return router
}

// allowedOrigins reads CORS_ALLOWED_ORIGINS, a comma separated list
func allowedOrigins() []string {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// loadSnapshot reads the gauge state from the store
func loadSnapshot(ctx context.Context, trades *lifecycle.TradeEngine, counterparties *lifecycle.CounterpartyEngine) (metrics.Snapshot, error) {
	tradeStats, err := trades.TradeStats(ctx)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("failed to count trades: %w", err)
	}
	counterpartyStats, err := counterparties.CounterpartyStats(ctx)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("failed to count counterparties: %w", err)
	}
	settled, err := trades.TradesByStatus(ctx, models.TradeStatusSettled)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("failed to load settled trades: %w", err)
	}

	value := decimal.Zero
	for i := range settled {
		value = value.Add(settled[i].TotalValue())
	}
	return metrics.Snapshot{
		ActiveTrades:         tradeStats.Pending + tradeStats.Confirmed,
		PendingTrades:        tradeStats.Pending,
		ActiveCounterparties: counterpartyStats.Active,
		SettledValue:         value,
	}, nil
}

func logStatistics(ctx context.Context, message string, trades *lifecycle.TradeEngine, counterparties *lifecycle.CounterpartyEngine) {
	tradeStats, err := trades.TradeStats(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read trade statistics")
		return
	}
	counterpartyStats, err := counterparties.CounterpartyStats(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read counterparty statistics")
		return
	}

	logrus.WithFields(logrus.Fields{
		"trades":                tradeStats.Total,
		"pending_trades":        tradeStats.Pending,
		"confirmed_trades":      tradeStats.Confirmed,
		"settled_trades":        tradeStats.Settled,
		"counterparties":        counterpartyStats.Total,
		"active_counterparties": counterpartyStats.Active,
	}).Info(message)

	if tradeStats.Pending > 0 {
		logrus.WithField("pending_trades", tradeStats.Pending).Warn("Pending trades require attention")
	}
}
