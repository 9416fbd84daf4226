package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/cache"
	"trade-ledger/pkg/middleware"
	"trade-ledger/pkg/websocket"
)

// Dependencies are the services the HTTP layer is built on.
// DB, Redis, Stats and RateLimiter may be nil.
type Dependencies struct {
	Trades         *lifecycle.TradeEngine
	Counterparties *lifecycle.CounterpartyEngine
	Stats          *cache.StatsCache
	Hub            *websocket.Hub
	DB             *gorm.DB
	Redis          *cache.Client
	RateLimiter    *middleware.RateLimiter
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	trades := NewTradeHandlers(deps.Trades, deps.Stats)
	counterparties := NewCounterpartyHandlers(deps.Counterparties, deps.Stats)
	health := NewHealthHandlers(deps.DB, deps.Redis, deps.Hub)

	// Health checks and documentation are not rate limited
	router.GET("/health", health.Health)
	router.GET("/health/database", health.DatabaseHealth)
	router.GET("/health/redis", health.RedisHealth)

	setupSwagger(router)

	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Handler())
	}

	v1 := router.Group("/api/v1")
	{
		t := v1.Group("/trades")
		{
			t.GET("", trades.ListTrades)
			t.POST("", trades.CreateTrade)
			t.GET("/pending", trades.PendingTrades)
			t.GET("/reference/:reference", trades.GetTradeByReference)
			t.GET("/counterparty/:counterpartyId", trades.TradesByCounterparty)
			t.GET("/stats/count", trades.TradeStats)
			t.GET("/stats/value/:counterpartyId", trades.TradeValue)
			t.GET("/:id", trades.GetTrade)
			t.PUT("/:id", trades.UpdateTrade)
			t.PATCH("/:id/status", trades.UpdateTradeStatus)
			t.DELETE("/:id", trades.DeleteTrade)
		}

		cp := v1.Group("/counterparties")
		{
			cp.GET("", counterparties.ListCounterparties)
			cp.POST("", counterparties.CreateCounterparty)
			cp.GET("/active", counterparties.ActiveCounterparties)
			cp.GET("/code/:code", counterparties.GetCounterpartyByCode)
			cp.GET("/stats/count", counterparties.CounterpartyStats)
			cp.GET("/:id", counterparties.GetCounterparty)
			cp.PUT("/:id", counterparties.UpdateCounterparty)
			cp.PATCH("/:id/status", counterparties.UpdateCounterpartyStatus)
			cp.DELETE("/:id", counterparties.DeleteCounterparty)
		}

		if deps.Hub != nil {
			v1.GET("/ws", deps.Hub.HandleWebSocket)
		}
	}
}
