package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"trade-ledger/pkg/cache"
	"trade-ledger/pkg/database"
	"trade-ledger/pkg/websocket"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandlers serves the /health endpoints
type HealthHandlers struct {
	db    *gorm.DB
	redis *cache.Client
	hub   *websocket.Hub
}

// NewHealthHandlers creates health handlers. db is nil when the ledger runs on
// the in-memory store and redis is nil when Redis is disabled.
func NewHealthHandlers(db *gorm.DB, redis *cache.Client, hub *websocket.Hub) *HealthHandlers {
	return &HealthHandlers{db: db, redis: redis, hub: hub}
}

// Health reports liveness
func (h *HealthHandlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "trade-ledger",
		"version": Version,
	}
	if h.hub != nil {
		body["websocket"] = h.hub.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

// DatabaseHealth checks database connectivity
func (h *HealthHandlers) DatabaseHealth(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"store":  "memory",
		})
		return
	}

	if err := database.HealthCheck(c.Request.Context(), h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"store":  "postgres",
	})
}

// RedisHealth checks Redis connectivity
func (h *HealthHandlers) RedisHealth(c *gin.Context) {
	if h.redis == nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "disabled",
		})
		return
	}

	if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
