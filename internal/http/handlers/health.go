package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	redisbus "github.com/yungbote/nexusknowledge-backend/internal/clients/redis"
)

type HealthHandler struct {
	db  *gorm.DB
	bus redisbus.JobBus
}

// NewHealthHandler reports reachability of the store and, when configured,
// the broker. bus may be nil.
func NewHealthHandler(db *gorm.DB, bus redisbus.JobBus) *HealthHandler {
	return &HealthHandler{db: db, bus: bus}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbOK := false
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			dbOK = sqlDB.PingContext(ctx) == nil
		}
	}

	body := gin.H{
		"status":   "ok",
		"database": dbOK,
	}
	if h.bus != nil {
		body["broker"] = h.bus.Ping(ctx) == nil
	}

	status := http.StatusOK
	if !dbOK {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}
