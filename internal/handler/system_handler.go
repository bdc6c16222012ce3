package handler

import (
	"net/http"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/realtime"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SystemHandler struct {
	db      *gorm.DB
	manager *realtime.Manager
}

// NewSystemHandler sets up the health and diagnostics endpoints
func NewSystemHandler(db *gorm.DB, manager *realtime.Manager) *SystemHandler {
	return &SystemHandler{db: db, manager: manager}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *SystemHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)
	router.GET("/health/realtime", h.RealtimeHealth)
}

// Health handles GET /health
// @Summary      Liveness and database check
// @Tags         system
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, "database unreachable: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}))
}

// RealtimeHealth handles GET /health/realtime
// @Summary      Realtime subscription health
// @Description  Per-channel status, error counters and manager uptime
// @Tags         system
// @Produce      json
// @Success      200  {object}  response.Response{data=realtime.HealthReport}
// @Router       /health/realtime [get]
func (h *SystemHandler) RealtimeHealth(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.manager.Health()))
}
