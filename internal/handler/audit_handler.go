package handler

import (
	"net/http"

	"github.com/Dat3K/viet-anh-supply-be/internal/middleware"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"
	"github.com/Dat3K/viet-anh-supply-be/pkg/pagination"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

// NewAuditHandler sets up the routing dependencies for audit endpoints
func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audit := router.Group("/audit-logs", middleware.RequireRole("admin"))
	{
		audit.GET("", h.ListAuditLogs)
		audit.GET("/entity/:entityId", h.GetEntityTrail)
	}
}

// ListAuditLogs handles GET /audit-logs
// @Summary      List audit logs
// @Description  Paginated audit trail, newest first
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page"
// @Param        limit  query     int  false  "Limit"
// @Success      200    {object}  response.PagedResponse{data=[]service.AuditLogResponse}
// @Router       /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, total, params.Page, params.Limit, pagination.PageCount(total, params.Limit)))
}

// GetEntityTrail handles GET /audit-logs/entity/:entityId
// @Summary      Get the audit trail for one entity
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        entityId  path      string  true   "Entity ID"
// @Param        page      query     int     false  "Page"
// @Param        limit     query     int     false  "Limit"
// @Success      200       {object}  response.PagedResponse{data=[]service.AuditLogResponse}
// @Router       /audit-logs/entity/{entityId} [get]
func (h *AuditHandler) GetEntityTrail(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetEntityTrail(c.Request.Context(), c.Param("entityId"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, total, params.Page, params.Limit, pagination.PageCount(total, params.Limit)))
}
