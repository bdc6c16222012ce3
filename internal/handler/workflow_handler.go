package handler

import (
	"net/http"

	"github.com/Dat3K/viet-anh-supply-be/internal/middleware"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"
	"github.com/Dat3K/viet-anh-supply-be/pkg/pagination"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
)

type WorkflowHandler struct {
	workflowService service.WorkflowService
	typeService     service.RequestTypeService
}

// NewWorkflowHandler sets up the routing dependencies for workflow endpoints
func NewWorkflowHandler(workflowService service.WorkflowService, typeService service.RequestTypeService) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService, typeService: typeService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *WorkflowHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Request types are readable by any authenticated caller; shaping
	// workflows is admin work.
	router.GET("/request-types", middleware.RequireAuth(), h.ListRequestTypes)

	admin := router.Group("", middleware.RequireRole("admin"))
	{
		admin.POST("/request-types", h.CreateRequestType)
		admin.PATCH("/request-types/:id/active", h.SetRequestTypeActive)

		workflows := admin.Group("/workflows")
		{
			workflows.GET("", h.ListWorkflows)
			workflows.GET("/:id", h.GetWorkflow)
			workflows.POST("", h.CreateWorkflow)
			workflows.PATCH("/:id/active", h.SetWorkflowActive)
		}
	}
}

// ListWorkflows handles GET /workflows
// @Summary      List approval workflows
// @Tags         workflows
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page"
// @Param        limit  query     int  false  "Limit"
// @Success      200    {object}  response.PagedResponse{data=[]service.WorkflowResponse}
// @Router       /workflows [get]
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	params := pagination.Parse(c)

	workflows, total, err := h.workflowService.ListWorkflows(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, workflows, total, params.Page, params.Limit, pagination.PageCount(total, params.Limit)))
}

// GetWorkflow handles GET /workflows/:id
// @Summary      Get an approval workflow with its steps
// @Tags         workflows
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Workflow ID"
// @Success      200  {object}  response.Response{data=service.WorkflowResponse}
// @Failure      404  {object}  response.Response
// @Router       /workflows/{id} [get]
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	workflow, err := h.workflowService.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, workflow))
}

// CreateWorkflow handles POST /workflows
// @Summary      Create an approval workflow
// @Description  Creates a workflow with ordered steps, each scoped to a person or a role
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateWorkflowDTO  true  "Create Workflow Payload"
// @Success      201      {object}  response.Response{data=service.WorkflowResponse}
// @Failure      400      {object}  response.Response
// @Router       /workflows [post]
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req service.CreateWorkflowDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	workflow, err := h.workflowService.CreateWorkflow(c.Request.Context(), req, actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, workflow))
}

// SetWorkflowActive handles PATCH /workflows/:id/active
// @Summary      Activate or deactivate a workflow
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Workflow ID"
// @Param        payload  body      handler.activeDTO  true  "Active flag"
// @Success      200      {object}  response.Response{data=service.WorkflowResponse}
// @Router       /workflows/{id}/active [patch]
func (h *WorkflowHandler) SetWorkflowActive(c *gin.Context) {
	var req activeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	actorID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	workflow, err := h.workflowService.SetWorkflowActive(c.Request.Context(), c.Param("id"), *req.Active, actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, workflow))
}

type activeDTO struct {
	Active *bool `json:"active" binding:"required"`
}

// ListRequestTypes handles GET /request-types
// @Summary      List request types
// @Tags         request-types
// @Produce      json
// @Security     BearerAuth
// @Param        includeInactive  query     bool  false  "Include inactive types"
// @Success      200              {object}  response.Response{data=[]service.RequestTypeResponse}
// @Router       /request-types [get]
func (h *WorkflowHandler) ListRequestTypes(c *gin.Context) {
	types, err := h.typeService.ListRequestTypes(c.Request.Context(), c.Query("includeInactive") == "true")
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, types))
}

// CreateRequestType handles POST /request-types
// @Summary      Create a request type
// @Tags         request-types
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestTypeDTO  true  "Create Request Type Payload"
// @Success      201      {object}  response.Response{data=service.RequestTypeResponse}
// @Router       /request-types [post]
func (h *WorkflowHandler) CreateRequestType(c *gin.Context) {
	var req service.CreateRequestTypeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rt, err := h.typeService.CreateRequestType(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rt))
}

// SetRequestTypeActive handles PATCH /request-types/:id/active
// @Summary      Activate or deactivate a request type
// @Tags         request-types
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Request Type ID"
// @Param        payload  body      handler.activeDTO  true  "Active flag"
// @Success      200      {object}  response.Response{data=service.RequestTypeResponse}
// @Router       /request-types/{id}/active [patch]
func (h *WorkflowHandler) SetRequestTypeActive(c *gin.Context) {
	var req activeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	rt, err := h.typeService.SetRequestTypeActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rt))
}
