package handler

import (
	"context"
	"net/http"

	"github.com/Dat3K/viet-anh-supply-be/internal/cache"
	"github.com/Dat3K/viet-anh-supply-be/internal/middleware"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	cache           *cache.Runner
}

// NewApprovalHandler sets up the routing dependencies for approval endpoints
func NewApprovalHandler(approvalService service.ApprovalService, runner *cache.Runner) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, cache: runner}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/approvals", middleware.RequireApprover())
	{
		approvals.GET("/pending", h.ListPending)
		approvals.POST("/process", h.ProcessApproval)
	}
	// The decision trail is visible to any authenticated caller
	router.GET("/requests/:id/approvals", middleware.RequireAuth(), h.ListDecisions)
}

// ListPending handles GET /approvals/pending
// @Summary      List requests awaiting the caller's decision
// @Description  Requests whose current step is person-scoped to the caller or role-scoped to the caller's role
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        requestType   query     string  false  "Request type filter"
// @Param        includeItems  query     bool    false  "Embed items"
// @Success      200           {object}  response.Response{data=[]service.RequestResponse}
// @Router       /approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	profileID, roleID, ok := callerIdentity(c)
	if !ok {
		return
	}

	includeItems := c.Query("includeItems") == "true"
	key := cache.Key{
		Entity: cacheEntityPending,
		UserID: profileID.String(),
		Filter: cache.FilterHash(map[string]string{
			"requestType":  c.Query("requestType"),
			"includeItems": c.Query("includeItems"),
		}),
	}
	store := h.cache.Store()

	if cached, fresh, found := store.Get(key); found && fresh {
		if list, castOK := cached.([]service.RequestResponse); castOK {
			c.JSON(http.StatusOK, response.Success(http.StatusOK, list))
			return
		}
	}

	gen := store.Generation(key)
	list, err := h.approvalService.ListPendingByRole(c.Request.Context(), profileID, roleID, c.Query("requestType"), includeItems)
	if err != nil {
		abortWithError(c, err)
		return
	}
	store.SetIfCurrent(key, list, gen)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, list))
}

// ProcessApproval handles POST /approvals/process
// @Summary      Decide an approval step
// @Description  Approves or rejects the current step of a request, optionally persisting item edits made during review
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ProcessApprovalDTO  true  "Decision Payload"
// @Success      200      {object}  response.Response{data=service.ProcessApprovalResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /approvals/process [post]
func (h *ApprovalHandler) ProcessApproval(c *gin.Context) {
	var req service.ProcessApprovalDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	pendingKey := cache.Key{Entity: cacheEntityPending, UserID: profileID.String()}

	var result service.ProcessApprovalResult
	err = h.cache.Run(c.Request.Context(), cache.Mutation{
		Touches: []cache.Key{pendingKey},
		Optimistic: func(s *cache.Store) {
			// Drop the decided request from the caller's default pending
			// view; a failed commit restores the previous list exactly.
			if cached, _, found := s.Get(pendingKey); found {
				if list, castOK := cached.([]service.RequestResponse); castOK {
					next := make([]service.RequestResponse, 0, len(list))
					for _, r := range list {
						if r.ID != req.RequestID {
							next = append(next, r)
						}
					}
					s.Set(pendingKey, next)
				}
			}
		},
		Commit: func(ctx context.Context) (cache.Reconcile, error) {
			res, processErr := h.approvalService.ProcessApproval(ctx, req, profileID)
			if processErr != nil {
				return nil, processErr
			}
			result = res
			return nil, nil
		},
		Invalidates: []cache.Key{
			{Entity: cacheEntityDetail, UserID: profileID.String(), Filter: req.RequestID},
		},
		InvalidateScopes: []cache.Scope{
			// the requester's history and every approver's pending view
			// changed; their detail partitions refresh via the change feed
			{Entity: cacheEntityHistory},
			{Entity: cacheEntityPending},
		},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListDecisions handles GET /requests/:id/approvals
// @Summary      Get a request's decision trail
// @Description  Append-only list of decisions recorded for the request, oldest first
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalDecisionResponse}
// @Router       /requests/{id}/approvals [get]
func (h *ApprovalHandler) ListDecisions(c *gin.Context) {
	decisions, err := h.approvalService.ListDecisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, decisions))
}
