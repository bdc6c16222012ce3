package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/cache"
	"github.com/Dat3K/viet-anh-supply-be/internal/middleware"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"
	"github.com/Dat3K/viet-anh-supply-be/pkg/pagination"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Cache partition entities
const (
	cacheEntityHistory = "requests:history"
	cacheEntityPending = "requests:pending"
	cacheEntityDetail  = "requests:detail"
)

type historyPage struct {
	Items []service.RequestResponse `json:"items"`
	Total int64                     `json:"total"`
}

type RequestHandler struct {
	requestService service.RequestService
	cache          *cache.Runner
}

// NewRequestHandler sets up the routing dependencies for request endpoints
func NewRequestHandler(requestService service.RequestService, runner *cache.Runner) *RequestHandler {
	return &RequestHandler{requestService: requestService, cache: runner}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests", middleware.RequireAuth())
	{
		requests.POST("", h.CreateRequest)
		requests.GET("/history", h.History)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/cancel", h.CancelRequest)
		requests.POST("/:id/copy", h.CopyRequest)
		requests.POST("/:id/items", h.AddItem)
		requests.PUT("/:id/items/:itemId", h.UpdateItem)
		requests.DELETE("/:id/items/:itemId", h.RemoveItem)
	}
}

// CreateRequest handles POST /requests
// @Summary      Create a supply request
// @Description  Files a new supply request with items; the approval workflow is resolved from the request type and the caller's role
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestDTO  true  "Create Request Payload"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	profileID, roleID, ok := callerIdentity(c)
	if !ok {
		return
	}

	var created *service.RequestResponse
	historyKey := defaultHistoryKey(profileID.String())

	err := h.cache.Run(c.Request.Context(), cache.Mutation{
		Touches: []cache.Key{historyKey},
		Optimistic: func(s *cache.Store) {
			// Show the new request in the caller's default history page
			// immediately, under a temporary id.
			temp := service.RequestResponse{
				ID:            cache.TempID(),
				Title:         req.Title,
				Purpose:       req.Purpose,
				Priority:      req.Priority,
				Status:        "pending",
				RequesterID:   profileID.String(),
				RequestTypeID: req.RequestTypeID,
				CreatedAt:     time.Now(),
			}
			if page, _, ok := s.Get(historyKey); ok {
				if prev, ok := page.(historyPage); ok {
					next := historyPage{Total: prev.Total + 1}
					next.Items = append([]service.RequestResponse{temp}, prev.Items...)
					s.Set(historyKey, next)
					return
				}
			}
			s.Set(historyKey, historyPage{Items: []service.RequestResponse{temp}, Total: 1})
		},
		Commit: func(ctx context.Context) (cache.Reconcile, error) {
			res, err := h.requestService.CreateRequest(ctx, req, profileID, roleID)
			if err != nil {
				return nil, err
			}
			created = res
			return func(s *cache.Store) {
				s.Set(cache.Key{Entity: cacheEntityDetail, UserID: profileID.String(), Filter: res.ID}, *res)
			}, nil
		},
		InvalidateScopes: []cache.Scope{
			{Entity: cacheEntityPending},
			{Entity: cacheEntityHistory, UserID: profileID.String()},
		},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// History handles GET /requests/history
// @Summary      List the caller's request history
// @Description  Paginated, filterable history of the caller's own requests. Served from the query cache when fresh.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page      query     int     false  "Page"
// @Param        pageSize  query     int     false  "Page size"
// @Param        status    query     string  false  "Status filter"
// @Param        priority  query     string  false  "Priority filter"
// @Param        search    query     string  false  "Free-text search"
// @Param        sortBy    query     string  false  "Sort column"
// @Param        sortOrder query     string  false  "asc or desc"
// @Success      200       {object}  response.PagedResponse{data=[]service.RequestResponse}
// @Router       /requests/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	params := pagination.Parse(c)
	filter := repository.HistoryFilter{
		Page:      params.Page,
		PageSize:  params.Limit,
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if raw := c.Query("dateFrom"); raw != "" {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			filter.DateFrom = &t
		}
	}
	if raw := c.Query("dateTo"); raw != "" {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			filter.DateTo = &t
		}
	}

	key := cache.Key{
		Entity: cacheEntityHistory,
		UserID: profileID.String(),
		Filter: historyFilterHash(c, params),
	}
	store := h.cache.Store()

	if cached, fresh, ok := store.Get(key); ok && fresh {
		if page, ok := cached.(historyPage); ok {
			c.JSON(http.StatusOK, response.Paged(http.StatusOK, page.Items, page.Total, params.Page, params.Limit, pagination.PageCount(page.Total, params.Limit)))
			return
		}
	}

	// Stale or missing: fetch, then install unless a mutation settled in
	// the meantime.
	gen := store.Generation(key)
	items, total, err := h.requestService.History(c.Request.Context(), profileID, filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	store.SetIfCurrent(key, historyPage{Items: items, Total: total}, gen)

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, items, total, params.Page, params.Limit, pagination.PageCount(total, params.Limit)))
}

// defaultHistoryKey addresses the partition an unfiltered first-page history
// read resolves to. Optimistic created entries are installed there so the
// caller's next default read sees them.
func defaultHistoryKey(userID string) cache.Key {
	return cache.Key{
		Entity: cacheEntityHistory,
		UserID: userID,
		Filter: cache.FilterHash(map[string]string{
			"page":     strconv.Itoa(pagination.DefaultPage),
			"pageSize": strconv.Itoa(pagination.DefaultLimit),
		}),
	}
}

func historyFilterHash(c *gin.Context, params pagination.Params) string {
	return cache.FilterHash(map[string]string{
		"page":      strconv.Itoa(params.Page),
		"pageSize":  strconv.Itoa(params.Limit),
		"status":    c.Query("status"),
		"priority":  c.Query("priority"),
		"search":    c.Query("search"),
		"sortBy":    c.Query("sortBy"),
		"sortOrder": c.Query("sortOrder"),
		"dateFrom":  c.Query("dateFrom"),
		"dateTo":    c.Query("dateTo"),
	})
}

// GetRequest handles GET /requests/:id
// @Summary      Get one request
// @Description  Returns a request with its items, workflow and current step
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	id := c.Param("id")
	key := cache.Key{Entity: cacheEntityDetail, UserID: profileID.String(), Filter: id}
	store := h.cache.Store()

	if cached, fresh, ok := store.Get(key); ok && fresh {
		if res, ok := cached.(service.RequestResponse); ok {
			c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
			return
		}
	}

	gen := store.Generation(key)
	res, err := h.requestService.GetRequest(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	store.SetIfCurrent(key, *res, gen)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// CancelRequest handles POST /requests/:id/cancel
// @Summary      Cancel a pending request
// @Description  Withdraws the caller's own pending request with a reason
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Request ID"
// @Param        payload  body      service.CancelRequestDTO  true  "Cancellation reason"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /requests/{id}/cancel [post]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	var req service.CancelRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	id := c.Param("id")
	detailKey := cache.Key{Entity: cacheEntityDetail, UserID: profileID.String(), Filter: id}

	var cancelled *service.RequestResponse
	err = h.cache.Run(c.Request.Context(), cache.Mutation{
		Touches: []cache.Key{detailKey},
		Optimistic: func(s *cache.Store) {
			if cached, _, ok := s.Get(detailKey); ok {
				if res, ok := cached.(service.RequestResponse); ok {
					res.Status = "cancelled"
					s.Set(detailKey, res)
				}
			}
		},
		Commit: func(ctx context.Context) (cache.Reconcile, error) {
			res, cancelErr := h.requestService.CancelRequest(ctx, id, req, profileID)
			if cancelErr != nil {
				return nil, cancelErr
			}
			cancelled = res
			return func(s *cache.Store) {
				s.Set(detailKey, *res)
			}, nil
		},
		InvalidateScopes: []cache.Scope{
			{Entity: cacheEntityHistory, UserID: profileID.String()},
			{Entity: cacheEntityPending},
		},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cancelled))
}

// CopyRequest handles POST /requests/:id/copy
// @Summary      Copy a request
// @Description  Files a fresh request duplicating an existing one's content
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      201  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /requests/{id}/copy [post]
func (h *RequestHandler) CopyRequest(c *gin.Context) {
	profileID, roleID, ok := callerIdentity(c)
	if !ok {
		return
	}

	res, err := h.requestService.CopyRequest(c.Request.Context(), c.Param("id"), profileID, roleID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.cache.Store().InvalidateUser(cacheEntityHistory, profileID.String())

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// AddItem handles POST /requests/:id/items
// @Summary      Add an item to a pending request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Request ID"
// @Param        payload  body      service.CreateItemDTO  true  "Item"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Router       /requests/{id}/items [post]
func (h *RequestHandler) AddItem(c *gin.Context) {
	var item service.CreateItemDTO
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	h.mutateItems(c, profileID, func(ctx context.Context) (*service.RequestResponse, error) {
		return h.requestService.AddItem(ctx, c.Param("id"), item, profileID)
	})
}

// UpdateItem handles PUT /requests/:id/items/:itemId
// @Summary      Update an item on a pending request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Request ID"
// @Param        itemId   path      string               true  "Item ID"
// @Param        payload  body      service.ItemEditDTO  true  "Item changes"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Router       /requests/{id}/items/{itemId} [put]
func (h *RequestHandler) UpdateItem(c *gin.Context) {
	var edit service.ItemEditDTO
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	edit.ID = c.Param("itemId")

	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	h.mutateItems(c, profileID, func(ctx context.Context) (*service.RequestResponse, error) {
		return h.requestService.UpdateItem(ctx, c.Param("id"), edit, profileID)
	})
}

// RemoveItem handles DELETE /requests/:id/items/:itemId
// @Summary      Remove an item from a pending request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true  "Request ID"
// @Param        itemId  path      string  true  "Item ID"
// @Success      200     {object}  response.Response{data=service.RequestResponse}
// @Router       /requests/{id}/items/{itemId} [delete]
func (h *RequestHandler) RemoveItem(c *gin.Context) {
	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	h.mutateItems(c, profileID, func(ctx context.Context) (*service.RequestResponse, error) {
		return h.requestService.RemoveItem(ctx, c.Param("id"), c.Param("itemId"), profileID)
	})
}

// mutateItems runs an item mutation through the optimistic runner so the
// cached detail partition rolls back exactly on failure.
func (h *RequestHandler) mutateItems(c *gin.Context, profileID uuid.UUID, commit func(ctx context.Context) (*service.RequestResponse, error)) {
	id := c.Param("id")
	detailKey := cache.Key{Entity: cacheEntityDetail, UserID: profileID.String(), Filter: id}

	var updated *service.RequestResponse
	err := h.cache.Run(c.Request.Context(), cache.Mutation{
		Touches: []cache.Key{detailKey},
		Commit: func(ctx context.Context) (cache.Reconcile, error) {
			res, err := commit(ctx)
			if err != nil {
				return nil, err
			}
			updated = res
			return func(s *cache.Store) {
				s.Set(detailKey, *res)
			}, nil
		},
		InvalidateScopes: []cache.Scope{{Entity: cacheEntityHistory, UserID: profileID.String()}},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

func callerIdentity(c *gin.Context) (profileID, roleID uuid.UUID, ok bool) {
	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return uuid.Nil, uuid.Nil, false
	}
	roleID, err = middleware.RoleID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return uuid.Nil, uuid.Nil, false
	}
	return profileID, roleID, true
}

