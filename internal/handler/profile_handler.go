package handler

import (
	"net/http"

	"github.com/Dat3K/viet-anh-supply-be/internal/middleware"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"
	"github.com/Dat3K/viet-anh-supply-be/pkg/pagination"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler sets up the routing dependencies for profile endpoints
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ProfileHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/login", h.Login)
	router.POST("/refresh", h.RefreshToken)
	router.POST("/logout", h.Logout)

	// Me route (authenticated — any valid token)
	router.GET("/me", middleware.RequireAuth(), h.GetMe)

	// Admin-managed profiles
	profiles := router.Group("/profiles", middleware.RequireRole("admin"))
	{
		profiles.GET("", h.ListProfiles)
		profiles.GET("/:id", h.GetProfileByID)
		profiles.POST("", h.CreateProfile)
		profiles.PUT("/:id", h.UpdateProfile)
		profiles.DELETE("/:id", h.DeactivateProfile)
	}
}

// Login handles POST /login to authenticate and return a JWT token
// @Summary      Login
// @Description  Authenticates a staff member by email and password, returning access and refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *ProfileHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.profileService.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	// Set tokens as HttpOnly cookies
	middleware.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// RefreshToken handles POST /refresh to rotate the token pair
// @Summary      Refresh tokens
// @Description  Exchanges a valid refresh token for a new access/refresh pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  false  "Refresh token (falls back to cookie)"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /refresh [post]
func (h *ProfileHandler) RefreshToken(c *gin.Context) {
	var req service.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		// Fall back to the HttpOnly cookie set at login
		cookie, cookieErr := c.Cookie("refresh_token")
		if cookieErr != nil || cookie == "" {
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing refresh token"))
			return
		}
		req.RefreshToken = cookie
	}

	tokenRes, err := h.profileService.Refresh(c.Request.Context(), req)
	if err != nil {
		middleware.ClearTokenCookies(c)
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout handles POST /logout
// @Summary      Logout
// @Description  Clears token cookies and revokes the caller's refresh tokens
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /logout [post]
func (h *ProfileHandler) Logout(c *gin.Context) {
	if profileID, err := middleware.ProfileID(c); err == nil {
		_ = h.profileService.Logout(c.Request.Context(), profileID)
	}
	middleware.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "logged out"}))
}

// GetMe handles GET /me
// @Summary      Get the caller's profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ProfileResponse}
// @Failure      401  {object}  response.Response
// @Router       /me [get]
func (h *ProfileHandler) GetMe(c *gin.Context) {
	profileID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	profile, err := h.profileService.GetProfileByID(c.Request.Context(), profileID.String())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, profile))
}

// CreateProfile handles POST /profiles
// @Summary      Create a staff profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateProfileRequest  true  "Create Profile Payload"
// @Success      201      {object}  response.Response{data=service.ProfileResponse}
// @Failure      400      {object}  response.Response
// @Router       /profiles [post]
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req service.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	profile, err := h.profileService.CreateProfile(c.Request.Context(), req, actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, profile))
}

// ListProfiles handles GET /profiles
// @Summary      List staff profiles
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page"
// @Param        limit  query     int  false  "Limit"
// @Success      200    {object}  response.PagedResponse{data=[]service.ProfileResponse}
// @Router       /profiles [get]
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	params := pagination.Parse(c)

	profiles, total, err := h.profileService.ListProfiles(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, profiles, total, params.Page, params.Limit, pagination.PageCount(total, params.Limit)))
}

// GetProfileByID handles GET /profiles/:id
// @Summary      Get a staff profile
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Profile ID"
// @Success      200  {object}  response.Response{data=service.ProfileResponse}
// @Failure      404  {object}  response.Response
// @Router       /profiles/{id} [get]
func (h *ProfileHandler) GetProfileByID(c *gin.Context) {
	profile, err := h.profileService.GetProfileByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, profile))
}

// UpdateProfile handles PUT /profiles/:id
// @Summary      Update a staff profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Profile ID"
// @Param        payload  body      service.UpdateProfileRequest  true  "Update Profile Payload"
// @Success      200      {object}  response.Response{data=service.ProfileResponse}
// @Failure      404      {object}  response.Response
// @Router       /profiles/{id} [put]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, err := middleware.ProfileID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid identity"))
		return
	}

	profile, err := h.profileService.UpdateProfile(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, profile))
}

// DeactivateProfile handles DELETE /profiles/:id
// @Summary      Deactivate a staff profile
// @Description  Soft-deletes the profile and revokes its refresh tokens
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Profile ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /profiles/{id} [delete]
func (h *ProfileHandler) DeactivateProfile(c *gin.Context) {
	if err := h.profileService.DeactivateProfile(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "profile deactivated"}))
}
