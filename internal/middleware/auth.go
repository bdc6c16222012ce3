package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	// access_token: 24h, path=/, domain="", secure, HttpOnly
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	// refresh_token: 7 days, path=/, domain="", secure, HttpOnly
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// parseToken validates the JWT from cookie or Authorization header and
// returns its claims. Aborts the request on failure.
func parseToken(c *gin.Context) (jwt.MapClaims, bool) {
	// Try cookie first, fallback to Authorization header
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr != nil || tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return nil, false
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return nil, false
		}
		tokenString = parts[1]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return nil, false
	}
	return claims, true
}

// RequireAuth validates the JWT and stores the caller's identity in the
// gin context. Any active profile passes.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c)
		if !ok {
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// RequireRole validates the JWT and checks the caller's role name against
// the allowed list. Used for admin-only surfaces.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c)
		if !ok {
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if userRole == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// RequireApprover validates the JWT and checks that the caller's current
// role is allowed to approve. The role flag is read from the database, not
// the token, so a demotion takes effect without waiting for token expiry.
func RequireApprover() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c)
		if !ok {
			return
		}
		setIdentity(c, claims)

		roleID, err := RoleID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		canApprove, err := roleCanApprove(roleID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify role"))
			return
		}
		if !canApprove {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: role cannot approve requests"))
			return
		}

		c.Next()
	}
}

func setIdentity(c *gin.Context, claims jwt.MapClaims) {
	c.Set("userID", claims["sub"])
	if role, ok := claims["role"].(string); ok {
		c.Set("userRole", role)
	}
	if roleID, ok := claims["role_id"].(string); ok {
		c.Set("userRoleID", roleID)
	}
}

// ProfileID returns the authenticated caller's profile id from the context.
func ProfileID(c *gin.Context) (uuid.UUID, error) {
	raw, ok := c.Get("userID")
	if !ok {
		return uuid.Nil, fmt.Errorf("no authenticated user in context")
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected userID type")
	}
	return uuid.Parse(s)
}

// RoleID returns the authenticated caller's role id from the context.
func RoleID(c *gin.Context) (uuid.UUID, error) {
	raw, ok := c.Get("userRoleID")
	if !ok {
		return uuid.Nil, fmt.Errorf("no role in context")
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected userRoleID type")
	}
	return uuid.Parse(s)
}

// --- Role lookup cache ---

// roleCacheEntry stores a cached can_approve flag with TTL
type roleCacheEntry struct {
	canApprove bool
	expiresAt  time.Time
}

var (
	roleCache    sync.Map // roleID -> roleCacheEntry
	roleCacheTTL = 5 * time.Minute
)

// roleDB holds the database reference for role queries — set via InitRoleMiddleware
var roleDB *gorm.DB

// InitRoleMiddleware sets the DB reference for RequireApprover middleware
func InitRoleMiddleware(db *gorm.DB) {
	roleDB = db
}

func roleCanApprove(roleID uuid.UUID) (bool, error) {
	if entry, ok := roleCache.Load(roleID); ok {
		cached := entry.(roleCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.canApprove, nil
		}
	}

	if roleDB == nil {
		return false, fmt.Errorf("role middleware not initialized")
	}

	var role model.Role
	if err := roleDB.First(&role, "id = ?", roleID).Error; err != nil {
		return false, err
	}

	roleCache.Store(roleID, roleCacheEntry{
		canApprove: role.CanApprove,
		expiresAt:  time.Now().Add(roleCacheTTL),
	})
	return role.CanApprove, nil
}

// ClearRoleCache removes the cached flag for a role (or all roles if nil)
func ClearRoleCache(roleID *uuid.UUID) {
	if roleID == nil {
		roleCache.Range(func(key, _ interface{}) bool {
			roleCache.Delete(key)
			return true
		})
		return
	}
	roleCache.Delete(*roleID)
}
