package middleware

import (
	"net/http"
	"strings"

	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

func bearerClaims(c *gin.Context) (*utils.Claims, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "Authorization header required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, "Invalid authorization header format"
	}

	claims, err := utils.ValidateToken(parts[1])
	if err != nil {
		return nil, "Invalid or expired token"
	}
	return claims, ""
}

func setClaims(c *gin.Context, claims *utils.Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUserRole, claims.Role)
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, problem := bearerClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": problem})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth records the caller's identity when a valid token is sent and
// lets anonymous requests through unchanged.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _ := bearerClaims(c); claims != nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func requireRole(role, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r, _ := c.Get(ctxUserRole); r != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": http.StatusForbidden, "message": message})
			return
		}
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return requireRole(models.RoleAdmin, "Admin access required")
}

func CustomerMiddleware() gin.HandlerFunc {
	return requireRole(models.RoleCustomer, "Customer access required")
}

// UserID returns the authenticated user's id.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(ctxUserRole) == models.RoleAdmin
}
