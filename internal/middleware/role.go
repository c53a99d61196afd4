package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkinglot/internal/domain"
	"parkinglot/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "Role not found in token")
			return
		}

		if r, _ := role.(string); r != requiredRole {
			response.Abort(c, http.StatusForbidden, response.CodeForbidden, "Access denied: insufficient permissions")
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
