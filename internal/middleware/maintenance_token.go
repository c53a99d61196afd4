package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parkinglot/internal/pkg/response"
)

// MaintenanceTokenAuth protects operator endpoints with a static bearer token.
// An empty token disables them. A non-empty allowedIPs list restricts callers
// by client IP.
func MaintenanceTokenAuth(token string, allowedIPs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			logMaintenanceFailure(c, http.StatusForbidden, "disabled")
			response.Abort(c, http.StatusForbidden, response.CodeForbidden, "Maintenance endpoints are disabled")
			return
		}

		if !ipAllowed(c.ClientIP(), allowedIPs) {
			logMaintenanceFailure(c, http.StatusForbidden, "ip_not_allowed")
			response.Abort(c, http.StatusForbidden, response.CodeForbidden, "IP not allowed")
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			logMaintenanceFailure(c, http.StatusUnauthorized, "invalid_auth_format")
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			logMaintenanceFailure(c, http.StatusForbidden, "invalid_token")
			response.Abort(c, http.StatusForbidden, response.CodeForbidden, "Invalid maintenance token")
			return
		}

		c.Next()
	}
}

func ipAllowed(clientIP string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, ip := range allowed {
		if strings.TrimSpace(ip) == clientIP {
			return true
		}
	}
	return false
}

func logMaintenanceFailure(c *gin.Context, status int, reason string) {
	log.Printf("maintenance_auth status=%d request_id=%s reason=%s", status, requestID(c), reason)
}
