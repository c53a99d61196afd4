package reservation

import "github.com/gin-gonic/gin"

// RegisterRoutes expects rg to be guarded by JWT middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/lots/:id/reservations", h.Reserve)
	rg.POST("/reservations/:id/release", h.Release)

	me := rg.Group("/users/me")
	{
		me.GET("/reservations", h.ListMine)
		me.GET("/summary", h.MySummary)
	}
}

// RegisterAdminRoutes expects rg to be guarded by admin middleware.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/summary", h.AdminSummary)
}

// RegisterMaintenanceRoutes expects rg to be guarded by the maintenance token.
func (h *Handler) RegisterMaintenanceRoutes(rg *gin.RouterGroup) {
	rg.POST("/history/prune", h.PruneHistory)
}
