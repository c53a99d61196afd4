package parking

import "github.com/gin-gonic/gin"

// RegisterPublicRoutes exposes read-only lot listings.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	lots := rg.Group("/lots")
	{
		lots.GET("", h.ListLots)
		lots.GET("/:id", h.GetLot)
		lots.GET("/:id/status", h.GetLotStatus)
	}
}

// RegisterAdminRoutes expects rg to be guarded by admin middleware.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	lots := rg.Group("/lots")
	{
		lots.POST("", h.CreateLot)
		lots.DELETE("/:id", h.DeleteLot)
		lots.PATCH("/:id/spots", h.ResizeLot)
		lots.GET("/:id/spots", h.ListSpots)
	}
}
