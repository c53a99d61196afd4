package parking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parkinglot/internal/pkg/response"
	"parkinglot/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListLots(c *gin.Context) {
	lots, err := h.service.ListLots(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lots": lots})
}

func (h *Handler) GetLot(c *gin.Context) {
	id, ok := lotID(c)
	if !ok {
		return
	}
	lot, err := h.service.GetLot(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lot": lot})
}

func (h *Handler) GetLotStatus(c *gin.Context) {
	id, ok := lotID(c)
	if !ok {
		return
	}
	counts, err := h.service.CountByStatus(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, counts)
}

func (h *Handler) CreateLot(c *gin.Context) {
	var req CreateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	lot, err := h.service.CreateLot(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"lot": lot})
}

func (h *Handler) DeleteLot(c *gin.Context) {
	id, ok := lotID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteLot(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) ResizeLot(c *gin.Context) {
	id, ok := lotID(c)
	if !ok {
		return
	}

	var req ResizeLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	result, err := h.service.ResizeLot(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *Handler) ListSpots(c *gin.Context) {
	id, ok := lotID(c)
	if !ok {
		return
	}
	spots, err := h.service.ListSpots(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"spots": spots})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var fe *validator.FieldError
	switch {
	case errors.As(err, &fe):
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid parking lot data", fe.Fields)
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Parking lot not found")
	case errors.Is(err, ErrConflict):
		response.Error(c, http.StatusConflict, response.CodeLotInUse, "Cannot delete lot: reservations exist")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	}
}

func lotID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidID, "Invalid lot ID")
		return 0, false
	}
	return id, true
}
