package reservation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"parkinglot/internal/domain"
	"parkinglot/internal/pkg/response"
	"parkinglot/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Reserve(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}
	lotID, ok := pathID(c, "Invalid lot ID")
	if !ok {
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	req.LotID = lotID

	view, err := h.service.Reserve(c.Request.Context(), req, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"spot_label": view.SpotLabel, "reservation": view})
}

func (h *Handler) Release(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}
	id, ok := pathID(c, "Invalid reservation ID")
	if !ok {
		return
	}

	requester := Identity{UserID: userID, IsAdmin: c.GetString("role") == domain.RoleAdmin}
	receipt, err := h.service.Release(c.Request.Context(), id, requester)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, receipt)
}

func (h *Handler) ListMine(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}

	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid query parameters")
		return
	}

	items, err := h.service.ListForUser(c.Request.Context(), userID, q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservations": items})
}

func (h *Handler) MySummary(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

func (h *Handler) AdminSummary(c *gin.Context) {
	counts, err := h.service.CountsPerLot(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lots": counts})
}

type pruneRequest struct {
	OlderThan string `json:"older_than"`
}

// PruneHistory deletes closed reservations that ended more than older_than
// (a Go duration such as "720h") ago.
func (h *Handler) PruneHistory(c *gin.Context) {
	var req pruneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	olderThan, err := time.ParseDuration(req.OlderThan)
	if err != nil || olderThan <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "older_than must be a positive duration")
		return
	}

	deleted, err := h.service.PruneHistory(c.Request.Context(), olderThan)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted, "older_than": olderThan.String()})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var fe *validator.FieldError
	switch {
	case errors.As(err, &fe):
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid reservation data", fe.Fields)
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "You can only release your own reservations")
	case errors.Is(err, ErrNoAvailability):
		response.Error(c, http.StatusConflict, response.CodeNoAvailability, "No available spots in the selected lot")
	case errors.Is(err, ErrAlreadyReleased):
		response.Error(c, http.StatusConflict, response.CodeAlreadyClosed, "This reservation has already been released")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	}
}

func pathID(c *gin.Context, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidID, msg)
		return 0, false
	}
	return id, true
}
