package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkinglot/internal/pkg/response"
	"parkinglot/internal/pkg/validator"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}

	user, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": users})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var fe *validator.FieldError
	switch {
	case errors.As(err, &fe):
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid request data", fe.Fields)
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrUserExists):
		response.Error(c, http.StatusConflict, response.CodeDuplicate, "Username or email is already registered")
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid username or password")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "User not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	}
}
