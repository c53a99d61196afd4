package live

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"parkinglot/internal/pkg/jwt"
	"parkinglot/internal/pkg/response"
)

type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Handler upgrades authenticated requests to the live availability feed.
type Handler struct {
	hub      *Hub
	tokens   TokenValidator
	upgrader websocket.Upgrader
}

// NewHandler accepts browser origins from allowedOrigins; an empty list or
// "*" accepts any origin.
func NewHandler(hub *Hub, tokens TokenValidator, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWebSocket serves GET /ws/lots?token=JWT[&lot_id=N]. Browsers cannot
// set headers on WebSocket requests, so the token travels in the query.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid or expired token")
		return
	}

	var lots []int64
	if raw := c.Query("lot_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidID, "Invalid lot ID")
			return
		}
		lots = append(lots, id)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("live: upgrade failed user_id=%d err=%v", claims.UserID, err)
		return
	}

	log.Printf("live: connected user_id=%d", claims.UserID)
	h.hub.ServeWS(conn, claims.UserID, lots)
	log.Printf("live: disconnected user_id=%d", claims.UserID)
}

func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.GET("/ws/lots", h.HandleWebSocket)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = true
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[strings.ToLower(origin)]
	}
}
