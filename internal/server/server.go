package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"gorm.io/gorm"

	"parkinglot/internal/config"
	"parkinglot/internal/domain/auth"
	"parkinglot/internal/domain/live"
	"parkinglot/internal/domain/parking"
	"parkinglot/internal/domain/reservation"
	"parkinglot/internal/middleware"
	"parkinglot/internal/pkg/clock"
	"parkinglot/internal/pkg/jwt"
	"parkinglot/internal/pkg/response"
)

// Server holds the wired services and the HTTP router.
type Server struct {
	Router       *gin.Engine
	Hub          *live.Hub
	Auth         *auth.Service
	Lots         *parking.Service
	Reservations *reservation.Service
	Tokens       *jwt.Service

	db *gorm.DB
}

func New(cfg *config.Config, db *gorm.DB, clk clock.Clock) *Server {
	tokens := jwt.New(cfg.JWTSecret, cfg.JWTTTL)

	lotRepo := parking.NewRepository(db)
	hub := live.NewHub(lotRepo)

	authService := auth.NewService(auth.NewUserRepository(db), tokens)
	lotService := parking.NewService(lotRepo, hub)
	reservationService := reservation.NewService(
		reservation.NewRepository(db),
		clk,
		hub,
		reservation.Options{PurgeOnRelease: cfg.PurgeOnRelease()},
	)

	s := &Server{
		Hub:          hub,
		Auth:         authService,
		Lots:         lotService,
		Reservations: reservationService,
		Tokens:       tokens,
		db:           db,
	}
	s.Router = s.routes(cfg)
	return s
}

func (s *Server) routes(cfg *config.Config) *gin.Engine {
	authHandler := auth.NewHandler(s.Auth)
	lotHandler := parking.NewHandler(s.Lots)
	reservationHandler := reservation.NewHandler(s.Reservations)
	liveHandler := live.NewHandler(s.Hub, s.Tokens, cfg.CORSAllowedOrigins)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger(), middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterPublicRoutes(v1)
		lotHandler.RegisterPublicRoutes(v1)
		liveHandler.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(s.Tokens))
		{
			authHandler.RegisterProtectedRoutes(protected)
			reservationHandler.RegisterRoutes(protected)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(s.Tokens), middleware.AdminOnly())
		{
			lotHandler.RegisterAdminRoutes(admin)
			reservationHandler.RegisterAdminRoutes(admin)
			authHandler.RegisterAdminRoutes(admin)
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.MaintenanceTokenAuth(cfg.MaintenanceToken, cfg.MaintenanceAllowedIPs))
		{
			reservationHandler.RegisterMaintenanceRoutes(internal)
		}
	}

	return r
}

// Handler wraps the router with an Apache combined-format access log.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	return handlers.CombinedLoggingHandler(accessLog, s.Router)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is unreachable")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":         "ok",
		"ws_connections": s.Hub.ConnectionCount(),
	})
}
