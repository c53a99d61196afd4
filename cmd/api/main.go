package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"parkinglot/internal/config"
	"parkinglot/internal/database"
	"parkinglot/internal/jobs"
	"parkinglot/internal/pkg/clock"
	"parkinglot/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.AppEnv == "prod" || cfg.AppEnv == "production" || cfg.AppEnv == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	srv := server.New(cfg, db, clock.Real())

	admin, err := srv.Auth.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("ensure admin: %v", err)
	}
	log.Printf("admin account ready: id=%d username=%s", admin.ID, admin.Username)

	pruner, err := jobs.StartHistoryPruner(srv.Reservations, cfg.HistoryPruneSchedule, cfg.HistoryRetention)
	if err != nil {
		log.Fatal(err)
	}

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler(os.Stdout)}
	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if pruner != nil {
		<-pruner.Stop().Done()
	}
	srv.Hub.Close()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Println("bye")
}
