package main

import (
	"context"
	"flag"
	"log"

	"parkinglot/internal/config"
	"parkinglot/internal/database"
	"parkinglot/internal/domain/reservation"
	"parkinglot/internal/jobs"
	"parkinglot/internal/pkg/clock"
)

func main() {
	olderThan := flag.Duration("older-than", 0, "delete closed reservations that ended before now minus this duration (defaults to HISTORY_RETENTION)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	retention := cfg.HistoryRetention
	if *olderThan > 0 {
		retention = *olderThan
	}
	if retention <= 0 {
		log.Fatal("history cleanup: set -older-than or HISTORY_RETENTION to a positive duration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	svc := reservation.NewService(reservation.NewRepository(db), clock.Real(), nil, reservation.Options{})
	if err := jobs.PruneHistory(context.Background(), svc, retention); err != nil {
		log.Fatalf("history cleanup failed: %v", err)
	}
}
