package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"parkinglot/internal/config"
	"parkinglot/internal/database"
	"parkinglot/internal/domain/auth"
	"parkinglot/internal/domain/parking"
	"parkinglot/internal/domain/reservation"
	"parkinglot/internal/pkg/clock"
	"parkinglot/internal/pkg/jwt"
)

var lots = []parking.CreateLotRequest{
	{Name: "Central Plaza", Address: "12 MG Road", Pincode: "560001", PricePerHour: 40, Spots: 12},
	{Name: "Airport Long Stay", Address: "Terminal 2, Devanahalli", Pincode: "560300", PricePerHour: 25, Spots: 30},
	{Name: "Tech Park West", Address: "88 Outer Ring Road", Pincode: "560103", PricePerHour: 15.5, Spots: 20},
}

var drivers = []string{"asha", "bhavin", "chitra", "dev"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	// Cleanup old data (in safe order to avoid foreign key errors)
	log.Println("Cleaning old data...")
	for _, table := range []string{"reservations", "parking_spots", "parking_lots", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("cleanup %s failed: %v", table, err)
		}
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Reservations are replayed on a clock that starts a week ago.
	clk := clock.NewManual(time.Now().UTC().Add(-7 * 24 * time.Hour).Truncate(time.Hour))

	authService := auth.NewService(auth.NewUserRepository(db), jwt.New(cfg.JWTSecret, cfg.JWTTTL))
	lotService := parking.NewService(parking.NewRepository(db), nil)
	reservationService := reservation.NewService(reservation.NewRepository(db), clk, nil,
		reservation.Options{PurgeOnRelease: cfg.PurgeOnRelease()})

	// ================== USERS ==================
	log.Println("Creating users...")
	if _, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal("admin:", err)
	}
	log.Printf("Admin created: %s / %s", cfg.AdminUsername, cfg.AdminPassword)

	userIDs := make([]int64, 0, len(drivers))
	for _, name := range drivers {
		u, err := authService.Register(ctx, auth.RegisterRequest{
			Username: name,
			Email:    name + "@example.com",
			Password: "driver123",
		})
		if err != nil {
			log.Fatalf("register %s: %v", name, err)
		}
		userIDs = append(userIDs, u.ID)
	}
	log.Printf("Drivers created: %d (password driver123)", len(userIDs))

	// ================== LOTS ==================
	log.Println("Creating parking lots...")
	lotIDs := make([]int64, 0, len(lots))
	for _, req := range lots {
		lot, err := lotService.CreateLot(ctx, req)
		if err != nil {
			log.Fatalf("create lot %q: %v", req.Name, err)
		}
		lotIDs = append(lotIDs, lot.ID)
	}

	// ================== RESERVATIONS ==================
	log.Println("Creating reservation history...")
	closed := 0
	for day := 0; day < 7; day++ {
		for i, userID := range userIDs {
			lotID := lotIDs[rng.Intn(len(lotIDs))]
			view, err := reservationService.Reserve(ctx, reservation.ReserveRequest{
				LotID:         lotID,
				VehicleNumber: fmt.Sprintf("KA0%dMX%04d", i+1, rng.Intn(10000)),
			}, userID)
			if err != nil {
				log.Fatalf("reserve: %v", err)
			}

			clk.Advance(time.Duration(20+rng.Intn(300)) * time.Minute)
			if _, err := reservationService.Release(ctx, view.ID, reservation.Identity{UserID: userID}); err != nil {
				log.Fatalf("release: %v", err)
			}
			closed++
		}
		clk.Advance(18 * time.Hour)
	}

	// One car per driver is still parked.
	clk.Set(time.Now().UTC())
	for i, userID := range userIDs {
		if _, err := reservationService.Reserve(ctx, reservation.ReserveRequest{
			LotID:         lotIDs[i%len(lotIDs)],
			VehicleNumber: fmt.Sprintf("KA0%dOPEN%02d", i+1, i),
		}, userID); err != nil {
			log.Fatalf("reserve: %v", err)
		}
	}

	log.Printf("Seed completed: lots=%d drivers=%d closed_reservations=%d open_reservations=%d",
		len(lotIDs), len(userIDs), closed, len(userIDs))
}
