package parking

import (
	"context"

	"parkinglot/internal/domain"
)

// Repository is the catalog store: lots and their spots.
type Repository interface {
	CreateLot(ctx context.Context, lot *domain.ParkingLot, spots int) error
	GetLot(ctx context.Context, id int64) (*domain.ParkingLot, error)
	ListLots(ctx context.Context) ([]domain.ParkingLot, error)
	CountByStatus(ctx context.Context, lotID int64) (StatusCount, error)
	CountAllByStatus(ctx context.Context) (map[int64]StatusCount, error)
	DeleteLot(ctx context.Context, id int64) error
	AddSpots(ctx context.Context, lotID int64, n int) (int, error)
	RemoveAvailableSpots(ctx context.Context, lotID int64, n int) (int, error)
	ListSpots(ctx context.Context, lotID int64) ([]SpotView, error)
}

// Broadcaster pushes lot-level events to live subscribers. It never holds
// spot state itself.
type Broadcaster interface {
	Broadcast(lotID int64, eventType string, payload any)
}
