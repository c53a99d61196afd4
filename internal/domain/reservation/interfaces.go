package reservation

import (
	"context"
	"time"

	"parkinglot/internal/domain"
)

// Repository is the reservation ledger. Allocate and Release are the only
// operations that flip a spot's status.
type Repository interface {
	Allocate(ctx context.Context, lotID, userID int64, vehicle string, at time.Time) (*View, error)
	Get(ctx context.Context, id int64) (*domain.Reservation, error)
	Release(ctx context.Context, id int64, at time.Time, purge bool) (*Receipt, error)
	ListForUser(ctx context.Context, userID int64, q ListQuery) ([]View, error)
	UserTotals(ctx context.Context, userID int64) (*UserSummary, error)
	CountsPerLot(ctx context.Context) ([]LotReservationCount, error)
	PruneClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Broadcaster pushes lot-level events to live subscribers.
type Broadcaster interface {
	Broadcast(lotID int64, eventType string, payload any)
}
