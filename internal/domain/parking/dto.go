package parking

import (
	"time"

	"parkinglot/internal/domain"
)

const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
)

type CreateLotRequest struct {
	Name         string  `json:"name" validate:"required,notblank,max=100"`
	Address      string  `json:"address" validate:"required,notblank"`
	Pincode      string  `json:"pincode" validate:"required,notblank,max=10"`
	PricePerHour float64 `json:"price_per_hour" validate:"gt=0"`
	Spots        int     `json:"spots" validate:"gte=0,lte=10000"`
}

type ResizeLotRequest struct {
	ChangeCount int    `json:"change_count" validate:"gte=1,lte=10000"`
	Action      string `json:"action" validate:"required,oneof=increase decrease"`
}

// LotSummary is a lot together with its computed spot counts.
type LotSummary struct {
	domain.ParkingLot
	AvailableSpots int64 `json:"available_spots"`
	OccupiedSpots  int64 `json:"occupied_spots"`
}

type StatusCount struct {
	LotID     int64 `json:"lot_id"`
	Available int64 `json:"available"`
	Occupied  int64 `json:"occupied"`
}

func (s StatusCount) Total() int64 { return s.Available + s.Occupied }

// OpenReservation is the part of an open reservation shown next to its spot.
type OpenReservation struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	VehicleNumber string    `json:"vehicle_number"`
	ParkingTime   time.Time `json:"parking_time"`
}

type SpotView struct {
	domain.ParkingSpot
	CurrentReservation *OpenReservation `json:"current_reservation,omitempty"`
}

// ResizeResult reports how many spots a resize actually changed.
type ResizeResult struct {
	Lot     LotSummary `json:"lot"`
	Added   int        `json:"added"`
	Removed int        `json:"removed"`
}
