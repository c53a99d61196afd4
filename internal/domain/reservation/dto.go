package reservation

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	RecentLimit      = 5
)

type ReserveRequest struct {
	LotID         int64  `json:"-" validate:"gt=0"`
	VehicleNumber string `json:"vehicle_number" validate:"required,notblank,max=20"`
}

// Identity is the authenticated caller as extracted from the access token.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

// View is a reservation joined with the labels shown to users.
type View struct {
	ID            int64      `json:"id"`
	SpotID        int64      `json:"spot_id"`
	LotID         int64      `json:"lot_id"`
	UserID        int64      `json:"user_id"`
	VehicleNumber string     `json:"vehicle_number"`
	ParkingTime   time.Time  `json:"parking_time"`
	LeavingTime   null.Time  `json:"leaving_time"`
	TotalCost     null.Float `json:"total_cost"`
	SpotLabel     string     `json:"spot_label"`
	LotName       string     `json:"lot_name"`
}

func (v View) IsOpen() bool { return !v.LeavingTime.Valid }

type Receipt struct {
	ReservationID int64     `json:"reservation_id"`
	SpotLabel     string    `json:"spot_label"`
	LotName       string    `json:"lot_name"`
	Cost          float64   `json:"cost"`
	DurationHours float64   `json:"duration_hours"`
	ParkingTime   time.Time `json:"parking_time"`
	LeavingTime   time.Time `json:"leaving_time"`
	Purged        bool      `json:"purged"`
}

type LotReservationCount struct {
	LotID        int64  `json:"lot_id"`
	LotName      string `json:"lot_name"`
	Reservations int64  `json:"reservations"`
}

type UserSummary struct {
	Recent            []View                `json:"recent"`
	PerLot            []LotReservationCount `json:"per_lot"`
	TotalReservations int64                 `json:"total_reservations"`
	OpenReservations  int64                 `json:"open_reservations"`
	TotalSpent        float64               `json:"total_spent"`
}

// ListQuery selects a user's reservations; Open restricts to unreleased ones.
type ListQuery struct {
	Open  bool `form:"open"`
	Limit int  `form:"limit" validate:"gte=0,lte=100"`
}
