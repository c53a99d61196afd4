package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// Reservation is open while LeavingTime and TotalCost are null and closed
// once release has stamped both.
type Reservation struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	SpotID        int64      `json:"spot_id" gorm:"not null;index"`
	LotID         int64      `json:"lot_id" gorm:"not null;index"`
	UserID        int64      `json:"user_id" gorm:"not null;index"`
	VehicleNumber string     `json:"vehicle_number" gorm:"size:20;not null"`
	ParkingTime   time.Time  `json:"parking_time" gorm:"not null;index"`
	LeavingTime   null.Time  `json:"leaving_time" gorm:"index"`
	TotalCost     null.Float `json:"total_cost"`

	Spot *ParkingSpot `json:"-" gorm:"foreignKey:SpotID;constraint:OnDelete:CASCADE"`
	Lot  *ParkingLot  `json:"-" gorm:"foreignKey:LotID;constraint:OnDelete:CASCADE"`
	User *User        `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (Reservation) TableName() string { return "reservations" }

func (r *Reservation) IsOpen() bool { return !r.LeavingTime.Valid }
