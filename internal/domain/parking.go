package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SpotStatus string

const (
	SpotAvailable SpotStatus = "A"
	SpotOccupied  SpotStatus = "O"
)

const spotLabelPrefix = "Spot-"

type ParkingLot struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	Address      string    `json:"address" gorm:"type:text;not null"`
	Pincode      string    `json:"pincode" gorm:"size:10;not null"`
	PricePerHour float64   `json:"price_per_hour" gorm:"not null"`
	MaxSpots     int       `json:"max_spots" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ParkingLot) TableName() string { return "parking_lots" }

// ParkingSpot belongs to exactly one lot for its whole life.
type ParkingSpot struct {
	ID         int64      `json:"id" gorm:"primaryKey"`
	LotID      int64      `json:"lot_id" gorm:"not null;index"`
	SpotNumber string     `json:"spot_number" gorm:"size:20;not null"`
	Status     SpotStatus `json:"status" gorm:"size:1;not null;default:A;index"`
	CreatedAt  time.Time  `json:"created_at"`

	Lot *ParkingLot `json:"-" gorm:"foreignKey:LotID;constraint:OnDelete:CASCADE"`
}

func (ParkingSpot) TableName() string { return "parking_spots" }

func (s *ParkingSpot) IsAvailable() bool { return s.Status == SpotAvailable }

// SpotLabel returns the label of the n-th spot of a lot (1-based).
func SpotLabel(n int) string {
	return fmt.Sprintf("%s%d", spotLabelPrefix, n)
}

// SpotOrdinal parses the numeric suffix of a spot label. Labels that do not
// follow the Spot-N scheme report ok=false.
func SpotOrdinal(label string) (n int, ok bool) {
	if !strings.HasPrefix(label, spotLabelPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(label, spotLabelPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
