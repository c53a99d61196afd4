package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parkinglot/internal/domain"
)

// An allocation round locks at most candidateBatch Available spots.
const (
	candidateBatch  = 8
	allocateRetries = 3
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Allocate claims the lowest-id Available spot of the lot and opens a
// reservation on it in the same transaction. Each candidate is claimed with a
// conditional A->O update, so a spot taken by a concurrent caller is skipped.
func (r *repository) Allocate(ctx context.Context, lotID, userID int64, vehicle string, at time.Time) (*View, error) {
	var out *View
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lot domain.ParkingLot
		if err := tx.First(&lot, lotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLotNotFound
			}
			return err
		}

		for attempt := 0; attempt < allocateRetries; attempt++ {
			var candidates []domain.ParkingSpot
			err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("lot_id = ? AND status = ?", lotID, domain.SpotAvailable).
				Order("id ASC").
				Limit(candidateBatch).
				Find(&candidates).Error
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				return ErrNoAvailability
			}

			for _, spot := range candidates {
				claimed, err := claimSpot(tx, spot.ID)
				if err != nil {
					return err
				}
				if !claimed {
					continue
				}

				res := domain.Reservation{
					SpotID:        spot.ID,
					LotID:         lot.ID,
					UserID:        userID,
					VehicleNumber: vehicle,
					ParkingTime:   at.UTC(),
				}
				if err := tx.Create(&res).Error; err != nil {
					return err
				}
				out = &View{
					ID:            res.ID,
					SpotID:        res.SpotID,
					LotID:         res.LotID,
					UserID:        res.UserID,
					VehicleNumber: res.VehicleNumber,
					ParkingTime:   res.ParkingTime,
					SpotLabel:     spot.SpotNumber,
					LotName:       lot.Name,
				}
				return nil
			}
		}
		return ErrNoAvailability
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func claimSpot(tx *gorm.DB, spotID int64) (bool, error) {
	res := tx.Model(&domain.ParkingSpot{}).
		Where("id = ? AND status = ?", spotID, domain.SpotAvailable).
		Update("status", domain.SpotOccupied)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := r.db.WithContext(ctx).First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Release closes an open reservation: the spot goes back to Available, the
// leaving time and cost are stamped, and with purge the closed row is deleted.
// All of it commits together or not at all.
func (r *repository) Release(ctx context.Context, id int64, at time.Time, purge bool) (*Receipt, error) {
	at = at.UTC()
	var receipt *Receipt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res domain.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&res, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if !res.IsOpen() {
			return ErrAlreadyReleased
		}
		if at.Before(res.ParkingTime) {
			return fmt.Errorf("%w: leaving time %s precedes parking time %s", ErrValidation,
				at.Format(time.RFC3339), res.ParkingTime.Format(time.RFC3339))
		}

		var spot domain.ParkingSpot
		if err := tx.First(&spot, res.SpotID).Error; err != nil {
			return err
		}
		var lot domain.ParkingLot
		if err := tx.First(&lot, res.LotID).Error; err != nil {
			return err
		}

		flip := tx.Model(&domain.ParkingSpot{}).
			Where("id = ? AND status = ?", spot.ID, domain.SpotOccupied).
			Update("status", domain.SpotAvailable)
		if flip.Error != nil {
			return flip.Error
		}
		if flip.RowsAffected != 1 {
			return fmt.Errorf("release reservation %d: %w (spot %d)", res.ID, errSpotNotOccupied, spot.ID)
		}

		cost := ComputeCost(res.ParkingTime, at, lot.PricePerHour)
		closed := tx.Model(&domain.Reservation{}).
			Where("id = ? AND leaving_time IS NULL", res.ID).
			Updates(map[string]any{"leaving_time": at, "total_cost": cost})
		if closed.Error != nil {
			return closed.Error
		}
		if closed.RowsAffected != 1 {
			return ErrAlreadyReleased
		}

		if purge {
			if err := tx.Delete(&domain.Reservation{}, res.ID).Error; err != nil {
				return err
			}
		}

		receipt = &Receipt{
			ReservationID: res.ID,
			SpotLabel:     spot.SpotNumber,
			LotName:       lot.Name,
			Cost:          cost,
			DurationHours: BillableHours(res.ParkingTime, at),
			ParkingTime:   res.ParkingTime,
			LeavingTime:   at,
			Purged:        purge,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (r *repository) viewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("reservations AS r").
		Select("r.id, r.spot_id, r.lot_id, r.user_id, r.vehicle_number, r.parking_time, " +
			"r.leaving_time, r.total_cost, s.spot_number AS spot_label, l.name AS lot_name").
		Joins("JOIN parking_spots s ON s.id = r.spot_id").
		Joins("JOIN parking_lots l ON l.id = r.lot_id")
}

// ListForUser returns open reservations oldest first, or the full history
// newest first.
func (r *repository) ListForUser(ctx context.Context, userID int64, q ListQuery) ([]View, error) {
	query := r.viewQuery(ctx).Where("r.user_id = ?", userID)
	if q.Open {
		query = query.Where("r.leaving_time IS NULL").Order("r.parking_time ASC, r.id ASC")
	} else {
		query = query.Order("r.parking_time DESC, r.id DESC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var out []View
	if err := query.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type totalsRow struct {
	Total     int64
	OpenCount int64
	Spent     float64
}

func (r *repository) UserTotals(ctx context.Context, userID int64) (*UserSummary, error) {
	var totals totalsRow
	err := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Select("COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN leaving_time IS NULL THEN 1 ELSE 0 END), 0) AS open_count, "+
			"COALESCE(SUM(total_cost), 0) AS spent").
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	var perLot []LotReservationCount
	err = r.db.WithContext(ctx).
		Table("reservations AS r").
		Select("l.id AS lot_id, l.name AS lot_name, COUNT(r.id) AS reservations").
		Joins("JOIN parking_lots l ON l.id = r.lot_id").
		Where("r.user_id = ?", userID).
		Group("l.id, l.name").
		Order("l.id ASC").
		Scan(&perLot).Error
	if err != nil {
		return nil, err
	}

	return &UserSummary{
		PerLot:            perLot,
		TotalReservations: totals.Total,
		OpenReservations:  totals.OpenCount,
		TotalSpent:        round2(totals.Spent),
	}, nil
}

// CountsPerLot reports every lot, including those with no reservations.
func (r *repository) CountsPerLot(ctx context.Context) ([]LotReservationCount, error) {
	var out []LotReservationCount
	err := r.db.WithContext(ctx).
		Table("parking_lots AS l").
		Select("l.id AS lot_id, l.name AS lot_name, COUNT(r.id) AS reservations").
		Joins("LEFT JOIN reservations r ON r.lot_id = l.id").
		Group("l.id, l.name").
		Order("l.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneClosedBefore deletes closed reservations that left before cutoff.
// Open reservations are never touched.
func (r *repository) PruneClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("leaving_time IS NOT NULL AND leaving_time < ?", cutoff.UTC()).
		Delete(&domain.Reservation{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
