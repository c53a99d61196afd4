package parking

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parkinglot/internal/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateLot(ctx context.Context, lot *domain.ParkingLot, spots int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lot.MaxSpots = spots
		if err := tx.Create(lot).Error; err != nil {
			return err
		}
		if spots == 0 {
			return nil
		}

		rows := make([]domain.ParkingSpot, 0, spots)
		for i := 1; i <= spots; i++ {
			rows = append(rows, domain.ParkingSpot{
				LotID:      lot.ID,
				SpotNumber: domain.SpotLabel(i),
				Status:     domain.SpotAvailable,
			})
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
}

func (r *repository) GetLot(ctx context.Context, id int64) (*domain.ParkingLot, error) {
	var lot domain.ParkingLot
	if err := r.db.WithContext(ctx).First(&lot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

func (r *repository) ListLots(ctx context.Context) ([]domain.ParkingLot, error) {
	var lots []domain.ParkingLot
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

type statusRow struct {
	LotID  int64
	Status domain.SpotStatus
	N      int64
}

func (r *repository) CountByStatus(ctx context.Context, lotID int64) (StatusCount, error) {
	var rows []statusRow
	err := r.db.WithContext(ctx).
		Model(&domain.ParkingSpot{}).
		Select("lot_id, status, COUNT(*) AS n").
		Where("lot_id = ?", lotID).
		Group("lot_id, status").
		Scan(&rows).Error
	if err != nil {
		return StatusCount{}, err
	}

	out := StatusCount{LotID: lotID}
	for _, row := range rows {
		out.add(row)
	}
	return out, nil
}

func (r *repository) CountAllByStatus(ctx context.Context) (map[int64]StatusCount, error) {
	var rows []statusRow
	err := r.db.WithContext(ctx).
		Model(&domain.ParkingSpot{}).
		Select("lot_id, status, COUNT(*) AS n").
		Group("lot_id, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]StatusCount)
	for _, row := range rows {
		c := out[row.LotID]
		c.LotID = row.LotID
		c.add(row)
		out[row.LotID] = c
	}
	return out, nil
}

func (c *StatusCount) add(row statusRow) {
	switch row.Status {
	case domain.SpotAvailable:
		c.Available += row.N
	case domain.SpotOccupied:
		c.Occupied += row.N
	}
}

// DeleteLot refuses to delete while any reservation, open or closed, points
// at the lot or one of its spots.
func (r *repository) DeleteLot(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockLot(tx, id); err != nil {
			return err
		}

		var refs int64
		err := tx.Model(&domain.Reservation{}).
			Where("lot_id = ? OR spot_id IN (?)", id,
				tx.Model(&domain.ParkingSpot{}).Select("id").Where("lot_id = ?", id)).
			Count(&refs).Error
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: %d reservation(s)", ErrConflict, refs)
		}

		if err := tx.Where("lot_id = ?", id).Delete(&domain.ParkingSpot{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.ParkingLot{}, id).Error
	})
}

// AddSpots appends n Available spots whose labels continue after the highest
// existing Spot-N label.
func (r *repository) AddSpots(ctx context.Context, lotID int64, n int) (int, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockLot(tx, lotID); err != nil {
			return err
		}

		var labels []string
		if err := tx.Model(&domain.ParkingSpot{}).Where("lot_id = ?", lotID).Pluck("spot_number", &labels).Error; err != nil {
			return err
		}
		next := 1
		for _, label := range labels {
			if ord, ok := domain.SpotOrdinal(label); ok && ord >= next {
				next = ord + 1
			}
		}

		rows := make([]domain.ParkingSpot, 0, n)
		for i := 0; i < n; i++ {
			rows = append(rows, domain.ParkingSpot{
				LotID:      lotID,
				SpotNumber: domain.SpotLabel(next + i),
				Status:     domain.SpotAvailable,
			})
		}
		if err := tx.CreateInBatches(&rows, 500).Error; err != nil {
			return err
		}

		return tx.Model(&domain.ParkingLot{}).
			Where("id = ?", lotID).
			Update("max_spots", gorm.Expr("max_spots + ?", n)).Error
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RemoveAvailableSpots deletes up to n Available spots, newest first. Occupied
// spots are never touched, so fewer than n may be removed.
func (r *repository) RemoveAvailableSpots(ctx context.Context, lotID int64, n int) (int, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockLot(tx, lotID); err != nil {
			return err
		}

		var ids []int64
		err := tx.Model(&domain.ParkingSpot{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lot_id = ? AND status = ?", lotID, domain.SpotAvailable).
			Order("id DESC").
			Limit(n).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Where("id IN ? AND status = ?", ids, domain.SpotAvailable).Delete(&domain.ParkingSpot{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		return tx.Model(&domain.ParkingLot{}).
			Where("id = ?", lotID).
			Update("max_spots", gorm.Expr("max_spots - ?", removed)).Error
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func (r *repository) ListSpots(ctx context.Context, lotID int64) ([]SpotView, error) {
	var spots []domain.ParkingSpot
	if err := r.db.WithContext(ctx).Where("lot_id = ?", lotID).Order("id ASC").Find(&spots).Error; err != nil {
		return nil, err
	}

	var open []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("lot_id = ? AND leaving_time IS NULL", lotID).
		Find(&open).Error
	if err != nil {
		return nil, err
	}
	bySpot := make(map[int64]*OpenReservation, len(open))
	for _, res := range open {
		bySpot[res.SpotID] = &OpenReservation{
			ID:            res.ID,
			UserID:        res.UserID,
			VehicleNumber: res.VehicleNumber,
			ParkingTime:   res.ParkingTime,
		}
	}

	out := make([]SpotView, 0, len(spots))
	for _, s := range spots {
		out = append(out, SpotView{ParkingSpot: s, CurrentReservation: bySpot[s.ID]})
	}
	return out, nil
}

func lockLot(tx *gorm.DB, id int64) (*domain.ParkingLot, error) {
	var lot domain.ParkingLot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lot, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}
