package parking

import (
	"context"
	"log"
	"strings"

	"parkinglot/internal/domain"
	"parkinglot/internal/pkg/validator"
)

const (
	EventLotCreated = "lot_created"
	EventLotResized = "lot_resized"
	EventLotDeleted = "lot_deleted"
)

type Service struct {
	repo   Repository
	events Broadcaster
}

func NewService(repo Repository, events Broadcaster) *Service {
	return &Service{repo: repo, events: events}
}

func (s *Service) CreateLot(ctx context.Context, req CreateLotRequest) (*LotSummary, error) {
	if err := validator.Check(req, ErrValidation); err != nil {
		return nil, err
	}

	lot := &domain.ParkingLot{
		Name:         strings.TrimSpace(req.Name),
		Address:      strings.TrimSpace(req.Address),
		Pincode:      strings.TrimSpace(req.Pincode),
		PricePerHour: req.PricePerHour,
	}
	if err := s.repo.CreateLot(ctx, lot, req.Spots); err != nil {
		return nil, err
	}
	log.Printf("parking: lot created id=%d name=%q spots=%d", lot.ID, lot.Name, lot.MaxSpots)

	summary := &LotSummary{ParkingLot: *lot, AvailableSpots: int64(req.Spots)}
	s.broadcast(lot.ID, EventLotCreated, summary)
	return summary, nil
}

func (s *Service) GetLot(ctx context.Context, id int64) (*LotSummary, error) {
	lot, err := s.repo.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LotSummary{ParkingLot: *lot, AvailableSpots: counts.Available, OccupiedSpots: counts.Occupied}, nil
}

func (s *Service) ListLots(ctx context.Context) ([]LotSummary, error) {
	lots, err := s.repo.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountAllByStatus(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]LotSummary, 0, len(lots))
	for _, lot := range lots {
		c := counts[lot.ID]
		out = append(out, LotSummary{ParkingLot: lot, AvailableSpots: c.Available, OccupiedSpots: c.Occupied})
	}
	return out, nil
}

func (s *Service) CountByStatus(ctx context.Context, lotID int64) (*StatusCount, error) {
	if _, err := s.repo.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

func (s *Service) DeleteLot(ctx context.Context, id int64) error {
	if err := s.repo.DeleteLot(ctx, id); err != nil {
		return err
	}
	log.Printf("parking: lot deleted id=%d", id)
	s.broadcast(id, EventLotDeleted, map[string]int64{"lot_id": id})
	return nil
}

// ResizeLot grows or shrinks a lot. Shrinking only removes Available spots
// and stops short when there are not enough of them.
func (s *Service) ResizeLot(ctx context.Context, lotID int64, req ResizeLotRequest) (*ResizeResult, error) {
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	if err := validator.Check(req, ErrValidation); err != nil {
		return nil, err
	}

	result := &ResizeResult{}
	switch req.Action {
	case DirectionIncrease:
		added, err := s.repo.AddSpots(ctx, lotID, req.ChangeCount)
		if err != nil {
			return nil, err
		}
		result.Added = added
	case DirectionDecrease:
		removed, err := s.repo.RemoveAvailableSpots(ctx, lotID, req.ChangeCount)
		if err != nil {
			return nil, err
		}
		result.Removed = removed
		if removed < req.ChangeCount {
			log.Printf("parking: lot resize short lot_id=%d requested=%d removed=%d", lotID, req.ChangeCount, removed)
		}
	}

	summary, err := s.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	result.Lot = *summary

	s.broadcast(lotID, EventLotResized, summary)
	return result, nil
}

func (s *Service) ListSpots(ctx context.Context, lotID int64) ([]SpotView, error) {
	if _, err := s.repo.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return s.repo.ListSpots(ctx, lotID)
}

func (s *Service) broadcast(lotID int64, eventType string, payload any) {
	if s.events != nil {
		s.events.Broadcast(lotID, eventType, payload)
	}
}
