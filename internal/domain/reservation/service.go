package reservation

import (
	"context"
	"log"
	"strings"
	"time"

	"parkinglot/internal/pkg/clock"
	"parkinglot/internal/pkg/validator"
)

const (
	EventSpotReserved = "spot_reserved"
	EventSpotReleased = "spot_released"
)

// Options tunes how the service treats closed reservations.
type Options struct {
	// PurgeOnRelease deletes a reservation as soon as it is released instead
	// of keeping it as history.
	PurgeOnRelease bool
}

type Service struct {
	repo   Repository
	clock  clock.Clock
	events Broadcaster
	opts   Options
}

func NewService(repo Repository, clk clock.Clock, events Broadcaster, opts Options) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{repo: repo, clock: clk, events: events, opts: opts}
}

// Reserve allocates the first Available spot of the lot to userID.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest, userID int64) (*View, error) {
	req.VehicleNumber = strings.ToUpper(strings.TrimSpace(req.VehicleNumber))
	if err := validator.Check(req, ErrValidation); err != nil {
		return nil, err
	}

	view, err := s.repo.Allocate(ctx, req.LotID, userID, req.VehicleNumber, s.clock.Now())
	if err != nil {
		return nil, err
	}
	log.Printf("reservation: reserved id=%d lot_id=%d spot=%s user_id=%d", view.ID, view.LotID, view.SpotLabel, userID)

	s.broadcast(view.LotID, EventSpotReserved, map[string]any{
		"reservation_id": view.ID,
		"spot_label":     view.SpotLabel,
	})
	return view, nil
}

// Release closes the reservation for its owner or an admin and returns the
// bill. Releasing twice yields ErrAlreadyReleased and changes nothing.
func (s *Service) Release(ctx context.Context, reservationID int64, requester Identity) (*Receipt, error) {
	res, err := s.repo.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != requester.UserID && !requester.IsAdmin {
		return nil, ErrForbidden
	}
	if !res.IsOpen() {
		return nil, ErrAlreadyReleased
	}

	receipt, err := s.repo.Release(ctx, reservationID, s.clock.Now(), s.opts.PurgeOnRelease)
	if err != nil {
		return nil, err
	}
	log.Printf("reservation: released id=%d lot_id=%d spot=%s cost=%.2f purged=%t",
		receipt.ReservationID, res.LotID, receipt.SpotLabel, receipt.Cost, receipt.Purged)

	s.broadcast(res.LotID, EventSpotReleased, map[string]any{
		"reservation_id": receipt.ReservationID,
		"spot_label":     receipt.SpotLabel,
	})
	return receipt, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64, q ListQuery) ([]View, error) {
	if err := validator.Check(q, ErrValidation); err != nil {
		return nil, err
	}
	if q.Limit == 0 {
		q.Limit = DefaultListLimit
	}
	out, err := s.repo.ListForUser(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []View{}
	}
	return out, nil
}

// Summary is the user dashboard: latest reservations, per-lot usage and the
// total billed so far.
func (s *Service) Summary(ctx context.Context, userID int64) (*UserSummary, error) {
	summary, err := s.repo.UserTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.ListForUser(ctx, userID, ListQuery{Limit: RecentLimit})
	if err != nil {
		return nil, err
	}
	summary.Recent = recent
	if summary.Recent == nil {
		summary.Recent = []View{}
	}
	if summary.PerLot == nil {
		summary.PerLot = []LotReservationCount{}
	}
	return summary, nil
}

func (s *Service) CountsPerLot(ctx context.Context) ([]LotReservationCount, error) {
	out, err := s.repo.CountsPerLot(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []LotReservationCount{}
	}
	return out, nil
}

// PruneHistory deletes reservations closed more than olderThan ago. A
// non-positive olderThan keeps history forever.
func (s *Service) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-olderThan)
	n, err := s.repo.PruneClosedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("reservation: history pruned cutoff=%s deleted=%d", cutoff.Format(time.RFC3339), n)
	return n, nil
}

func (s *Service) broadcast(lotID int64, eventType string, payload any) {
	if s.events != nil {
		s.events.Broadcast(lotID, eventType, payload)
	}
}
