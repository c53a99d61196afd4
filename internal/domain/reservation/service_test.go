package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parkinglot/internal/database"
	"parkinglot/internal/domain"
	"parkinglot/internal/domain/parking"
	"parkinglot/internal/pkg/clock"
)

var testStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Broadcast(lotID int64, eventType string, payload any) {
	m.Called(lotID, eventType, payload)
}

type fixture struct {
	db    *gorm.DB
	clock *clock.Manual
	svc   *Service
	lots  *parking.Service
}

func setupFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	clk := clock.NewManual(testStart)
	return &fixture{
		db:    db,
		clock: clk,
		svc:   NewService(NewRepository(db), clk, nil, opts),
		lots:  parking.NewService(parking.NewRepository(db), nil),
	}
}

func (f *fixture) lot(t *testing.T, name string, spots int, price float64) int64 {
	t.Helper()
	lot, err := f.lots.CreateLot(context.Background(), parking.CreateLotRequest{
		Name: name, Address: "1 Ring Road", Pincode: "110001", PricePerHour: price, Spots: spots,
	})
	require.NoError(t, err)
	return lot.ID
}

func (f *fixture) user(t *testing.T, name string) int64 {
	t.Helper()
	u := domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.db.Create(&u).Error)
	return u.ID
}

func (f *fixture) spotStatus(t *testing.T, spotID int64) domain.SpotStatus {
	t.Helper()
	var spot domain.ParkingSpot
	require.NoError(t, f.db.First(&spot, spotID).Error)
	return spot.Status
}

func (f *fixture) counts(t *testing.T, lotID int64) *parking.StatusCount {
	t.Helper()
	c, err := f.lots.CountByStatus(context.Background(), lotID)
	require.NoError(t, err)
	return c
}

func TestReserve_LowestAvailableSpot(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 3, 10)
	alice := f.user(t, "alice")

	first, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: " ka01ab1234 "}, alice)
	require.NoError(t, err)
	assert.Equal(t, "Spot-1", first.SpotLabel)
	assert.Equal(t, "Central", first.LotName)
	assert.Equal(t, "KA01AB1234", first.VehicleNumber)
	assert.True(t, first.ParkingTime.Equal(testStart))
	assert.True(t, first.IsOpen())

	second, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "KA02"}, alice)
	require.NoError(t, err)
	assert.Equal(t, "Spot-2", second.SpotLabel)

	assert.Equal(t, domain.SpotOccupied, f.spotStatus(t, first.SpotID))
	c := f.counts(t, lotID)
	assert.Equal(t, int64(1), c.Available)
	assert.Equal(t, int64(2), c.Occupied)
}

func TestReserve_NoAvailability(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Tiny", 1, 10)
	alice := f.user(t, "alice")

	_, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A2"}, alice)
	assert.ErrorIs(t, err, ErrNoAvailability)

	empty := f.lot(t, "Empty", 0, 10)
	_, err = f.svc.Reserve(ctx, ReserveRequest{LotID: empty, VehicleNumber: "A3"}, alice)
	assert.ErrorIs(t, err, ErrNoAvailability)
}

func TestReserve_UnknownLotAndValidation(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 1, 10)
	alice := f.user(t, "alice")

	_, err := f.svc.Reserve(ctx, ReserveRequest{LotID: 999, VehicleNumber: "A1"}, alice)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "   "}, alice)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "ABCDEFGHIJKLMNOPQRSTUVWXYZ"}, alice)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, int64(1), f.counts(t, lotID).Available)
}

func TestReserve_ConcurrentCallersGetOneSpot(t *testing.T) {
	f := setupFixture(t, Options{})
	lotID := f.lot(t, "Last", 1, 10)

	const callers = 16
	users := make([]int64, callers)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("driver%d", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		refused int
		other   []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			<-start
			_, err := f.svc.Reserve(context.Background(), ReserveRequest{LotID: lotID, VehicleNumber: "CAR"}, userID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrNoAvailability):
				refused++
			default:
				other = append(other, err)
			}
		}(users[i])
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, won)
	assert.Equal(t, callers-1, refused)

	var open int64
	require.NoError(t, f.db.Model(&domain.Reservation{}).Where("lot_id = ? AND leaving_time IS NULL", lotID).Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestRelease_BillsAndFreesSpot(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 2, 10)
	alice := f.user(t, "alice")

	view, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)

	f.clock.Advance(150 * time.Minute)
	receipt, err := f.svc.Release(ctx, view.ID, Identity{UserID: alice})
	require.NoError(t, err)

	assert.Equal(t, view.ID, receipt.ReservationID)
	assert.Equal(t, "Spot-1", receipt.SpotLabel)
	assert.Equal(t, "Central", receipt.LotName)
	assert.InDelta(t, 25.0, receipt.Cost, 1e-9)
	assert.InDelta(t, 2.5, receipt.DurationHours, 1e-9)
	assert.True(t, receipt.LeavingTime.Equal(testStart.Add(150*time.Minute)))
	assert.False(t, receipt.Purged)

	assert.Equal(t, domain.SpotAvailable, f.spotStatus(t, view.SpotID))

	var stored domain.Reservation
	require.NoError(t, f.db.First(&stored, view.ID).Error)
	assert.False(t, stored.IsOpen())
	assert.InDelta(t, 25.0, stored.TotalCost.Float64, 1e-9)
}

func TestRelease_ShortStayBillsOneHour(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 1, 10)
	alice := f.user(t, "alice")

	view, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	receipt, err := f.svc.Release(ctx, view.ID, Identity{UserID: alice})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, receipt.Cost, 1e-9)
}

func TestRelease_TwiceIsRejected(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 2, 10)
	alice := f.user(t, "alice")

	view, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	first, err := f.svc.Release(ctx, view.ID, Identity{UserID: alice})
	require.NoError(t, err)

	// the spot is reallocated before the second release attempt
	again, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "B2"}, alice)
	require.NoError(t, err)
	require.Equal(t, view.SpotID, again.SpotID)

	f.clock.Advance(5 * time.Hour)
	_, err = f.svc.Release(ctx, view.ID, Identity{UserID: alice})
	assert.ErrorIs(t, err, ErrAlreadyReleased)

	var stored domain.Reservation
	require.NoError(t, f.db.First(&stored, view.ID).Error)
	assert.InDelta(t, first.Cost, stored.TotalCost.Float64, 1e-9)
	assert.Equal(t, domain.SpotOccupied, f.spotStatus(t, view.SpotID))
}

func TestRelease_Ownership(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 2, 10)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	admin := f.user(t, "root")

	view, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)

	_, err = f.svc.Release(ctx, view.ID, Identity{UserID: bob})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, domain.SpotOccupied, f.spotStatus(t, view.SpotID))

	_, err = f.svc.Release(ctx, view.ID, Identity{UserID: admin, IsAdmin: true})
	assert.NoError(t, err)

	_, err = f.svc.Release(ctx, 4242, Identity{UserID: alice})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelease_PurgeDeletesExactReservation(t *testing.T) {
	f := setupFixture(t, Options{PurgeOnRelease: true})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 2, 10)
	alice := f.user(t, "alice")

	first, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)
	second, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "A2"}, alice)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	receipt, err := f.svc.Release(ctx, second.ID, Identity{UserID: alice})
	require.NoError(t, err)
	assert.True(t, receipt.Purged)

	var ids []int64
	require.NoError(t, f.db.Model(&domain.Reservation{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, []int64{first.ID}, ids)
	assert.Equal(t, domain.SpotAvailable, f.spotStatus(t, second.SpotID))

	_, err = f.svc.Release(ctx, second.ID, Identity{UserID: alice})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReserveAndRelease_Broadcast(t *testing.T) {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	events := new(mockBroadcaster)
	events.On("Broadcast", mock.Anything, EventSpotReserved, mock.Anything).Return().Once()
	events.On("Broadcast", mock.Anything, EventSpotReleased, mock.Anything).Return().Once()

	lots := parking.NewService(parking.NewRepository(db), nil)
	lot, err := lots.CreateLot(context.Background(), parking.CreateLotRequest{
		Name: "Live", Address: "x", Pincode: "1", PricePerHour: 5, Spots: 1,
	})
	require.NoError(t, err)
	u := domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)

	svc := NewService(NewRepository(db), clock.NewManual(testStart), events, Options{})
	view, err := svc.Reserve(context.Background(), ReserveRequest{LotID: lot.ID, VehicleNumber: "A1"}, u.ID)
	require.NoError(t, err)
	_, err = svc.Release(context.Background(), view.ID, Identity{UserID: u.ID})
	require.NoError(t, err)

	events.AssertExpectations(t)
}

func TestListForUser(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 5, 10)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	var ids []int64
	for i := 0; i < 3; i++ {
		v, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: fmt.Sprintf("A%d", i)}, alice)
		require.NoError(t, err)
		ids = append(ids, v.ID)
		f.clock.Advance(10 * time.Minute)
	}
	_, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "B1"}, bob)
	require.NoError(t, err)
	_, err = f.svc.Release(ctx, ids[0], Identity{UserID: alice})
	require.NoError(t, err)

	open, err := f.svc.ListForUser(ctx, alice, ListQuery{Open: true})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, ids[1], open[0].ID)
	assert.Equal(t, ids[2], open[1].ID)
	assert.Equal(t, "Spot-2", open[0].SpotLabel)

	limited, err := f.svc.ListForUser(ctx, alice, ListQuery{Open: true, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	history, err := f.svc.ListForUser(ctx, alice, ListQuery{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID)
	assert.False(t, history[2].IsOpen())

	_, err = f.svc.ListForUser(ctx, alice, ListQuery{Limit: 500})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSummaryAndCountsPerLot(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	north := f.lot(t, "North", 3, 10)
	south := f.lot(t, "South", 3, 20)
	idle := f.lot(t, "Idle", 1, 5)
	alice := f.user(t, "alice")

	a, err := f.svc.Reserve(ctx, ReserveRequest{LotID: north, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)
	b, err := f.svc.Reserve(ctx, ReserveRequest{LotID: south, VehicleNumber: "A1"}, alice)
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, ReserveRequest{LotID: south, VehicleNumber: "A2"}, alice)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Release(ctx, a.ID, Identity{UserID: alice})
	require.NoError(t, err)
	_, err = f.svc.Release(ctx, b.ID, Identity{UserID: alice})
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalReservations)
	assert.Equal(t, int64(1), summary.OpenReservations)
	assert.InDelta(t, 60.0, summary.TotalSpent, 1e-9)
	assert.Len(t, summary.Recent, 3)
	assert.Equal(t, []LotReservationCount{
		{LotID: north, LotName: "North", Reservations: 1},
		{LotID: south, LotName: "South", Reservations: 2},
	}, summary.PerLot)

	counts, err := f.svc.CountsPerLot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LotReservationCount{
		{LotID: north, LotName: "North", Reservations: 1},
		{LotID: south, LotName: "South", Reservations: 2},
		{LotID: idle, LotName: "Idle", Reservations: 0},
	}, counts)

	empty, err := f.svc.Summary(ctx, f.user(t, "nobody"))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalReservations)
	assert.Empty(t, empty.Recent)
}

func TestPruneHistory(t *testing.T) {
	f := setupFixture(t, Options{})
	ctx := context.Background()
	lotID := f.lot(t, "Central", 3, 10)
	alice := f.user(t, "alice")

	old, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "OLD"}, alice)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.Release(ctx, old.ID, Identity{UserID: alice})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	recent, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "NEW"}, alice)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.Release(ctx, recent.ID, Identity{UserID: alice})
	require.NoError(t, err)

	open, err := f.svc.Reserve(ctx, ReserveRequest{LotID: lotID, VehicleNumber: "OPEN"}, alice)
	require.NoError(t, err)

	n, err := f.svc.PruneHistory(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.PruneHistory(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var ids []int64
	require.NoError(t, f.db.Model(&domain.Reservation{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, []int64{recent.ID, open.ID}, ids)
}
