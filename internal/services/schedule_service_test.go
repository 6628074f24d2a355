package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"busease/internal/cache"
	"busease/internal/domain"
	"busease/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRouter struct {
	calls int
	est   RouteEstimate
	err   error
}

func (r *stubRouter) Estimate(context.Context, string, string, []string) (RouteEstimate, error) {
	r.calls++
	return r.est, r.err
}

func ptr[T any](v T) *T { return &v }

func newScheduleInput() ScheduleInput {
	return ScheduleInput{
		Name:          ptr("Bus A"),
		Origin:        ptr("George Town (Penang Sentral)"),
		Destination:   ptr("Kuala Lumpur (Tbs)"),
		Price:         ptr(35.5),
		DepartureDate: ptr(time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)),
		DepartureTime: ptr("10:30 AM"),
		ArrivalTime:   ptr("3:00 PM"),
		Stops:         []models.Stop{{StopName: "Ipoh", ArrivalTime: "12:30 PM"}},
		Amenities:     []string{"wifi"},
		TotalSeats:    ptr(4),
	}
}

func TestScheduleServiceCreate_PopulatesSeatsAndDuration(t *testing.T) {
	f := newEngineFixture(t)
	svc := ScheduleService{Store: f.store, Loc: time.UTC}

	s, err := svc.Create(context.Background(), newScheduleInput())
	require.NoError(t, err)
	assert.Equal(t, "4h 30m", s.Duration)
	require.Len(t, s.Seats, 4)
	for i, seat := range s.Seats {
		assert.Equal(t, i+1, seat.Number)
		assert.False(t, seat.IsBooked)
	}

	in := newScheduleInput()
	in.TotalSeats = ptr(0)
	_, err = svc.Create(context.Background(), in)
	assert.True(t, domain.IsValidation(err))

	in = newScheduleInput()
	in.DepartureTime = ptr("25:00")
	_, err = svc.Create(context.Background(), in)
	assert.True(t, domain.IsValidation(err))
}

func TestScheduleServiceUpdate_ReconcilesSeatInventory(t *testing.T) {
	f := newEngineFixture(t)
	svc := ScheduleService{Store: f.store, Loc: time.UTC}
	ctx := context.Background()
	u := f.user(t, "amir")

	s, err := svc.Create(ctx, newScheduleInput())
	require.NoError(t, err)
	_, err = f.svc.BookSeats(ctx, owner(u), BookSeatsInput{ScheduleID: s.ID, UserID: u.ID, SeatNumbers: []int{3}})
	require.NoError(t, err)

	grown, err := svc.Update(ctx, s.ID, ScheduleInput{TotalSeats: ptr(6), ArrivalTime: ptr("4:15 PM")})
	require.NoError(t, err)
	assert.Equal(t, 6, grown.TotalSeats)
	assert.Len(t, grown.Seats, 6)
	assert.Equal(t, "5h 45m", grown.Duration)
	assert.Equal(t, []int{3}, grown.BookedSeats())

	_, err = svc.Update(ctx, s.ID, ScheduleInput{TotalSeats: ptr(2)})
	assert.True(t, domain.IsConflict(err))

	shrunk, err := svc.Update(ctx, s.ID, ScheduleInput{TotalSeats: ptr(3)})
	require.NoError(t, err)
	assert.Len(t, shrunk.Seats, 3)
	assert.Equal(t, []int{3}, shrunk.BookedSeats())
	requireSeatLedgerConsistent(t, f.store, s.ID)

	_, err = svc.Update(ctx, 404, ScheduleInput{TotalSeats: ptr(3)})
	assert.True(t, domain.IsNotFound(err))
}

func TestScheduleServiceDelete_CascadesBookings(t *testing.T) {
	f := newEngineFixture(t)
	svc := ScheduleService{Store: f.store, Loc: time.UTC}
	ctx := context.Background()
	u := f.user(t, "amir")

	s, err := svc.Create(ctx, newScheduleInput())
	require.NoError(t, err)
	res, err := f.svc.BookSeats(ctx, owner(u), BookSeatsInput{ScheduleID: s.ID, UserID: u.ID, SeatNumbers: []int{1}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, s.ID))
	_, err = f.store.GetBooking(ctx, res.Booking.ID)
	assert.True(t, domain.IsNotFound(err))
	_, err = f.store.GetSchedule(ctx, s.ID)
	assert.True(t, domain.IsNotFound(err))

	assert.True(t, domain.IsNotFound(svc.Delete(ctx, s.ID)))
}

func TestScheduleServiceList_Filters(t *testing.T) {
	f := newEngineFixture(t)
	svc := ScheduleService{Store: f.store, Loc: time.UTC}
	ctx := context.Background()

	_, err := svc.Create(ctx, newScheduleInput())
	require.NoError(t, err)
	other := newScheduleInput()
	other.Origin = ptr("Ipoh (Terminal Amanjaya)")
	other.Amenities = []string{"usb"}
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	list, err := svc.List(ctx, models.ScheduleFilter{Origin: "george town (penang sentral)"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "George Town (Penang Sentral)", list[0].Origin)

	list, err = svc.List(ctx, models.ScheduleFilter{Amenities: []string{"USB"}})
	require.NoError(t, err)
	require.Len(t, list, 1)

	day := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	list, err = svc.List(ctx, models.ScheduleFilter{Day: &day})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScheduleServiceRoute_UsesRouterAndCache(t *testing.T) {
	f := newEngineFixture(t)
	router := &stubRouter{est: RouteEstimate{Duration: 4*time.Hour + 10*time.Minute, DistanceKm: 355.2}}
	svc := ScheduleService{Store: f.store, Loc: time.UTC, Router: router, Cache: cache.NewMemory(time.Minute), CacheTTL: time.Minute}
	ctx := context.Background()

	s, err := svc.Create(ctx, newScheduleInput())
	require.NoError(t, err)

	info, err := svc.Route(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "4h 10m", info.DrivingDuration)
	assert.Equal(t, 355.2, info.DistanceKm)
	assert.Equal(t, "4h 30m", info.Duration)
	require.Len(t, info.Stops, 1)

	_, err = svc.Route(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, router.calls)

	_, err = svc.Update(ctx, s.ID, ScheduleInput{Name: ptr("Bus B")})
	require.NoError(t, err)
	_, err = svc.Route(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, router.calls)
}

func TestScheduleServiceRoute_ProviderFailureDegrades(t *testing.T) {
	f := newEngineFixture(t)
	svc := ScheduleService{Store: f.store, Loc: time.UTC, Router: &stubRouter{err: errors.New("quota")}}
	ctx := context.Background()

	s, err := svc.Create(ctx, newScheduleInput())
	require.NoError(t, err)

	info, err := svc.Route(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, info.DrivingDuration)
	assert.Equal(t, "George Town (Penang Sentral)", info.Origin)

	_, err = svc.Route(ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}
