package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chatNow = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

type stubLedger struct {
	bookings  map[domain.ID][]models.BookingView
	cancelled []domain.ID
	cancelErr error
}

func (l *stubLedger) ListUserBookings(_ context.Context, _ domain.RequestContext, userID domain.ID) ([]models.BookingView, error) {
	return l.bookings[userID], nil
}

func (l *stubLedger) ListOngoingBookings(_ context.Context, _ domain.RequestContext, userID domain.ID) ([]models.BookingView, error) {
	out := []models.BookingView{}
	for _, b := range l.bookings[userID] {
		if b.Status == domain.StatusOngoing {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *stubLedger) CancelBooking(_ context.Context, actor domain.RequestContext, id domain.ID) (models.BookingView, error) {
	if l.cancelErr != nil {
		return models.BookingView{}, l.cancelErr
	}
	for _, b := range l.bookings[actor.UserID] {
		if b.ID == id {
			l.cancelled = append(l.cancelled, id)
			b.Status = domain.StatusCancelled
			return b, nil
		}
	}
	return models.BookingView{}, domain.NotFoundError{Resource: "Booking"}
}

type stubFinder struct {
	schedules []models.Schedule
	last      models.ScheduleFilter
}

func (f *stubFinder) List(_ context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	f.last = filter
	return f.schedules, nil
}

type stubGenerator struct {
	out    string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.out, g.err
}

type fixedDate struct {
	day time.Time
	ok  bool
}

func (d fixedDate) ParseDate(string, time.Time) (time.Time, bool) { return d.day, d.ok }

func busA() *models.ScheduleSummary {
	return &models.ScheduleSummary{
		ID:            4,
		Name:          "Bus A",
		Origin:        "George Town (Penang Sentral)",
		Destination:   "Kuala Lumpur (Tbs)",
		DepartureDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		DepartureTime: "10:00 AM",
	}
}

func newTestResolver(t *testing.T, ledger *stubLedger, finder *stubFinder, gen *stubGenerator, dates DateParser) Resolver {
	t.Helper()
	g, err := LoadGazetteer("")
	require.NoError(t, err)
	return Resolver{
		Bookings:  ledger,
		Schedules: finder,
		Generator: gen,
		Dates:     dates,
		Gazetteer: g,
		Loc:       time.UTC,
		Now:       func() time.Time { return chatNow },
	}
}

func TestResolverCancelFlow(t *testing.T) {
	ctx := context.Background()
	ledger := &stubLedger{bookings: map[domain.ID][]models.BookingView{
		1: {{Booking: models.Booking{ID: 11, UserID: 1, ScheduleID: 4, SeatNumbers: []int{3}, Status: domain.StatusOngoing}, Schedule: busA()}},
		2: {{Booking: models.Booking{ID: 22, UserID: 2, ScheduleID: 4, SeatNumbers: []int{5}, Status: domain.StatusOngoing}, Schedule: busA()}},
	}}
	r := newTestResolver(t, ledger, &stubFinder{}, &stubGenerator{}, nil)
	alice := domain.RequestContext{UserID: 1}

	reply, err := r.Resolve(ctx, alice, "cancel my booking", State{})
	require.NoError(t, err)
	assert.Contains(t, reply.Response, `reply "yes" to confirm`)
	assert.Equal(t, "confirm_cancel", reply.State.Phase())

	reply, err = r.Resolve(ctx, alice, "yes", reply.State)
	require.NoError(t, err)
	assert.Contains(t, reply.Response, "Booking ID: 11<br>")
	assert.Contains(t, reply.Response, "Bus Name: Bus A<br>")
	assert.Contains(t, reply.Response, "January 10, 2025")
	assert.NotContains(t, reply.Response, "Booking ID: 22")
	assert.Equal(t, "awaiting_booking_id", reply.State.Phase())

	reply, err = r.Resolve(ctx, alice, "22", reply.State)
	require.NoError(t, err)
	assert.Equal(t, replyInvalidBooking, reply.Response)
	assert.Equal(t, "awaiting_booking_id", reply.State.Phase())
	assert.Empty(t, ledger.cancelled)

	reply, err = r.Resolve(ctx, alice, "booking abc", reply.State)
	require.NoError(t, err)
	assert.Equal(t, replyMalformedBooking, reply.Response)
	assert.Equal(t, "awaiting_booking_id", reply.State.Phase())

	reply, err = r.Resolve(ctx, alice, " 11 ", reply.State)
	require.NoError(t, err)
	assert.Equal(t, "Your booking with ID 11 for Bus A on January 10, 2025 has been cancelled.", reply.Response)
	assert.Equal(t, "idle", reply.State.Phase())
	assert.Equal(t, []domain.ID{11}, ledger.cancelled)
}

func TestResolverCancelRequiresLogin(t *testing.T) {
	r := newTestResolver(t, &stubLedger{}, &stubFinder{}, &stubGenerator{}, nil)

	reply, err := r.Resolve(context.Background(), domain.RequestContext{}, "please cancel my ticket", State{})
	require.NoError(t, err)
	assert.Equal(t, replyLoginCancel, reply.Response)
	assert.Equal(t, "idle", reply.State.Phase())
}

func TestResolverCancelExclusions(t *testing.T) {
	gen := &stubGenerator{out: "You can cancel from **My Bookings**."}
	r := newTestResolver(t, &stubLedger{}, &stubFinder{}, gen, nil)
	alice := domain.RequestContext{UserID: 1}

	for _, q := range []string{"how do i cancel my booking", "can i cancel a seat booking", "who should i call to cancel my ticket"} {
		reply, err := r.Resolve(context.Background(), alice, q, State{})
		require.NoError(t, err, q)
		assert.Equal(t, "You can cancel from My Bookings.", reply.Response, q)
		assert.Equal(t, "idle", reply.State.Phase(), q)
	}
}

func TestResolverConfirmStep(t *testing.T) {
	ledger := &stubLedger{bookings: map[domain.ID][]models.BookingView{}}
	r := newTestResolver(t, ledger, &stubFinder{}, &stubGenerator{}, nil)
	alice := domain.RequestContext{UserID: 1}
	confirming := State{ConfirmCancel: true}

	reply, err := r.Resolve(context.Background(), alice, "hmm not sure", confirming)
	require.NoError(t, err)
	assert.Equal(t, replyConfirmReprompt, reply.Response)
	assert.Equal(t, "confirm_cancel", reply.State.Phase())

	// "yesterday" is not a whole-word "yes".
	reply, err = r.Resolve(context.Background(), alice, "yesterday", confirming)
	require.NoError(t, err)
	assert.Equal(t, replyConfirmReprompt, reply.Response)

	reply, err = r.Resolve(context.Background(), alice, "no thanks", confirming)
	require.NoError(t, err)
	assert.Equal(t, replyAnythingElse, reply.Response)
	assert.Equal(t, "idle", reply.State.Phase())

	reply, err = r.Resolve(context.Background(), alice, "yes", confirming)
	require.NoError(t, err)
	assert.Equal(t, replyNothingToCancel, reply.Response)
	assert.Equal(t, "idle", reply.State.Phase())
}

func TestResolverCancelPolicyResetsState(t *testing.T) {
	ledger := &stubLedger{
		bookings: map[domain.ID][]models.BookingView{
			1: {{Booking: models.Booking{ID: 11, UserID: 1, Status: domain.StatusOngoing}, Schedule: busA()}},
		},
		cancelErr: domain.PolicyViolationError{Code: domain.CodeCancellationWindowExpired, Msg: "Booking can only be cancelled 1 day before departure"},
	}
	r := newTestResolver(t, ledger, &stubFinder{}, &stubGenerator{}, nil)

	reply, err := r.Resolve(context.Background(), domain.RequestContext{UserID: 1}, "11", State{AwaitingBookingID: true})
	require.NoError(t, err)
	assert.Contains(t, reply.Response, "1 day before departure")
	assert.Equal(t, "idle", reply.State.Phase())
}

func TestResolverMyBookings(t *testing.T) {
	ledger := &stubLedger{bookings: map[domain.ID][]models.BookingView{
		1: {{Booking: models.Booking{ID: 11, UserID: 1, SeatNumbers: []int{3, 4}, Status: domain.StatusCompleted}, Schedule: busA()}},
	}}
	r := newTestResolver(t, ledger, &stubFinder{}, &stubGenerator{}, nil)

	reply, err := r.Resolve(context.Background(), domain.RequestContext{UserID: 1}, "show my bookings", State{})
	require.NoError(t, err)
	assert.Contains(t, reply.Response, "Here are your bookings:<br><br>")
	assert.Contains(t, reply.Response, "Origin: George Town (Penang Sentral)<br>")
	assert.Contains(t, reply.Response, "Seat Numbers: 3, 4<br>")
	assert.Contains(t, reply.Response, "Status: Completed<br>")

	reply, err = r.Resolve(context.Background(), domain.RequestContext{UserID: 7}, "show my bookings", State{})
	require.NoError(t, err)
	assert.Equal(t, replyNoBookings, reply.Response)

	reply, err = r.Resolve(context.Background(), domain.RequestContext{}, "show my bookings", State{})
	require.NoError(t, err)
	assert.Equal(t, replyLoginBookings, reply.Response)
}

func TestResolverAvailabilityNoBuses(t *testing.T) {
	friday := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	finder := &stubFinder{}
	r := newTestResolver(t, &stubLedger{}, finder, &stubGenerator{}, fixedDate{day: friday, ok: true})

	reply, err := r.Resolve(context.Background(), domain.RequestContext{}, "bus from george town to kuala lumpur on friday", State{})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, there are no buses available from George Town to Kuala Lumpur on January 10, 2025.", reply.Response)

	assert.Equal(t, "George Town (Penang Sentral)", finder.last.Origin)
	assert.Equal(t, "Kuala Lumpur (Tbs)", finder.last.Destination)
	require.NotNil(t, finder.last.Day)
	assert.True(t, finder.last.Day.Equal(friday))
	require.NotNil(t, finder.last.DepartingFrom)
	assert.True(t, finder.last.DepartingFrom.Equal(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)))
}

func TestResolverAvailabilityListsSchedules(t *testing.T) {
	finder := &stubFinder{schedules: []models.Schedule{{
		Name:          "Bus A",
		Price:         35,
		DepartureDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Seats:         []models.Seat{{Number: 1, IsBooked: true}, {Number: 2}, {Number: 3}},
	}}}
	r := newTestResolver(t, &stubLedger{}, finder, &stubGenerator{}, fixedDate{})

	// "to X from Y" puts the from-city first regardless of order.
	reply, err := r.Resolve(context.Background(), domain.RequestContext{}, "any bus to ipoh from kuala lumpur?", State{})
	require.NoError(t, err)
	assert.Contains(t, reply.Response, "Available buses from Kuala Lumpur (Tbs) to Ipoh (Terminal Amanjaya):<br><br>")
	assert.Contains(t, reply.Response, "Available Seats: 2<br>")
	assert.Contains(t, reply.Response, "Price: RM 35.00<br>")
	assert.Contains(t, reply.Response, "need more information.")
	assert.Nil(t, finder.last.Day)
	assert.Equal(t, "Kuala Lumpur (Tbs)", finder.last.Origin)

	reply, err = r.Resolve(context.Background(), domain.RequestContext{}, "kuantan melaka tengah buses", State{})
	require.NoError(t, err)
	assert.Equal(t, "Kuantan (Kuantan Sentral)", finder.last.Origin)
	assert.Equal(t, "Melaka Tengah", finder.last.Destination)
	assert.Contains(t, reply.Response, "Available buses from")
}

func TestResolverAvailabilityIgnoresVerbTo(t *testing.T) {
	finder := &stubFinder{}
	r := newTestResolver(t, &stubLedger{}, finder, &stubGenerator{}, fixedDate{})
	ctx := context.Background()

	for _, q := range []string{
		"i want to go from ipoh to kuala lumpur",
		"i need to travel from ipoh to kuala lumpur",
		"i want to go to kuala lumpur from ipoh",
	} {
		finder.last = models.ScheduleFilter{}
		reply, err := r.Resolve(ctx, domain.RequestContext{}, q, State{})
		require.NoError(t, err, q)
		assert.Equal(t, "Sorry, there are no buses available from Ipoh to Kuala Lumpur.", reply.Response, q)
		assert.Equal(t, "Ipoh (Terminal Amanjaya)", finder.last.Origin, q)
		assert.Equal(t, "Kuala Lumpur (Tbs)", finder.last.Destination, q)
	}

	// The only "to" names no city, so the from-city decides.
	finder.last = models.ScheduleFilter{}
	_, err := r.Resolve(ctx, domain.RequestContext{}, "kuantan trip, want to leave from ipoh", State{})
	require.NoError(t, err)
	assert.Equal(t, "Ipoh (Terminal Amanjaya)", finder.last.Origin)
	assert.Equal(t, "Kuantan (Kuantan Sentral)", finder.last.Destination)
}

func TestResolverAvailabilityNeedsBothCities(t *testing.T) {
	r := newTestResolver(t, &stubLedger{}, &stubFinder{}, &stubGenerator{}, fixedDate{})
	ctx := context.Background()

	cases := map[string]string{
		"bus from ipoh":                        replyNeedDestination,
		"bus to ipoh":                          replyNeedOrigin,
		"ipoh schedules":                       replyNeedBoth,
		"from ipoh to kuantan or kota bharu":   replyManyCities,
		"bus stopping in tokai, ipoh and muar": replyManyCities,
	}
	for q, want := range cases {
		reply, err := r.Resolve(ctx, domain.RequestContext{}, q, State{})
		require.NoError(t, err, q)
		assert.Equal(t, want, reply.Response, q)
	}
}

func TestResolverGenerativeFallback(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	r := newTestResolver(t, &stubLedger{}, &stubFinder{}, gen, nil)

	reply, err := r.Resolve(context.Background(), domain.RequestContext{}, "what payment methods do you take?", State{})
	require.NoError(t, err)
	assert.Equal(t, ReplyFallback, reply.Response)
	assert.Contains(t, gen.prompt, `User's Question: "what payment methods do you take?"`)

	gen.err, gen.out = nil, "  "
	reply, err = r.Resolve(context.Background(), domain.RequestContext{}, "hello", State{})
	require.NoError(t, err)
	assert.Equal(t, ReplyFallback, reply.Response)
}
