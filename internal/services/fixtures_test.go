package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/repositories"

	"github.com/stretchr/testify/require"
)

// baseNow is a fixed "current time" for engine tests.
var baseNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type captureMailer struct {
	mu   sync.Mutex
	sent []Mail
}

func (m *captureMailer) Send(_ context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, Mail) error { return errors.New("smtp unavailable") }

type engineFixture struct {
	store  *repositories.MemoryStore
	svc    BookingService
	mailer *captureMailer
	events *recordingPublisher
	now    time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store:  repositories.NewMemoryStore(),
		mailer: &captureMailer{},
		events: &recordingPublisher{},
		now:    baseNow,
	}
	f.svc = BookingService{
		Store:  f.store,
		Mailer: f.mailer,
		Events: f.events,
		Loc:    time.UTC,
		Now:    func() time.Time { return f.now },
	}
	return f
}

func (f *engineFixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.store.CreateUser(context.Background(), &u))
	return u
}

// schedule creates a schedule departing at the given instant with seats 1..n.
func (f *engineFixture) schedule(t *testing.T, departure time.Time, seats int, price float64) models.Schedule {
	t.Helper()
	s := models.Schedule{
		Name:          "Express",
		Origin:        "Ipoh (Terminal Amanjaya)",
		Destination:   "Kuala Lumpur (Tbs)",
		Price:         price,
		DepartureDate: time.Date(departure.Year(), departure.Month(), departure.Day(), 0, 0, 0, 0, time.UTC),
		DepartureTime: departure.Format("3:04 PM"),
		ArrivalTime:   departure.Add(3 * time.Hour).Format("3:04 PM"),
		Duration:      "3h 0m",
		TotalSeats:    seats,
	}
	for n := 1; n <= seats; n++ {
		s.Seats = append(s.Seats, models.Seat{Number: n})
	}
	require.NoError(t, f.store.CreateSchedule(context.Background(), &s))
	return s
}

func owner(u models.User) domain.RequestContext {
	return domain.RequestContext{UserID: u.ID}
}

var admin = domain.RequestContext{UserID: 999, IsAdmin: true}

// requireSeatLedgerConsistent checks that the booked seats of a schedule are
// exactly the seats held by its ongoing and completed bookings, with no seat
// held twice.
func requireSeatLedgerConsistent(t *testing.T, store repositories.Store, scheduleID domain.ID) {
	t.Helper()
	ctx := context.Background()
	sched, err := store.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)
	bookings, err := store.ListBookings(ctx, models.BookingFilter{ScheduleID: scheduleID})
	require.NoError(t, err)

	held := map[int]domain.ID{}
	for _, b := range bookings {
		if !b.Status.HoldsSeats() {
			continue
		}
		for _, n := range b.SeatNumbers {
			other, dup := held[n]
			require.Falsef(t, dup, "seat %d held by bookings %d and %d", n, other, b.ID)
			held[n] = b.ID
		}
	}
	heldSeats := make([]int, 0, len(held))
	for n := range held {
		heldSeats = append(heldSeats, n)
	}
	sort.Ints(heldSeats)
	require.Equal(t, heldSeats, sched.BookedSeats())
}
