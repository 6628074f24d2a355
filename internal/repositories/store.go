package repositories

import (
	"context"

	"busease/internal/domain"
	"busease/internal/domain/models"
)

// Queries is the full persistence surface used by services.
// Inside WithTx every call joins the same transaction.
type Queries interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id domain.ID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id domain.ID, upd models.UserUpdate) error
	DeleteUser(ctx context.Context, id domain.ID) error

	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, id domain.ID) (models.Schedule, error)
	ListSchedules(ctx context.Context, f models.ScheduleFilter) ([]models.Schedule, error)
	UpdateSchedule(ctx context.Context, s *models.Schedule) error
	DeleteSchedule(ctx context.Context, id domain.ID) error

	// LockSeats returns the requested seats that exist, locked for the
	// rest of the transaction.
	LockSeats(ctx context.Context, scheduleID domain.ID, numbers []int) ([]models.Seat, error)
	AddSeats(ctx context.Context, scheduleID domain.ID, numbers []int) error
	// RemoveSeats deletes unbooked seats and returns how many were removed.
	RemoveSeats(ctx context.Context, scheduleID domain.ID, numbers []int) (int, error)
	// SetSeatsBooked flips only seats currently in the opposite state and
	// returns how many flipped.
	SetSeatsBooked(ctx context.Context, scheduleID domain.ID, numbers []int, booked bool) (int, error)

	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id domain.ID) (models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
	// SetBookingStatus moves a booking from one status to another and
	// reports false when the booking was not in the expected status.
	SetBookingStatus(ctx context.Context, id domain.ID, from, to domain.Status) (bool, error)
	DeleteBooking(ctx context.Context, id domain.ID) error
	DeleteBookingsBySchedule(ctx context.Context, scheduleID domain.ID) (int, error)
}

// Store adds transactions and health checks on top of Queries.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}

func scheduleNotFound(err error) error { return domain.NotFoundError{Resource: "Schedule", Err: err} }
func bookingNotFound(err error) error  { return domain.NotFoundError{Resource: "Booking", Err: err} }
func userNotFound(err error) error     { return domain.NotFoundError{Resource: "User", Err: err} }
