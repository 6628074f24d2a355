package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/events"
	"busease/internal/repositories"
	"busease/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	Store     repositories.Store
	Events    events.Publisher
	RequestID string
}

// UserPatch is the body of a user update; nil fields are left alone.
type UserPatch struct {
	Username *string
	Email    *string
	Phone    *string
	Img      *string
	Password *string
	IsAdmin  *bool
}

func (s UserService) Get(ctx context.Context, actor domain.RequestContext, id domain.ID) (models.PublicUser, error) {
	if !actor.CanActFor(id) {
		return models.PublicUser{}, domain.ForbiddenError{Msg: "You are not authorized!"}
	}
	u, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return models.PublicUser{}, err
	}
	return u.ToPublic(), nil
}

func (s UserService) List(ctx context.Context, actor domain.RequestContext) ([]models.PublicUser, error) {
	if !actor.IsAdmin {
		return nil, domain.ForbiddenError{Msg: "You are not authorized as an admin"}
	}
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	return out, nil
}

// Update changes profile fields. Username and admin flag only change when an
// admin asks for it.
func (s UserService) Update(ctx context.Context, actor domain.RequestContext, id domain.ID, p UserPatch) (models.PublicUser, error) {
	if !actor.CanActFor(id) {
		return models.PublicUser{}, domain.ForbiddenError{Msg: "You are not authorized!"}
	}

	var upd models.UserUpdate
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if email == "" || !strings.Contains(email, "@") {
			return models.PublicUser{}, domain.ValidationError{Field: "email", Msg: "a valid email is required"}
		}
		upd.Email = &email
	}
	if p.Phone != nil {
		phone := strings.TrimSpace(*p.Phone)
		if phone != "" && !utils.ValidPhone(phone) {
			return models.PublicUser{}, domain.ValidationError{Field: "phone", Msg: "phone number must be numeric"}
		}
		upd.Phone = &phone
	}
	upd.Img = p.Img
	if p.Password != nil {
		if *p.Password == "" {
			return models.PublicUser{}, domain.ValidationError{Field: "password", Msg: "password cannot be empty"}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*p.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.PublicUser{}, domain.InternalError{Msg: "failed to hash password", Err: err}
		}
		h := string(hash)
		upd.PasswordHash = &h
	}
	if actor.IsAdmin {
		if p.Username != nil {
			name := strings.TrimSpace(*p.Username)
			if name == "" {
				return models.PublicUser{}, domain.ValidationError{Field: "username", Msg: "username cannot be empty"}
			}
			upd.Username = &name
		}
		upd.IsAdmin = p.IsAdmin
	}

	var updated models.User
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		if _, err := q.GetUser(ctx, id); err != nil {
			return err
		}
		if err := q.UpdateUser(ctx, id, upd); err != nil {
			return err
		}
		var err error
		updated, err = q.GetUser(ctx, id)
		return err
	})
	if err != nil {
		return models.PublicUser{}, err
	}
	utils.LogEvent(s.RequestID, "users", "update", fmt.Sprintf("user_id=%d", id))
	return updated.ToPublic(), nil
}

// Delete releases the seats of the user's bookings, deletes the bookings and
// then the user, all in one transaction.
func (s UserService) Delete(ctx context.Context, actor domain.RequestContext, id domain.ID) error {
	if !actor.CanActFor(id) {
		return domain.ForbiddenError{Msg: "You are not authorized!"}
	}
	var removed []models.Booking
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		if _, err := q.GetUser(ctx, id); err != nil {
			return err
		}
		bookings, err := q.ListBookings(ctx, models.BookingFilter{UserID: id})
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if b.Status.HoldsSeats() {
				if err := releaseSeats(ctx, q, b.ScheduleID, b.SeatNumbers); err != nil {
					return err
				}
			}
			if err := q.DeleteBooking(ctx, b.ID); err != nil {
				return err
			}
		}
		removed = bookings
		return q.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}

	pub := s.Events
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	for _, b := range removed {
		evt := events.BookingEvent{
			BookingID:  int64(b.ID),
			UserID:     int64(b.UserID),
			ScheduleID: int64(b.ScheduleID),
			Seats:      b.SeatNumbers,
			Status:     string(b.Status),
			At:         time.Now(),
		}
		if err := pub.Publish(ctx, events.SubjectBookingDeleted, evt); err != nil {
			utils.LogError(s.RequestID, "users", "publish", err)
		}
	}
	utils.LogEvent(s.RequestID, "users", "delete", fmt.Sprintf("user_id=%d bookings_removed=%d", id, len(removed)))
	return nil
}
