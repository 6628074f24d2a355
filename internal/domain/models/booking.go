package models

import (
	"time"

	"busease/internal/domain"
)

// Booking is one user's reservation of seats on a schedule.
type Booking struct {
	ID          domain.ID     `json:"id"`
	UserID      domain.ID     `json:"userId"`
	ScheduleID  domain.ID     `json:"scheduleId"`
	SeatNumbers []int         `json:"seatNumbers"`
	TotalPrice  float64       `json:"totalPrice"`
	BookingDate time.Time     `json:"bookingDate"`
	Status      domain.Status `json:"status"`
}

// BookingUpdate carries the fields a PUT may change; nil means untouched.
type BookingUpdate struct {
	SeatNumbers []int
	Status      *domain.Status
	TotalPrice  *float64
}

// BookingFilter narrows booking listings. Zero values match everything.
type BookingFilter struct {
	UserID     domain.ID
	ScheduleID domain.ID
	Status     domain.Status
}

// BookingView is a booking with its schedule and user populated.
type BookingView struct {
	Booking
	Schedule *ScheduleSummary `json:"schedule"`
	User     *PublicUser      `json:"user"`
}
