package models

import (
	"time"

	"busease/internal/domain"
)

// Seat is one entry of a schedule's seat inventory.
type Seat struct {
	Number   int  `json:"number"`
	IsBooked bool `json:"isBooked"`
}

// Stop is an intermediate stop on the itinerary.
type Stop struct {
	StopName    string `json:"stopName"`
	ArrivalTime string `json:"arrivalTime"`
}

// Schedule is one bookable bus trip.
type Schedule struct {
	ID            domain.ID `json:"id"`
	Name          string    `json:"name"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	Price         float64   `json:"price"`
	Photos        []string  `json:"photos"`
	DepartureDate time.Time `json:"departureDate"`
	DepartureTime string    `json:"departureTime"`
	ArrivalTime   string    `json:"arrivalTime"`
	Duration      string    `json:"duration"`
	Stops         []Stop    `json:"stops"`
	Amenities     []string  `json:"amenities"`
	Description   string    `json:"desc"`
	TotalSeats    int       `json:"totalSeats"`
	Seats         []Seat    `json:"seatNumbers"`
}

// AvailableSeats counts seats that are not booked.
func (s Schedule) AvailableSeats() int {
	n := 0
	for _, seat := range s.Seats {
		if !seat.IsBooked {
			n++
		}
	}
	return n
}

// BookedSeats returns the booked seat numbers in inventory order.
func (s Schedule) BookedSeats() []int {
	out := []int{}
	for _, seat := range s.Seats {
		if seat.IsBooked {
			out = append(out, seat.Number)
		}
	}
	return out
}

// ScheduleFilter narrows schedule listings. Zero values match everything.
type ScheduleFilter struct {
	Origin      string
	Destination string
	// Day restricts to one calendar date.
	Day *time.Time
	// DepartingFrom keeps schedules whose departure date is on or after it.
	DepartingFrom *time.Time
	Amenities     []string
}

// ScheduleSummary is the populated form embedded in booking responses.
type ScheduleSummary struct {
	ID            domain.ID `json:"id"`
	Name          string    `json:"name"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	Price         float64   `json:"price"`
	DepartureDate time.Time `json:"departureDate"`
	DepartureTime string    `json:"departureTime"`
	ArrivalTime   string    `json:"arrivalTime"`
	Duration      string    `json:"duration"`
	Stops         []Stop    `json:"stops"`
}

func (s Schedule) Summary() ScheduleSummary {
	return ScheduleSummary{
		ID:            s.ID,
		Name:          s.Name,
		Origin:        s.Origin,
		Destination:   s.Destination,
		Price:         s.Price,
		DepartureDate: s.DepartureDate,
		DepartureTime: s.DepartureTime,
		ArrivalTime:   s.ArrivalTime,
		Duration:      s.Duration,
		Stops:         s.Stops,
	}
}
