package services

import (
	"context"
	"fmt"
	"sort"

	"busease/internal/domain"
	"busease/internal/metrics"
	"busease/internal/repositories"
	"busease/internal/utils"
)

// normalizeSeatNumbers validates a requested seat list and returns it sorted.
func normalizeSeatNumbers(in []int) ([]int, error) {
	if len(in) == 0 {
		return nil, domain.ValidationError{Field: "seatNumbers", Msg: "at least one seat is required"}
	}
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, n := range in {
		if n <= 0 {
			return nil, domain.ValidationError{Field: "seatNumbers", Msg: "seat numbers must be positive integers"}
		}
		if _, dup := seen[n]; dup {
			return nil, domain.ValidationError{Field: "seatNumbers", Msg: fmt.Sprintf("seat %d requested more than once", n)}
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// claimSeats locks the requested seats and flips them to booked. Seats that do
// not exist are a validation error; seats already booked are reported as a
// SeatsAlreadyBookedError listing exactly those seats.
func claimSeats(ctx context.Context, q repositories.Queries, scheduleID domain.ID, seats []int) error {
	locked, err := q.LockSeats(ctx, scheduleID, seats)
	if err != nil {
		return err
	}

	found := make(map[int]bool, len(locked))
	taken := []int{}
	for _, st := range locked {
		found[st.Number] = true
		if st.IsBooked {
			taken = append(taken, st.Number)
		}
	}
	missing := []int{}
	for _, n := range seats {
		if !found[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return domain.ValidationError{
			Field: "seatNumbers",
			Msg:   fmt.Sprintf("seats %s do not exist on this schedule", utils.JoinInts(missing, ", ")),
		}
	}
	if len(taken) > 0 {
		metrics.SeatConflicts.Add(float64(len(taken)))
		return domain.SeatsAlreadyBookedError{Seats: taken}
	}

	flipped, err := q.SetSeatsBooked(ctx, scheduleID, seats, true)
	if err != nil {
		return err
	}
	if flipped != len(seats) {
		metrics.SeatConflicts.Add(float64(len(seats) - flipped))
		return domain.SeatsAlreadyBookedError{Seats: seats}
	}
	return nil
}

func releaseSeats(ctx context.Context, q repositories.Queries, scheduleID domain.ID, seats []int) error {
	if len(seats) == 0 {
		return nil
	}
	_, err := q.SetSeatsBooked(ctx, scheduleID, seats, false)
	return err
}

// subtractInts returns the members of a that are not in b, keeping a's order.
func subtractInts(a, b []int) []int {
	drop := make(map[int]struct{}, len(b))
	for _, n := range b {
		drop[n] = struct{}{}
	}
	out := []int{}
	for _, n := range a {
		if _, ok := drop[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	return len(subtractInts(a, b)) == 0
}
