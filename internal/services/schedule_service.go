package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"busease/internal/cache"
	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/metrics"
	"busease/internal/repositories"
	"busease/internal/utils"
)

type ScheduleService struct {
	Store     repositories.Store
	Router    RouteEstimator
	Cache     cache.Cache
	CacheTTL  time.Duration
	Loc       *time.Location
	Now       func() time.Time
	RequestID string
}

// ScheduleInput is the body of create and update. On update nil fields keep
// their current value.
type ScheduleInput struct {
	Name          *string
	Origin        *string
	Destination   *string
	Price         *float64
	Photos        []string
	DepartureDate *time.Time
	DepartureTime *string
	ArrivalTime   *string
	Stops         []models.Stop
	Amenities     []string
	Description   *string
	TotalSeats    *int
}

// RouteInfo is the itinerary returned by the distance matrix endpoint.
type RouteInfo struct {
	Origin          string        `json:"origin"`
	Destination     string        `json:"destination"`
	Stops           []models.Stop `json:"stops"`
	DepartureTime   string        `json:"departureTime"`
	ArrivalTime     string        `json:"arrivalTime"`
	Duration        string        `json:"duration"`
	DrivingDuration string        `json:"drivingDuration,omitempty"`
	DistanceKm      float64       `json:"distanceKm,omitempty"`
}

func (s ScheduleService) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.Local
}

func (s ScheduleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s ScheduleService) Create(ctx context.Context, in ScheduleInput) (models.Schedule, error) {
	var sched models.Schedule
	applyScheduleInput(&sched, in)
	if err := s.validate(sched); err != nil {
		return models.Schedule{}, err
	}
	duration, err := utils.TripDuration(sched.DepartureTime, sched.ArrivalTime)
	if err != nil {
		return models.Schedule{}, domain.ValidationError{Field: "departureTime", Msg: err.Error()}
	}
	sched.Duration = duration
	sched.Seats = make([]models.Seat, 0, sched.TotalSeats)
	for n := 1; n <= sched.TotalSeats; n++ {
		sched.Seats = append(sched.Seats, models.Seat{Number: n})
	}

	if err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		return q.CreateSchedule(ctx, &sched)
	}); err != nil {
		return models.Schedule{}, err
	}
	utils.LogEvent(s.RequestID, "schedules", "create", fmt.Sprintf("schedule_id=%d seats=%d", sched.ID, sched.TotalSeats))
	return sched, nil
}

// Update applies in to the schedule. A larger totalSeats appends free seats; a
// smaller one drops the unbooked tail and fails if a booked seat would go.
func (s ScheduleService) Update(ctx context.Context, id domain.ID, in ScheduleInput) (models.Schedule, error) {
	var updated models.Schedule
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		current, err := q.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		next := current
		applyScheduleInput(&next, in)
		if err := s.validate(next); err != nil {
			return err
		}
		if next.Duration, err = utils.TripDuration(next.DepartureTime, next.ArrivalTime); err != nil {
			return domain.ValidationError{Field: "departureTime", Msg: err.Error()}
		}

		oldTotal := len(current.Seats)
		switch {
		case next.TotalSeats > oldTotal:
			add := make([]int, 0, next.TotalSeats-oldTotal)
			for n := oldTotal + 1; n <= next.TotalSeats; n++ {
				add = append(add, n)
			}
			if err := q.AddSeats(ctx, id, add); err != nil {
				return err
			}
		case next.TotalSeats < oldTotal:
			for _, n := range current.BookedSeats() {
				if n > next.TotalSeats {
					return domain.ConflictError{
						Resource: "schedule",
						Msg:      fmt.Sprintf("Cannot reduce totalSeats to %d: seat %d is booked", next.TotalSeats, n),
					}
				}
			}
			drop := make([]int, 0, oldTotal-next.TotalSeats)
			for n := next.TotalSeats + 1; n <= oldTotal; n++ {
				drop = append(drop, n)
			}
			removed, err := q.RemoveSeats(ctx, id, drop)
			if err != nil {
				return err
			}
			if removed != len(drop) {
				return domain.ConflictError{Resource: "schedule", Msg: "Seat inventory changed while resizing, try again"}
			}
		}

		if err := q.UpdateSchedule(ctx, &next); err != nil {
			return err
		}
		updated, err = q.GetSchedule(ctx, id)
		return err
	})
	if err != nil {
		return models.Schedule{}, err
	}
	s.forgetRoute(ctx, id)
	utils.LogEvent(s.RequestID, "schedules", "update", fmt.Sprintf("schedule_id=%d seats=%d", id, updated.TotalSeats))
	return updated, nil
}

// Delete removes the schedule and every booking that references it.
func (s ScheduleService) Delete(ctx context.Context, id domain.ID) error {
	var removed int
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		if _, err := q.GetSchedule(ctx, id); err != nil {
			return err
		}
		var err error
		if removed, err = q.DeleteBookingsBySchedule(ctx, id); err != nil {
			return err
		}
		return q.DeleteSchedule(ctx, id)
	})
	if err != nil {
		return err
	}
	s.forgetRoute(ctx, id)
	utils.LogEvent(s.RequestID, "schedules", "delete", fmt.Sprintf("schedule_id=%d bookings_removed=%d", id, removed))
	return nil
}

func (s ScheduleService) Get(ctx context.Context, id domain.ID) (models.Schedule, error) {
	return s.Store.GetSchedule(ctx, id)
}

func (s ScheduleService) List(ctx context.Context, f models.ScheduleFilter) ([]models.Schedule, error) {
	return s.Store.ListSchedules(ctx, f)
}

// Route returns the schedule itinerary plus the routing provider's driving
// estimate when one is configured. Provider failures only drop the estimate.
func (s ScheduleService) Route(ctx context.Context, id domain.ID) (RouteInfo, error) {
	key := routeCacheKey(id)
	if s.Cache != nil {
		if raw, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			var info RouteInfo
			if json.Unmarshal(raw, &info) == nil {
				metrics.CacheHits.WithLabelValues("route").Inc()
				return info, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	sched, err := s.Store.GetSchedule(ctx, id)
	if err != nil {
		return RouteInfo{}, err
	}
	info := RouteInfo{
		Origin:        sched.Origin,
		Destination:   sched.Destination,
		Stops:         sched.Stops,
		DepartureTime: sched.DepartureTime,
		ArrivalTime:   sched.ArrivalTime,
		Duration:      sched.Duration,
	}

	if s.Router != nil {
		waypoints := make([]string, 0, len(sched.Stops))
		for _, st := range sched.Stops {
			waypoints = append(waypoints, st.StopName)
		}
		est, err := s.Router.Estimate(ctx, sched.Origin, sched.Destination, waypoints)
		if err != nil {
			utils.LogError(s.RequestID, "schedules", "route_estimate", err)
		} else {
			info.DrivingDuration = formatDriving(est.Duration)
			info.DistanceKm = est.DistanceKm
		}
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(info); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.CacheTTL); err != nil {
				utils.LogError(s.RequestID, "schedules", "route_cache_set", err)
			}
		}
	}
	return info, nil
}

func (s ScheduleService) forgetRoute(ctx context.Context, id domain.ID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, routeCacheKey(id)); err != nil {
		utils.LogError(s.RequestID, "schedules", "route_cache_delete", err)
	}
}

func (s ScheduleService) validate(sched models.Schedule) error {
	switch {
	case strings.TrimSpace(sched.Name) == "":
		return domain.ValidationError{Field: "name", Msg: "name is required"}
	case strings.TrimSpace(sched.Origin) == "":
		return domain.ValidationError{Field: "origin", Msg: "origin is required"}
	case strings.TrimSpace(sched.Destination) == "":
		return domain.ValidationError{Field: "destination", Msg: "destination is required"}
	case sched.Price < 0:
		return domain.ValidationError{Field: "price", Msg: "price cannot be negative"}
	case sched.DepartureDate.IsZero():
		return domain.ValidationError{Field: "departureDate", Msg: "departure date is required"}
	case sched.TotalSeats <= 0:
		return domain.ValidationError{Field: "totalSeats", Msg: "totalSeats must be positive"}
	}
	if _, _, err := utils.ParseClock(sched.DepartureTime); err != nil {
		return domain.ValidationError{Field: "departureTime", Msg: err.Error()}
	}
	if _, _, err := utils.ParseClock(sched.ArrivalTime); err != nil {
		return domain.ValidationError{Field: "arrivalTime", Msg: err.Error()}
	}
	return nil
}

func applyScheduleInput(sched *models.Schedule, in ScheduleInput) {
	if in.Name != nil {
		sched.Name = strings.TrimSpace(*in.Name)
	}
	if in.Origin != nil {
		sched.Origin = strings.TrimSpace(*in.Origin)
	}
	if in.Destination != nil {
		sched.Destination = strings.TrimSpace(*in.Destination)
	}
	if in.Price != nil {
		sched.Price = utils.RoundMoney(*in.Price)
	}
	if in.Photos != nil {
		sched.Photos = in.Photos
	}
	if in.DepartureDate != nil {
		sched.DepartureDate = utils.StartOfDay(*in.DepartureDate)
	}
	if in.DepartureTime != nil {
		sched.DepartureTime = strings.TrimSpace(*in.DepartureTime)
	}
	if in.ArrivalTime != nil {
		sched.ArrivalTime = strings.TrimSpace(*in.ArrivalTime)
	}
	if in.Stops != nil {
		sched.Stops = in.Stops
	}
	if in.Amenities != nil {
		sched.Amenities = in.Amenities
	}
	if in.Description != nil {
		sched.Description = *in.Description
	}
	if in.TotalSeats != nil {
		sched.TotalSeats = *in.TotalSeats
	}
}

func routeCacheKey(id domain.ID) string {
	return "route:" + id.String()
}

func formatDriving(d time.Duration) string {
	d = d.Round(time.Minute)
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
