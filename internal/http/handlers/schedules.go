package handlers

import (
	"net/http"
	"strings"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/http/middleware"
	"busease/internal/services"
	"busease/internal/utils"

	"github.com/gin-gonic/gin"
)

type scheduleRequest struct {
	Name          *string       `json:"name"`
	Origin        *string       `json:"origin"`
	Destination   *string       `json:"destination"`
	Price         *float64      `json:"price"`
	Photos        []string      `json:"photos"`
	DepartureDate *string       `json:"departureDate"`
	DepartureTime *string       `json:"departureTime"`
	ArrivalTime   *string       `json:"arrivalTime"`
	Stops         []models.Stop `json:"stops"`
	Amenities     []string      `json:"amenities"`
	Description   *string       `json:"desc"`
	TotalSeats    *int          `json:"totalSeats"`
}

func (h *Handler) scheduleInput(req scheduleRequest) (services.ScheduleInput, error) {
	in := services.ScheduleInput{
		Name:          req.Name,
		Origin:        req.Origin,
		Destination:   req.Destination,
		Price:         req.Price,
		Photos:        req.Photos,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		Stops:         req.Stops,
		Amenities:     req.Amenities,
		Description:   req.Description,
		TotalSeats:    req.TotalSeats,
	}
	if req.DepartureDate != nil {
		d, err := utils.ParseDate(*req.DepartureDate, h.Loc)
		if err != nil {
			return in, domain.ValidationError{Field: "departureDate", Msg: err.Error(), Err: err}
		}
		in.DepartureDate = &d
	}
	return in, nil
}

type bookSeatsRequest struct {
	ScheduleID  domain.ID `json:"scheduleId"`
	SeatNumbers []int     `json:"seatNumbers"`
	UserID      domain.ID `json:"userId"`
}

// POST /api/schedules
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req scheduleRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	in, err := h.scheduleInput(req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sched, err := h.schedules(c).Create(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sched)
}

// PUT /api/schedules/:id
func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req scheduleRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	in, err := h.scheduleInput(req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sched, err := h.schedules(c).Update(c.Request.Context(), id, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// DELETE /api/schedules/:id
func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.schedules(c).Delete(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule and associated bookings have been deleted"})
}

// GET /api/schedules/:id
func (h *Handler) GetSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sched, err := h.schedules(c).Get(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// GET /api/schedules?origin=&destination=&departureDate=&amenities=
func (h *Handler) ListSchedules(c *gin.Context) {
	f := models.ScheduleFilter{
		Origin:      strings.TrimSpace(c.Query("origin")),
		Destination: strings.TrimSpace(c.Query("destination")),
		Amenities:   utils.SplitList(c.Query("amenities")),
	}
	if raw := strings.TrimSpace(c.Query("departureDate")); raw != "" {
		day, err := utils.ParseDate(raw, h.Loc)
		if err != nil {
			RespondDomainError(c, domain.ValidationError{Field: "departureDate", Msg: err.Error(), Err: err})
			return
		}
		f.Day = &day
	}
	list, err := h.schedules(c).List(c.Request.Context(), f)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/schedules/distance-matrix/:id
func (h *Handler) DistanceMatrix(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	info, err := h.schedules(c).Route(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// POST /api/schedules/book-seats
func (h *Handler) BookSeats(c *gin.Context) {
	var req bookSeatsRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	actor := middleware.Actor(c)
	if req.UserID == 0 {
		req.UserID = actor.UserID
	}
	res, err := h.bookings(c).BookSeats(c.Request.Context(), actor, services.BookSeatsInput{
		ScheduleID:  req.ScheduleID,
		UserID:      req.UserID,
		SeatNumbers: req.SeatNumbers,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	msg := "Booking successful, ticket sent to your email."
	if !res.EmailSent {
		msg = "Booking successful but failed to send email."
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   msg,
		"booking":   res.Booking,
		"emailSent": res.EmailSent,
	})
}
