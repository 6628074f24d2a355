package handlers

import (
	"net/http"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type updateBookingRequest struct {
	SeatNumbers []int          `json:"seatNumbers"`
	Status      *domain.Status `json:"status"`
	TotalPrice  *float64       `json:"totalPrice"`
}

type cancelBookingRequest struct {
	BookingID domain.ID `json:"bookingId"`
}

// GET /api/bookings
func (h *Handler) ListAllBookings(c *gin.Context) {
	list, err := h.bookings(c).ListAllBookings(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/bookings/:userId
func (h *Handler) ListUserBookings(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	list, err := h.bookings(c).ListUserBookings(c.Request.Context(), middleware.Actor(c), userID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/bookings/booking/:bookingId
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	b, err := h.bookings(c).GetBooking(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// PUT /api/bookings/:bookingId
func (h *Handler) UpdateBooking(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	var req updateBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.bookings(c).UpdateBooking(c.Request.Context(), middleware.Actor(c), id, models.BookingUpdate{
		SeatNumbers: req.SeatNumbers,
		Status:      req.Status,
		TotalPrice:  req.TotalPrice,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Booking)
}

// POST /api/bookings/cancel-booking
func (h *Handler) CancelBooking(c *gin.Context) {
	var req cancelBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if req.BookingID <= 0 {
		RespondDomainError(c, domain.ValidationError{Field: "bookingId", Msg: "bookingId is required"})
		return
	}
	b, err := h.bookings(c).CancelBooking(c.Request.Context(), middleware.Actor(c), req.BookingID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled successfully", "booking": b})
}

// DELETE /api/bookings/:bookingId
func (h *Handler) DeleteBooking(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	if err := h.bookings(c).DeleteBooking(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted successfully, seats set to available"})
}
