package handlers

import (
	"net/http"

	"busease/internal/domain"
	"busease/internal/services"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	ScheduleID  domain.ID `json:"scheduleId"`
	SeatNumbers []int     `json:"seatNumbers"`
	TotalPrice  float64   `json:"totalPrice"`
	Email       string    `json:"email"`
}

// POST /api/stripe/create-checkout-session
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req checkoutRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	id, err := h.payments(c).CreateCheckoutSession(c.Request.Context(), services.CheckoutRequest{
		ScheduleID:  req.ScheduleID,
		SeatNumbers: req.SeatNumbers,
		TotalPrice:  req.TotalPrice,
		Email:       req.Email,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id})
}
