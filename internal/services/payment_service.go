package services

import (
	"context"
	"fmt"
	"strings"

	"busease/internal/domain"
	"busease/internal/repositories"
	"busease/internal/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// CheckoutItem is the single line item of a checkout session.
type CheckoutItem struct {
	Name          string
	Description   string
	Currency      string
	UnitAmount    int64
	CustomerEmail string
}

type CheckoutProvider interface {
	CreateSession(ctx context.Context, item CheckoutItem) (string, error)
}

// StripeCheckout creates hosted Stripe Checkout sessions.
type StripeCheckout struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

func (s StripeCheckout) CreateSession(_ context.Context, item CheckoutItem) (string, error) {
	if s.SecretKey == "" {
		return "", domain.ExternalServiceError{Service: "stripe", Err: fmt.Errorf("secret key not configured")}
	}
	stripe.Key = s.SecretKey

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.SuccessURL),
		CancelURL:          stripe.String(s.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(item.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(item.Name),
					Description: stripe.String(item.Description),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if item.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(item.CustomerEmail)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", domain.ExternalServiceError{Service: "stripe", Err: err}
	}
	return sess.ID, nil
}

type CheckoutRequest struct {
	ScheduleID  domain.ID
	SeatNumbers []int
	TotalPrice  float64
	Email       string
}

// PaymentService prepares the checkout line item for a seat selection.
type PaymentService struct {
	Store     repositories.Store
	Checkout  CheckoutProvider
	Currency  string
	RequestID string
}

func (s PaymentService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	seats, err := normalizeSeatNumbers(req.SeatNumbers)
	if err != nil {
		return "", err
	}
	if req.TotalPrice <= 0 {
		return "", domain.ValidationError{Field: "totalPrice", Msg: "total price must be positive"}
	}
	if s.Checkout == nil {
		return "", domain.ExternalServiceError{Service: "stripe", Err: fmt.Errorf("checkout not configured")}
	}
	sched, err := s.Store.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return "", err
	}

	currency := strings.ToLower(s.Currency)
	if currency == "" {
		currency = "myr"
	}
	item := CheckoutItem{
		Name: sched.Name,
		Description: fmt.Sprintf("%s to %s on %s at %s, seats %s",
			sched.Origin, sched.Destination, utils.FormatLongDate(sched.DepartureDate), sched.DepartureTime, utils.JoinInts(seats, ", ")),
		Currency:      currency,
		UnitAmount:    utils.ToCents(req.TotalPrice),
		CustomerEmail: req.Email,
	}
	id, err := s.Checkout.CreateSession(ctx, item)
	if err != nil {
		utils.LogError(s.RequestID, "payments", "create_checkout_session", err)
		return "", err
	}
	utils.LogEvent(s.RequestID, "payments", "create_checkout_session", fmt.Sprintf("schedule_id=%d amount=%d session=%s", sched.ID, item.UnitAmount, id))
	return id, nil
}
