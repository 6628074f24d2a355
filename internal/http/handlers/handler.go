package handlers

import (
	"time"

	"busease/internal/assistant"
	"busease/internal/cache"
	"busease/internal/events"
	"busease/internal/http/middleware"
	"busease/internal/repositories"
	"busease/internal/services"

	"github.com/gin-gonic/gin"
)

// Deps are the long-lived collaborators shared by every request.
type Deps struct {
	Store     repositories.Store
	JWTSecret []byte
	JWTTTL    time.Duration
	Mailer    services.Mailer
	Events    events.Publisher
	Cache     cache.Cache
	CacheTTL  time.Duration
	Router    services.RouteEstimator
	Checkout  services.CheckoutProvider
	Currency  string
	Generator assistant.TextGenerator
	Dates     assistant.DateParser
	Gazetteer *assistant.Gazetteer
	Loc       *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Handler builds request-scoped services from Deps so every log line
// carries the request id.
type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Events == nil {
		d.Events = events.NoopPublisher{}
	}
	if d.Mailer == nil {
		d.Mailer = services.LogMailer{}
	}
	if d.Loc == nil {
		d.Loc = time.Local
	}
	return &Handler{Deps: d}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) auth(c *gin.Context) services.AuthService {
	return services.AuthService{
		Store:     h.Store,
		Secret:    h.JWTSecret,
		TTL:       h.JWTTTL,
		Now:       h.now,
		RequestID: middleware.GetRequestID(c),
	}
}

// Tokens exposes token parsing to the auth middleware.
func (h *Handler) Tokens() middleware.TokenParser {
	return services.AuthService{Secret: h.JWTSecret, Now: h.now}
}

func (h *Handler) bookings(c *gin.Context) services.BookingService {
	rid := middleware.GetRequestID(c)
	return services.BookingService{
		Store:     h.Store,
		Tickets:   services.TicketService{RequestID: rid},
		Mailer:    h.Mailer,
		Events:    h.Events,
		Loc:       h.Loc,
		Now:       h.now,
		RequestID: rid,
	}
}

func (h *Handler) schedules(c *gin.Context) services.ScheduleService {
	return services.ScheduleService{
		Store:     h.Store,
		Router:    h.Router,
		Cache:     h.Cache,
		CacheTTL:  h.CacheTTL,
		Loc:       h.Loc,
		Now:       h.now,
		RequestID: middleware.GetRequestID(c),
	}
}

func (h *Handler) users(c *gin.Context) services.UserService {
	return services.UserService{Store: h.Store, Events: h.Events, RequestID: middleware.GetRequestID(c)}
}

func (h *Handler) payments(c *gin.Context) services.PaymentService {
	return services.PaymentService{
		Store:     h.Store,
		Checkout:  h.Checkout,
		Currency:  h.Currency,
		RequestID: middleware.GetRequestID(c),
	}
}

func (h *Handler) resolver(c *gin.Context) assistant.Resolver {
	rid := middleware.GetRequestID(c)
	return assistant.Resolver{
		Bookings:  h.bookings(c),
		Schedules: h.schedules(c),
		Generator: h.Generator,
		Dates:     h.Dates,
		Gazetteer: h.Gazetteer,
		Loc:       h.Loc,
		Now:       h.now,
		RequestID: rid,
	}
}
