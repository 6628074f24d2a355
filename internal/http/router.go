package api

import (
	"log/slog"
	stdhttp "net/http"

	intconfig "busease/internal/config"
	h "busease/internal/http/handlers"
	"busease/internal/http/middleware"
	"busease/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func NewRouter(env intconfig.Env, hd *h.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), metrics.Middleware(), middleware.CORS(env.CORS.Origins()))

	if err := r.SetTrustedProxies(nil); err != nil {
		slog.Warn("failed to set trusted proxies", "error", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"message": "route not found",
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
		})
	})

	r.GET("/metrics", metrics.Handler())

	tokens := hd.Tokens()
	authed := middleware.VerifyToken(tokens)
	admin := middleware.RequireAdmin()
	loginLimit := middleware.RateLimiter(rate.Limit(env.Assistant.RatePerSecond), env.Assistant.Burst)
	chatLimit := middleware.RateLimiter(rate.Limit(env.Assistant.RatePerSecond), env.Assistant.Burst)

	api := r.Group("/api")
	{
		api.GET("/health", hd.Health)
		api.GET("/db-check", hd.DBCheck)
		api.GET("/routes", hd.Routes)

		// Auth
		auth := api.Group("/auth")
		auth.POST("/register", hd.Register)
		auth.POST("/login", loginLimit, hd.Login)

		// Users
		users := api.Group("/users", authed)
		users.GET("", admin, hd.GetUsers)
		users.GET("/:id", middleware.RequireSelfOrAdmin("id"), hd.GetUser)
		users.PUT("/:id", middleware.RequireSelfOrAdmin("id"), hd.UpdateUser)
		users.DELETE("/:id", middleware.RequireSelfOrAdmin("id"), hd.DeleteUser)

		// Schedules
		schedules := api.Group("/schedules")
		schedules.GET("", hd.ListSchedules)
		schedules.GET("/:id", hd.GetSchedule)
		schedules.GET("/distance-matrix/:id", hd.DistanceMatrix)
		schedules.POST("/book-seats", authed, hd.BookSeats)
		schedules.POST("", authed, admin, hd.CreateSchedule)
		schedules.PUT("/:id", authed, admin, hd.UpdateSchedule)
		schedules.DELETE("/:id", authed, admin, hd.DeleteSchedule)

		// Bookings
		bookings := api.Group("/bookings", authed)
		bookings.GET("", admin, hd.ListAllBookings)
		bookings.GET("/booking/:bookingId", hd.GetBooking)
		bookings.GET("/:userId", middleware.RequireSelfOrAdmin("userId"), hd.ListUserBookings)
		bookings.PUT("/:bookingId", hd.UpdateBooking)
		bookings.POST("/cancel-booking", hd.CancelBooking)
		bookings.DELETE("/:bookingId", admin, hd.DeleteBooking)

		// Payments
		api.POST("/stripe/create-checkout-session", authed, hd.CreateCheckoutSession)

		// Chat assistant
		api.POST("/assistant", chatLimit, middleware.OptionalAuth(tokens), hd.Assistant)
	}

	h.SetRouter(r)
	return r
}
