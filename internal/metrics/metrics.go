package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "busease",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// BookingsTotal counts BookSeats outcomes: success, conflict, error.
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "booking",
		Name:      "book_seats_total",
		Help:      "BookSeats attempts by result",
	}, []string{"result"})

	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "booking",
		Name:      "seat_conflicts_total",
		Help:      "Requested seats rejected because they were already booked",
	})

	CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "booking",
		Name:      "cancellations_total",
		Help:      "Cancellation attempts by result",
	}, []string{"result"})

	LazyCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "booking",
		Name:      "lazy_completions_total",
		Help:      "Bookings moved to completed while listing",
	})

	TicketEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "notify",
		Name:      "ticket_emails_total",
		Help:      "Ticket emails by result",
	}, []string{"result"})

	AssistantIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "assistant",
		Name:      "intents_total",
		Help:      "Resolved assistant intents",
	}, []string{"intent"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busease",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics using the matched route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
