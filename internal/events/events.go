package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Booking lifecycle subjects.
const (
	SubjectBookingCreated   = "busease.booking.created"
	SubjectBookingUpdated   = "busease.booking.updated"
	SubjectBookingCancelled = "busease.booking.cancelled"
	SubjectBookingDeleted   = "busease.booking.deleted"
	SubjectBookingCompleted = "busease.booking.completed"
)

// BookingEvent is the payload published after a committed booking change.
type BookingEvent struct {
	BookingID  int64     `json:"bookingId"`
	UserID     int64     `json:"userId"`
	ScheduleID int64     `json:"scheduleId"`
	Seats      []int     `json:"seatNumbers"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close()                                      {}

// DefaultPublishTimeout bounds the wait for a JetStream ack.
const DefaultPublishTimeout = 5 * time.Second

// NATSPublisher publishes to a JetStream stream covering busease.booking.>.
type NATSPublisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	timeout time.Duration
}

// NewNATSPublisher connects to url. A non-positive timeout uses DefaultPublishTimeout.
func NewNATSPublisher(url string, timeout time.Duration) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("busease-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      "BUSEASE_BOOKINGS",
		Subjects:  []string{"busease.booking.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return &NATSPublisher{conn: conn, js: js, timeout: timeout}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := p.publishContext(ctx)
	defer cancel()
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// publishContext caps ctx at the publish timeout; an earlier caller deadline wins.
func (p *NATSPublisher) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("nats drain failed", "error", err)
	}
}
