package services

import (
	"context"
	"fmt"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/events"
	"busease/internal/metrics"
	"busease/internal/repositories"
	"busease/internal/utils"
)

// cancellationLeadTime is the minimum time left before departure for a cancel.
const cancellationLeadTime = 24 * time.Hour

// BookingService keeps seat inventory and the booking ledger consistent.
// Every mutation runs inside one Store.WithTx call.
type BookingService struct {
	Store     repositories.Store
	Tickets   TicketService
	Mailer    Mailer
	Events    events.Publisher
	Loc       *time.Location
	Now       func() time.Time
	RequestID string
}

type BookSeatsInput struct {
	ScheduleID  domain.ID
	UserID      domain.ID
	SeatNumbers []int
}

// BookingResult reports the committed booking and, separately, whether the
// ticket email went out.
type BookingResult struct {
	Booking   models.BookingView
	EmailSent bool
}

func (s BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s BookingService) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.Local
}

func (s BookingService) mailer() Mailer {
	if s.Mailer != nil {
		return s.Mailer
	}
	return LogMailer{}
}

func (s BookingService) publisher() events.Publisher {
	if s.Events != nil {
		return s.Events
	}
	return events.NoopPublisher{}
}

func (s BookingService) BookSeats(ctx context.Context, actor domain.RequestContext, in BookSeatsInput) (BookingResult, error) {
	if !actor.CanActFor(in.UserID) {
		return BookingResult{}, domain.ForbiddenError{Msg: "You are not authorized!"}
	}
	seats, err := normalizeSeatNumbers(in.SeatNumbers)
	if err != nil {
		return BookingResult{}, err
	}

	var (
		booking models.Booking
		sched   models.Schedule
		user    models.User
	)
	err = s.Store.WithTx(ctx, func(q repositories.Queries) error {
		var err error
		if sched, err = q.GetSchedule(ctx, in.ScheduleID); err != nil {
			return err
		}
		if user, err = q.GetUser(ctx, in.UserID); err != nil {
			return err
		}
		if err := claimSeats(ctx, q, sched.ID, seats); err != nil {
			return err
		}
		booking = models.Booking{
			UserID:      user.ID,
			ScheduleID:  sched.ID,
			SeatNumbers: seats,
			TotalPrice:  utils.RoundMoney(sched.Price * float64(len(seats))),
			BookingDate: s.now(),
			Status:      domain.StatusOngoing,
		}
		return q.CreateBooking(ctx, &booking)
	})
	if err != nil {
		result := "error"
		if domain.ConflictCode(err) == domain.CodeSeatsAlreadyBooked {
			result = "conflict"
		}
		metrics.BookingsTotal.WithLabelValues(result).Inc()
		utils.LogEvent(s.RequestID, "bookings", "book_seats_failed",
			fmt.Sprintf("schedule_id=%d user_id=%d seats=%s err=%v", in.ScheduleID, in.UserID, utils.JoinInts(seats, ","), err))
		return BookingResult{}, err
	}

	metrics.BookingsTotal.WithLabelValues("success").Inc()
	utils.LogEvent(s.RequestID, "bookings", "book_seats",
		fmt.Sprintf("booking_id=%d schedule_id=%d seats=%s total=%.2f", booking.ID, sched.ID, utils.JoinInts(seats, ","), booking.TotalPrice))
	s.publish(ctx, events.SubjectBookingCreated, booking)

	sent := s.sendTicket(ctx, booking, sched, user, false)
	return BookingResult{Booking: newView(booking, &sched, &user), EmailSent: sent}, nil
}

// UpdateBooking applies a partial update. Seats are reconciled as a diff: seats
// held before and not wanted after are released, seats wanted and not held are
// claimed with the same conflict check as BookSeats.
func (s BookingService) UpdateBooking(ctx context.Context, actor domain.RequestContext, id domain.ID, upd models.BookingUpdate) (BookingResult, error) {
	var newSeats []int
	if upd.SeatNumbers != nil {
		var err error
		if newSeats, err = normalizeSeatNumbers(upd.SeatNumbers); err != nil {
			return BookingResult{}, err
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return BookingResult{}, domain.ValidationError{Field: "status", Msg: "status must be one of ongoing, completed, cancelled"}
	}
	if upd.TotalPrice != nil && *upd.TotalPrice < 0 {
		return BookingResult{}, domain.ValidationError{Field: "totalPrice", Msg: "total price cannot be negative"}
	}

	var (
		before, after models.Booking
		sched         models.Schedule
		user          models.User
	)
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		b, err := q.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanActFor(b.UserID) {
			return domain.ForbiddenError{Msg: "You are not authorized!"}
		}
		if b.Status != domain.StatusOngoing && !actor.IsAdmin {
			return terminalStatusError(b.Status, false)
		}
		if sched, err = q.GetSchedule(ctx, b.ScheduleID); err != nil {
			return err
		}

		next := b
		next.SeatNumbers = append([]int(nil), b.SeatNumbers...)
		if upd.Status != nil && *upd.Status != b.Status {
			if !actor.IsAdmin {
				switch *upd.Status {
				case domain.StatusCancelled:
					if err := s.checkCancellationWindow(sched); err != nil {
						return err
					}
				default:
					return domain.ForbiddenError{Msg: "You are not authorized as an admin"}
				}
			}
			next.Status = *upd.Status
		}
		if newSeats != nil {
			next.SeatNumbers = newSeats
		}

		var held, want []int
		if b.Status.HoldsSeats() {
			held = b.SeatNumbers
		}
		if next.Status.HoldsSeats() {
			want = next.SeatNumbers
		}
		if err := releaseSeats(ctx, q, sched.ID, subtractInts(held, want)); err != nil {
			return err
		}
		if claim := subtractInts(want, held); len(claim) > 0 {
			if err := claimSeats(ctx, q, sched.ID, claim); err != nil {
				return err
			}
		}

		switch {
		case upd.TotalPrice != nil:
			next.TotalPrice = utils.RoundMoney(*upd.TotalPrice)
		case newSeats != nil && !sameInts(newSeats, b.SeatNumbers):
			next.TotalPrice = utils.RoundMoney(sched.Price * float64(len(newSeats)))
		}

		if err := q.UpdateBooking(ctx, &next); err != nil {
			return err
		}
		if user, err = q.GetUser(ctx, next.UserID); err != nil {
			return err
		}
		before, after = b, next
		return nil
	})
	if err != nil {
		utils.LogEvent(s.RequestID, "bookings", "update_failed", fmt.Sprintf("booking_id=%d err=%v", id, err))
		return BookingResult{}, err
	}

	utils.LogEvent(s.RequestID, "bookings", "update",
		fmt.Sprintf("booking_id=%d status=%s->%s seats=%s", id, before.Status, after.Status, utils.JoinInts(after.SeatNumbers, ",")))
	subject := events.SubjectBookingUpdated
	switch {
	case after.Status == domain.StatusCancelled && before.Status != domain.StatusCancelled:
		subject = events.SubjectBookingCancelled
	case after.Status == domain.StatusCompleted && before.Status != domain.StatusCompleted:
		subject = events.SubjectBookingCompleted
	}
	s.publish(ctx, subject, after)

	sent := false
	if after.Status == domain.StatusOngoing {
		sent = s.sendTicket(ctx, after, sched, user, true)
	}
	return BookingResult{Booking: newView(after, &sched, &user), EmailSent: sent}, nil
}

// CancelBooking is the owner-initiated cancel: only ongoing bookings, and only
// while departure is at least a day away.
func (s BookingService) CancelBooking(ctx context.Context, actor domain.RequestContext, id domain.ID) (models.BookingView, error) {
	var (
		booking models.Booking
		sched   models.Schedule
		user    models.User
	)
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		b, err := q.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanActFor(b.UserID) {
			return domain.ForbiddenError{Msg: "You are not authorized!"}
		}
		if b.Status != domain.StatusOngoing {
			return terminalStatusError(b.Status, true)
		}
		if sched, err = q.GetSchedule(ctx, b.ScheduleID); err != nil {
			return err
		}
		if err := s.checkCancellationWindow(sched); err != nil {
			return err
		}

		moved, err := q.SetBookingStatus(ctx, b.ID, domain.StatusOngoing, domain.StatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return terminalStatusError(domain.StatusCancelled, true)
		}
		if err := releaseSeats(ctx, q, sched.ID, b.SeatNumbers); err != nil {
			return err
		}
		if user, err = q.GetUser(ctx, b.UserID); err != nil {
			return err
		}
		b.Status = domain.StatusCancelled
		booking = b
		return nil
	})
	if err != nil {
		metrics.CancellationsTotal.WithLabelValues(cancelResult(err)).Inc()
		utils.LogEvent(s.RequestID, "bookings", "cancel_failed", fmt.Sprintf("booking_id=%d err=%v", id, err))
		return models.BookingView{}, err
	}

	metrics.CancellationsTotal.WithLabelValues("success").Inc()
	utils.LogEvent(s.RequestID, "bookings", "cancel", fmt.Sprintf("booking_id=%d released=%s", id, utils.JoinInts(booking.SeatNumbers, ",")))
	s.publish(ctx, events.SubjectBookingCancelled, booking)
	return newView(booking, &sched, &user), nil
}

// DeleteBooking removes a booking, releasing its seats if it still holds them.
func (s BookingService) DeleteBooking(ctx context.Context, actor domain.RequestContext, id domain.ID) error {
	if !actor.IsAdmin {
		return domain.ForbiddenError{Msg: "You are not authorized as an admin"}
	}
	var deleted models.Booking
	err := s.Store.WithTx(ctx, func(q repositories.Queries) error {
		b, err := q.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status.HoldsSeats() {
			if err := releaseSeats(ctx, q, b.ScheduleID, b.SeatNumbers); err != nil {
				return err
			}
		}
		deleted = b
		return q.DeleteBooking(ctx, b.ID)
	})
	if err != nil {
		return err
	}
	utils.LogEvent(s.RequestID, "bookings", "delete", fmt.Sprintf("booking_id=%d seats=%s", id, utils.JoinInts(deleted.SeatNumbers, ",")))
	s.publish(ctx, events.SubjectBookingDeleted, deleted)
	return nil
}

// ListUserBookings returns a user's bookings, newest first, after moving
// departed ongoing bookings to completed.
func (s BookingService) ListUserBookings(ctx context.Context, actor domain.RequestContext, userID domain.ID) ([]models.BookingView, error) {
	if !actor.CanActFor(userID) {
		return nil, domain.ForbiddenError{Msg: "You are not authorized!"}
	}
	list, err := s.Store.ListBookings(ctx, models.BookingFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	lookup := newScheduleLookup(s.Store)
	if err := s.completeDeparted(ctx, lookup, list); err != nil {
		return nil, err
	}
	return s.populate(ctx, lookup, list)
}

// ListOngoingBookings is ListUserBookings narrowed to ongoing bookings.
func (s BookingService) ListOngoingBookings(ctx context.Context, actor domain.RequestContext, userID domain.ID) ([]models.BookingView, error) {
	all, err := s.ListUserBookings(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	out := []models.BookingView{}
	for _, b := range all {
		if b.Status == domain.StatusOngoing {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s BookingService) ListAllBookings(ctx context.Context, actor domain.RequestContext) ([]models.BookingView, error) {
	if !actor.IsAdmin {
		return nil, domain.ForbiddenError{Msg: "You are not authorized as an admin"}
	}
	list, err := s.Store.ListBookings(ctx, models.BookingFilter{})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, newScheduleLookup(s.Store), list)
}

func (s BookingService) GetBooking(ctx context.Context, actor domain.RequestContext, id domain.ID) (models.BookingView, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return models.BookingView{}, err
	}
	if !actor.CanActFor(b.UserID) {
		return models.BookingView{}, domain.ForbiddenError{Msg: "You are not authorized!"}
	}
	list := []models.Booking{b}
	lookup := newScheduleLookup(s.Store)
	if err := s.completeDeparted(ctx, lookup, list); err != nil {
		return models.BookingView{}, err
	}
	views, err := s.populate(ctx, lookup, list)
	if err != nil {
		return models.BookingView{}, err
	}
	return views[0], nil
}

// completeDeparted moves ongoing bookings whose departure has passed to
// completed with a status compare-and-set. Seats stay booked.
func (s BookingService) completeDeparted(ctx context.Context, lookup *scheduleLookup, list []models.Booking) error {
	now := s.now()
	for i := range list {
		b := &list[i]
		if b.Status != domain.StatusOngoing {
			continue
		}
		sched, err := lookup.get(ctx, b.ScheduleID)
		if err != nil {
			return err
		}
		if sched == nil {
			continue
		}
		dep, err := utils.DepartureInstant(sched.DepartureDate, sched.DepartureTime, s.loc())
		if err != nil {
			utils.LogEvent(s.RequestID, "bookings", "departure_parse_failed", fmt.Sprintf("schedule_id=%d time=%q", sched.ID, sched.DepartureTime))
			continue
		}
		if !now.After(dep) {
			continue
		}

		moved, err := s.Store.SetBookingStatus(ctx, b.ID, domain.StatusOngoing, domain.StatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			current, err := s.Store.GetBooking(ctx, b.ID)
			if err != nil {
				return err
			}
			b.Status = current.Status
			continue
		}
		b.Status = domain.StatusCompleted
		metrics.LazyCompletions.Inc()
		utils.LogEvent(s.RequestID, "bookings", "complete", fmt.Sprintf("booking_id=%d", b.ID))
		s.publish(ctx, events.SubjectBookingCompleted, *b)
	}
	return nil
}

func (s BookingService) populate(ctx context.Context, lookup *scheduleLookup, list []models.Booking) ([]models.BookingView, error) {
	users := map[domain.ID]*models.User{}
	out := make([]models.BookingView, 0, len(list))
	for _, b := range list {
		sched, err := lookup.get(ctx, b.ScheduleID)
		if err != nil {
			return nil, err
		}
		u, ok := users[b.UserID]
		if !ok {
			found, err := s.Store.GetUser(ctx, b.UserID)
			switch {
			case err == nil:
				u = &found
			case !domain.IsNotFound(err):
				return nil, err
			}
			users[b.UserID] = u
		}
		out = append(out, newView(b, sched, u))
	}
	return out, nil
}

func (s BookingService) checkCancellationWindow(sched models.Schedule) error {
	dep, err := utils.DepartureInstant(sched.DepartureDate, sched.DepartureTime, s.loc())
	if err != nil {
		return domain.InternalError{Msg: "invalid departure time on schedule", Err: err}
	}
	if dep.Sub(s.now()) < cancellationLeadTime {
		return domain.PolicyViolationError{
			Code: domain.CodeCancellationWindowExpired,
			Msg:  "Booking can only be cancelled 1 day before departure",
		}
	}
	return nil
}

func (s BookingService) sendTicket(ctx context.Context, b models.Booking, sched models.Schedule, user models.User, updated bool) bool {
	tickets := s.Tickets
	tickets.RequestID = s.RequestID
	ticket, err := tickets.Render(b, sched, user, updated)
	if err != nil {
		metrics.TicketEmails.WithLabelValues("render_failed").Inc()
		utils.LogError(s.RequestID, "bookings", "render_ticket", err)
		return false
	}
	err = s.mailer().Send(ctx, Mail{
		To:          user.Email,
		Subject:     ticket.Subject,
		HTML:        ticketEmailHTML(user.Username, updated),
		Attachments: []Attachment{{Filename: ticket.Filename, Content: ticket.Content}},
	})
	if err != nil {
		metrics.TicketEmails.WithLabelValues("send_failed").Inc()
		utils.LogError(s.RequestID, "bookings", "send_ticket", err)
		return false
	}
	metrics.TicketEmails.WithLabelValues("sent").Inc()
	return true
}

func (s BookingService) publish(ctx context.Context, subject string, b models.Booking) {
	evt := events.BookingEvent{
		BookingID:  int64(b.ID),
		UserID:     int64(b.UserID),
		ScheduleID: int64(b.ScheduleID),
		Seats:      b.SeatNumbers,
		Status:     string(b.Status),
		At:         s.now(),
	}
	if err := s.publisher().Publish(ctx, subject, evt); err != nil {
		utils.LogError(s.RequestID, "bookings", "publish "+subject, err)
	}
}

func terminalStatusError(status domain.Status, cancelling bool) error {
	if status == domain.StatusCompleted {
		msg := "Booking is already completed"
		if cancelling {
			msg = "Completed bookings cannot be cancelled"
		}
		return domain.ConflictError{Resource: "booking", Code: domain.CodeAlreadyCompleted, Msg: msg}
	}
	return domain.ConflictError{Resource: "booking", Code: domain.CodeAlreadyCancelled, Msg: "Booking is already cancelled"}
}

func cancelResult(err error) string {
	switch {
	case domain.ConflictCode(err) != "":
		return domain.ConflictCode(err)
	case domain.IsPolicy(err):
		return "window_expired"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsForbidden(err):
		return "forbidden"
	}
	return "error"
}

func newView(b models.Booking, sched *models.Schedule, user *models.User) models.BookingView {
	v := models.BookingView{Booking: b}
	if sched != nil {
		sum := sched.Summary()
		v.Schedule = &sum
	}
	if user != nil {
		pub := user.ToPublic()
		v.User = &pub
	}
	return v
}

// scheduleLookup memoises schedule reads for one listing. A missing schedule
// is cached as nil.
type scheduleLookup struct {
	q    repositories.Queries
	seen map[domain.ID]*models.Schedule
}

func newScheduleLookup(q repositories.Queries) *scheduleLookup {
	return &scheduleLookup{q: q, seen: map[domain.ID]*models.Schedule{}}
}

func (l *scheduleLookup) get(ctx context.Context, id domain.ID) (*models.Schedule, error) {
	if s, ok := l.seen[id]; ok {
		return s, nil
	}
	s, err := l.q.GetSchedule(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			l.seen[id] = nil
			return nil, nil
		}
		return nil, err
	}
	l.seen[id] = &s
	return &s, nil
}
