package repositories

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"
)

// MemoryStore keeps everything in process. Transactions are serialised by
// one mutex and applied to a copy that replaces the state on commit, so a
// failing transaction leaves nothing behind.
type MemoryStore struct {
	mu sync.Mutex
	st *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.st = work
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) view(fn func(st *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

func (m *MemoryStore) write(ctx context.Context, fn func(q Queries) error) error {
	return m.WithTx(ctx, fn)
}

type memState struct {
	users     map[domain.ID]models.User
	schedules map[domain.ID]models.Schedule
	bookings  map[domain.ID]models.Booking

	nextUser, nextSchedule, nextBooking domain.ID
}

func newMemState() *memState {
	return &memState{
		users:     map[domain.ID]models.User{},
		schedules: map[domain.ID]models.Schedule{},
		bookings:  map[domain.ID]models.Booking{},
	}
}

func (s *memState) clone() *memState {
	out := &memState{
		users:        make(map[domain.ID]models.User, len(s.users)),
		schedules:    make(map[domain.ID]models.Schedule, len(s.schedules)),
		bookings:     make(map[domain.ID]models.Booking, len(s.bookings)),
		nextUser:     s.nextUser,
		nextSchedule: s.nextSchedule,
		nextBooking:  s.nextBooking,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.schedules {
		out.schedules[k] = copySchedule(v)
	}
	for k, v := range s.bookings {
		out.bookings[k] = copyBooking(v)
	}
	return out
}

func copySchedule(s models.Schedule) models.Schedule {
	s.Photos = slices.Clone(s.Photos)
	s.Amenities = slices.Clone(s.Amenities)
	s.Stops = slices.Clone(s.Stops)
	s.Seats = slices.Clone(s.Seats)
	return s
}

func copyBooking(b models.Booking) models.Booking {
	b.SeatNumbers = slices.Clone(b.SeatNumbers)
	return b
}

// Users

func (s *memState) CreateUser(_ context.Context, u *models.User) error {
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return domain.ConflictError{Resource: "user", Code: domain.CodeDuplicate, Msg: "Username or email already exists"}
		}
	}
	s.nextUser++
	now := time.Now()
	u.ID = s.nextUser
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *memState) GetUser(_ context.Context, id domain.ID) (models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return models.User{}, userNotFound(nil)
	}
	return u, nil
}

func (s *memState) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, userNotFound(nil)
}

func (s *memState) ListUsers(_ context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memState) UpdateUser(_ context.Context, id domain.ID, upd models.UserUpdate) error {
	u, ok := s.users[id]
	if !ok {
		return userNotFound(nil)
	}
	for otherID, other := range s.users {
		if otherID == id {
			continue
		}
		if (upd.Username != nil && strings.EqualFold(other.Username, *upd.Username)) ||
			(upd.Email != nil && strings.EqualFold(other.Email, *upd.Email)) {
			return domain.ConflictError{Resource: "user", Code: domain.CodeDuplicate, Msg: "Username or email already exists"}
		}
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Img != nil {
		u.Img = *upd.Img
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.IsAdmin != nil {
		u.IsAdmin = *upd.IsAdmin
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

func (s *memState) DeleteUser(_ context.Context, id domain.ID) error {
	if _, ok := s.users[id]; !ok {
		return userNotFound(nil)
	}
	delete(s.users, id)
	return nil
}

// Schedules

func (s *memState) CreateSchedule(_ context.Context, sc *models.Schedule) error {
	s.nextSchedule++
	sc.ID = s.nextSchedule
	s.schedules[sc.ID] = copySchedule(*sc)
	return nil
}

func (s *memState) GetSchedule(_ context.Context, id domain.ID) (models.Schedule, error) {
	sc, ok := s.schedules[id]
	if !ok {
		return models.Schedule{}, scheduleNotFound(nil)
	}
	return copySchedule(sc), nil
}

func (s *memState) ListSchedules(_ context.Context, f models.ScheduleFilter) ([]models.Schedule, error) {
	out := []models.Schedule{}
	for _, sc := range s.schedules {
		if f.Origin != "" && !strings.EqualFold(sc.Origin, f.Origin) {
			continue
		}
		if f.Destination != "" && !strings.EqualFold(sc.Destination, f.Destination) {
			continue
		}
		day := sc.DepartureDate.Format("2006-01-02")
		if f.Day != nil && day != f.Day.Format("2006-01-02") {
			continue
		}
		if f.DepartingFrom != nil && day < f.DepartingFrom.Format("2006-01-02") {
			continue
		}
		if !HasAmenities(sc, f.Amenities) {
			continue
		}
		out = append(out, copySchedule(sc))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureDate.Equal(out[j].DepartureDate) {
			return out[i].DepartureDate.Before(out[j].DepartureDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) UpdateSchedule(_ context.Context, sc *models.Schedule) error {
	current, ok := s.schedules[sc.ID]
	if !ok {
		return scheduleNotFound(nil)
	}
	next := copySchedule(*sc)
	next.Seats = current.Seats
	s.schedules[sc.ID] = next
	return nil
}

func (s *memState) DeleteSchedule(_ context.Context, id domain.ID) error {
	if _, ok := s.schedules[id]; !ok {
		return scheduleNotFound(nil)
	}
	delete(s.schedules, id)
	return nil
}

// Seats

func (s *memState) LockSeats(_ context.Context, scheduleID domain.ID, numbers []int) ([]models.Seat, error) {
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return []models.Seat{}, nil
	}
	out := []models.Seat{}
	for _, seat := range sc.Seats {
		if slices.Contains(numbers, seat.Number) {
			out = append(out, seat)
		}
	}
	return out, nil
}

func (s *memState) AddSeats(_ context.Context, scheduleID domain.ID, numbers []int) error {
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return scheduleNotFound(nil)
	}
	for _, n := range numbers {
		sc.Seats = append(sc.Seats, models.Seat{Number: n})
	}
	sort.Slice(sc.Seats, func(i, j int) bool { return sc.Seats[i].Number < sc.Seats[j].Number })
	s.schedules[scheduleID] = sc
	return nil
}

func (s *memState) RemoveSeats(_ context.Context, scheduleID domain.ID, numbers []int) (int, error) {
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return 0, nil
	}
	kept := sc.Seats[:0:0]
	removed := 0
	for _, seat := range sc.Seats {
		if !seat.IsBooked && slices.Contains(numbers, seat.Number) {
			removed++
			continue
		}
		kept = append(kept, seat)
	}
	sc.Seats = kept
	s.schedules[scheduleID] = sc
	return removed, nil
}

func (s *memState) SetSeatsBooked(_ context.Context, scheduleID domain.ID, numbers []int, booked bool) (int, error) {
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return 0, nil
	}
	flipped := 0
	for i, seat := range sc.Seats {
		if seat.IsBooked != booked && slices.Contains(numbers, seat.Number) {
			sc.Seats[i].IsBooked = booked
			flipped++
		}
	}
	s.schedules[scheduleID] = sc
	return flipped, nil
}

// Bookings

func (s *memState) CreateBooking(_ context.Context, b *models.Booking) error {
	s.nextBooking++
	b.ID = s.nextBooking
	s.bookings[b.ID] = copyBooking(*b)
	return nil
}

func (s *memState) GetBooking(_ context.Context, id domain.ID) (models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, bookingNotFound(nil)
	}
	return copyBooking(b), nil
}

func (s *memState) ListBookings(_ context.Context, f models.BookingFilter) ([]models.Booking, error) {
	out := []models.Booking{}
	for _, b := range s.bookings {
		if f.UserID > 0 && b.UserID != f.UserID {
			continue
		}
		if f.ScheduleID > 0 && b.ScheduleID != f.ScheduleID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memState) UpdateBooking(_ context.Context, b *models.Booking) error {
	current, ok := s.bookings[b.ID]
	if !ok {
		return bookingNotFound(nil)
	}
	current.SeatNumbers = slices.Clone(b.SeatNumbers)
	current.TotalPrice = b.TotalPrice
	current.Status = b.Status
	s.bookings[b.ID] = current
	return nil
}

func (s *memState) SetBookingStatus(_ context.Context, id domain.ID, from, to domain.Status) (bool, error) {
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	s.bookings[id] = b
	return true, nil
}

func (s *memState) DeleteBooking(_ context.Context, id domain.ID) error {
	if _, ok := s.bookings[id]; !ok {
		return bookingNotFound(nil)
	}
	delete(s.bookings, id)
	return nil
}

func (s *memState) DeleteBookingsBySchedule(_ context.Context, scheduleID domain.ID) (int, error) {
	n := 0
	for id, b := range s.bookings {
		if b.ScheduleID == scheduleID {
			delete(s.bookings, id)
			n++
		}
	}
	return n, nil
}

// Direct (non-transactional) access. Reads share the lock; writes run as
// single-statement transactions.

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	return m.write(ctx, func(q Queries) error { return q.CreateUser(ctx, u) })
}

func (m *MemoryStore) GetUser(ctx context.Context, id domain.ID) (u models.User, err error) {
	err = m.view(func(st *memState) error { u, err = st.GetUser(ctx, id); return err })
	return u, err
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (u models.User, err error) {
	err = m.view(func(st *memState) error { u, err = st.GetUserByUsername(ctx, username); return err })
	return u, err
}

func (m *MemoryStore) ListUsers(ctx context.Context) (out []models.User, err error) {
	err = m.view(func(st *memState) error { out, err = st.ListUsers(ctx); return err })
	return out, err
}

func (m *MemoryStore) UpdateUser(ctx context.Context, id domain.ID, upd models.UserUpdate) error {
	return m.write(ctx, func(q Queries) error { return q.UpdateUser(ctx, id, upd) })
}

func (m *MemoryStore) DeleteUser(ctx context.Context, id domain.ID) error {
	return m.write(ctx, func(q Queries) error { return q.DeleteUser(ctx, id) })
}

func (m *MemoryStore) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	return m.write(ctx, func(q Queries) error { return q.CreateSchedule(ctx, sc) })
}

func (m *MemoryStore) GetSchedule(ctx context.Context, id domain.ID) (sc models.Schedule, err error) {
	err = m.view(func(st *memState) error { sc, err = st.GetSchedule(ctx, id); return err })
	return sc, err
}

func (m *MemoryStore) ListSchedules(ctx context.Context, f models.ScheduleFilter) (out []models.Schedule, err error) {
	err = m.view(func(st *memState) error { out, err = st.ListSchedules(ctx, f); return err })
	return out, err
}

func (m *MemoryStore) UpdateSchedule(ctx context.Context, sc *models.Schedule) error {
	return m.write(ctx, func(q Queries) error { return q.UpdateSchedule(ctx, sc) })
}

func (m *MemoryStore) DeleteSchedule(ctx context.Context, id domain.ID) error {
	return m.write(ctx, func(q Queries) error { return q.DeleteSchedule(ctx, id) })
}

func (m *MemoryStore) LockSeats(ctx context.Context, scheduleID domain.ID, numbers []int) (out []models.Seat, err error) {
	err = m.view(func(st *memState) error { out, err = st.LockSeats(ctx, scheduleID, numbers); return err })
	return out, err
}

func (m *MemoryStore) AddSeats(ctx context.Context, scheduleID domain.ID, numbers []int) error {
	return m.write(ctx, func(q Queries) error { return q.AddSeats(ctx, scheduleID, numbers) })
}

func (m *MemoryStore) RemoveSeats(ctx context.Context, scheduleID domain.ID, numbers []int) (n int, err error) {
	err = m.write(ctx, func(q Queries) error { n, err = q.RemoveSeats(ctx, scheduleID, numbers); return err })
	return n, err
}

func (m *MemoryStore) SetSeatsBooked(ctx context.Context, scheduleID domain.ID, numbers []int, booked bool) (n int, err error) {
	err = m.write(ctx, func(q Queries) error { n, err = q.SetSeatsBooked(ctx, scheduleID, numbers, booked); return err })
	return n, err
}

func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.write(ctx, func(q Queries) error { return q.CreateBooking(ctx, b) })
}

func (m *MemoryStore) GetBooking(ctx context.Context, id domain.ID) (b models.Booking, err error) {
	err = m.view(func(st *memState) error { b, err = st.GetBooking(ctx, id); return err })
	return b, err
}

func (m *MemoryStore) ListBookings(ctx context.Context, f models.BookingFilter) (out []models.Booking, err error) {
	err = m.view(func(st *memState) error { out, err = st.ListBookings(ctx, f); return err })
	return out, err
}

func (m *MemoryStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.write(ctx, func(q Queries) error { return q.UpdateBooking(ctx, b) })
}

func (m *MemoryStore) SetBookingStatus(ctx context.Context, id domain.ID, from, to domain.Status) (ok bool, err error) {
	err = m.write(ctx, func(q Queries) error { ok, err = q.SetBookingStatus(ctx, id, from, to); return err })
	return ok, err
}

func (m *MemoryStore) DeleteBooking(ctx context.Context, id domain.ID) error {
	return m.write(ctx, func(q Queries) error { return q.DeleteBooking(ctx, id) })
}

func (m *MemoryStore) DeleteBookingsBySchedule(ctx context.Context, scheduleID domain.ID) (n int, err error) {
	err = m.write(ctx, func(q Queries) error { n, err = q.DeleteBookingsBySchedule(ctx, scheduleID); return err })
	return n, err
}
