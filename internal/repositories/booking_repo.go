package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	intconfig "busease/internal/config"
	intdb "busease/internal/db"
	"busease/internal/domain"
	"busease/internal/domain/models"
)

// BookingRepo persists bookings and the seat numbers each one claimed.
type BookingRepo struct {
	DB intdb.DBTX
}

func (r BookingRepo) db() intdb.DBTX {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const bookingColumns = `id, user_id, schedule_id, total_price, booking_date, status`

func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.TotalPrice, &b.BookingDate, &b.Status)
	return b, err
}

func (r BookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO bookings (user_id, schedule_id, total_price, booking_date, status)
		VALUES (?, ?, ?, ?, ?)
	`, b.UserID, b.ScheduleID, b.TotalPrice, b.BookingDate, b.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = domain.ID(id)
	return r.insertSeatNumbers(ctx, b.ID, b.SeatNumbers)
}

func (r BookingRepo) insertSeatNumbers(ctx context.Context, bookingID domain.ID, seats []int) error {
	if len(seats) == 0 {
		return nil
	}
	values := make([]string, 0, len(seats))
	args := make([]any, 0, len(seats)*2)
	for _, n := range seats {
		values = append(values, "(?, ?)")
		args = append(args, bookingID, n)
	}
	_, err := r.db().ExecContext(ctx,
		`INSERT INTO booking_seats (booking_id, seat_number) VALUES `+strings.Join(values, ", "),
		args...)
	return err
}

func (r BookingRepo) loadSeatNumbers(ctx context.Context, b *models.Booking) error {
	rows, err := r.db().QueryContext(ctx, `SELECT seat_number FROM booking_seats WHERE booking_id = ? ORDER BY seat_number ASC`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	b.SeatNumbers = []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return err
		}
		b.SeatNumbers = append(b.SeatNumbers, n)
	}
	return rows.Err()
}

func (r BookingRepo) GetBooking(ctx context.Context, id domain.ID) (models.Booking, error) {
	b, err := scanBooking(r.db().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, bookingNotFound(err)
	}
	if err != nil {
		return models.Booking{}, err
	}
	if err := r.loadSeatNumbers(ctx, &b); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func (r BookingRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.UserID > 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ScheduleID > 0 {
		where = append(where, "schedule_id = ?")
		args = append(args, f.ScheduleID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	rows, err := r.db().QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+strings.Join(where, " AND ")+` ORDER BY booking_date DESC, id DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	list := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		if err := r.loadSeatNumbers(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// UpdateBooking rewrites status, price and the claimed seat list.
func (r BookingRepo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	if _, err := r.db().ExecContext(ctx,
		`UPDATE bookings SET total_price = ?, status = ? WHERE id = ?`,
		b.TotalPrice, b.Status, b.ID); err != nil {
		return err
	}
	if _, err := r.db().ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, b.ID); err != nil {
		return err
	}
	return r.insertSeatNumbers(ctx, b.ID, b.SeatNumbers)
}

func (r BookingRepo) SetBookingStatus(ctx context.Context, id domain.ID, from, to domain.Status) (bool, error) {
	res, err := r.db().ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteBooking removes the booking; booking_seats rows go by FK cascade.
func (r BookingRepo) DeleteBooking(ctx context.Context, id domain.ID) error {
	res, err := r.db().ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bookingNotFound(nil)
	}
	return nil
}

func (r BookingRepo) DeleteBookingsBySchedule(ctx context.Context, scheduleID domain.ID) (int, error) {
	res, err := r.db().ExecContext(ctx, `DELETE FROM bookings WHERE schedule_id = ?`, scheduleID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
