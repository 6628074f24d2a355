package repositories

import (
	"context"
	"strings"

	intconfig "busease/internal/config"
	intdb "busease/internal/db"
	"busease/internal/domain"
	"busease/internal/domain/models"
)

// SeatRepo owns the schedule_seats inventory. SetSeatsBooked is the only
// writer of is_booked and only flips rows that are in the opposite state.
type SeatRepo struct {
	DB intdb.DBTX
}

func (r SeatRepo) db() intdb.DBTX {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func seatArgs(scheduleID domain.ID, numbers []int, extra ...any) []any {
	args := make([]any, 0, len(numbers)+1+len(extra))
	args = append(args, extra...)
	args = append(args, scheduleID)
	for _, n := range numbers {
		args = append(args, n)
	}
	return args
}

func (r SeatRepo) LockSeats(ctx context.Context, scheduleID domain.ID, numbers []int) ([]models.Seat, error) {
	if len(numbers) == 0 {
		return []models.Seat{}, nil
	}
	rows, err := r.db().QueryContext(ctx,
		`SELECT number, is_booked FROM schedule_seats WHERE schedule_id = ? AND number IN (`+intdb.Placeholders(len(numbers))+`) ORDER BY number ASC FOR UPDATE`,
		seatArgs(scheduleID, numbers)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Seat{}
	for rows.Next() {
		var seat models.Seat
		if err := rows.Scan(&seat.Number, &seat.IsBooked); err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}

func (r SeatRepo) AddSeats(ctx context.Context, scheduleID domain.ID, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	values := make([]string, 0, len(numbers))
	args := make([]any, 0, len(numbers)*2)
	for _, n := range numbers {
		values = append(values, "(?, ?, 0)")
		args = append(args, scheduleID, n)
	}
	_, err := r.db().ExecContext(ctx,
		`INSERT INTO schedule_seats (schedule_id, number, is_booked) VALUES `+strings.Join(values, ", "),
		args...)
	return err
}

func (r SeatRepo) RemoveSeats(ctx context.Context, scheduleID domain.ID, numbers []int) (int, error) {
	if len(numbers) == 0 {
		return 0, nil
	}
	res, err := r.db().ExecContext(ctx,
		`DELETE FROM schedule_seats WHERE schedule_id = ? AND number IN (`+intdb.Placeholders(len(numbers))+`) AND is_booked = 0`,
		seatArgs(scheduleID, numbers)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r SeatRepo) SetSeatsBooked(ctx context.Context, scheduleID domain.ID, numbers []int, booked bool) (int, error) {
	if len(numbers) == 0 {
		return 0, nil
	}
	args := seatArgs(scheduleID, numbers, booked)
	args = append(args, !booked)
	res, err := r.db().ExecContext(ctx,
		`UPDATE schedule_seats SET is_booked = ? WHERE schedule_id = ? AND number IN (`+intdb.Placeholders(len(numbers))+`) AND is_booked = ?`,
		args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
