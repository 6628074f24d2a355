package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSeatRepoSetSeatsBooked_OnlyFlipsOppositeState(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE schedule_seats SET is_booked = \? WHERE schedule_id = \? AND number IN \(\?, \?\) AND is_booked = \?`).
		WithArgs(true, int64(7), int64(3), int64(4), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := SeatRepo{DB: db}.SetSeatsBooked(context.Background(), 7, []int{3, 4}, true)
	if err != nil {
		t.Fatalf("SetSeatsBooked returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 flipped seat, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeatRepoSetSeatsBooked_EmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	n, err := SeatRepo{DB: db}.SetSeatsBooked(context.Background(), 7, nil, false)
	if err != nil || n != 0 {
		t.Fatalf("expected noop, got n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeatRepoLockSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT number, is_booked FROM schedule_seats WHERE schedule_id = \? AND number IN \(\?, \?, \?\) ORDER BY number ASC FOR UPDATE`).
		WithArgs(int64(2), int64(1), int64(2), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"number", "is_booked"}).
			AddRow(1, false).
			AddRow(2, true))

	seats, err := SeatRepo{DB: db}.LockSeats(context.Background(), 2, []int{1, 2, 99})
	if err != nil {
		t.Fatalf("LockSeats returned error: %v", err)
	}
	if len(seats) != 2 || seats[0].IsBooked || !seats[1].IsBooked {
		t.Fatalf("unexpected seats: %+v", seats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeatRepoRemoveSeats_KeepsBooked(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM schedule_seats WHERE schedule_id = \? AND number IN \(\?, \?\) AND is_booked = 0`).
		WithArgs(int64(5), int64(39), int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := SeatRepo{DB: db}.RemoveSeats(context.Background(), 5, []int{39, 40})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removed, got n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLStoreWithTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedule_seats SET is_booked`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	store := NewMySQLStore(db, nil)
	boom := errors.New("boom")
	err = store.WithTx(context.Background(), func(q Queries) error {
		if _, err := q.SetSeatsBooked(context.Background(), 1, []int{1}, true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLStoreWithTx_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET status = \? WHERE id = \? AND status = \?`).
		WithArgs("cancelled", int64(9), "ongoing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewMySQLStore(db, nil)
	var moved bool
	err = store.WithTx(context.Background(), func(q Queries) error {
		var err error
		moved, err = q.SetBookingStatus(context.Background(), 9, "ongoing", "cancelled")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx returned error: %v", err)
	}
	if !moved {
		t.Fatalf("expected status to move")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
