package repositories

import (
	"context"
	"testing"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestBookingRepoCreateBooking_InsertsSeatNumbers(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(int64(3), int64(4), 50.0, sqlmock.AnyArg(), "ongoing").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO booking_seats \(booking_id, seat_number\) VALUES \(\?, \?\), \(\?, \?\)`).
		WithArgs(int64(11), int64(1), int64(11), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	b := models.Booking{UserID: 3, ScheduleID: 4, SeatNumbers: []int{1, 2}, TotalPrice: 50, BookingDate: time.Now(), Status: domain.StatusOngoing}
	if err := (BookingRepo{DB: db}).CreateBooking(context.Background(), &b); err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}
	if b.ID != 11 {
		t.Fatalf("expected id 11, got %d", b.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookingRepoGetBooking_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, user_id, schedule_id, total_price, booking_date, status FROM bookings WHERE id = \?`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "schedule_id", "total_price", "booking_date", "status"}))

	_, err = BookingRepo{DB: db}.GetBooking(context.Background(), 42)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "Booking not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestBookingRepoListBookings_FiltersAndLoadsSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM bookings WHERE 1=1 AND user_id = \? AND status = \? ORDER BY booking_date DESC, id DESC`).
		WithArgs(int64(3), "ongoing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "schedule_id", "total_price", "booking_date", "status"}).
			AddRow(int64(8), int64(3), int64(4), "25.00", now, "ongoing"))
	mock.ExpectQuery(`SELECT seat_number FROM booking_seats WHERE booking_id = \?`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(int64(5)))

	list, err := BookingRepo{DB: db}.ListBookings(context.Background(), models.BookingFilter{UserID: 3, Status: domain.StatusOngoing})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if len(list) != 1 || list[0].TotalPrice != 25 || len(list[0].SeatNumbers) != 1 || list[0].SeatNumbers[0] != 5 {
		t.Fatalf("unexpected bookings: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepoCreateUser_DuplicateIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	u := models.User{Username: "amir", Email: "amir@example.com", PasswordHash: "x"}
	err = UserRepo{DB: db}.CreateUser(context.Background(), &u)
	if domain.ConflictCode(err) != domain.CodeDuplicate {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}

func TestScheduleRepoCreateSchedule_WritesStopsAndSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO schedules`).
		WithArgs("Bus A", "george town (Penang Sentral)", "Kuala Lumpur (Tbs)", 35.5, `[]`, "2025-01-10",
			"10:30 AM", "3:00 PM", "4h 30m", `["wifi"]`, "", 2).
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectExec(`INSERT INTO schedule_stops \(schedule_id, position, stop_name, arrival_time\) VALUES \(\?, \?, \?, \?\)`).
		WithArgs(int64(6), int64(0), "Ipoh", "12:30 PM").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO schedule_seats \(schedule_id, number, is_booked\) VALUES \(\?, \?, \?\), \(\?, \?, \?\)`).
		WithArgs(int64(6), int64(1), false, int64(6), int64(2), false).
		WillReturnResult(sqlmock.NewResult(0, 2))

	s := models.Schedule{
		Name:          "Bus A",
		Origin:        "george town (Penang Sentral)",
		Destination:   "Kuala Lumpur (Tbs)",
		Price:         35.5,
		DepartureDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		DepartureTime: "10:30 AM",
		ArrivalTime:   "3:00 PM",
		Duration:      "4h 30m",
		Amenities:     []string{"wifi"},
		Stops:         []models.Stop{{StopName: "Ipoh", ArrivalTime: "12:30 PM"}},
		TotalSeats:    2,
		Seats:         []models.Seat{{Number: 1}, {Number: 2}},
	}
	if err := (ScheduleRepo{DB: db}).CreateSchedule(context.Background(), &s); err != nil {
		t.Fatalf("CreateSchedule returned error: %v", err)
	}
	if s.ID != 6 {
		t.Fatalf("expected id 6, got %d", s.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestScheduleRepoListSchedules_FiltersAmenitiesInGo(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cols := []string{"id", "name", "origin", "destination", "price", "photos", "departure_date", "departure_time", "arrival_time", "duration", "amenities", "description", "total_seats"}
	dep := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM schedules WHERE 1=1 AND LOWER\(origin\) = LOWER\(\?\) AND departure_date = \?`).
		WithArgs("ipoh (terminal amanjaya)", "2025-01-10").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "Bus A", "Ipoh (Terminal Amanjaya)", "Kuala Lumpur (Tbs)", "20.00", nil, dep, "9:00 AM", "11:00 AM", "2h 0m", `["wifi","usb"]`, "fast", int64(1)).
			AddRow(int64(2), "Bus B", "Ipoh (Terminal Amanjaya)", "Kuala Lumpur (Tbs)", "18.00", nil, dep, "1:00 PM", "3:00 PM", "2h 0m", `["usb"]`, nil, int64(1)))
	mock.ExpectQuery(`SELECT stop_name, arrival_time FROM schedule_stops`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"stop_name", "arrival_time"}))
	mock.ExpectQuery(`SELECT number, is_booked FROM schedule_seats`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"number", "is_booked"}).AddRow(int64(1), int64(0)))

	list, err := ScheduleRepo{DB: db, Loc: time.UTC}.ListSchedules(context.Background(), models.ScheduleFilter{
		Origin:    "ipoh (terminal amanjaya)",
		Day:       &dep,
		Amenities: []string{"WiFi"},
	})
	if err != nil {
		t.Fatalf("ListSchedules returned error: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Bus A" || list[0].AvailableSeats() != 1 {
		t.Fatalf("unexpected schedules: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
