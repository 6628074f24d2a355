package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	intconfig "busease/internal/config"
	intdb "busease/internal/db"
	"busease/internal/domain"
	"busease/internal/domain/models"
)

// ScheduleRepo persists schedules with their stops and seat inventory.
type ScheduleRepo struct {
	DB intdb.DBTX
	// Loc is the zone calendar dates are read back in.
	Loc *time.Location
}

func (r ScheduleRepo) db() intdb.DBTX {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r ScheduleRepo) loc() *time.Location {
	if r.Loc != nil {
		return r.Loc
	}
	return time.Local
}

const scheduleColumns = `id, name, origin, destination, price, photos, departure_date, departure_time, arrival_time, duration, amenities, description, total_seats`

func (r ScheduleRepo) scanSchedule(row rowScanner) (models.Schedule, error) {
	var (
		s         models.Schedule
		photos    sql.NullString
		amenities sql.NullString
		desc      sql.NullString
		depDate   time.Time
	)
	err := row.Scan(&s.ID, &s.Name, &s.Origin, &s.Destination, &s.Price, &photos, &depDate,
		&s.DepartureTime, &s.ArrivalTime, &s.Duration, &amenities, &desc, &s.TotalSeats)
	if err != nil {
		return s, err
	}
	s.DepartureDate = time.Date(depDate.Year(), depDate.Month(), depDate.Day(), 0, 0, 0, 0, r.loc())
	s.Description = desc.String
	if s.Photos, err = decodeList(photos); err != nil {
		return s, fmt.Errorf("schedule %d photos: %w", s.ID, err)
	}
	if s.Amenities, err = decodeList(amenities); err != nil {
		return s, fmt.Errorf("schedule %d amenities: %w", s.ID, err)
	}
	return s, nil
}

func decodeList(v sql.NullString) ([]string, error) {
	out := []string{}
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return []string{}, err
	}
	return out, nil
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (r ScheduleRepo) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO schedules (name, origin, destination, price, photos, departure_date, departure_time, arrival_time, duration, amenities, description, total_seats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Name, s.Origin, s.Destination, s.Price, encodeList(s.Photos), s.DepartureDate.Format("2006-01-02"),
		s.DepartureTime, s.ArrivalTime, s.Duration, encodeList(s.Amenities), s.Description, s.TotalSeats)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = domain.ID(id)

	if err := r.insertStops(ctx, s.ID, s.Stops); err != nil {
		return err
	}
	return r.insertSeats(ctx, s.ID, s.Seats)
}

func (r ScheduleRepo) insertStops(ctx context.Context, scheduleID domain.ID, stops []models.Stop) error {
	if len(stops) == 0 {
		return nil
	}
	args := make([]any, 0, len(stops)*4)
	values := make([]string, 0, len(stops))
	for i, st := range stops {
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, scheduleID, i, st.StopName, st.ArrivalTime)
	}
	_, err := r.db().ExecContext(ctx,
		`INSERT INTO schedule_stops (schedule_id, position, stop_name, arrival_time) VALUES `+strings.Join(values, ", "),
		args...)
	return err
}

func (r ScheduleRepo) insertSeats(ctx context.Context, scheduleID domain.ID, seats []models.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	args := make([]any, 0, len(seats)*3)
	values := make([]string, 0, len(seats))
	for _, seat := range seats {
		values = append(values, "(?, ?, ?)")
		args = append(args, scheduleID, seat.Number, seat.IsBooked)
	}
	_, err := r.db().ExecContext(ctx,
		`INSERT INTO schedule_seats (schedule_id, number, is_booked) VALUES `+strings.Join(values, ", "),
		args...)
	return err
}

func (r ScheduleRepo) GetSchedule(ctx context.Context, id domain.ID) (models.Schedule, error) {
	s, err := r.scanSchedule(r.db().QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Schedule{}, scheduleNotFound(err)
	}
	if err != nil {
		return models.Schedule{}, err
	}
	if err := r.loadChildren(ctx, &s); err != nil {
		return models.Schedule{}, err
	}
	return s, nil
}

func (r ScheduleRepo) loadChildren(ctx context.Context, s *models.Schedule) error {
	stops, err := r.db().QueryContext(ctx, `SELECT stop_name, arrival_time FROM schedule_stops WHERE schedule_id = ? ORDER BY position ASC`, s.ID)
	if err != nil {
		return err
	}
	s.Stops = []models.Stop{}
	for stops.Next() {
		var st models.Stop
		if err := stops.Scan(&st.StopName, &st.ArrivalTime); err != nil {
			stops.Close()
			return err
		}
		s.Stops = append(s.Stops, st)
	}
	stops.Close()
	if err := stops.Err(); err != nil {
		return err
	}

	seats, err := r.db().QueryContext(ctx, `SELECT number, is_booked FROM schedule_seats WHERE schedule_id = ? ORDER BY number ASC`, s.ID)
	if err != nil {
		return err
	}
	defer seats.Close()
	s.Seats = []models.Seat{}
	for seats.Next() {
		var seat models.Seat
		if err := seats.Scan(&seat.Number, &seat.IsBooked); err != nil {
			return err
		}
		s.Seats = append(s.Seats, seat)
	}
	return seats.Err()
}

func (r ScheduleRepo) ListSchedules(ctx context.Context, f models.ScheduleFilter) ([]models.Schedule, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Origin != "" {
		where = append(where, "LOWER(origin) = LOWER(?)")
		args = append(args, f.Origin)
	}
	if f.Destination != "" {
		where = append(where, "LOWER(destination) = LOWER(?)")
		args = append(args, f.Destination)
	}
	if f.Day != nil {
		where = append(where, "departure_date = ?")
		args = append(args, f.Day.Format("2006-01-02"))
	}
	if f.DepartingFrom != nil {
		where = append(where, "departure_date >= ?")
		args = append(args, f.DepartingFrom.Format("2006-01-02"))
	}

	rows, err := r.db().QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE `+strings.Join(where, " AND ")+` ORDER BY departure_date ASC, id ASC`,
		args...)
	if err != nil {
		return nil, err
	}
	list := []models.Schedule{}
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if HasAmenities(s, f.Amenities) {
			list = append(list, s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		if err := r.loadChildren(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// HasAmenities reports whether s carries every wanted amenity (case-insensitive).
func HasAmenities(s models.Schedule, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(s.Amenities))
	for _, a := range s.Amenities {
		have[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	for _, w := range wanted {
		if _, ok := have[strings.ToLower(strings.TrimSpace(w))]; !ok {
			return false
		}
	}
	return true
}

// UpdateSchedule rewrites the schedule columns and its stops. Seats are
// managed through AddSeats/RemoveSeats.
func (r ScheduleRepo) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	_, err := r.db().ExecContext(ctx, `
		UPDATE schedules
		SET name = ?, origin = ?, destination = ?, price = ?, photos = ?, departure_date = ?,
		    departure_time = ?, arrival_time = ?, duration = ?, amenities = ?, description = ?, total_seats = ?
		WHERE id = ?
	`, s.Name, s.Origin, s.Destination, s.Price, encodeList(s.Photos), s.DepartureDate.Format("2006-01-02"),
		s.DepartureTime, s.ArrivalTime, s.Duration, encodeList(s.Amenities), s.Description, s.TotalSeats, s.ID)
	if err != nil {
		return err
	}
	if _, err := r.db().ExecContext(ctx, `DELETE FROM schedule_stops WHERE schedule_id = ?`, s.ID); err != nil {
		return err
	}
	return r.insertStops(ctx, s.ID, s.Stops)
}

// DeleteSchedule removes the schedule; stops and seats go with it by FK cascade.
func (r ScheduleRepo) DeleteSchedule(ctx context.Context, id domain.ID) error {
	res, err := r.db().ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return scheduleNotFound(nil)
	}
	return nil
}
