package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intdb "busease/internal/db"
)

type sqlQueries struct {
	UserRepo
	ScheduleRepo
	SeatRepo
	BookingRepo
}

func newSQLQueries(q intdb.DBTX, loc *time.Location) sqlQueries {
	return sqlQueries{
		UserRepo:     UserRepo{DB: q},
		ScheduleRepo: ScheduleRepo{DB: q, Loc: loc},
		SeatRepo:     SeatRepo{DB: q},
		BookingRepo:  BookingRepo{DB: q},
	}
}

// MySQLStore runs Queries against a *sql.DB, or a *sql.Tx inside WithTx.
type MySQLStore struct {
	sqlQueries
	conn *sql.DB
	loc  *time.Location
}

func NewMySQLStore(conn *sql.DB, loc *time.Location) *MySQLStore {
	return &MySQLStore{
		sqlQueries: newSQLQueries(conn, loc),
		conn:       conn,
		loc:        loc,
	}
}

func (s *MySQLStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newSQLQueries(tx, s.loc)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
