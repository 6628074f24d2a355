package db

import (
	"context"
	"fmt"
	"log/slog"
)

type tableDDL struct {
	name string
	ddl  string
}

// Order matters: referenced tables first.
var schema = []tableDDL{
	{"users", `
CREATE TABLE users (
	id            BIGINT AUTO_INCREMENT PRIMARY KEY,
	username      VARCHAR(64)  NOT NULL,
	email         VARCHAR(191) NOT NULL,
	phone         VARCHAR(32)  NOT NULL DEFAULT '',
	img           VARCHAR(512) NOT NULL DEFAULT '',
	password_hash VARCHAR(255) NOT NULL,
	is_admin      TINYINT(1)   NOT NULL DEFAULT 0,
	created_at    DATETIME     NOT NULL,
	updated_at    DATETIME     NOT NULL,
	UNIQUE KEY uq_users_username (username),
	UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"schedules", `
CREATE TABLE schedules (
	id             BIGINT AUTO_INCREMENT PRIMARY KEY,
	name           VARCHAR(191)  NOT NULL,
	origin         VARCHAR(191)  NOT NULL,
	destination    VARCHAR(191)  NOT NULL,
	price          DECIMAL(10,2) NOT NULL,
	photos         JSON          NULL,
	departure_date DATE          NOT NULL,
	departure_time VARCHAR(16)   NOT NULL,
	arrival_time   VARCHAR(16)   NOT NULL,
	duration       VARCHAR(16)   NOT NULL DEFAULT '',
	amenities      JSON          NULL,
	description    TEXT          NULL,
	total_seats    INT           NOT NULL,
	KEY idx_schedules_route (origin, destination, departure_date)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"schedule_stops", `
CREATE TABLE schedule_stops (
	schedule_id  BIGINT       NOT NULL,
	position     INT          NOT NULL,
	stop_name    VARCHAR(191) NOT NULL,
	arrival_time VARCHAR(16)  NOT NULL DEFAULT '',
	PRIMARY KEY (schedule_id, position),
	CONSTRAINT fk_stops_schedule FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"schedule_seats", `
CREATE TABLE schedule_seats (
	schedule_id BIGINT     NOT NULL,
	number      INT        NOT NULL,
	is_booked   TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (schedule_id, number),
	CONSTRAINT fk_seats_schedule FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"bookings", `
CREATE TABLE bookings (
	id           BIGINT AUTO_INCREMENT PRIMARY KEY,
	user_id      BIGINT        NOT NULL,
	schedule_id  BIGINT        NOT NULL,
	total_price  DECIMAL(10,2) NOT NULL,
	booking_date DATETIME      NOT NULL,
	status       VARCHAR(16)   NOT NULL DEFAULT 'ongoing',
	KEY idx_bookings_user (user_id),
	KEY idx_bookings_schedule (schedule_id),
	CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users(id),
	CONSTRAINT fk_bookings_schedule FOREIGN KEY (schedule_id) REFERENCES schedules(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"booking_seats", `
CREATE TABLE booking_seats (
	booking_id  BIGINT NOT NULL,
	seat_number INT    NOT NULL,
	PRIMARY KEY (booking_id, seat_number),
	CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

type columnDDL struct {
	table  string
	column string
	ddl    string
}

// Columns added after a table first shipped. Fresh tables already have them.
var columns = []columnDDL{
	{"users", "img", `ALTER TABLE users ADD COLUMN img VARCHAR(512) NOT NULL DEFAULT '' AFTER phone`},
	{"schedules", "amenities", `ALTER TABLE schedules ADD COLUMN amenities JSON NULL AFTER duration`},
	{"schedules", "description", `ALTER TABLE schedules ADD COLUMN description TEXT NULL AFTER amenities`},
}

// Migrate creates missing tables and adds missing columns to existing ones.
func Migrate(ctx context.Context, q DBTX) error {
	for _, t := range schema {
		if HasTable(ctx, q, t.name) {
			continue
		}
		if _, err := q.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		slog.Info("created table", "table", t.name)
	}
	for _, c := range columns {
		if HasColumn(ctx, q, c.table, c.column) {
			continue
		}
		if _, err := q.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.column, err)
		}
		slog.Info("added column", "table", c.table, "column", c.column)
	}
	return nil
}
