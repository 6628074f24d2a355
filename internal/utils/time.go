package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	layoutDate     = "2006-01-02"
	layoutLongDate = "January 2, 2006"
)

// ParseDate parses YYYY-MM-DD (or an RFC3339 timestamp) as a calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(layoutDate, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(layoutDate)
}

// FormatLongDate renders dates as "January 10, 2025".
func FormatLongDate(t time.Time) string {
	return t.Format(layoutLongDate)
}

// ParseClock reads "10:30 AM", "12:05 pm" or "14:45" into 24-hour hour/minute.
// A missing AM/PM marker leaves the hour untouched.
func ParseClock(s string) (hour, minute int, err error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 || len(fields) > 2 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hm := strings.SplitN(fields[0], ":", 2)
	if len(hm) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err = strconv.Atoi(hm[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case "PM":
			if hour != 12 {
				hour += 12
			}
		case "AM":
			if hour == 12 {
				hour = 0
			}
		default:
			return 0, 0, fmt.Errorf("invalid period in %q", s)
		}
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	return hour, minute, nil
}

// TripDuration renders the time-of-day difference as "Xh Ym", wrapping past midnight.
func TripDuration(departure, arrival string) (string, error) {
	dh, dm, err := ParseClock(departure)
	if err != nil {
		return "", err
	}
	ah, am, err := ParseClock(arrival)
	if err != nil {
		return "", err
	}
	hours := ah - dh
	minutes := am - dm
	if minutes < 0 {
		minutes += 60
		hours--
	}
	if hours < 0 {
		hours += 24
	}
	return fmt.Sprintf("%dh %dm", hours, minutes), nil
}

// DepartureInstant combines a calendar date with a clock string in loc.
func DepartureInstant(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = date.Location()
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc), nil
}
