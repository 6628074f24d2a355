package domain

import (
	"strconv"
	"strings"
)

// ID is used across domain entities.
type ID int64

// ParseID accepts positive decimal identifiers only.
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, ValidationError{Field: "id", Msg: "invalid identifier format", Err: err}
	}
	return ID(n), nil
}

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Status represents a booking lifecycle state.
type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// HoldsSeats reports whether a booking in this state keeps its seats booked.
func (s Status) HoldsSeats() bool {
	return s == StatusOngoing || s == StatusCompleted
}

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID  ID   `json:"id"`
	IsAdmin bool `json:"isAdmin"`
}

func (rc RequestContext) Authenticated() bool { return rc.UserID > 0 }

// CanActFor is the owner rule: the caller is the owner, or an admin.
func (rc RequestContext) CanActFor(owner ID) bool {
	if rc.IsAdmin {
		return true
	}
	return rc.Authenticated() && rc.UserID == owner
}
