package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Conflict codes carried by ConflictError.
const (
	CodeSeatsAlreadyBooked = "seats_already_booked"
	CodeAlreadyCancelled   = "already_cancelled"
	CodeAlreadyCompleted   = "already_completed"
	CodeDuplicate          = "duplicate"
)

// Policy codes carried by PolicyViolationError.
const (
	CodeCancellationWindowExpired = "cancellation_window_expired"
)

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Code     string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// SeatsAlreadyBookedError lists exactly the requested seats that were taken.
type SeatsAlreadyBookedError struct {
	Seats []int
}

func (e SeatsAlreadyBookedError) Error() string {
	parts := make([]string, 0, len(e.Seats))
	for _, n := range e.Seats {
		parts = append(parts, strconv.Itoa(n))
	}
	return fmt.Sprintf("Seats %s are already booked", strings.Join(parts, ", "))
}

func (e SeatsAlreadyBookedError) Unwrap() error {
	return ConflictError{Resource: "seat", Code: CodeSeatsAlreadyBooked, Msg: e.Error()}
}

type PolicyViolationError struct {
	Code string
	Msg  string
}

func (e PolicyViolationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "policy violation"
}

type UnauthorizedError struct {
	Msg string
}

func (e UnauthorizedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "unauthorized"
}

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "forbidden"
}

// ExternalServiceError wraps failures of mail, payment, maps or LLM providers.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	if e.Err == nil {
		return e.Service + " unavailable"
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e ExternalServiceError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

// ConflictCode returns the Code of the first ConflictError in the chain.
func ConflictCode(err error) string {
	var target ConflictError
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}

func IsPolicy(err error) bool {
	var target PolicyViolationError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target UnauthorizedError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsExternal(err error) bool {
	var target ExternalServiceError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
