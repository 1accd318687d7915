package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("flight not found")

	ErrInvalidID = errors.New("invalid flight ID format")

	ErrDuplicateFlightID = errors.New("flight with this flightId already exists")

	// ErrSeatsChanged is returned when seat counts moved between reading a record and writing it back.
	ErrSeatsChanged = errors.New("flight seat inventory changed concurrently")
)

const (
	ReasonMissing  = "missing"
	ReasonInvalid  = "invalid"
	ReasonRange    = "out of range"
	ReasonExceeds  = "exceeds total seats"
	ReasonSameAsID = "must differ from flightId"
)

// ValidationError is one violated rule on one field, addressed by its JSON path.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationErrors carries every violation found in a single pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, e := range v {
		fields[i] = e.Field
	}
	return fields
}

func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ReasonFor returns the first reason recorded for field, or "".
func (v ValidationErrors) ReasonFor(field string) string {
	for _, e := range v {
		if e.Field == field {
			return e.Reason
		}
	}
	return ""
}

// InsufficientInventoryError reports the first leg, outbound before return, that
// could not cover the request.
type InsufficientInventoryError struct {
	Leg       string
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient %s inventory: requested %d, available %d, short by %d",
		e.Leg, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientInventoryError) Details() map[string]any {
	return map[string]any{
		"leg":       e.Leg,
		"requested": e.Requested,
		"available": e.Available,
		"shortfall": e.Shortfall(),
	}
}
