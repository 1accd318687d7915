package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrors(t *testing.T) {
	v := ValidationErrors{
		{Field: "returnFlightId", Reason: ReasonMissing},
		{Field: "availableSeats", Reason: ReasonExceeds},
	}

	if !v.Has("returnFlightId") || v.Has("flightId") {
		t.Errorf("Has() mismatch for %v", v.Fields())
	}
	if got := v.ReasonFor("availableSeats"); got != ReasonExceeds {
		t.Errorf("ReasonFor = %q", got)
	}
	want := "validation failed: returnFlightId: missing; availableSeats: exceeds total seats"
	if v.Error() != want {
		t.Errorf("Error() = %q, want %q", v.Error(), want)
	}

	var target ValidationErrors
	if !errors.As(fmt.Errorf("wrapped: %w", v), &target) || len(target) != 2 {
		t.Error("ValidationErrors should survive wrapping")
	}
}

func TestInsufficientInventoryError(t *testing.T) {
	err := &InsufficientInventoryError{Leg: "return", Requested: 80, Available: 70}

	if err.Shortfall() != 10 {
		t.Errorf("Shortfall() = %d, want 10", err.Shortfall())
	}
	d := err.Details()
	if d["leg"] != "return" || d["shortfall"] != 10 {
		t.Errorf("Details() = %v", d)
	}

	var target *InsufficientInventoryError
	if !errors.As(fmt.Errorf("reserve: %w", err), &target) {
		t.Error("expected errors.As to find InsufficientInventoryError")
	}
}
