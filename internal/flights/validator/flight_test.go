package validator

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	flighterrors "kayak/internal/flights/errors"
	"kayak/pkg/logger"
	"kayak/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]any {
	return map[string]any{
		"flightId": " ua100 ",
		"airline":  "United   Airlines",
		"departureAirport": map[string]any{
			"code":    "jfk",
			"name":    "John F. Kennedy International",
			"city":    "New York",
			"country": "USA",
		},
		"arrivalAirport": map[string]any{
			"code":    "LAX",
			"name":    "Los Angeles International",
			"city":    "Los Angeles",
			"country": "USA",
		},
		"departureDateTime":         "2025-03-10T08:00:00Z",
		"arrivalDateTime":           "2025-03-10T14:00",
		"duration":                  map[string]any{"hours": 6, "minutes": 25},
		"flightClass":               "economy",
		"ticketPrice":               "349.99",
		"totalAvailableSeats":       json.Number("100"),
		"availableSeats":            100.0,
		"returnFlightId":            "UA101",
		"returnDepartureDateTime":   "2025-03-17T09:00:00Z",
		"returnArrivalDateTime":     "2025-03-17T17:30:00Z",
		"returnDuration":            map[string]any{"hours": 5, "minutes": 30},
		"returnTicketPrice":         329.5,
		"returnFlightClass":         "Economy",
		"returnTotalAvailableSeats": 120,
		"returnAvailableSeats":      110,
		"amenities":                 []any{" WiFi ", "Meals", "", "WiFi"},
	}
}

func without(raw map[string]any, key string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func with(raw map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	out[key] = value
	return out
}

func validationErrors(t *testing.T, err error) flighterrors.ValidationErrors {
	t.Helper()
	require.Error(t, err)
	var verrs flighterrors.ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %T: %v", err, err)
	return verrs
}

func newValidator() *FlightValidator {
	return NewFlightValidator(logger.Discard())
}

func TestValidateForCreate_NormalizesRecord(t *testing.T) {
	f, err := newValidator().ValidateForCreate(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "UA100", f.FlightID)
	assert.Equal(t, "United Airlines", f.Airline)
	assert.Equal(t, "JFK", f.DepartureAirport.Code)
	assert.Equal(t, model.Duration{Hours: 6, Minutes: 0}, f.Duration, "outbound minutes are always zeroed")
	assert.Equal(t, model.Duration{Hours: 5, Minutes: 30}, f.ReturnDuration)
	assert.Equal(t, model.Economy, f.FlightClass)
	assert.Equal(t, 349.99, f.TicketPrice)
	assert.Equal(t, 100, f.TotalAvailableSeats)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), f.ArrivalDateTime)
	assert.Equal(t, []string{"WiFi", "Meals"}, f.Amenities)
	assert.NotNil(t, f.PassengerReviews)
	assert.Empty(t, f.PassengerReviews)
	assert.Equal(t, model.Rating{}, f.FlightRating)
}

func TestValidateForCreate_IgnoresDerivedFields(t *testing.T) {
	raw := validRaw()
	raw["id"] = "65f1c0ffee0000000000abcd"
	raw["flightRating"] = map[string]any{"average": 5, "count": 1000}
	raw["passengerReviews"] = []any{map[string]any{"rating": 5}}

	f, err := newValidator().ValidateForCreate(raw)
	require.NoError(t, err)

	assert.Empty(t, f.ID)
	assert.Equal(t, model.Rating{}, f.FlightRating)
	assert.Empty(t, f.PassengerReviews)
}

func TestValidateForCreate_DefaultsOutboundClassOnly(t *testing.T) {
	f, err := newValidator().ValidateForCreate(with(validRaw(), "flightClass", "  "))
	require.NoError(t, err)
	assert.Equal(t, model.Economy, f.FlightClass)

	_, err = newValidator().ValidateForCreate(with(validRaw(), "returnFlightClass", ""))
	verrs := validationErrors(t, err)
	assert.Equal(t, flighterrors.ReasonMissing, verrs.ReasonFor("returnFlightClass"))
}

func TestValidateForCreate_MissingReturnFieldIsNamed(t *testing.T) {
	returnFields := []string{
		"returnFlightId",
		"returnDepartureDateTime",
		"returnArrivalDateTime",
		"returnDuration",
		"returnTicketPrice",
		"returnFlightClass",
		"returnTotalAvailableSeats",
		"returnAvailableSeats",
	}

	for _, field := range returnFields {
		t.Run(field, func(t *testing.T) {
			_, err := newValidator().ValidateForCreate(without(validRaw(), field))
			verrs := validationErrors(t, err)
			assert.Equal(t, []string{field}, verrs.Fields())
			assert.Equal(t, flighterrors.ReasonMissing, verrs.ReasonFor(field))
		})
	}
}

func TestValidateForCreate_BlankFormsAreEquivalent(t *testing.T) {
	blanks := map[string]any{
		"omitted":    nil,
		"null":       nil,
		"empty":      "",
		"whitespace": "   \t",
	}

	for name, value := range blanks {
		t.Run(name, func(t *testing.T) {
			raw := with(validRaw(), "returnFlightId", value)
			if name == "omitted" {
				raw = without(validRaw(), "returnFlightId")
			}
			_, err := newValidator().ValidateForCreate(raw)
			verrs := validationErrors(t, err)
			assert.Equal(t, flighterrors.ValidationErrors{{Field: "returnFlightId", Reason: flighterrors.ReasonMissing}}, verrs)
		})
	}
}

func TestValidateForCreate_ZeroReturnDurationEqualsMissing(t *testing.T) {
	cases := map[string]map[string]any{
		"absent":      without(validRaw(), "returnDuration"),
		"null":        with(validRaw(), "returnDuration", nil),
		"zero hours":  with(validRaw(), "returnDuration", map[string]any{"hours": 0, "minutes": 45}),
		"blank hours": with(validRaw(), "returnDuration", map[string]any{"hours": "", "minutes": 10}),
		"not object":  with(validRaw(), "returnDuration", "5h"),
	}

	var first flighterrors.ValidationErrors
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newValidator().ValidateForCreate(raw)
			verrs := validationErrors(t, err)
			assert.Equal(t, flighterrors.ValidationErrors{{Field: "returnDuration", Reason: flighterrors.ReasonMissing}}, verrs)
			if first == nil {
				first = verrs
			}
			assert.Equal(t, first, verrs)
		})
	}
}

func TestValidateForCreate_FractionalHours(t *testing.T) {
	raw := with(validRaw(), "duration", map[string]any{"hours": 2.5})
	raw["returnDuration"] = map[string]any{"hours": "0.5", "minutes": 15}

	f, err := newValidator().ValidateForCreate(raw)
	require.NoError(t, err)
	assert.Equal(t, model.Duration{Hours: 2.5}, f.Duration)
	assert.Equal(t, model.Duration{Hours: 0.5, Minutes: 15}, f.ReturnDuration)

	_, err = newValidator().ValidateForCreate(with(validRaw(), "duration", map[string]any{"hours": -1.5}))
	verrs := validationErrors(t, err)
	assert.Equal(t, flighterrors.ReasonRange, verrs.ReasonFor("duration.hours"))

	_, err = newValidator().ValidateForCreate(with(validRaw(), "returnDuration", map[string]any{"hours": 4.5, "minutes": 7.5}))
	verrs = validationErrors(t, err)
	assert.Equal(t, flighterrors.ReasonInvalid, verrs.ReasonFor("returnDuration.minutes"))
}

func TestValidateForCreate_CollectsEveryViolation(t *testing.T) {
	raw := validRaw()
	delete(raw, "airline")
	raw["returnFlightId"] = ""
	raw["availableSeats"] = 150
	raw["ticketPrice"] = -1
	raw["returnDuration"] = map[string]any{"hours": 4, "minutes": 75}
	raw["departureAirport"] = map[string]any{"code": "JF1", "name": "x", "city": "y", "country": "z"}
	raw["flightClass"] = "Premium"

	_, err := newValidator().ValidateForCreate(raw)
	verrs := validationErrors(t, err)

	assert.ElementsMatch(t, []string{
		"airline",
		"returnFlightId",
		"availableSeats",
		"ticketPrice",
		"returnDuration.minutes",
		"departureAirport.code",
		"flightClass",
	}, verrs.Fields())
	assert.Equal(t, flighterrors.ReasonExceeds, verrs.ReasonFor("availableSeats"))
	assert.Equal(t, flighterrors.ReasonRange, verrs.ReasonFor("ticketPrice"))
	assert.Equal(t, flighterrors.ReasonRange, verrs.ReasonFor("returnDuration.minutes"))
}

func TestValidateForCreate_SeatBounds(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{"outbound exceeds total", with(validRaw(), "availableSeats", 101), "availableSeats"},
		{"return exceeds total", with(validRaw(), "returnAvailableSeats", 121), "returnAvailableSeats"},
		{"negative seats", with(validRaw(), "returnAvailableSeats", -1), "returnAvailableSeats"},
		{"fractional seats", with(validRaw(), "totalAvailableSeats", 10.5), "totalAvailableSeats"},
		{"non numeric", with(validRaw(), "availableSeats", "lots"), "availableSeats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newValidator().ValidateForCreate(tt.raw)
			verrs := validationErrors(t, err)
			assert.True(t, verrs.Has(tt.field), "fields = %v", verrs.Fields())
		})
	}

	f, err := newValidator().ValidateForCreate(with(with(validRaw(), "availableSeats", 0), "totalAvailableSeats", 0))
	require.NoError(t, err, "zero seats is a value, not a blank")
	assert.Equal(t, 0, f.AvailableSeats)
}

func TestValidateForCreate_MissingTotalDoesNotReportExceeds(t *testing.T) {
	_, err := newValidator().ValidateForCreate(without(validRaw(), "totalAvailableSeats"))
	verrs := validationErrors(t, err)
	assert.Equal(t, []string{"totalAvailableSeats"}, verrs.Fields())
}

func TestValidateForCreate_FlightIDsMustDiffer(t *testing.T) {
	_, err := newValidator().ValidateForCreate(with(validRaw(), "returnFlightId", "ua 100"))
	verrs := validationErrors(t, err)
	assert.Equal(t, flighterrors.ReasonSameAsID, verrs.ReasonFor("returnFlightId"))
}

func TestValidateForCreate_InvalidTimestamp(t *testing.T) {
	_, err := newValidator().ValidateForCreate(with(validRaw(), "returnArrivalDateTime", "next tuesday"))
	verrs := validationErrors(t, err)
	assert.Equal(t, flighterrors.ReasonInvalid, verrs.ReasonFor("returnArrivalDateTime"))
}

func TestValidateForCreate_Idempotent(t *testing.T) {
	v := newValidator()

	once, err := v.ValidateForCreate(validRaw())
	require.NoError(t, err)

	asMap, err := toMap(once)
	require.NoError(t, err)

	twice, err := v.ValidateForCreate(asMap)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func existingFlight(t *testing.T) *model.Flight {
	t.Helper()
	f, err := newValidator().ValidateForCreate(validRaw())
	require.NoError(t, err)
	f.ID = "65f1c0ffee0000000000abcd"
	f.PassengerReviews = []model.Review{{UserID: "u1", UserName: "Ann", Rating: 4}}
	f.FlightRating = model.ComputeRating(f.PassengerReviews)
	f.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return f
}

func TestValidateForUpdate_MergePreservesNestedFields(t *testing.T) {
	existing := existingFlight(t)

	merged, err := newValidator().ValidateForUpdate(existing, map[string]any{
		"returnDuration": map[string]any{"hours": 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, merged.ReturnDuration.Hours)
	assert.Equal(t, existing.ReturnDuration.Minutes, merged.ReturnDuration.Minutes)
	assert.Equal(t, 30, merged.ReturnDuration.Minutes)
}

func TestValidateForUpdate_MergesAirportKeyByKey(t *testing.T) {
	existing := existingFlight(t)

	merged, err := newValidator().ValidateForUpdate(existing, map[string]any{
		"arrivalAirport": map[string]any{"code": "sfo", "city": "San Francisco"},
	})
	require.NoError(t, err)

	assert.Equal(t, "SFO", merged.ArrivalAirport.Code)
	assert.Equal(t, "San Francisco", merged.ArrivalAirport.City)
	assert.Equal(t, existing.ArrivalAirport.Name, merged.ArrivalAirport.Name)
	assert.Equal(t, existing.ArrivalAirport.Country, merged.ArrivalAirport.Country)
}

func TestValidateForUpdate_KeepsIdentityAndReviews(t *testing.T) {
	existing := existingFlight(t)

	merged, err := newValidator().ValidateForUpdate(existing, map[string]any{
		"ticketPrice":      199,
		"id":               "someone-else",
		"flightRating":     map[string]any{"average": 5, "count": 99},
		"passengerReviews": []any{},
	})
	require.NoError(t, err)

	assert.Equal(t, 199.0, merged.TicketPrice)
	assert.Equal(t, existing.ID, merged.ID)
	assert.Equal(t, existing.FlightRating, merged.FlightRating)
	assert.Equal(t, existing.PassengerReviews, merged.PassengerReviews)
	assert.Equal(t, existing.CreatedAt, merged.CreatedAt)
}

func TestValidateForUpdate_CannotDropReturnLeg(t *testing.T) {
	existing := existingFlight(t)

	_, err := newValidator().ValidateForUpdate(existing, map[string]any{
		"returnFlightId": nil,
		"returnDuration": map[string]any{"hours": 0},
	})
	verrs := validationErrors(t, err)
	assert.ElementsMatch(t, []string{"returnFlightId", "returnDuration"}, verrs.Fields())
}

func TestValidateForUpdate_SeatBoundOnMergedRecord(t *testing.T) {
	existing := existingFlight(t)

	_, err := newValidator().ValidateForUpdate(existing, map[string]any{"totalAvailableSeats": 50})
	verrs := validationErrors(t, err)
	assert.Equal(t, flighterrors.ReasonExceeds, verrs.ReasonFor("availableSeats"))
}

func TestValidateReview(t *testing.T) {
	tests := []struct {
		name      string
		review    model.Review
		wantField string
	}{
		{name: "valid", review: model.Review{UserID: "u1", UserName: " Ann ", Rating: 5, Comment: "Great"}},
		{name: "rating too high", review: model.Review{UserID: "u1", UserName: "Ann", Rating: 6}, wantField: "rating"},
		{name: "rating missing", review: model.Review{UserID: "u1", UserName: "Ann"}, wantField: "rating"},
		{name: "blank user", review: model.Review{UserID: "  ", UserName: "Ann", Rating: 3}, wantField: "userId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review := tt.review
			err := newValidator().ValidateReview(&review)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "Ann", review.UserName)
				return
			}
			verrs := validationErrors(t, err)
			assert.True(t, verrs.Has(tt.wantField), "fields = %v", verrs.Fields())
		})
	}
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{nil, true},
		{"", true},
		{"  \n", true},
		{"x", false},
		{0, false},
		{0.0, false},
		{false, false},
		{json.Number(""), true},
		{map[string]any{}, false},
	}

	for _, tt := range tests {
		if got := IsBlank(tt.value); got != tt.want {
			t.Errorf("IsBlank(%#v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
