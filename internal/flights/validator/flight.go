package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	flighterrors "kayak/internal/flights/errors"
	"kayak/pkg/logger"
	"kayak/pkg/model"
	"kayak/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

// Keys a caller can never set directly; they are owned by storage or derived.
var immutableKeys = []string{"id", "_id", "flightRating", "passengerReviews", "createdAt", "updatedAt"}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

type FlightValidator struct {
	validate *validator.Validate
	log      *logger.Logger
}

func NewFlightValidator(log *logger.Logger) *FlightValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &FlightValidator{
		validate: v,
		log:      log,
	}
}

// IsBlank is the single definition of "missing": nil, or a string that is empty
// after trimming. Zero numbers are values, not blanks.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case json.Number:
		return strings.TrimSpace(string(t)) == ""
	}
	return false
}

// ValidateForCreate checks a raw field map and returns the normalized record.
// Every violation is collected; the returned error is flighterrors.ValidationErrors.
func (v *FlightValidator) ValidateForCreate(raw map[string]any) (*model.Flight, error) {
	r := &fieldReader{raw: raw}
	f := &model.Flight{}

	f.FlightID = sanitizer.NormalizeCode(r.requiredString("flightId"))
	f.Airline = sanitizer.CollapseSpace(r.requiredString("airline"))
	f.DepartureAirport = r.airport("departureAirport")
	f.ArrivalAirport = r.airport("arrivalAirport")
	f.DepartureDateTime = r.requiredTime("departureDateTime")
	f.ArrivalDateTime = r.requiredTime("arrivalDateTime")
	f.Duration = model.Duration{Hours: r.requiredNumber("duration.hours")}
	f.FlightClass = r.flightClass("flightClass", model.Economy)
	f.TicketPrice = r.requiredNumber("ticketPrice")
	f.TotalAvailableSeats = r.requiredWhole("totalAvailableSeats")
	f.AvailableSeats = r.requiredWhole("availableSeats")

	f.ReturnFlightID = sanitizer.NormalizeCode(r.requiredString("returnFlightId"))
	f.ReturnDepartureDateTime = r.requiredTime("returnDepartureDateTime")
	f.ReturnArrivalDateTime = r.requiredTime("returnArrivalDateTime")
	f.ReturnDuration = r.returnDuration("returnDuration")
	f.ReturnTicketPrice = r.requiredNumber("returnTicketPrice")
	f.ReturnFlightClass = r.flightClass("returnFlightClass", "")
	f.ReturnTotalAvailableSeats = r.requiredWhole("returnTotalAvailableSeats")
	f.ReturnAvailableSeats = r.requiredWhole("returnAvailableSeats")

	f.Amenities = sanitizer.NormalizeAmenities(r.stringList("amenities"))
	f.PassengerReviews = []model.Review{}
	f.FlightRating = model.Rating{}

	r.errs = append(r.errs, v.structErrors(f, r.errs)...)

	if len(r.errs) > 0 {
		v.log.Warn("Flight validation failed",
			"flight_id", f.FlightID,
			"fields", r.errs.Fields(),
		)
		return nil, r.errs
	}

	return f, nil
}

// ValidateForUpdate merges patch into existing key by key (nested objects are
// merged, not replaced) and re-validates the full result as a creation. Identity,
// reviews, rating and createdAt are carried over from existing.
func (v *FlightValidator) ValidateForUpdate(existing *model.Flight, patch map[string]any) (*model.Flight, error) {
	base, err := toMap(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to convert existing flight: %w", err)
	}

	clean := make(map[string]any, len(patch))
	for k, val := range patch {
		clean[k] = val
	}
	for _, k := range immutableKeys {
		delete(clean, k)
	}

	merged := mergeMaps(base, clean)

	f, err := v.ValidateForCreate(merged)
	if err != nil {
		return nil, err
	}

	f.ID = existing.ID
	f.FlightRating = existing.FlightRating
	f.PassengerReviews = append([]model.Review{}, existing.PassengerReviews...)
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = existing.UpdatedAt

	return f, nil
}

func (v *FlightValidator) ValidateReview(review *model.Review) error {
	review.UserID = sanitizer.CollapseSpace(review.UserID)
	review.UserName = sanitizer.CollapseSpace(review.UserName)
	review.Comment = strings.TrimSpace(review.Comment)

	if err := v.validate.Struct(review); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs, nil)
		}
		return err
	}
	return nil
}

func (v *FlightValidator) structErrors(f *model.Flight, already flighterrors.ValidationErrors) flighterrors.ValidationErrors {
	err := v.validate.Struct(f)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return flighterrors.ValidationErrors{{Field: "flight", Reason: err.Error()}}
	}
	return v.translateValidationErrors(validationErrs, already)
}

// translateValidationErrors converts validator output into JSON-path violations,
// dropping fields the required pass already reported.
func (v *FlightValidator) translateValidationErrors(errs validator.ValidationErrors, already flighterrors.ValidationErrors) flighterrors.ValidationErrors {
	var out flighterrors.ValidationErrors

	for _, e := range errs {
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if already.Has(field) || out.Has(field) {
			continue
		}
		if isCrossField(e.Tag()) && already.Has(jsonName(e.Param())) {
			continue
		}
		out = append(out, flighterrors.ValidationError{Field: field, Reason: reasonFor(e)})
	}

	return out
}

func isCrossField(tag string) bool {
	return tag == "ltefield" || tag == "nefield"
}

// jsonName maps a top-level struct field name to its JSON key.
func jsonName(structField string) string {
	if structField == "" {
		return ""
	}
	if strings.HasSuffix(structField, "ID") {
		structField = strings.TrimSuffix(structField, "ID") + "Id"
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}

func reasonFor(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return flighterrors.ReasonMissing
	case "ltefield":
		return flighterrors.ReasonExceeds
	case "nefield":
		return flighterrors.ReasonSameAsID
	case "gte", "lte", "min", "max":
		return flighterrors.ReasonRange
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "len", "alpha", "uppercase":
		return "must be a 3-letter uppercase code"
	default:
		return flighterrors.ReasonInvalid
	}
}

type fieldReader struct {
	raw  map[string]any
	errs flighterrors.ValidationErrors
}

func (r *fieldReader) fail(field, reason string) {
	if !r.errs.Has(field) {
		r.errs = append(r.errs, flighterrors.ValidationError{Field: field, Reason: reason})
	}
}

// lookup resolves a dotted path; a non-object on the way reads as absent.
func (r *fieldReader) lookup(path string) any {
	var cur any = r.raw
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func (r *fieldReader) requiredString(path string) string {
	val := r.lookup(path)
	if IsBlank(val) {
		r.fail(path, flighterrors.ReasonMissing)
		return ""
	}
	switch t := val.(type) {
	case string:
		return sanitizer.CollapseSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	r.fail(path, flighterrors.ReasonInvalid)
	return ""
}

func (r *fieldReader) requiredTime(path string) time.Time {
	val := r.lookup(path)
	if IsBlank(val) {
		r.fail(path, flighterrors.ReasonMissing)
		return time.Time{}
	}
	t, ok := parseTime(val)
	if !ok {
		r.fail(path, flighterrors.ReasonInvalid)
		return time.Time{}
	}
	return t
}

func (r *fieldReader) requiredNumber(path string) float64 {
	val := r.lookup(path)
	if IsBlank(val) {
		r.fail(path, flighterrors.ReasonMissing)
		return 0
	}
	n, ok := parseNumber(val)
	if !ok {
		r.fail(path, flighterrors.ReasonInvalid)
		return 0
	}
	return n
}

func (r *fieldReader) requiredWhole(path string) int {
	val := r.lookup(path)
	if IsBlank(val) {
		r.fail(path, flighterrors.ReasonMissing)
		return 0
	}
	n, ok := parseWhole(val)
	if !ok {
		r.fail(path, flighterrors.ReasonInvalid)
		return 0
	}
	return n
}

func (r *fieldReader) flightClass(path string, fallback model.FlightClass) model.FlightClass {
	val := r.lookup(path)
	if IsBlank(val) {
		if fallback == "" {
			r.fail(path, flighterrors.ReasonMissing)
		}
		return fallback
	}
	s, ok := val.(string)
	if !ok {
		r.fail(path, flighterrors.ReasonInvalid)
		return ""
	}
	c, ok := model.ParseFlightClass(s)
	if !ok {
		r.fail(path, "must be one of: Economy, Business, First")
		return ""
	}
	return c
}

func (r *fieldReader) airport(path string) model.Airport {
	return sanitizer.NormalizeAirport(model.Airport{
		Code:    r.requiredString(path + ".code"),
		Name:    r.requiredString(path + ".name"),
		City:    r.requiredString(path + ".city"),
		Country: r.requiredString(path + ".country"),
	})
}

// returnDuration treats an absent object and a zero or blank hours value alike:
// both are reported as a missing returnDuration.
func (r *fieldReader) returnDuration(path string) model.Duration {
	if _, ok := r.lookup(path).(map[string]any); !ok {
		r.fail(path, flighterrors.ReasonMissing)
		return model.Duration{}
	}

	hoursVal := r.lookup(path + ".hours")
	if IsBlank(hoursVal) {
		r.fail(path, flighterrors.ReasonMissing)
		return model.Duration{}
	}
	hours, ok := parseNumber(hoursVal)
	switch {
	case !ok:
		r.fail(path+".hours", flighterrors.ReasonInvalid)
	case hours == 0:
		r.fail(path, flighterrors.ReasonMissing)
	case hours < 0:
		r.fail(path+".hours", flighterrors.ReasonRange)
	}

	minutes := 0
	if minutesVal := r.lookup(path + ".minutes"); !IsBlank(minutesVal) {
		m, ok := parseWhole(minutesVal)
		if !ok {
			r.fail(path+".minutes", flighterrors.ReasonInvalid)
		}
		minutes = m
	}

	return model.Duration{Hours: hours, Minutes: minutes}
}

func (r *fieldReader) stringList(path string) []string {
	val := r.lookup(path)
	if val == nil {
		return nil
	}
	switch t := val.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				r.fail(fmt.Sprintf("%s[%d]", path, i), flighterrors.ReasonInvalid)
				continue
			}
			out = append(out, s)
		}
		return out
	case string:
		return strings.Split(t, ",")
	}
	r.fail(path, flighterrors.ReasonInvalid)
	return nil
}

func parseNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseWhole(v any) (int, bool) {
	f, ok := parseNumber(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func toMap(f *model.Flight) (map[string]any, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// mergeMaps returns base with patch applied. Objects present on both sides are
// merged recursively; any other patch value, including null, replaces the base value.
func mergeMaps(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		pm, pIsMap := pv.(map[string]any)
		bm, bIsMap := out[k].(map[string]any)
		if pIsMap && bIsMap {
			out[k] = mergeMaps(bm, pm)
			continue
		}
		out[k] = pv
	}
	return out
}
