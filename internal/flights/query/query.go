package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	flighterrors "kayak/internal/flights/errors"
	"kayak/pkg/model"
	"kayak/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultPage     = 1
	DefaultLimit    = 20
	DefaultMaxLimit = 100

	DefaultSortField = "departureDateTime"

	// MaxSkip bounds how deep a page may reach into the result set.
	MaxSkip = 1_000_000

	dateLayout = "2006-01-02"
)

// sortFields is the whitelist of sortable persisted fields.
var sortFields = map[string]bool{
	"departureDateTime":    true,
	"arrivalDateTime":      true,
	"ticketPrice":          true,
	"availableSeats":       true,
	"airline":              true,
	"flightRating.average": true,
	"duration.hours":       true,
	"createdAt":            true,
}

type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

func DefaultLimits() Limits {
	return Limits{DefaultLimit: DefaultLimit, MaxLimit: DefaultMaxLimit}
}

// PlaceMatch selects flights whose airport matches either by exact code or by
// case-insensitive city substring.
type PlaceMatch struct {
	Code string
	City string
}

type DateRange struct {
	From time.Time
	To   time.Time
}

func (d *DateRange) Contains(t time.Time) bool {
	return !t.Before(d.From) && !t.After(d.To)
}

// Filter is the normalized search predicate. Sold-out outbound flights are always excluded.
type Filter struct {
	From          *PlaceMatch
	To            *PlaceMatch
	DepartureDate *DateRange
	ReturnDate    *DateRange
	FlightClass   model.FlightClass
	MinPrice      *float64
	MaxPrice      *float64
}

type Sort struct {
	Field      string
	Descending bool
}

type Page struct {
	Number int
	Size   int
}

func (p Page) Skip() int64 {
	return int64(p.Number-1) * int64(p.Size)
}

type Query struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

// Build translates URL search parameters into a Query. All parameter problems
// are collected into a single flighterrors.ValidationErrors.
func Build(params url.Values, limits Limits) (*Query, error) {
	var errs flighterrors.ValidationErrors
	fail := func(field, reason string) {
		errs = append(errs, flighterrors.ValidationError{Field: field, Reason: reason})
	}

	if limits.DefaultLimit < 1 {
		limits.DefaultLimit = DefaultLimit
	}
	if limits.MaxLimit < limits.DefaultLimit {
		limits.MaxLimit = max(DefaultMaxLimit, limits.DefaultLimit)
	}

	q := &Query{
		Sort: Sort{Field: DefaultSortField},
		Page: Page{Number: DefaultPage, Size: limits.DefaultLimit},
	}

	q.Filter.From = placeMatch(params.Get("from"))
	q.Filter.To = placeMatch(params.Get("to"))

	if s := strings.TrimSpace(params.Get("departureDate")); s != "" {
		r, ok := dayRange(s)
		if !ok {
			fail("departureDate", "must be a YYYY-MM-DD date")
		}
		q.Filter.DepartureDate = r
	}

	if s := strings.TrimSpace(params.Get("returnDate")); s != "" {
		r, ok := dayRange(s)
		if !ok {
			fail("returnDate", "must be a YYYY-MM-DD date")
		}
		q.Filter.ReturnDate = r
	}

	if s := strings.TrimSpace(params.Get("flightClass")); s != "" {
		c, ok := model.ParseFlightClass(s)
		if !ok {
			fail("flightClass", "must be one of: Economy, Business, First")
		}
		q.Filter.FlightClass = c
	}

	q.Filter.MinPrice = price(params.Get("minPrice"), "minPrice", fail)
	q.Filter.MaxPrice = price(params.Get("maxPrice"), "maxPrice", fail)
	if q.Filter.MinPrice != nil && q.Filter.MaxPrice != nil && *q.Filter.MinPrice > *q.Filter.MaxPrice {
		fail("minPrice", "must not exceed maxPrice")
	}

	if s := strings.TrimSpace(params.Get("sortBy")); s != "" {
		if !sortFields[s] {
			fail("sortBy", "unsupported sort field")
		}
		q.Sort.Field = s
	}

	switch strings.ToLower(strings.TrimSpace(params.Get("sortOrder"))) {
	case "", "asc":
	case "desc":
		q.Sort.Descending = true
	default:
		fail("sortOrder", "must be asc or desc")
	}

	if s := strings.TrimSpace(params.Get("page")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fail("page", flighterrors.ReasonInvalid)
		} else if n >= 1 {
			q.Page.Number = n
		}
	}

	if s := strings.TrimSpace(params.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			fail("limit", flighterrors.ReasonInvalid)
		case n < 1:
			q.Page.Size = limits.DefaultLimit
		case n > limits.MaxLimit:
			q.Page.Size = limits.MaxLimit
		default:
			q.Page.Size = n
		}
	}

	if q.Page.Number-1 > MaxSkip/q.Page.Size {
		fail("page", flighterrors.ReasonRange)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return q, nil
}

// placeMatch applies the code-or-city rule: an all-uppercase three-letter value
// is an airport code; a three-letter value in any other case may be either;
// anything longer is a city fragment.
func placeMatch(raw string) *PlaceMatch {
	s := sanitizer.CollapseSpace(raw)
	if s == "" {
		return nil
	}
	if sanitizer.LooksLikeAirportCode(s) {
		if s == strings.ToUpper(s) {
			return &PlaceMatch{Code: s}
		}
		return &PlaceMatch{Code: strings.ToUpper(s), City: s}
	}
	return &PlaceMatch{City: s}
}

// dayRange expands a calendar date (or the UTC date of a timestamp) into the
// inclusive UTC range [00:00:00.000, 23:59:59.999].
func dayRange(s string) (*DateRange, bool) {
	day, err := time.Parse(dateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return nil, false
		}
		ts = ts.UTC()
		day = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	return &DateRange{
		From: day,
		To:   day.Add(24*time.Hour - time.Millisecond),
	}, true
}

func price(raw, field string, fail func(string, string)) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fail(field, flighterrors.ReasonInvalid)
		return nil
	}
	if p < 0 {
		fail(field, flighterrors.ReasonRange)
		return nil
	}
	return &p
}

func placeBSON(prefix string, m *PlaceMatch) bson.M {
	var clauses []bson.M
	if m.Code != "" {
		clauses = append(clauses, bson.M{prefix + ".code": m.Code})
	}
	if m.City != "" {
		clauses = append(clauses, bson.M{prefix + ".city": bson.M{
			"$regex":   regexp.QuoteMeta(m.City),
			"$options": "i",
		}})
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bson.M{"$or": clauses}
}

// BSON renders the filter as a MongoDB query document.
func (f *Filter) BSON() bson.M {
	clauses := []bson.M{
		{"availableSeats": bson.M{"$gt": 0}},
	}

	if f.From != nil {
		clauses = append(clauses, placeBSON("departureAirport", f.From))
	}
	if f.To != nil {
		clauses = append(clauses, placeBSON("arrivalAirport", f.To))
	}
	if f.DepartureDate != nil {
		clauses = append(clauses, bson.M{"departureDateTime": bson.M{
			"$gte": f.DepartureDate.From,
			"$lte": f.DepartureDate.To,
		}})
	}
	if f.ReturnDate != nil {
		clauses = append(clauses, bson.M{"returnDepartureDateTime": bson.M{
			"$gte": f.ReturnDate.From,
			"$lte": f.ReturnDate.To,
		}})
	}
	if f.FlightClass != "" {
		clauses = append(clauses, bson.M{"flightClass": string(f.FlightClass)})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		bounds := bson.M{}
		if f.MinPrice != nil {
			bounds["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			bounds["$lte"] = *f.MaxPrice
		}
		clauses = append(clauses, bson.M{"ticketPrice": bounds})
	}

	if len(clauses) == 1 {
		return clauses[0]
	}
	return bson.M{"$and": clauses}
}

func placeMatches(m *PlaceMatch, a model.Airport) bool {
	if m.Code != "" && a.Code == m.Code {
		return true
	}
	return m.City != "" && strings.Contains(strings.ToLower(a.City), strings.ToLower(m.City))
}

// Matches evaluates the filter against a single record, with the same semantics as BSON.
func (f *Filter) Matches(fl *model.Flight) bool {
	if fl.AvailableSeats <= 0 {
		return false
	}
	if f.From != nil && !placeMatches(f.From, fl.DepartureAirport) {
		return false
	}
	if f.To != nil && !placeMatches(f.To, fl.ArrivalAirport) {
		return false
	}
	if f.DepartureDate != nil && !f.DepartureDate.Contains(fl.DepartureDateTime) {
		return false
	}
	if f.ReturnDate != nil && !f.ReturnDate.Contains(fl.ReturnDepartureDateTime) {
		return false
	}
	if f.FlightClass != "" && fl.FlightClass != f.FlightClass {
		return false
	}
	if f.MinPrice != nil && fl.TicketPrice < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && fl.TicketPrice > *f.MaxPrice {
		return false
	}
	return true
}

// BSON renders the sort with _id as the final tie-breaker so paging is stable.
func (s Sort) BSON() bson.D {
	dir := 1
	if s.Descending {
		dir = -1
	}
	return bson.D{
		{Key: s.Field, Value: dir},
		{Key: "_id", Value: dir},
	}
}

// Compare orders two records like BSON does; the result is negative when a sorts first.
func (s Sort) Compare(a, b *model.Flight) int {
	c := compareField(s.Field, a, b)
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if s.Descending {
		return -c
	}
	return c
}

func compareField(field string, a, b *model.Flight) int {
	switch field {
	case "arrivalDateTime":
		return a.ArrivalDateTime.Compare(b.ArrivalDateTime)
	case "ticketPrice":
		return compareFloat(a.TicketPrice, b.TicketPrice)
	case "availableSeats":
		return compareFloat(float64(a.AvailableSeats), float64(b.AvailableSeats))
	case "airline":
		return strings.Compare(a.Airline, b.Airline)
	case "flightRating.average":
		return compareFloat(a.FlightRating.Average, b.FlightRating.Average)
	case "duration.hours":
		return compareFloat(a.Duration.Hours, b.Duration.Hours)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return a.DepartureDateTime.Compare(b.DepartureDateTime)
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
