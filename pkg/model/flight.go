package model

import (
	"strings"
	"time"
)

type FlightClass string

const (
	Economy  FlightClass = "Economy"
	Business FlightClass = "Business"
	First    FlightClass = "First"
)

var FlightClasses = []FlightClass{Economy, Business, First}

// ParseFlightClass matches the enum case-insensitively and returns the canonical spelling.
func ParseFlightClass(s string) (FlightClass, bool) {
	s = strings.TrimSpace(s)
	for _, c := range FlightClasses {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

type Leg string

const (
	LegOutbound Leg = "outbound"
	LegReturn   Leg = "return"
	LegBoth     Leg = "both"
)

func ParseLeg(s string) (Leg, bool) {
	switch Leg(strings.ToLower(strings.TrimSpace(s))) {
	case "", LegOutbound:
		return LegOutbound, true
	case LegReturn:
		return LegReturn, true
	case LegBoth:
		return LegBoth, true
	}
	return "", false
}

// Legs expands a leg into the concrete legs it consumes, outbound first.
func (l Leg) Legs() []Leg {
	switch l {
	case LegBoth:
		return []Leg{LegOutbound, LegReturn}
	case LegReturn:
		return []Leg{LegReturn}
	default:
		return []Leg{LegOutbound}
	}
}

// SeatsField is the persisted field holding remaining seats for a concrete leg.
func (l Leg) SeatsField() string {
	if l == LegReturn {
		return "returnAvailableSeats"
	}
	return "availableSeats"
}

type Airport struct {
	Code    string `json:"code" bson:"code" validate:"required,len=3,alpha,uppercase"`
	Name    string `json:"name" bson:"name" validate:"required"`
	City    string `json:"city" bson:"city" validate:"required"`
	Country string `json:"country" bson:"country" validate:"required"`
}

type Duration struct {
	Hours   float64 `json:"hours" bson:"hours" validate:"gte=0"`
	Minutes int     `json:"minutes" bson:"minutes" validate:"gte=0,lte=59"`
}

type Rating struct {
	Average float64 `json:"average" bson:"average" validate:"gte=0,lte=5"`
	Count   int     `json:"count" bson:"count" validate:"gte=0"`
}

type Review struct {
	UserID    string    `json:"userId" bson:"userId" validate:"required"`
	UserName  string    `json:"userName" bson:"userName" validate:"required"`
	Rating    int       `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Comment   string    `json:"comment" bson:"comment" validate:"max=2000"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Flight struct {
	ID       string `json:"id,omitempty" bson:"_id,omitempty"`
	FlightID string `json:"flightId" bson:"flightId" validate:"required"`

	Airline             string      `json:"airline" bson:"airline" validate:"required"`
	DepartureAirport    Airport     `json:"departureAirport" bson:"departureAirport"`
	ArrivalAirport      Airport     `json:"arrivalAirport" bson:"arrivalAirport"`
	DepartureDateTime   time.Time   `json:"departureDateTime" bson:"departureDateTime" validate:"required"`
	ArrivalDateTime     time.Time   `json:"arrivalDateTime" bson:"arrivalDateTime" validate:"required"`
	Duration            Duration    `json:"duration" bson:"duration"`
	FlightClass         FlightClass `json:"flightClass" bson:"flightClass" validate:"required,oneof=Economy Business First"`
	TicketPrice         float64     `json:"ticketPrice" bson:"ticketPrice" validate:"gte=0"`
	TotalAvailableSeats int         `json:"totalAvailableSeats" bson:"totalAvailableSeats" validate:"gte=0"`
	AvailableSeats      int         `json:"availableSeats" bson:"availableSeats" validate:"gte=0,ltefield=TotalAvailableSeats"`

	ReturnFlightID            string      `json:"returnFlightId" bson:"returnFlightId" validate:"required,nefield=FlightID"`
	ReturnDepartureDateTime   time.Time   `json:"returnDepartureDateTime" bson:"returnDepartureDateTime" validate:"required"`
	ReturnArrivalDateTime     time.Time   `json:"returnArrivalDateTime" bson:"returnArrivalDateTime" validate:"required"`
	ReturnDuration            Duration    `json:"returnDuration" bson:"returnDuration"`
	ReturnTicketPrice         float64     `json:"returnTicketPrice" bson:"returnTicketPrice" validate:"gte=0"`
	ReturnFlightClass         FlightClass `json:"returnFlightClass" bson:"returnFlightClass" validate:"required,oneof=Economy Business First"`
	ReturnTotalAvailableSeats int         `json:"returnTotalAvailableSeats" bson:"returnTotalAvailableSeats" validate:"gte=0"`
	ReturnAvailableSeats      int         `json:"returnAvailableSeats" bson:"returnAvailableSeats" validate:"gte=0,ltefield=ReturnTotalAvailableSeats"`

	FlightRating     Rating   `json:"flightRating" bson:"flightRating"`
	PassengerReviews []Review `json:"passengerReviews" bson:"passengerReviews"`
	Amenities        []string `json:"amenities" bson:"amenities"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// AvailableOn returns remaining seats for a concrete leg.
func (f *Flight) AvailableOn(leg Leg) int {
	if leg == LegReturn {
		return f.ReturnAvailableSeats
	}
	return f.AvailableSeats
}

// Clone returns a deep copy; slices are never shared with the receiver.
func (f *Flight) Clone() *Flight {
	c := *f
	c.PassengerReviews = append([]Review{}, f.PassengerReviews...)
	c.Amenities = append([]string{}, f.Amenities...)
	return &c
}

// ComputeRating derives the aggregate rating from the full review list.
func ComputeRating(reviews []Review) Rating {
	if len(reviews) == 0 {
		return Rating{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return Rating{
		Average: float64(sum) / float64(len(reviews)),
		Count:   len(reviews),
	}
}

type ReserveSeatsRequest struct {
	Seats int    `json:"seats"`
	Leg   string `json:"leg"`
}

type SeatAvailability struct {
	AvailableSeats       int `json:"availableSeats"`
	ReturnAvailableSeats int `json:"returnAvailableSeats"`
}
