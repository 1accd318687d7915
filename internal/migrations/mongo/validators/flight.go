package validators

import "go.mongodb.org/mongo-driver/bson"

var (
	airport = bson.M{
		"bsonType": "object",
		"required": []string{"code", "name", "city", "country"},
		"properties": bson.M{
			"code":    bson.M{"bsonType": "string", "pattern": "^[A-Z]{3}$"},
			"name":    bson.M{"bsonType": "string", "minLength": 1},
			"city":    bson.M{"bsonType": "string", "minLength": 1},
			"country": bson.M{"bsonType": "string", "minLength": 1},
		},
	}

	duration = bson.M{
		"bsonType": "object",
		"properties": bson.M{
			"hours":   bson.M{"bsonType": "number", "minimum": 0},
			"minutes": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0, "maximum": 59},
		},
	}

	seats       = bson.M{"bsonType": "number", "minimum": 0}
	price       = bson.M{"bsonType": "number", "minimum": 0}
	nonEmpty    = bson.M{"bsonType": "string", "minLength": 1}
	timestamp   = bson.M{"bsonType": "date"}
	flightClass = bson.M{"bsonType": "string", "enum": []string{"Economy", "Business", "First"}}
)

// FlightValidator mirrors the application rules that must hold for every
// stored document, seat counters in particular.
var FlightValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"flightId",
			"airline",
			"departureAirport",
			"arrivalAirport",
			"departureDateTime",
			"arrivalDateTime",
			"flightClass",
			"ticketPrice",
			"totalAvailableSeats",
			"availableSeats",
			"returnFlightId",
			"returnDepartureDateTime",
			"returnArrivalDateTime",
			"returnFlightClass",
			"returnTicketPrice",
			"returnTotalAvailableSeats",
			"returnAvailableSeats",
			"createdAt",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":      bson.M{"bsonType": "objectId"},
			"flightId": nonEmpty,
			"airline":  nonEmpty,

			"departureAirport":    airport,
			"arrivalAirport":      airport,
			"departureDateTime":   timestamp,
			"arrivalDateTime":     timestamp,
			"duration":            duration,
			"flightClass":         flightClass,
			"ticketPrice":         price,
			"totalAvailableSeats": seats,
			"availableSeats":      seats,

			"returnFlightId":            nonEmpty,
			"returnDepartureDateTime":   timestamp,
			"returnArrivalDateTime":     timestamp,
			"returnDuration":            duration,
			"returnFlightClass":         flightClass,
			"returnTicketPrice":         price,
			"returnTotalAvailableSeats": seats,
			"returnAvailableSeats":      seats,

			"flightRating": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"average": bson.M{"bsonType": "number", "minimum": 0, "maximum": 5},
					"count":   bson.M{"bsonType": "number", "minimum": 0},
				},
			},
			"passengerReviews": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"userId", "userName", "rating"},
					"properties": bson.M{
						"userId":    nonEmpty,
						"userName":  nonEmpty,
						"rating":    bson.M{"bsonType": "number", "minimum": 1, "maximum": 5},
						"comment":   bson.M{"bsonType": "string", "maxLength": 2000},
						"createdAt": timestamp,
					},
				},
			},
			"amenities": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"createdAt": timestamp,
			"updatedAt": timestamp,
		},
	},
}
