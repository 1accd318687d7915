package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	flighterrors "kayak/internal/flights/errors"
	"kayak/internal/flights/query"
	"kayak/pkg/config"
	"kayak/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Flights"

	// reserveAttempts bounds how often a failed conditional decrement is retried
	// when the re-read shows enough seats (another writer moved inventory in between).
	reserveAttempts = 3
)

type FlightRepository interface {
	Create(ctx context.Context, f *model.Flight) error
	FindByID(ctx context.Context, id string) (*model.Flight, error)
	FindByFlightID(ctx context.Context, flightID string) (*model.Flight, error)
	Find(ctx context.Context, filter *query.Filter, sort query.Sort, skip int64, limit int) ([]*model.Flight, error)
	Count(ctx context.Context, filter *query.Filter) (int64, error)
	// Update replaces the mutable fields of a record. The write only applies while
	// the stored seat counts still equal seen.
	Update(ctx context.Context, id string, f *model.Flight, seen model.SeatAvailability) error
	Delete(ctx context.Context, id string) error

	// ReserveSeats decrements every leg of leg by seats in one conditional write.
	ReserveSeats(ctx context.Context, id string, seats int, leg model.Leg) (*model.Flight, error)
	// AppendReview adds a review and recomputes the aggregate rating in one write.
	AppendReview(ctx context.Context, id string, review model.Review) (*model.Flight, error)
}

type mongoFlightRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoFlightRepository(cfg *config.Config, db *mongo.Database) FlightRepository {
	return &mongoFlightRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout bounds ctx by timeout, keeping an earlier caller deadline when there is one.
func (r *mongoFlightRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", flighterrors.ErrInvalidID, id)
	}
	return oid, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoFlightRepository) Create(ctx context.Context, f *model.Flight) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	f.ID = ""
	f.CreatedAt = now()
	f.UpdatedAt = f.CreatedAt
	if f.PassengerReviews == nil {
		f.PassengerReviews = []model.Review{}
	}
	f.FlightRating = model.ComputeRating(f.PassengerReviews)

	result, err := r.collection.InsertOne(ctx, f)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", flighterrors.ErrDuplicateFlightID, f.FlightID)
		}
		return fmt.Errorf("failed to create flight: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		f.ID = oid.Hex()
	}
	return nil
}

func (r *mongoFlightRepository) FindByID(ctx context.Context, id string) (*model.Flight, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"_id": oid}, id)
}

func (r *mongoFlightRepository) FindByFlightID(ctx context.Context, flightID string) (*model.Flight, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"flightId": flightID}, flightID)
}

func (r *mongoFlightRepository) findOne(ctx context.Context, filter bson.M, ref string) (*model.Flight, error) {
	var f model.Flight
	if err := r.collection.FindOne(ctx, filter).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", flighterrors.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to find flight: %w", err)
	}
	return &f, nil
}

func (r *mongoFlightRepository) Find(ctx context.Context, filter *query.Filter, sort query.Sort, skip int64, limit int) ([]*model.Flight, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(sort.BSON()).
		SetSkip(skip).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter.BSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer cursor.Close(ctx)

	flights := []*model.Flight{}
	if err := cursor.All(ctx, &flights); err != nil {
		return nil, fmt.Errorf("failed to decode flights: %w", err)
	}
	return flights, nil
}

func (r *mongoFlightRepository) Count(ctx context.Context, filter *query.Filter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter.BSON())
	if err != nil {
		return 0, fmt.Errorf("failed to count flights: %w", err)
	}
	return count, nil
}

func (r *mongoFlightRepository) Update(ctx context.Context, id string, f *model.Flight, seen model.SeatAvailability) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	f.UpdatedAt = now()
	filter := bson.M{
		"_id":                  oid,
		"availableSeats":       seen.AvailableSeats,
		"returnAvailableSeats": seen.ReturnAvailableSeats,
	}
	update := bson.M{
		"$set": bson.M{
			"flightId":                  f.FlightID,
			"airline":                   f.Airline,
			"departureAirport":          f.DepartureAirport,
			"arrivalAirport":            f.ArrivalAirport,
			"departureDateTime":         f.DepartureDateTime,
			"arrivalDateTime":           f.ArrivalDateTime,
			"duration":                  f.Duration,
			"flightClass":               f.FlightClass,
			"ticketPrice":               f.TicketPrice,
			"totalAvailableSeats":       f.TotalAvailableSeats,
			"availableSeats":            f.AvailableSeats,
			"returnFlightId":            f.ReturnFlightID,
			"returnDepartureDateTime":   f.ReturnDepartureDateTime,
			"returnArrivalDateTime":     f.ReturnArrivalDateTime,
			"returnDuration":            f.ReturnDuration,
			"returnTicketPrice":         f.ReturnTicketPrice,
			"returnFlightClass":         f.ReturnFlightClass,
			"returnTotalAvailableSeats": f.ReturnTotalAvailableSeats,
			"returnAvailableSeats":      f.ReturnAvailableSeats,
			"amenities":                 f.Amenities,
			"updatedAt":                 f.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", flighterrors.ErrDuplicateFlightID, f.FlightID)
		}
		return fmt.Errorf("failed to update flight: %w", err)
	}

	if result.MatchedCount == 0 {
		if _, err := r.findOne(ctx, bson.M{"_id": oid}, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", flighterrors.ErrSeatsChanged, id)
	}
	return nil
}

func (r *mongoFlightRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
	}
	return nil
}

// reserveFilter matches the record only while every reserved leg still has seats left.
func reserveFilter(oid primitive.ObjectID, seats int, leg model.Leg) bson.M {
	filter := bson.M{"_id": oid}
	for _, l := range leg.Legs() {
		filter[l.SeatsField()] = bson.M{"$gte": seats}
	}
	return filter
}

func reserveUpdate(seats int, leg model.Leg) bson.M {
	inc := bson.M{}
	for _, l := range leg.Legs() {
		inc[l.SeatsField()] = -seats
	}
	return bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": now()},
	}
}

// shortfall reports the first leg, outbound before return, that cannot cover seats.
func shortfall(f *model.Flight, seats int, leg model.Leg) error {
	for _, l := range leg.Legs() {
		if available := f.AvailableOn(l); available < seats {
			return &flighterrors.InsufficientInventoryError{
				Leg:       string(l),
				Requested: seats,
				Available: available,
			}
		}
	}
	return nil
}

func (r *mongoFlightRepository) ReserveSeats(ctx context.Context, id string, seats int, leg model.Leg) (*model.Flight, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for attempt := 1; attempt <= reserveAttempts; attempt++ {
		var updated model.Flight
		err := r.collection.FindOneAndUpdate(ctx, reserveFilter(oid, seats, leg), reserveUpdate(seats, leg), opts).Decode(&updated)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to reserve seats: %w", err)
		}

		current, err := r.findOne(ctx, bson.M{"_id": oid}, id)
		if err != nil {
			return nil, err
		}
		if err := shortfall(current, seats, leg); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", flighterrors.ErrSeatsChanged, id)
}

// reviewPipeline appends the review and derives flightRating from the resulting list.
func reviewPipeline(review model.Review) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"passengerReviews": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$passengerReviews", bson.A{}}},
				bson.A{bson.M{"$literal": review}},
			}},
			"updatedAt": now(),
		}}},
		{{Key: "$set", Value: bson.M{
			"flightRating.count":   bson.M{"$size": "$passengerReviews"},
			"flightRating.average": bson.M{"$ifNull": bson.A{bson.M{"$avg": "$passengerReviews.rating"}, 0}},
		}}},
	}
}

func (r *mongoFlightRepository) AppendReview(ctx context.Context, id string, review model.Review) (*model.Flight, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Flight
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, reviewPipeline(review), opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to append review: %w", err)
	}

	updated.FlightRating = model.ComputeRating(updated.PassengerReviews)
	return &updated, nil
}
