package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	flighterrors "kayak/internal/flights/errors"
	"kayak/internal/flights/query"
	"kayak/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryFlightRepository keeps flights in process. Every operation holds the lock
// for its whole read-check-write, so the seat guard is as atomic as the Mongo one.
type memoryFlightRepository struct {
	mu       sync.RWMutex
	flights  map[string]*model.Flight
	byFlight map[string]string
}

func NewMemoryFlightRepository() FlightRepository {
	return &memoryFlightRepository{
		flights:  make(map[string]*model.Flight),
		byFlight: make(map[string]string),
	}
}

func checkID(id string) error {
	if !primitive.IsValidObjectID(id) {
		return fmt.Errorf("%w: %s", flighterrors.ErrInvalidID, id)
	}
	return nil
}

func (r *memoryFlightRepository) Create(ctx context.Context, f *model.Flight) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byFlight[f.FlightID]; exists {
		return fmt.Errorf("%w: %s", flighterrors.ErrDuplicateFlightID, f.FlightID)
	}

	f.ID = primitive.NewObjectID().Hex()
	f.CreatedAt = now()
	f.UpdatedAt = f.CreatedAt
	if f.PassengerReviews == nil {
		f.PassengerReviews = []model.Review{}
	}
	f.FlightRating = model.ComputeRating(f.PassengerReviews)

	r.flights[f.ID] = f.Clone()
	r.byFlight[f.FlightID] = f.ID
	return nil
}

func (r *memoryFlightRepository) FindByID(ctx context.Context, id string) (*model.Flight, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flights[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
	}
	return f.Clone(), nil
}

func (r *memoryFlightRepository) FindByFlightID(ctx context.Context, flightID string) (*model.Flight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byFlight[flightID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", flighterrors.ErrNotFound, flightID)
	}
	return r.flights[id].Clone(), nil
}

func (r *memoryFlightRepository) matching(filter *query.Filter) []*model.Flight {
	var out []*model.Flight
	for _, f := range r.flights {
		if filter.Matches(f) {
			out = append(out, f)
		}
	}
	return out
}

func (r *memoryFlightRepository) Find(ctx context.Context, filter *query.Filter, sort query.Sort, skip int64, limit int) ([]*model.Flight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.matching(filter)
	slices.SortFunc(matched, sort.Compare)

	results := []*model.Flight{}
	skip = max(skip, 0)
	if skip >= int64(len(matched)) {
		return results, nil
	}
	end := len(matched)
	if limit > 0 && int(skip)+limit < end {
		end = int(skip) + limit
	}
	for _, f := range matched[skip:end] {
		results = append(results, f.Clone())
	}
	return results, nil
}

func (r *memoryFlightRepository) Count(ctx context.Context, filter *query.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.matching(filter))), nil
}

func (r *memoryFlightRepository) Update(ctx context.Context, id string, f *model.Flight, seen model.SeatAvailability) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.flights[id]
	if !ok {
		return fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
	}
	if stored.AvailableSeats != seen.AvailableSeats || stored.ReturnAvailableSeats != seen.ReturnAvailableSeats {
		return fmt.Errorf("%w: %s", flighterrors.ErrSeatsChanged, id)
	}
	if owner, taken := r.byFlight[f.FlightID]; taken && owner != id {
		return fmt.Errorf("%w: %s", flighterrors.ErrDuplicateFlightID, f.FlightID)
	}

	f.UpdatedAt = now()

	next := f.Clone()
	next.ID = id
	next.CreatedAt = stored.CreatedAt
	next.PassengerReviews = stored.PassengerReviews
	next.FlightRating = stored.FlightRating

	delete(r.byFlight, stored.FlightID)
	r.byFlight[next.FlightID] = id
	r.flights[id] = next
	return nil
}

func (r *memoryFlightRepository) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
	}
	delete(r.byFlight, f.FlightID)
	delete(r.flights, id)
	return nil
}

func (r *memoryFlightRepository) ReserveSeats(ctx context.Context, id string, seats int, leg model.Leg) (*model.Flight, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
	}
	if err := shortfall(f, seats, leg); err != nil {
		return nil, err
	}

	for _, l := range leg.Legs() {
		if l == model.LegReturn {
			f.ReturnAvailableSeats -= seats
		} else {
			f.AvailableSeats -= seats
		}
	}
	f.UpdatedAt = now()
	return f.Clone(), nil
}

func (r *memoryFlightRepository) AppendReview(ctx context.Context, id string, review model.Review) (*model.Flight, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", flighterrors.ErrNotFound, id)
	}

	f.PassengerReviews = append(f.PassengerReviews, review)
	f.FlightRating = model.ComputeRating(f.PassengerReviews)
	f.UpdatedAt = now()
	return f.Clone(), nil
}
