package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	flighterrors "kayak/internal/flights/errors"
	"kayak/internal/flights/events"
	"kayak/internal/flights/query"
	"kayak/internal/flights/repository"
	"kayak/internal/flights/validator"
	"kayak/pkg/config"
	apperrors "kayak/pkg/errors"
	"kayak/pkg/metrics"
	"kayak/pkg/middleware"
	"kayak/pkg/model"
	"kayak/pkg/sanitizer"
)

type FlightService interface {
	Create(ctx context.Context, raw map[string]any) (*model.Flight, error)
	GetByID(ctx context.Context, id string) (*model.Flight, error)
	GetByFlightID(ctx context.Context, flightID string) (*model.Flight, error)
	Search(ctx context.Context, params url.Values) (*SearchResult, error)
	Update(ctx context.Context, id string, patch map[string]any) (*model.Flight, error)
	Delete(ctx context.Context, id string) error

	AddReview(ctx context.Context, id string, review *model.Review) (*model.Review, error)
	ReserveSeats(ctx context.Context, id string, req model.ReserveSeatsRequest) (*model.SeatAvailability, error)
}

type SearchResult struct {
	Flights []*model.Flight
	Total   int64
	Page    int
	Limit   int
}

type flightService struct {
	repo      repository.FlightRepository
	validator *validator.FlightValidator
	publisher events.Publisher
	metrics   *metrics.Metrics
	cfg       *config.Config
}

func NewFlightService(
	repo repository.FlightRepository,
	validator *validator.FlightValidator,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
) FlightService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &flightService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
	}
}

func validationFailed(err error) error {
	var verrs flighterrors.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Flight validation failed", map[string]any{
			"fields": []flighterrors.ValidationError(verrs),
		})
	}
	return apperrors.Internal("Failed to validate flight", err)
}

// mapRepositoryError translates gateway sentinels into AppErrors.
func mapRepositoryError(err error, id, action string) error {
	var insufficient *flighterrors.InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		return apperrors.InsufficientInventory(insufficient.Error(), insufficient.Details())
	case errors.Is(err, flighterrors.ErrNotFound):
		return apperrors.NotFoundWithID("Flight", id)
	case errors.Is(err, flighterrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid flight ID format")
	case errors.Is(err, flighterrors.ErrDuplicateFlightID):
		return apperrors.Conflict("Flight with this flightId already exists")
	case errors.Is(err, flighterrors.ErrSeatsChanged):
		return apperrors.Conflict("Flight seat inventory changed while the request was processed, retry the request")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out while trying to " + action)
	}
	return apperrors.Persistence("Failed to "+action, err)
}

func (s *flightService) publish(ctx context.Context, event events.Event) {
	event.CorrelationID = middleware.RequestIDFromContext(ctx)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish flight event",
			"event_type", event.Type,
			"id", event.Key,
			"error", err,
		)
	}
}

func (s *flightService) Create(ctx context.Context, raw map[string]any) (*model.Flight, error) {
	f, err := s.validator.ValidateForCreate(raw)
	if err != nil {
		return nil, validationFailed(err)
	}

	if err := s.repo.Create(ctx, f); err != nil {
		if !errors.Is(err, flighterrors.ErrDuplicateFlightID) {
			s.cfg.Log.Error("Failed to create flight",
				"flight_id", f.FlightID,
				"error", err,
			)
		}
		return nil, mapRepositoryError(err, f.FlightID, "create flight")
	}

	s.cfg.Log.Info("Flight created successfully",
		"id", f.ID,
		"flight_id", f.FlightID,
		"return_flight_id", f.ReturnFlightID,
	)
	s.publish(ctx, events.Event{Type: events.TypeFlightCreated, Key: f.ID, Payload: f})

	return f, nil
}

func (s *flightService) GetByID(ctx context.Context, id string) (*model.Flight, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Flight ID cannot be empty")
	}

	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, flighterrors.ErrNotFound) && !errors.Is(err, flighterrors.ErrInvalidID) {
			s.cfg.Log.Error("Failed to get flight by ID", "id", id, "error", err)
		}
		return nil, mapRepositoryError(err, id, "retrieve flight")
	}
	return f, nil
}

func (s *flightService) GetByFlightID(ctx context.Context, flightID string) (*model.Flight, error) {
	flightID = sanitizer.NormalizeCode(flightID)
	if flightID == "" {
		return nil, apperrors.InvalidInput("Flight number cannot be empty")
	}

	f, err := s.repo.FindByFlightID(ctx, flightID)
	if err != nil {
		if !errors.Is(err, flighterrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to get flight by flight number", "flight_id", flightID, "error", err)
		}
		return nil, mapRepositoryError(err, flightID, "retrieve flight")
	}
	return f, nil
}

// Search counts and fetches the requested page concurrently; the total is
// independent of the page slice.
func (s *flightService) Search(ctx context.Context, params url.Values) (*SearchResult, error) {
	q, err := query.Build(params, query.Limits{
		DefaultLimit: s.cfg.DefaultPageSize,
		MaxLimit:     s.cfg.MaxPageSize,
	})
	if err != nil {
		s.cfg.Log.Warn("Invalid flight search parameters", "error", err)
		return nil, validationFailed(err)
	}

	var (
		total             int64
		flights           []*model.Flight
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		total, err = s.repo.Count(ctx, &q.Filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count flights", "error", err)
			errCount = mapRepositoryError(err, "", "count flights")
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		flights, err = s.repo.Find(ctx, &q.Filter, q.Sort, q.Page.Skip(), q.Page.Size)
		if err != nil {
			s.cfg.Log.Error("Failed to search flights",
				"page", q.Page.Number,
				"limit", q.Page.Size,
				"error", err,
			)
			errFind = mapRepositoryError(err, "", "search flights")
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, errCount
	}
	if errFind != nil {
		return nil, errFind
	}

	s.cfg.Log.Debug("Flight search completed",
		"results_count", len(flights),
		"total", total,
		"page", q.Page.Number,
	)

	return &SearchResult{
		Flights: flights,
		Total:   total,
		Page:    q.Page.Number,
		Limit:   q.Page.Size,
	}, nil
}

func (s *flightService) Update(ctx context.Context, id string, patch map[string]any) (*model.Flight, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Flight ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err, id, "check flight existence")
	}

	merged, err := s.validator.ValidateForUpdate(existing, patch)
	if err != nil {
		return nil, validationFailed(err)
	}

	seen := model.SeatAvailability{
		AvailableSeats:       existing.AvailableSeats,
		ReturnAvailableSeats: existing.ReturnAvailableSeats,
	}
	if err := s.repo.Update(ctx, id, merged, seen); err != nil {
		s.cfg.Log.Error("Failed to update flight", "id", id, "error", err)
		return nil, mapRepositoryError(err, id, "update flight")
	}

	s.cfg.Log.Info("Flight updated successfully",
		"id", id,
		"flight_id", merged.FlightID,
	)
	s.publish(ctx, events.Event{Type: events.TypeFlightUpdated, Key: id, Payload: merged})

	return merged, nil
}

func (s *flightService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Flight ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapRepositoryError(err, id, "check flight existence")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, flighterrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to delete flight", "id", id, "error", err)
		}
		return mapRepositoryError(err, id, "delete flight")
	}

	s.cfg.Log.Info("Flight deleted successfully", "id", id)
	s.publish(ctx, events.Event{
		Type:    events.TypeFlightDeleted,
		Key:     id,
		Payload: events.FlightDeleted{ID: id, FlightID: existing.FlightID},
	})

	return nil
}

func (s *flightService) AddReview(ctx context.Context, id string, review *model.Review) (*model.Review, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Flight ID cannot be empty")
	}
	if review == nil {
		return nil, apperrors.InvalidInput("Review cannot be empty")
	}

	if err := s.validator.ValidateReview(review); err != nil {
		return nil, validationFailed(err)
	}
	review.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	updated, err := s.repo.AppendReview(ctx, id, *review)
	if err != nil {
		if !errors.Is(err, flighterrors.ErrNotFound) && !errors.Is(err, flighterrors.ErrInvalidID) {
			s.cfg.Log.Error("Failed to add review", "id", id, "error", err)
		}
		return nil, mapRepositoryError(err, id, "add review")
	}

	s.cfg.Log.Info("Review added successfully",
		"id", id,
		"user_id", review.UserID,
		"rating", review.Rating,
		"average", updated.FlightRating.Average,
	)
	s.publish(ctx, events.Event{
		Type: events.TypeReviewAdded,
		Key:  id,
		Payload: events.ReviewAdded{
			ID:       id,
			FlightID: updated.FlightID,
			Review:   *review,
			Rating:   updated.FlightRating,
		},
	})

	return review, nil
}

// ReserveSeats decrements inventory for the requested leg(s). The decrement is
// permanent; there is no hold or release.
func (s *flightService) ReserveSeats(ctx context.Context, id string, req model.ReserveSeatsRequest) (*model.SeatAvailability, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Flight ID cannot be empty")
	}

	var verrs flighterrors.ValidationErrors
	if req.Seats <= 0 {
		verrs = append(verrs, flighterrors.ValidationError{Field: "seats", Reason: "must be a positive integer"})
	}
	leg, ok := model.ParseLeg(req.Leg)
	if !ok {
		verrs = append(verrs, flighterrors.ValidationError{Field: "leg", Reason: "must be one of: outbound, return, both"})
	}
	if len(verrs) > 0 {
		return nil, validationFailed(verrs)
	}

	updated, err := s.repo.ReserveSeats(ctx, id, req.Seats, leg)
	if err != nil {
		var insufficient *flighterrors.InsufficientInventoryError
		switch {
		case errors.As(err, &insufficient):
			s.metrics.ObserveReservation(string(leg), metrics.OutcomeInsufficient, req.Seats)
			s.cfg.Log.Warn("Insufficient seat inventory",
				"id", id,
				"leg", insufficient.Leg,
				"requested", insufficient.Requested,
				"available", insufficient.Available,
			)
		case errors.Is(err, flighterrors.ErrNotFound):
			s.metrics.ObserveReservation(string(leg), metrics.OutcomeNotFound, req.Seats)
		case errors.Is(err, flighterrors.ErrInvalidID):
		default:
			s.metrics.ObserveReservation(string(leg), metrics.OutcomeError, req.Seats)
			s.cfg.Log.Error("Failed to reserve seats", "id", id, "error", err)
		}
		return nil, mapRepositoryError(err, id, "reserve seats")
	}

	s.metrics.ObserveReservation(string(leg), metrics.OutcomeReserved, req.Seats)
	s.cfg.Log.Info("Seats reserved successfully",
		"id", id,
		"leg", leg,
		"seats", req.Seats,
		"available_seats", updated.AvailableSeats,
		"return_available_seats", updated.ReturnAvailableSeats,
	)
	s.publish(ctx, events.Event{
		Type: events.TypeSeatsReserved,
		Key:  id,
		Payload: events.SeatsReserved{
			ID:                   id,
			FlightID:             updated.FlightID,
			Leg:                  string(leg),
			Seats:                req.Seats,
			AvailableSeats:       updated.AvailableSeats,
			ReturnAvailableSeats: updated.ReturnAvailableSeats,
		},
	})

	return &model.SeatAvailability{
		AvailableSeats:       updated.AvailableSeats,
		ReturnAvailableSeats: updated.ReturnAvailableSeats,
	}, nil
}
