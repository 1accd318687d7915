package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	flighterrors "kayak/internal/flights/errors"
	"kayak/internal/flights/events"
	"kayak/internal/flights/query"
	"kayak/internal/flights/repository"
	"kayak/internal/flights/validator"
	"kayak/pkg/config"
	apperrors "kayak/pkg/errors"
	"kayak/pkg/logger"
	"kayak/pkg/metrics"
	"kayak/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────
// Test doubles
// ────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// failingRepository wraps the in-memory gateway and fails selected calls.
type failingRepository struct {
	repository.FlightRepository
	countErr error
	findErr  error
}

func (r *failingRepository) Count(ctx context.Context, filter *query.Filter) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.FlightRepository.Count(ctx, filter)
}

func (r *failingRepository) Find(ctx context.Context, filter *query.Filter, sort query.Sort, skip int64, limit int) ([]*model.Flight, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.FlightRepository.Find(ctx, filter, sort, skip, limit)
}

type fixture struct {
	svc       FlightService
	repo      repository.FlightRepository
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.NewMemoryFlightRepository())
}

func newFixtureWithRepo(t *testing.T, repo repository.FlightRepository) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := config.Default(log)
	pub := &recordingPublisher{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	return &fixture{
		svc:       NewFlightService(repo, validator.NewFlightValidator(log), pub, m, cfg),
		repo:      repo,
		publisher: pub,
		metrics:   m,
	}
}

func rawFlight(flightID string, seats int) map[string]any {
	return map[string]any{
		"flightId": flightID,
		"airline":  "United Airlines",
		"departureAirport": map[string]any{
			"code": "JFK", "name": "John F. Kennedy International", "city": "New York", "country": "USA",
		},
		"arrivalAirport": map[string]any{
			"code": "LAX", "name": "Los Angeles International", "city": "Los Angeles", "country": "USA",
		},
		"departureDateTime":         "2025-03-10T08:00:00Z",
		"arrivalDateTime":           "2025-03-10T14:00:00Z",
		"duration":                  map[string]any{"hours": 6},
		"flightClass":               "Economy",
		"ticketPrice":               349.99,
		"totalAvailableSeats":       100,
		"availableSeats":            seats,
		"returnFlightId":            flightID + "R",
		"returnDepartureDateTime":   "2025-03-17T09:00:00Z",
		"returnArrivalDateTime":     "2025-03-17T17:30:00Z",
		"returnDuration":            map[string]any{"hours": 5, "minutes": 30},
		"returnTicketPrice":         329.5,
		"returnFlightClass":         "Economy",
		"returnTotalAvailableSeats": 100,
		"returnAvailableSeats":      100,
	}
}

func mustCreate(t *testing.T, f *fixture, raw map[string]any) *model.Flight {
	t.Helper()
	created, err := f.svc.Create(context.Background(), raw)
	require.NoError(t, err)
	return created
}

func requireCode(t *testing.T, err error, code string, status int) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.Equal(t, code, appErr.Code, "error: %v", err)
	require.Equal(t, status, appErr.StatusCode())
	return appErr
}

// ────────────────────────────────────────────────
// Create / read
// ────────────────────────────────────────────────

func TestCreate_PersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{events.TypeFlightCreated}, f.publisher.types())

	byNumber, err := f.svc.GetByFlightID(context.Background(), " ua100 ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)
}

func TestCreate_ValidationDetailsListEveryField(t *testing.T) {
	f := newFixture(t)
	raw := rawFlight("UA100", 100)
	raw["returnFlightId"] = ""
	raw["returnDuration"] = map[string]any{"hours": 0}

	_, err := f.svc.Create(context.Background(), raw)
	appErr := requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)

	fields, ok := appErr.Details["fields"].([]flighterrors.ValidationError)
	require.True(t, ok)
	assert.Contains(t, fields, flighterrors.ValidationError{Field: "returnFlightId", Reason: flighterrors.ReasonMissing})
	assert.Contains(t, fields, flighterrors.ValidationError{Field: "returnDuration", Reason: flighterrors.ReasonMissing})
	assert.Empty(t, f.publisher.types())
}

func TestCreate_DuplicateFlightIDConflicts(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, rawFlight("UA100", 100))

	_, err := f.svc.Create(context.Background(), rawFlight("UA100", 50))
	requireCode(t, err, apperrors.CodeConflict, http.StatusConflict)
}

func TestGetByID_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetByID(context.Background(), "")
	requireCode(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)

	_, err = f.svc.GetByID(context.Background(), "bad-id")
	requireCode(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)

	_, err = f.svc.GetByID(context.Background(), "65f000000000000000000000")
	requireCode(t, err, apperrors.CodeNotFound, http.StatusNotFound)
}

// ────────────────────────────────────────────────
// Reservations
// ────────────────────────────────────────────────

func TestReserveSeats_ScenarioA(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))
	ctx := context.Background()

	availability, err := f.svc.ReserveSeats(ctx, created.ID, model.ReserveSeatsRequest{Seats: 30})
	require.NoError(t, err)
	assert.Equal(t, 70, availability.AvailableSeats)
	assert.Equal(t, 100, availability.ReturnAvailableSeats)

	_, err = f.svc.ReserveSeats(ctx, created.ID, model.ReserveSeatsRequest{Seats: 80, Leg: "outbound"})
	appErr := requireCode(t, err, apperrors.CodeInsufficientInventory, http.StatusBadRequest)
	assert.Equal(t, "outbound", appErr.Details["leg"])
	assert.Equal(t, 10, appErr.Details["shortfall"])

	stored, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, stored.AvailableSeats)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reservations.WithLabelValues("outbound", metrics.OutcomeReserved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reservations.WithLabelValues("outbound", metrics.OutcomeInsufficient)))
	assert.Equal(t, 30.0, testutil.ToFloat64(f.metrics.SeatsReserved.WithLabelValues("outbound")))
	assert.Equal(t, []string{events.TypeFlightCreated, events.TypeSeatsReserved}, f.publisher.types())
}

func TestReserveSeats_BothLegs(t *testing.T) {
	f := newFixture(t)
	raw := rawFlight("UA100", 100)
	raw["returnAvailableSeats"] = 3
	created := mustCreate(t, f, raw)
	ctx := context.Background()

	availability, err := f.svc.ReserveSeats(ctx, created.ID, model.ReserveSeatsRequest{Seats: 2, Leg: "both"})
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailability{AvailableSeats: 98, ReturnAvailableSeats: 1}, *availability)

	_, err = f.svc.ReserveSeats(ctx, created.ID, model.ReserveSeatsRequest{Seats: 2, Leg: "BOTH"})
	appErr := requireCode(t, err, apperrors.CodeInsufficientInventory, http.StatusBadRequest)
	assert.Equal(t, "return", appErr.Details["leg"])

	stored, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 98, stored.AvailableSeats, "a failed round-trip reservation must not consume outbound seats")
}

func TestReserveSeats_RejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))

	tests := []struct {
		name   string
		id     string
		req    model.ReserveSeatsRequest
		code   string
		status int
	}{
		{"zero seats", created.ID, model.ReserveSeatsRequest{Seats: 0}, apperrors.CodeValidation, http.StatusBadRequest},
		{"negative seats", created.ID, model.ReserveSeatsRequest{Seats: -3}, apperrors.CodeValidation, http.StatusBadRequest},
		{"unknown leg", created.ID, model.ReserveSeatsRequest{Seats: 1, Leg: "sideways"}, apperrors.CodeValidation, http.StatusBadRequest},
		{"missing flight", "65f000000000000000000000", model.ReserveSeatsRequest{Seats: 1}, apperrors.CodeNotFound, http.StatusNotFound},
		{"bad id", "nope", model.ReserveSeatsRequest{Seats: 1}, apperrors.CodeInvalidInput, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReserveSeats(context.Background(), tt.id, tt.req)
			requireCode(t, err, tt.code, tt.status)
		})
	}
}

func TestReserveSeats_SeatBoundUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 10))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.ReserveSeats(context.Background(), created.ID, model.ReserveSeatsRequest{Seats: 1})
		}()
	}
	wg.Wait()

	stored, err := f.svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableSeats)
	assert.LessOrEqual(t, stored.AvailableSeats, stored.TotalAvailableSeats)
	assert.Equal(t, 10.0, testutil.ToFloat64(f.metrics.SeatsReserved.WithLabelValues("outbound")))
}

// ────────────────────────────────────────────────
// Update / delete / reviews
// ────────────────────────────────────────────────

func TestUpdate_MergesAndRevalidates(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, created.ID, map[string]any{
		"returnDuration": map[string]any{"hours": 6},
		"ticketPrice":    299,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Duration{Hours: 6, Minutes: 30}, updated.ReturnDuration)
	assert.Equal(t, 299.0, updated.TicketPrice)

	_, err = f.svc.Update(ctx, created.ID, map[string]any{"returnFlightId": nil})
	requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)

	stored, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "UA100R", stored.ReturnFlightID, "rejected updates write nothing")
	assert.Equal(t, 299.0, stored.TicketPrice)
}

func TestUpdate_KeepsSeatsReservedMeanwhile(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))
	ctx := context.Background()

	_, err := f.svc.ReserveSeats(ctx, created.ID, model.ReserveSeatsRequest{Seats: 4})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, map[string]any{"airline": "Delta"})
	require.NoError(t, err)
	assert.Equal(t, 96, updated.AvailableSeats)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), "65f000000000000000000000", map[string]any{"airline": "Delta"})
	requireCode(t, err, apperrors.CodeNotFound, http.StatusNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	_, err := f.svc.GetByID(ctx, created.ID)
	requireCode(t, err, apperrors.CodeNotFound, http.StatusNotFound)

	err = f.svc.Delete(ctx, created.ID)
	requireCode(t, err, apperrors.CodeNotFound, http.StatusNotFound)
	assert.Equal(t, []string{events.TypeFlightCreated, events.TypeFlightDeleted}, f.publisher.types())
}

func TestAddReview_RecomputesRating(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, rawFlight("UA100", 100))
	ctx := context.Background()

	review, err := f.svc.AddReview(ctx, created.ID, &model.Review{UserID: "u1", UserName: " Ann ", Rating: 4, Comment: "Fine"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", review.UserName)
	assert.False(t, review.CreatedAt.IsZero())

	_, err = f.svc.AddReview(ctx, created.ID, &model.Review{UserID: "u2", UserName: "Ben", Rating: 1})
	require.NoError(t, err)

	stored, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Rating{Average: 2.5, Count: 2}, stored.FlightRating)

	_, err = f.svc.AddReview(ctx, created.ID, &model.Review{UserID: "u3", UserName: "Cy", Rating: 6})
	requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)
}

// ────────────────────────────────────────────────
// Search
// ────────────────────────────────────────────────

func TestSearch_ScenarioB(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, rawFlight("UA100", 100))

	boston := rawFlight("B6200", 100)
	boston["departureAirport"] = map[string]any{"code": "BOS", "name": "Logan", "city": "Boston", "country": "USA"}
	mustCreate(t, f, boston)

	newark := rawFlight("UA300", 100)
	newark["departureAirport"] = map[string]any{"code": "EWR", "name": "Newark Liberty", "city": "Newark", "country": "USA"}
	mustCreate(t, f, newark)

	soldOut := rawFlight("UA400", 0)
	mustCreate(t, f, soldOut)

	ctx := context.Background()

	byCode, err := f.svc.Search(ctx, url.Values{"from": {"JFK"}})
	require.NoError(t, err)
	require.Len(t, byCode.Flights, 1)
	assert.Equal(t, "JFK", byCode.Flights[0].DepartureAirport.Code)
	assert.Equal(t, int64(1), byCode.Total)

	byCity, err := f.svc.Search(ctx, url.Values{"from": {"New York"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), byCity.Total)

	partial, err := f.svc.Search(ctx, url.Values{"from": {"new"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), partial.Total, "matches New York and Newark")
}

func TestSearch_Pagination(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"AA1", "AA2", "AA3", "AA4", "AA5"} {
		mustCreate(t, f, rawFlight(id, 100))
	}

	res, err := f.svc.Search(context.Background(), url.Values{"page": {"2"}, "limit": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Total)
	assert.Len(t, res.Flights, 2)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, res.Limit)
}

func TestSearch_InvalidParameters(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Search(context.Background(), url.Values{"minPrice": {"900"}, "maxPrice": {"100"}})
	requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)
}

func TestSearch_PageBeyondSkipBoundIsRejected(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, rawFlight("AA1", 100))

	_, err := f.svc.Search(context.Background(), url.Values{"page": {"9223372036854775807"}})
	appErr := requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)
	assert.Contains(t, appErr.Details["fields"], flighterrors.ValidationError{Field: "page", Reason: flighterrors.ReasonRange})
}

func TestSearch_GatewayFailure(t *testing.T) {
	repo := &failingRepository{
		FlightRepository: repository.NewMemoryFlightRepository(),
		countErr:         errors.New("connection reset"),
	}
	f := newFixtureWithRepo(t, repo)

	_, err := f.svc.Search(context.Background(), url.Values{})
	requireCode(t, err, apperrors.CodePersistence, http.StatusInternalServerError)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	created, err := f.svc.Create(context.Background(), rawFlight("UA100", 100))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}
