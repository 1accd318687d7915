package events

import (
	"context"
	"fmt"
	"time"

	"kayak/pkg/config"
	"kayak/pkg/kafka"
	kafka_middleware "kayak/pkg/kafka/middleware"
	"kayak/pkg/metrics"
	"kayak/pkg/model"
)

const (
	TypeFlightCreated  = "flight.created"
	TypeFlightUpdated  = "flight.updated"
	TypeFlightDeleted  = "flight.deleted"
	TypeSeatsReserved  = "flight.seats.reserved"
	TypeReviewAdded    = "flight.review.added"
	SchemaVersion      = "1"
	Source             = "flights"
	defaultPublishWait = 5 * time.Second
)

// Event is a flight change notification. Key is the flight record id, which
// keeps all events of one flight on one partition.
type Event struct {
	Type          string
	Key           string
	CorrelationID string
	Payload       any
}

type FlightDeleted struct {
	ID       string `json:"id"`
	FlightID string `json:"flightId"`
}

type SeatsReserved struct {
	ID                   string `json:"id"`
	FlightID             string `json:"flightId"`
	Leg                  string `json:"leg"`
	Seats                int    `json:"seats"`
	AvailableSeats       int    `json:"availableSeats"`
	ReturnAvailableSeats int    `json:"returnAvailableSeats"`
}

type ReviewAdded struct {
	ID       string       `json:"id"`
	FlightID string       `json:"flightId"`
	Review   model.Review `json:"review"`
	Rating   model.Rating `json:"flightRating"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewPublisher returns a Kafka-backed publisher when Kafka is enabled and a no-op one otherwise.
func NewPublisher(cfg *config.Config, m *metrics.Metrics) (Publisher, error) {
	if cfg.Kafka == nil || !cfg.Kafka.Enabled {
		cfg.Log.Info("Kafka disabled, flight events will not be published")
		return NewNoopPublisher(), nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	if cfg.Kafka.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		if m != nil {
			producer.Use(kafka_middleware.MetricsProducerMiddleware(m))
		}
	}

	return NewKafkaPublisher(producer, cfg.Kafka.PublishTimeout), nil
}

type KafkaPublisher struct {
	producer *kafka.Producer
	timeout  time.Duration
}

func NewKafkaPublisher(producer *kafka.Producer, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = defaultPublishWait
	}
	return &KafkaPublisher{producer: producer, timeout: timeout}
}

// Publish writes the event with its own deadline; the caller's cancellation does
// not abort a publish for a change that is already persisted.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Key).
		WithEventID("").
		WithEventType(event.Type).
		WithCorrelationID(event.CorrelationID).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithValue(event.Payload).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

func (noopPublisher) Close() error { return nil }
