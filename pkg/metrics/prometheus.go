package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics of the flights service
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Reservations  *prometheus.CounterVec
	SeatsReserved *prometheus.CounterVec

	EventsPublished      *prometheus.CounterVec
	EventPublishDuration prometheus.Histogram
}

const (
	OutcomeReserved     = "reserved"
	OutcomeInsufficient = "insufficient"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// NewMetrics registers the metrics on reg. Pass a fresh prometheus.NewRegistry() in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of handled HTTP requests",
		}, []string{"method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Reservations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_reservations_total",
			Help:      "Seat reservation attempts by leg and outcome",
		}, []string{"leg", "outcome"}),
		SeatsReserved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seats_reserved_total",
			Help:      "The total number of seats decremented by leg",
		}, []string{"leg"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Flight change events handed to Kafka by type and outcome",
		}, []string{"event_type", "outcome"}),
		EventPublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_seconds",
			Help:      "Time taken to publish a flight change event",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveReservation records the outcome of one reservation attempt.
func (m *Metrics) ObserveReservation(leg, outcome string, seats int) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(leg, outcome).Inc()
	if outcome == OutcomeReserved {
		m.SeatsReserved.WithLabelValues(leg).Add(float64(seats))
	}
}
