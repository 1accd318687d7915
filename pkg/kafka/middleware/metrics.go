package kafka_middleware

import (
	"context"
	"time"

	"kayak/pkg/kafka"
	"kayak/pkg/metrics"
)

// MetricsProducerMiddleware tracks publish outcomes and latency per event type
func MetricsProducerMiddleware(m *metrics.Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		m.EventPublishDuration.Observe(time.Since(start).Seconds())

		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		m.EventsPublished.WithLabelValues(msg.GetEventType(), outcome).Inc()

		return err
	}
}
