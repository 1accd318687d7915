package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"kayak/pkg/kafka"
	"kayak/pkg/logger"
	"kayak/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsProducerMiddleware(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	mw := MetricsProducerMiddleware(m)

	msg, err := kafka.NewMessage().WithKey("f1").WithEventType("flight.created").WithValue(map[string]string{"a": "b"}).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("connection refused") }

	_ = mw(context.Background(), msg, ok)
	_ = mw(context.Background(), msg, ok)
	if err := mw(context.Background(), msg, fail); err == nil {
		t.Fatal("expected error to propagate")
	}

	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("flight.created", metrics.OutcomeSuccess)); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("flight.created", metrics.OutcomeFailure)); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
}

func TestLoggingProducerMiddleware_PropagatesResult(t *testing.T) {
	mw := LoggingProducerMiddleware(logger.Discard())
	msg := kafka.Message{Key: "f1", Value: []byte("{}"), Headers: map[string]string{}}

	wantErr := errors.New("boom")
	err := mw(context.Background(), msg, func(ctx context.Context, msg kafka.Message) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}

	called := false
	err = mw(context.Background(), msg, func(ctx context.Context, msg kafka.Message) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("next not called or unexpected error: called=%v err=%v", called, err)
	}
}
