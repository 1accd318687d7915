package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveReservation(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.ObserveReservation("outbound", OutcomeReserved, 3)
	m.ObserveReservation("outbound", OutcomeReserved, 2)
	m.ObserveReservation("outbound", OutcomeInsufficient, 50)

	if got := testutil.ToFloat64(m.Reservations.WithLabelValues("outbound", OutcomeReserved)); got != 2 {
		t.Errorf("reserved count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Reservations.WithLabelValues("outbound", OutcomeInsufficient)); got != 1 {
		t.Errorf("insufficient count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SeatsReserved.WithLabelValues("outbound")); got != 5 {
		t.Errorf("seats reserved = %v, want 5", got)
	}
}

func TestObserveReservation_NilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveReservation("return", OutcomeReserved, 1)
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	NewMetrics("flights", prometheus.NewRegistry())
	NewMetrics("flights", prometheus.NewRegistry())
}
