package infra

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"reading-gate/gate/domain"
)

// PrometheusStatsStore expõe as decisões como gate_decisions_total{outcome,cause}.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gate",
		Name:      "decisions_total",
		Help:      "Submission decisions partitioned by outcome and internal cause.",
	}, []string{"outcome", "cause"})

	if err := reg.Register(decisions); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register decisions collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing decisions collector has unexpected type %T", already.ExistingCollector)
		}
		decisions = existing
	}

	return &PrometheusStatsStore{decisions: decisions}, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	switch {
	case ev.Allowed && ev.Duplicate:
		outcome = "duplicate"
	case ev.Allowed:
		outcome = "accepted"
	}
	s.decisions.WithLabelValues(outcome, string(ev.Cause)).Inc()
	return nil
}

// MultiStats repassa cada evento para todos os stores; o primeiro erro é devolvido.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ domain.StatsStore = (*PrometheusStatsStore)(nil)
	_ domain.StatsStore = MultiStats(nil)
)
