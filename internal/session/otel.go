package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/emberwatch/firecommand/internal/session"

type metrics struct {
	dispatches metric.Int64Counter
	completed  metric.Int64Counter
	failed     metric.Int64Counter
	stale      metric.Int64Counter
	risks      metric.Int64Histogram
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)
	if out.dispatches, err = m.Int64Counter("session.dispatches",
		metric.WithDescription("Dispatched simulation requests by decision")); err != nil {
		return nil, fmt.Errorf("creating dispatch counter: %w", err)
	}
	if out.completed, err = m.Int64Counter("session.runs.completed",
		metric.WithDescription("Engine runs whose history was installed")); err != nil {
		return nil, fmt.Errorf("creating completed counter: %w", err)
	}
	if out.failed, err = m.Int64Counter("session.runs.failed",
		metric.WithDescription("Engine runs that failed")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if out.stale, err = m.Int64Counter("session.responses.stale",
		metric.WithDescription("Completions discarded as stale")); err != nil {
		return nil, fmt.Errorf("creating stale counter: %w", err)
	}
	if out.risks, err = m.Int64Histogram("session.risks",
		metric.WithDescription("Assets at risk per installed run")); err != nil {
		return nil, fmt.Errorf("creating risk histogram: %w", err)
	}
	return &out, nil
}

func (m *metrics) dispatch(d Decision) {
	m.dispatches.Add(context.Background(), 1, metric.WithAttributes(attribute.String("decision", string(d))))
}

func (m *metrics) staleResponse(reason string) {
	m.stale.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
