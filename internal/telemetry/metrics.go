package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "nutritico"

// Metrics holds the domain counters. Without an initialized provider the
// global meter is a no-op, so a zero-config Metrics is always safe to use.
type Metrics struct {
	consults         metric.Int64Counter
	commandsApplied  metric.Int64Counter
	commandsDropped  metric.Int64Counter
	syncFailures     metric.Int64Counter
	foodsScanned     metric.Int64Counter
	fastingCompleted metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider
func NewMetrics() *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.consults, err = meter.Int64Counter("nutritico.assistant.consults",
		metric.WithDescription("Assistant consults by outcome")); err != nil {
		log.Printf("Warning: failed to create consults counter: %v", err)
	}
	if m.commandsApplied, err = meter.Int64Counter("nutritico.plan.commands_applied",
		metric.WithDescription("Plan commands applied from assistant responses")); err != nil {
		log.Printf("Warning: failed to create commands_applied counter: %v", err)
	}
	if m.commandsDropped, err = meter.Int64Counter("nutritico.plan.commands_dropped",
		metric.WithDescription("Plan command elements rejected by validation")); err != nil {
		log.Printf("Warning: failed to create commands_dropped counter: %v", err)
	}
	if m.syncFailures, err = meter.Int64Counter("nutritico.sync.failures",
		metric.WithDescription("Failed background state syncs")); err != nil {
		log.Printf("Warning: failed to create sync_failures counter: %v", err)
	}
	if m.foodsScanned, err = meter.Int64Counter("nutritico.foods.scanned",
		metric.WithDescription("Custom foods extracted from label photos")); err != nil {
		log.Printf("Warning: failed to create foods_scanned counter: %v", err)
	}
	if m.fastingCompleted, err = meter.Int64Counter("nutritico.fasting.sessions",
		metric.WithDescription("Stopped fasting sessions by completion")); err != nil {
		log.Printf("Warning: failed to create fasting counter: %v", err)
	}
	return m
}

// RecordConsult counts one consult; degraded marks a transport failure
func (m *Metrics) RecordConsult(ctx context.Context, degraded bool, applied, dropped int) {
	if m == nil {
		return
	}
	if m.consults != nil {
		m.consults.Add(ctx, 1, metric.WithAttributes(attribute.Bool("degraded", degraded)))
	}
	if m.commandsApplied != nil && applied > 0 {
		m.commandsApplied.Add(ctx, int64(applied))
	}
	if m.commandsDropped != nil && dropped > 0 {
		m.commandsDropped.Add(ctx, int64(dropped))
	}
}

// RecordSyncFailure counts a failed background write to a backend
func (m *Metrics) RecordSyncFailure(ctx context.Context, backend string) {
	if m == nil || m.syncFailures == nil {
		return
	}
	m.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordFoodScanned counts a custom food created from a label
func (m *Metrics) RecordFoodScanned(ctx context.Context, group string) {
	if m == nil || m.foodsScanned == nil {
		return
	}
	m.foodsScanned.Add(ctx, 1, metric.WithAttributes(attribute.String("group", group)))
}

// RecordFastingStopped counts a stopped fasting session
func (m *Metrics) RecordFastingStopped(ctx context.Context, completed bool) {
	if m == nil || m.fastingCompleted == nil {
		return
	}
	m.fastingCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("completed", completed)))
}
