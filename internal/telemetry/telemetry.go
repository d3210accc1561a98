// Package telemetry is the optional observability facade shared by
// aligner, estimator, and timestamper. It is adapted from the teacher's
// internal/telemetry.go and internal/tracer.go, with one deliberate
// departure: the teacher keeps a package-level default Telemetry, which
// this library cannot do without violating spec.md §5's "no global
// state, no singletons" rule. Instead, Telemetry is constructed
// per-instance (its tracer and meter still come from
// otel.GetTracerProvider()/GetMeterProvider()) and handed explicitly to
// whichever component should emit through it; a nil *Telemetry is valid
// and makes every method a no-op,
// so attaching telemetry never becomes load-bearing for correctness.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/squadracorsepolito/tsalign/internal/logger"
)

// Telemetry bundles a component-scoped logger with an otel tracer and
// meter.
type Telemetry struct {
	component string
	name      string

	log *logger.Logger

	tracer trace.Tracer
	meter  metric.Meter
}

// New builds a Telemetry facade bound to the process-wide otel providers,
// exactly as the teacher's internal.NewTelemetry does.
func New(component, name string) *Telemetry {
	return &Telemetry{
		component: component,
		name:      name,

		log: logger.New(component, name),

		tracer: otel.GetTracerProvider().Tracer("tsalign"),
		meter:  otel.GetMeterProvider().Meter("tsalign"),
	}
}

// LogInfo logs at info level. Safe to call on a nil *Telemetry.
func (t *Telemetry) LogInfo(msg string, args ...any) {
	if t == nil {
		return
	}
	t.log.Info(msg, args...)
}

// LogWarn logs at warn level. Safe to call on a nil *Telemetry.
func (t *Telemetry) LogWarn(msg string, args ...any) {
	if t == nil {
		return
	}
	t.log.Warn(msg, args...)
}

// LogError logs at error level. Safe to call on a nil *Telemetry.
func (t *Telemetry) LogError(msg string, err error, args ...any) {
	if t == nil {
		return
	}
	t.log.Error(msg, err, args...)
}

func (t *Telemetry) setDefaultAttributes(span trace.Span) {
	span.SetAttributes(
		attribute.String("tsalign.component", t.component),
		attribute.String("tsalign.name", t.name),
	)
}

// NewSpan starts a span named spanName. Safe to call on a nil *Telemetry,
// in which case it returns ctx unchanged and a span whose End/SetAttributes
// calls are no-ops.
func (t *Telemetry) NewSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := t.tracer.Start(ctx, spanName)
	t.setDefaultAttributes(span)
	return ctx, span
}

func (t *Telemetry) meterName(name string) string {
	return fmt.Sprintf("%s_%s_%s", t.component, t.name, name)
}

// NewCounter creates an Int64Counter named after the component/instance.
// Safe to call on a nil *Telemetry, returning a nil counter that every
// caller must guard with IncrCounter instead of calling directly.
func (t *Telemetry) NewCounter(name string) metric.Int64Counter {
	if t == nil {
		return nil
	}
	counter, err := t.meter.Int64Counter(t.meterName(name))
	if err != nil {
		t.LogError("failed to create counter", err, "name", name)
		return nil
	}
	return counter
}

// IncrCounter adds delta to counter if both are non-nil. This indirection
// exists so call sites don't need a nil check on every hot-path increment.
func IncrCounter(ctx context.Context, counter metric.Int64Counter, delta int64) {
	if counter == nil {
		return
	}
	counter.Add(ctx, delta)
}
