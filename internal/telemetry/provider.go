// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the tracer and meter name used by every component.
const InstrumentationName = "github.com/jeranaias/rigrun-assist"

// =============================================================================
// PROVIDER
// =============================================================================

// Config controls telemetry setup.
type Config struct {
	Enabled bool
	Version string
}

// Provider holds the tracer, the meter and the instruments.
// When disabled every instrument is a no-op. When enabled the process-wide
// OpenTelemetry providers are used, so whatever SDK the host installed
// receives the data.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	backendCalls    metric.Int64Counter
	backendDuration metric.Float64Histogram
	routingCounter  metric.Int64Counter
	actionCounter   metric.Int64Counter
	clarifyCounter  metric.Int64Counter
}

// NewProvider creates a provider for cfg.
func NewProvider(cfg Config) *Provider {
	p := &Provider{Enabled: cfg.Enabled}
	if cfg.Enabled {
		opts := []trace.TracerOption{}
		if cfg.Version != "" {
			opts = append(opts, trace.WithInstrumentationVersion(cfg.Version))
		}
		p.tracer = otel.GetTracerProvider().Tracer(InstrumentationName, opts...)
		p.meter = otel.GetMeterProvider().Meter(InstrumentationName)
	} else {
		p.tracer = tracenoop.NewTracerProvider().Tracer("")
		p.meter = metricnoop.NewMeterProvider().Meter("")
	}
	p.initInstruments()
	return p
}

func (p *Provider) initInstruments() {
	// Telemetry is best-effort; a failed instrument falls back to a no-op.
	var err error
	if p.backendCalls, err = p.meter.Int64Counter("rigrun_assist_backend_calls_total",
		metric.WithDescription("Model backend calls by backend and outcome")); err != nil {
		p.backendCalls = metricnoop.Int64Counter{}
	}
	if p.backendDuration, err = p.meter.Float64Histogram("rigrun_assist_backend_call_duration_ms",
		metric.WithUnit("ms")); err != nil {
		p.backendDuration = metricnoop.Float64Histogram{}
	}
	if p.routingCounter, err = p.meter.Int64Counter("rigrun_assist_routing_decisions_total"); err != nil {
		p.routingCounter = metricnoop.Int64Counter{}
	}
	if p.actionCounter, err = p.meter.Int64Counter("rigrun_assist_actions_total"); err != nil {
		p.actionCounter = metricnoop.Int64Counter{}
	}
	if p.clarifyCounter, err = p.meter.Int64Counter("rigrun_assist_clarifications_total"); err != nil {
		p.clarifyCounter = metricnoop.Int64Counter{}
	}
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return metricnoop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// =============================================================================
// SPANS
// =============================================================================

// StartSpan starts a span with attributes filtered through SafeAttributes.
func (p *Provider) StartSpan(ctx context.Context, name string, values map[string]any) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithAttributes(SafeAttributes(values)...))
}

// EndSpan marks the span failed when err is non-nil and ends it.
// Only the error type is recorded: error messages may quote model output.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, "error")
		span.SetAttributes(attribute.String("error.type", errorType(err)))
	}
	span.End()
}

func errorType(err error) string {
	t := strings.TrimPrefix(strings.TrimPrefix(typeName(err), "*"), "errors.")
	if t == "" {
		return "error"
	}
	return t
}
