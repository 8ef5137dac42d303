// ABOUTME: OpenTelemetry observer that records every tool invocation as metrics and a span.
// ABOUTME: Plugs into the dispatcher through the toolbox.Observer interface.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/tool-gateway/internal/toolbox"
)

// Metric and span names.
const (
	MetricInvocations = "tool_gateway.tool.invocations"
	MetricLatency     = "tool_gateway.tool.latency"
	SpanInvoke        = "tool.invoke"
)

// Observer records invocation counts, latency and spans.
type Observer struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewObserver creates an observer bound to the provided meter and tracer.
// A nil tracer disables spans.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:      tracer,
		invocations: invocations,
		latency:     latency,
	}, nil
}

// ObserveInvoke records one finished invocation.
func (o *Observer) ObserveInvoke(ctx context.Context, obs toolbox.Observation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", obs.ToolName),
		attribute.String("protocol", obs.Protocol),
		attribute.Bool("success", obs.Success()),
	}
	if !obs.Success() {
		attrs = append(attrs, attribute.String("error_kind", string(obs.ErrKind)))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	attrs = append(attrs, attribute.String("invocation_id", obs.InvocationID))
	if obs.SessionID != "" {
		attrs = append(attrs, attribute.String("session_id", obs.SessionID))
	}
	_, span := o.tracer.Start(ctx, SpanInvoke,
		trace.WithTimestamp(obs.StartedAt),
		trace.WithAttributes(attrs...),
	)
	if obs.Success() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, obs.ErrMessage)
	}
	span.End(trace.WithTimestamp(obs.StartedAt.Add(obs.Duration)))
}

var _ toolbox.Observer = (*Observer)(nil)
