// Package otel holds the span helpers shared by the save coordinator and the request dispatcher.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to save pass and dispatch spans.
const (
	AttrPassID     = attribute.Key("save.pass_id")
	AttrPassNumber = attribute.Key("save.pass_number")
	AttrInstance   = attribute.Key("save.instance")
	AttrOutcome    = attribute.Key("save.outcome")
	AttrPrivileged = attribute.Key("save.privileged")
	AttrRequest    = attribute.Key("control.request")
	AttrSource     = attribute.Key("control.source")
)

// EventPassAborted is added to a pass span when the persisted component went away
const EventPassAborted = "save.aborted"

// StartSpan starts a span on tracer. With a nil tracer the span already in ctx
// (usually a no-op one) is returned, so callers never check for tracing themselves.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// PassAttributes describes one save pass of a worker
func PassAttributes(instance, passID string, pass int, privileged bool) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrInstance.String(instance),
		AttrPassID.String(passID),
		AttrPassNumber.Int(pass),
		AttrPrivileged.Bool(privileged),
	)
}

// RequestAttributes describes a dispatched control request
func RequestAttributes(request, source string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrRequest.String(request),
		AttrSource.String(source),
	)
}

// RecordError marks span as failed and attaches err as an exception event.
// The status description stays generic since hook output may end up in err.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed")
}

// RecordAbort notes on span that the pass stopped because its component is gone.
// The status is left unset: an abort ends the loop but is not a failure.
func RecordAbort(span trace.Span, err error) {
	if span == nil {
		return
	}
	attrs := []attribute.KeyValue{}
	if err != nil {
		attrs = append(attrs, attribute.String("reason", err.Error()))
	}
	span.AddEvent(EventPassAborted, trace.WithAttributes(attrs...))
}

// SetOutcome records how a pass ended
func SetOutcome(span trace.Span, outcome string) {
	if span == nil {
		return
	}
	span.SetAttributes(AttrOutcome.String(outcome))
}
