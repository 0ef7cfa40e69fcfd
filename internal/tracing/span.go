package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on simulated request spans.
const (
	MethodKey    = attribute.Key("http.request.method")
	EndpointKey  = attribute.Key("loadlab.endpoint")
	RequestIDKey = attribute.Key("loadlab.request_id")
	StatusKey    = attribute.Key("http.response.status_code")
)

// RequestSpan is the client span of one simulated request.
type RequestSpan struct {
	span trace.Span
}

// StartRequest opens a client span named after method and endpoint.
// requestID may be empty.
func StartRequest(ctx context.Context, tracer trace.Tracer, method, endpoint, requestID string) (context.Context, RequestSpan) {
	name := method + " request"
	attrs := []attribute.KeyValue{MethodKey.String(method)}
	if endpoint != "" {
		name = method + " " + endpoint
		attrs = append(attrs, EndpointKey.String(endpoint))
	}
	if requestID != "" {
		attrs = append(attrs, RequestIDKey.String(requestID))
	}
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, RequestSpan{span: span}
}

// Finish records the response status, when one arrived, and the outcome,
// then ends the span.
func (s RequestSpan) Finish(status int, err error) {
	if status > 0 {
		s.span.SetAttributes(StatusKey.Int(status))
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// InjectHTTPHeaders writes the W3C trace context of ctx into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
