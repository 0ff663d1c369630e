package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/retain/pkg/protocol"
)

// Default tracer name for retain.
const defaultTracerName = "retain"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "retain").
	TracerName string

	// IncludeDetail adds every event detail field as an attribute.
	// Details may carry user input, so this is disabled by default.
	IncludeDetail bool

	// Filter determines which events to trace.
	// Return true to trace the event, false to skip.
	// If nil, all events are traced.
	Filter func(msg protocol.EventMessage) bool

	// AttributeExtractor extracts custom attributes from the event.
	AttributeExtractor func(msg protocol.EventMessage) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracer uses t instead of a tracer from the global provider.
func WithTracer(t trace.Tracer) OTelOption {
	return func(c *OTelConfig) {
		c.tracer = t
	}
}

// WithIncludeDetail enables including event detail fields in traces.
func WithIncludeDetail(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeDetail = include
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(msg protocol.EventMessage) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(msg protocol.EventMessage) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{TracerName: defaultTracerName}
}

// OpenTelemetry creates middleware that traces every viewer event.
//
// Each span carries the event type and target node, and records the
// dispatch error if any. The tracer comes from the global provider unless
// WithTracer is given; configure it in main():
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.tracer == nil {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, msg protocol.EventMessage) error {
			if config.Filter != nil && !config.Filter(msg) {
				return next(ctx, msg)
			}

			attrs := []attribute.KeyValue{
				attribute.String("retain.event_type", msg.Type),
				attribute.Int64("retain.event_target", int64(msg.Target)),
			}
			if config.IncludeDetail {
				for k, v := range msg.Detail {
					attrs = append(attrs, detailAttr(k, v))
				}
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(msg)...)
			}

			spanCtx, span := config.tracer.Start(ctx, spanName(msg),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
				trace.WithTimestamp(time.Now()),
			)
			defer span.End()

			err := next(spanCtx, msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		}
	}
}

func detailAttr(k string, v any) attribute.KeyValue {
	key := "retain.detail." + k
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case float64:
		return attribute.Float64(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}
