// Package middleware wraps the dispatch of viewer events received by the
// mirror server.
//
// This package includes:
//   - OpenTelemetry tracing of every dispatched event
//   - Prometheus metrics of event counts and dispatch duration
//   - Recovery of handlers that panic
//
// Middleware compose with Chain; the first one listed is the outermost:
//
//	srv := mirror.New(mem, root,
//	    mirror.WithEventMiddleware(
//	        middleware.Recover(logger),
//	        middleware.Metrics(collector),
//	        middleware.OpenTelemetry(middleware.WithTracerName("dashboard")),
//	    ),
//	)
//
// # Context Propagation
//
// The OpenTelemetry middleware passes the span context down the chain, so
// later middleware and the dispatcher see it:
//
//	func(ctx context.Context, msg protocol.EventMessage) error {
//	    span := trace.SpanFromContext(ctx)
//	    span.SetAttributes(attribute.Int("my.count", 42))
//	    return nil
//	}
package middleware
