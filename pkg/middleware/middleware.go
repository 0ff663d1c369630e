package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/metrics"
	"github.com/vango-dev/retain/pkg/protocol"
)

// Handler dispatches one viewer event.
type Handler func(ctx context.Context, msg protocol.EventMessage) error

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain composes middleware. The first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				next = mws[i](next)
			}
		}
		return next
	}
}

// Metrics records the count and duration of every event on c.
func Metrics(c *metrics.Collector) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg protocol.EventMessage) error {
			start := time.Now()
			err := next(ctx, msg)
			c.RecordEvent(msg.Type, err, time.Since(start))
			return err
		}
	}
}

// Recover turns a panicking handler into an H002 error, logged on logger.
// A nil logger uses slog.Default().
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg protocol.EventMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					coded := errors.New("H002").WithDetailf("%s on node %d: %v", msg.Type, msg.Target, r)
					coded.Log(logger)
					err = coded
				}
			}()
			return next(ctx, msg)
		}
	}
}

// spanName returns the span name of an event.
func spanName(msg protocol.EventMessage) string {
	if msg.Type == "" {
		return "retain.event"
	}
	return fmt.Sprintf("retain.%s", msg.Type)
}
