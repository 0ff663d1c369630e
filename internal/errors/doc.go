// Package errors provides coded, structured diagnostics for retain.
//
// Every failure the engine recovers from locally (an invalid tag, a component
// that panicked while rendering, a state update that was not a record) is
// described by a registered code so that log output stays greppable and
// stable across releases:
//
//	err := errors.New("R003").
//	    WithDetail(`component "Card" panicked: index out of range`).
//	    Wrap(cause)
//
//	logger.Warn(err.Message, err.LogAttrs()...)
//
// # Categories
//
// Codes are grouped by the subsystem that reports them:
//   - render: node construction, materialization and the render driver (R0xx)
//   - state: the state store (S0xx)
//   - loader: component resolution (L0xx)
//   - host: host surface observation (H0xx)
//   - config: configuration files (C0xx)
//   - protocol: the binary codec (P0xx)
package errors
