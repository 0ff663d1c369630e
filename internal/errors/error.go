package errors

import (
	"fmt"
	"log/slog"
)

// Category represents the subsystem reporting an error.
type Category string

const (
	CategoryRender   Category = "render"
	CategoryState    Category = "state"
	CategoryLoader   Category = "loader"
	CategoryHost     Category = "host"
	CategoryConfig   Category = "config"
	CategoryProtocol Category = "protocol"
	CategoryCLI      Category = "cli"
)

// Error is a coded diagnostic with an optional wrapped cause.
type Error struct {
	// Code is a unique error identifier (e.g., "R001").
	Code string

	// Category is the reporting subsystem.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer, instance-specific explanation.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail.
func (e *Error) WithDetailf(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// LogAttrs returns slog attributes describing the error, suitable for
// logger.Warn(err.Message, err.LogAttrs()...).
func (e *Error) LogAttrs() []any {
	attrs := []any{
		slog.String("code", e.Code),
		slog.String("category", string(e.Category)),
	}
	if e.Detail != "" {
		attrs = append(attrs, slog.String("detail", e.Detail))
	}
	if e.Wrapped != nil {
		attrs = append(attrs, slog.String("cause", e.Wrapped.Error()))
	}
	return attrs
}

// Log writes the error to logger at warn level. A nil logger uses slog.Default().
func (e *Error) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(e.Message, e.LogAttrs()...)
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return New(code).Wrap(err)
}
