// Package hooks provides standard render hooks.
//
// A render hook runs before the reconciler touches a position and returns a
// callback that runs once the position is committed. The hooks here capture
// host-local state that a replaced host node would lose (focus, text
// selection, scroll offset) and restore it on the replacement.
//
// Usage:
//
//	Input(
//	    hooks.PreserveFocus(surface),
//	    Value(text),
//	)
package hooks
