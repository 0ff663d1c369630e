package render

// State is the lifecycle state of a mount root.
type State int32

const (
	// StateUnmounted means no trusted tree is committed; the next pass is a
	// first paint.
	StateUnmounted State = iota
	// StateFirstPaint means a first paint is in progress.
	StateFirstPaint
	// StateCommitted means the root holds the last committed tree.
	StateCommitted
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateFirstPaint:
		return "first_paint"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Mode is the kind of a finished pass.
type Mode string

const (
	ModeFirstPaint Mode = "first_paint"
	ModeUpdate     Mode = "update"
	ModeError      Mode = "error"
)
