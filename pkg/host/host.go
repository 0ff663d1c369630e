package host

// ID is a stable identifier for a live host node. IDs are never reused by a
// surface, so they can key side tables that outlive a node.
type ID uint64

// Node is an opaque handle to a live host node.
type Node interface {
	ID() ID
}

// Event is delivered to listeners bound on a host node.
type Event struct {
	Type   string
	Target Node
	Detail map[string]any
}

// Listener handles a host event.
type Listener func(Event)

// ListenerHandle identifies one bound listener so it can be removed later.
type ListenerHandle uint64

// Surface is the capability set the engine requires of a display surface.
type Surface interface {
	// CreateElement creates a detached element. ns selects a namespaced
	// vocabulary (e.g. SVG) and is empty for the default one.
	CreateElement(tag, ns string) (Node, error)
	// CreateText creates a detached text node.
	CreateText(value string) Node
	// SetText replaces the value of a text node.
	SetText(n Node, value string)

	SetAttribute(n Node, name, value string)
	RemoveAttribute(n Node, name string)
	// SetStyleProperty sets one style sub-property; an empty value clears it.
	SetStyleProperty(n Node, name, value string)

	AddEventListener(n Node, event string, fn Listener) ListenerHandle
	RemoveEventListener(n Node, event string, h ListenerHandle)

	// InsertChild inserts child before index; index == ChildCount appends.
	InsertChild(parent, child Node, index int) error
	RemoveChildAt(parent Node, index int) error
	ReplaceChildAt(parent Node, index int, child Node) error
	// ChildAt returns nil when index is out of range.
	ChildAt(parent Node, index int) Node
	ChildCount(parent Node) int
}

// RecordKind classifies an observed mutation.
type RecordKind uint8

const (
	RecordChildList RecordKind = iota + 1
	RecordAttributes
	RecordCharacterData
)

// String returns the string representation of the RecordKind.
func (k RecordKind) String() string {
	switch k {
	case RecordChildList:
		return "childList"
	case RecordAttributes:
		return "attributes"
	case RecordCharacterData:
		return "characterData"
	default:
		return "unknown"
	}
}

// Record describes one mutation inside an observed subtree.
type Record struct {
	Kind   RecordKind
	Target Node
	Name   string // attribute or style property name, if any
}

// Observer is implemented by surfaces that can report mutations inside a
// subtree. Records are delivered for every mutation, including the ones the
// engine performs itself; callers filter their own writes.
type Observer interface {
	Observe(root Node, fn func(Record)) (cancel func())
}

// FocusManager is implemented by surfaces with a focus model.
type FocusManager interface {
	ActiveElement() Node
	Focus(n Node)
	Blur()
	// Selection returns the text selection range of n, if it has one.
	Selection(n Node) (start, end int, ok bool)
	SetSelection(n Node, start, end int)
}

// Scroller is implemented by surfaces with scrollable nodes.
type Scroller interface {
	ScrollOffset(n Node) (x, y int)
	SetScrollOffset(n Node, x, y int)
}
