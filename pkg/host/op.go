package host

// OpKind is the type of a recorded host operation.
type OpKind uint8

const (
	OpCreateElement  OpKind = 0x01
	OpCreateText     OpKind = 0x02
	OpSetText        OpKind = 0x03
	OpSetAttr        OpKind = 0x04
	OpRemoveAttr     OpKind = 0x05
	OpSetStyle       OpKind = 0x06
	OpAddListener    OpKind = 0x07
	OpRemoveListener OpKind = 0x08
	OpInsertChild    OpKind = 0x09
	OpRemoveChild    OpKind = 0x0A
	OpReplaceChild   OpKind = 0x0B
)

// String returns the string representation of the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpCreateElement:
		return "CreateElement"
	case OpCreateText:
		return "CreateText"
	case OpSetText:
		return "SetText"
	case OpSetAttr:
		return "SetAttr"
	case OpRemoveAttr:
		return "RemoveAttr"
	case OpSetStyle:
		return "SetStyle"
	case OpAddListener:
		return "AddListener"
	case OpRemoveListener:
		return "RemoveListener"
	case OpInsertChild:
		return "InsertChild"
	case OpRemoveChild:
		return "RemoveChild"
	case OpReplaceChild:
		return "ReplaceChild"
	default:
		return "Unknown"
	}
}

// IsCreate reports whether the op created a new host node.
func (k OpKind) IsCreate() bool {
	return k == OpCreateElement || k == OpCreateText
}

// Op is one operation performed on a Memory surface.
type Op struct {
	Seq    uint64 // position in the surface's op order, starting at 1
	Kind   OpKind
	Node   ID     // target (or created / inserted child) node
	Parent ID     // parent for child-list ops
	Index  int    // child index for child-list ops
	Name   string // tag, attribute, style property or event name
	Value  string // attribute/style/text value, or namespace for CreateElement
}

// CountOps returns how many ops of the given kind ops contains.
func CountOps(ops []Op, kind OpKind) int {
	n := 0
	for _, op := range ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
