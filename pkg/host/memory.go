package host

import (
	"fmt"
	"strings"
	"sync"
)

type nodeKind uint8

const (
	elementNode nodeKind = iota
	textNode
)

type listenerEntry struct {
	handle ListenerHandle
	fn     Listener
}

type memNode struct {
	id        ID
	kind      nodeKind
	tag       string
	namespace string
	text      string
	attrs     map[string]string
	style     map[string]string
	listeners map[string][]listenerEntry
	parent    *memNode
	children  []*memNode

	selStart, selEnd int
	hasSel           bool
	scrollX, scrollY int

	// released is set on nodes dropped from the id index after removal.
	released bool
}

func (n *memNode) ID() ID { return n.id }

type observer struct {
	id   uint64
	root *memNode
	fn   func(Record)
}

// DefaultOpLogLimit is the number of ops a Memory keeps in its log unless
// WithOpLog says otherwise.
const DefaultOpLogLimit = 4096

// Memory is an in-process Surface. It is safe for concurrent use; observer
// and op callbacks run after the surface lock is released.
//
// Nodes removed or replaced out of the tree leave the id index, so Lookup
// no longer finds them; inserting one again restores it.
type Memory struct {
	mu         sync.Mutex
	nextID     ID
	nextHandle ListenerHandle
	seq        uint64
	nodes      map[ID]*memNode
	ops        []Op
	opLimit    int
	active     *memNode

	observers  []*observer
	nextObsID  uint64
	opHandlers []func(Op)
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithOpLog keeps the last limit ops for Ops. Zero disables the log and a
// negative limit keeps every op. OnOp handlers see every op either way.
func WithOpLog(limit int) MemoryOption {
	return func(m *Memory) {
		m.opLimit = limit
	}
}

// NewMemory creates an empty Memory surface.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		nodes:   make(map[ID]*memNode),
		opLimit: DefaultOpLogLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pending collects notifications produced while the lock is held.
type pending struct {
	ops     []Op
	records []Record
	targets []*observer
}

func (m *Memory) record(p *pending, op Op, rec *Record, subject *memNode) {
	m.seq++
	op.Seq = m.seq
	m.logOp(op)
	p.ops = append(p.ops, op)
	if rec == nil {
		return
	}
	for _, o := range m.observers {
		if isWithin(subject, o.root) {
			p.records = append(p.records, *rec)
			p.targets = append(p.targets, o)
		}
	}
}

// logOp appends op to the log. A bounded log is compacted once it holds
// twice its limit, so appends stay amortised O(1).
func (m *Memory) logOp(op Op) {
	switch {
	case m.opLimit == 0:
		return
	case m.opLimit > 0 && len(m.ops) >= 2*m.opLimit:
		m.ops = append(make([]Op, 0, 2*m.opLimit), m.ops[len(m.ops)-m.opLimit+1:]...)
	}
	m.ops = append(m.ops, op)
}

// release drops n and its descendants from the id index. Caller holds the
// lock.
func (m *Memory) release(n *memNode) {
	n.released = true
	delete(m.nodes, n.id)
	for _, c := range n.children {
		m.release(c)
	}
}

// retain puts a released subtree back into the id index. Caller holds the
// lock.
func (m *Memory) retain(n *memNode) {
	if !n.released {
		return
	}
	n.released = false
	m.nodes[n.id] = n
	for _, c := range n.children {
		m.retain(c)
	}
}

func (m *Memory) flush(p *pending) {
	if len(p.ops) > 0 {
		m.mu.Lock()
		handlers := append([]func(Op){}, m.opHandlers...)
		m.mu.Unlock()
		for _, op := range p.ops {
			for _, h := range handlers {
				h(op)
			}
		}
	}
	for i, rec := range p.records {
		p.targets[i].fn(rec)
	}
}

func isWithin(n, root *memNode) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == root {
			return true
		}
	}
	return false
}

func (m *Memory) lookup(n Node) *memNode {
	if n == nil {
		return nil
	}
	if mn, ok := n.(*memNode); ok {
		return mn
	}
	return m.nodes[n.ID()]
}

// Lookup returns the node with the given id, or nil.
func (m *Memory) Lookup(id ID) Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		return n
	}
	return nil
}

func (m *Memory) newNode(kind nodeKind) *memNode {
	m.nextID++
	n := &memNode{id: m.nextID, kind: kind}
	m.nodes[n.id] = n
	return n
}

// CreateElement implements Surface. Tags containing whitespace or markup
// characters are rejected.
func (m *Memory) CreateElement(tag, ns string) (Node, error) {
	if tag == "" || strings.ContainsAny(tag, " \t\n<>\"'/=") {
		return nil, fmt.Errorf("host: invalid tag name %q", tag)
	}
	var p pending
	m.mu.Lock()
	n := m.newNode(elementNode)
	n.tag = tag
	n.namespace = ns
	n.attrs = make(map[string]string)
	n.style = make(map[string]string)
	n.listeners = make(map[string][]listenerEntry)
	m.record(&p, Op{Kind: OpCreateElement, Node: n.id, Name: tag, Value: ns}, nil, nil)
	m.mu.Unlock()
	m.flush(&p)
	return n, nil
}

// CreateText implements Surface.
func (m *Memory) CreateText(value string) Node {
	var p pending
	m.mu.Lock()
	n := m.newNode(textNode)
	n.text = value
	m.record(&p, Op{Kind: OpCreateText, Node: n.id, Value: value}, nil, nil)
	m.mu.Unlock()
	m.flush(&p)
	return n
}

// SetText implements Surface.
func (m *Memory) SetText(n Node, value string) {
	var p pending
	m.mu.Lock()
	mn := m.lookup(n)
	if mn != nil && mn.kind == textNode {
		mn.text = value
		m.record(&p, Op{Kind: OpSetText, Node: mn.id, Value: value},
			&Record{Kind: RecordCharacterData, Target: mn}, mn)
	}
	m.mu.Unlock()
	m.flush(&p)
}

// SetAttribute implements Surface.
func (m *Memory) SetAttribute(n Node, name, value string) {
	var p pending
	m.mu.Lock()
	mn := m.lookup(n)
	if mn != nil && mn.kind == elementNode {
		mn.attrs[name] = value
		m.record(&p, Op{Kind: OpSetAttr, Node: mn.id, Name: name, Value: value},
			&Record{Kind: RecordAttributes, Target: mn, Name: name}, mn)
	}
	m.mu.Unlock()
	m.flush(&p)
}

// RemoveAttribute implements Surface.
func (m *Memory) RemoveAttribute(n Node, name string) {
	var p pending
	m.mu.Lock()
	mn := m.lookup(n)
	if mn != nil && mn.kind == elementNode {
		if _, ok := mn.attrs[name]; ok {
			delete(mn.attrs, name)
			m.record(&p, Op{Kind: OpRemoveAttr, Node: mn.id, Name: name},
				&Record{Kind: RecordAttributes, Target: mn, Name: name}, mn)
		}
	}
	m.mu.Unlock()
	m.flush(&p)
}

// SetStyleProperty implements Surface.
func (m *Memory) SetStyleProperty(n Node, name, value string) {
	var p pending
	m.mu.Lock()
	mn := m.lookup(n)
	if mn != nil && mn.kind == elementNode {
		if value == "" {
			delete(mn.style, name)
		} else {
			mn.style[name] = value
		}
		m.record(&p, Op{Kind: OpSetStyle, Node: mn.id, Name: name, Value: value},
			&Record{Kind: RecordAttributes, Target: mn, Name: "style"}, mn)
	}
	m.mu.Unlock()
	m.flush(&p)
}

// AddEventListener implements Surface.
func (m *Memory) AddEventListener(n Node, event string, fn Listener) ListenerHandle {
	var p pending
	m.mu.Lock()
	defer func() {
		m.mu.Unlock()
		m.flush(&p)
	}()
	mn := m.lookup(n)
	if mn == nil || mn.kind != elementNode || fn == nil {
		return 0
	}
	m.nextHandle++
	h := m.nextHandle
	mn.listeners[event] = append(mn.listeners[event], listenerEntry{handle: h, fn: fn})
	m.record(&p, Op{Kind: OpAddListener, Node: mn.id, Name: event}, nil, nil)
	return h
}

// RemoveEventListener implements Surface.
func (m *Memory) RemoveEventListener(n Node, event string, h ListenerHandle) {
	var p pending
	m.mu.Lock()
	mn := m.lookup(n)
	if mn != nil && mn.kind == elementNode {
		entries := mn.listeners[event]
		for i, e := range entries {
			if e.handle == h {
				mn.listeners[event] = append(entries[:i:i], entries[i+1:]...)
				if len(mn.listeners[event]) == 0 {
					delete(mn.listeners, event)
				}
				m.record(&p, Op{Kind: OpRemoveListener, Node: mn.id, Name: event}, nil, nil)
				break
			}
		}
	}
	m.mu.Unlock()
	m.flush(&p)
}

// detach removes n from its current parent, if any. Caller holds the lock.
func (m *Memory) detach(p *pending, n *memNode) {
	parent := n.parent
	if parent == nil {
		return
	}
	for i, c := range parent.children {
		if c == n {
			m.removeAt(p, parent, i, false)
			return
		}
	}
}

// removeAt unlinks the child at index. Unless the child is about to be
// re-inserted, its subtree is released.
func (m *Memory) removeAt(p *pending, parent *memNode, index int, release bool) {
	child := parent.children[index]
	parent.children = append(parent.children[:index:index], parent.children[index+1:]...)
	child.parent = nil
	if release {
		m.release(child)
	}
	if m.active != nil && isWithin(m.active, child) {
		m.active = nil
	}
	m.record(p, Op{Kind: OpRemoveChild, Node: child.id, Parent: parent.id, Index: index},
		&Record{Kind: RecordChildList, Target: parent}, parent)
}

// InsertChild implements Surface. A child that already has a parent is moved.
func (m *Memory) InsertChild(parent, child Node, index int) error {
	var p pending
	m.mu.Lock()
	err := m.insertChild(&p, parent, child, index)
	m.mu.Unlock()
	m.flush(&p)
	return err
}

func (m *Memory) insertChild(p *pending, parent, child Node, index int) error {
	pn, cn := m.lookup(parent), m.lookup(child)
	if pn == nil || cn == nil {
		return fmt.Errorf("host: unknown node")
	}
	if pn.kind != elementNode {
		return fmt.Errorf("host: node %d cannot have children", pn.id)
	}
	if isWithin(pn, cn) {
		return fmt.Errorf("host: inserting node %d into its own subtree", cn.id)
	}
	m.detach(p, cn)
	if index < 0 || index > len(pn.children) {
		return fmt.Errorf("host: insert index %d out of range [0,%d]", index, len(pn.children))
	}
	pn.children = append(pn.children, nil)
	copy(pn.children[index+1:], pn.children[index:])
	pn.children[index] = cn
	cn.parent = pn
	m.retain(cn)
	m.record(p, Op{Kind: OpInsertChild, Node: cn.id, Parent: pn.id, Index: index},
		&Record{Kind: RecordChildList, Target: pn}, pn)
	return nil
}

// RemoveChildAt implements Surface.
func (m *Memory) RemoveChildAt(parent Node, index int) error {
	var p pending
	m.mu.Lock()
	pn := m.lookup(parent)
	var err error
	switch {
	case pn == nil:
		err = fmt.Errorf("host: unknown node")
	case index < 0 || index >= len(pn.children):
		err = fmt.Errorf("host: remove index %d out of range [0,%d)", index, len(pn.children))
	default:
		m.removeAt(&p, pn, index, true)
	}
	m.mu.Unlock()
	m.flush(&p)
	return err
}

// ReplaceChildAt implements Surface.
func (m *Memory) ReplaceChildAt(parent Node, index int, child Node) error {
	var p pending
	m.mu.Lock()
	defer func() {
		m.mu.Unlock()
		m.flush(&p)
	}()
	pn, cn := m.lookup(parent), m.lookup(child)
	if pn == nil || cn == nil {
		return fmt.Errorf("host: unknown node")
	}
	if index < 0 || index >= len(pn.children) {
		return fmt.Errorf("host: replace index %d out of range [0,%d)", index, len(pn.children))
	}
	if isWithin(pn, cn) {
		return fmt.Errorf("host: inserting node %d into its own subtree", cn.id)
	}
	old := pn.children[index]
	if old == cn {
		return nil
	}
	if cn.parent != nil {
		m.detach(&p, cn)
		// the detach may have shifted the slot we are replacing
		for i, c := range pn.children {
			if c == old {
				index = i
				break
			}
		}
	}
	old.parent = nil
	if m.active != nil && isWithin(m.active, old) {
		m.active = nil
	}
	m.release(old)
	pn.children[index] = cn
	cn.parent = pn
	m.retain(cn)
	m.record(&p, Op{Kind: OpReplaceChild, Node: cn.id, Parent: pn.id, Index: index},
		&Record{Kind: RecordChildList, Target: pn}, pn)
	return nil
}

// ChildAt implements Surface.
func (m *Memory) ChildAt(parent Node, index int) Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	pn := m.lookup(parent)
	if pn == nil || index < 0 || index >= len(pn.children) {
		return nil
	}
	return pn.children[index]
}

// ChildCount implements Surface.
func (m *Memory) ChildCount(parent Node) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pn := m.lookup(parent)
	if pn == nil {
		return 0
	}
	return len(pn.children)
}

// Observe implements Observer.
func (m *Memory) Observe(root Node, fn func(Record)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rn := m.lookup(root)
	if rn == nil || fn == nil {
		return func() {}
	}
	m.nextObsID++
	o := &observer{id: m.nextObsID, root: rn, fn: fn}
	m.observers = append(m.observers, o)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, existing := range m.observers {
				if existing == o {
					m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// OnOp registers fn to receive every op after it is applied.
func (m *Memory) OnOp(fn func(Op)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opHandlers = append(m.opHandlers, fn)
}

// Ops returns a copy of the op log, oldest first. A bounded log holds only
// the most recent ops.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := m.ops
	if m.opLimit > 0 && len(ops) > m.opLimit {
		ops = ops[len(ops)-m.opLimit:]
	}
	return append([]Op(nil), ops...)
}

// NodeCount returns the number of nodes Lookup can find.
func (m *Memory) NodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// ResetOps clears the op log.
func (m *Memory) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

// Dispatch invokes the listeners bound for event on n and returns how many
// ran. Events do not bubble.
func (m *Memory) Dispatch(n Node, event string, detail map[string]any) int {
	m.mu.Lock()
	mn := m.lookup(n)
	var fns []Listener
	if mn != nil && mn.kind == elementNode {
		for _, e := range mn.listeners[event] {
			fns = append(fns, e.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(Event{Type: event, Target: mn, Detail: detail})
	}
	return len(fns)
}

// Tag returns the tag of an element node, or "" for text nodes.
func (m *Memory) Tag(n Node) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil {
		return mn.tag
	}
	return ""
}

// Namespace returns the namespace an element was created with.
func (m *Memory) Namespace(n Node) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil {
		return mn.namespace
	}
	return ""
}

// IsText reports whether n is a text node.
func (m *Memory) IsText(n Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	return mn != nil && mn.kind == textNode
}

// Text returns the value of a text node.
func (m *Memory) Text(n Node) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil {
		return mn.text
	}
	return ""
}

// Attr returns the value of an attribute.
func (m *Memory) Attr(n Node, name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	if mn == nil || mn.attrs == nil {
		return "", false
	}
	v, ok := mn.attrs[name]
	return v, ok
}

// Attrs returns a copy of all attributes of n.
func (m *Memory) Attrs(n Node) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	if mn := m.lookup(n); mn != nil {
		for k, v := range mn.attrs {
			out[k] = v
		}
	}
	return out
}

// Style returns the value of a style sub-property.
func (m *Memory) Style(n Node, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil && mn.style != nil {
		return mn.style[name]
	}
	return ""
}

// ListenerCount returns how many listeners are bound for event on n.
func (m *Memory) ListenerCount(n Node, event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil && mn.listeners != nil {
		return len(mn.listeners[event])
	}
	return 0
}

// Children returns the children of n.
func (m *Memory) Children(n Node) []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	if mn == nil {
		return nil
	}
	out := make([]Node, len(mn.children))
	for i, c := range mn.children {
		out[i] = c
	}
	return out
}

// Parent returns the parent of n, or nil when detached.
func (m *Memory) Parent(n Node) Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil && mn.parent != nil {
		return mn.parent
	}
	return nil
}

// ActiveElement implements FocusManager.
func (m *Memory) ActiveElement() Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active
}

// Focus implements FocusManager.
func (m *Memory) Focus(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil && mn.kind == elementNode {
		m.active = mn
	}
}

// Blur implements FocusManager.
func (m *Memory) Blur() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

// Selection implements FocusManager.
func (m *Memory) Selection(n Node) (start, end int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	if mn == nil || !mn.hasSel {
		return 0, 0, false
	}
	return mn.selStart, mn.selEnd, true
}

// SetSelection implements FocusManager.
func (m *Memory) SetSelection(n Node, start, end int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil {
		mn.selStart, mn.selEnd, mn.hasSel = start, end, true
	}
}

// ScrollOffset implements Scroller.
func (m *Memory) ScrollOffset(n Node) (x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil {
		return mn.scrollX, mn.scrollY
	}
	return 0, 0
}

// SetScrollOffset implements Scroller.
func (m *Memory) SetScrollOffset(n Node, x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mn := m.lookup(n); mn != nil {
		mn.scrollX, mn.scrollY = x, y
	}
}

var (
	_ Surface      = (*Memory)(nil)
	_ Observer     = (*Memory)(nil)
	_ FocusManager = (*Memory)(nil)
	_ Scroller     = (*Memory)(nil)
)
