package protocol

import (
	"fmt"

	rerrors "github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
)

// EncodeOps serializes a batch of host operations.
//
// Per op: [kind][seq: uvarint][node: uvarint][parent: uvarint][index: svarint]
// [name: len-prefixed][value: len-prefixed]
func EncodeOps(ops []host.Op) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(len(ops)))
	for _, op := range ops {
		e.WriteByte(byte(op.Kind))
		e.WriteUvarint(op.Seq)
		e.WriteUvarint(uint64(op.Node))
		e.WriteUvarint(uint64(op.Parent))
		e.WriteSvarint(int64(op.Index))
		e.WriteString(op.Name)
		e.WriteString(op.Value)
	}
	return e.Bytes()
}

// DecodeOps restores a batch written by EncodeOps.
func DecodeOps(data []byte) ([]host.Op, error) {
	ops, err := decodeOps(NewDecoder(data))
	if err != nil {
		return nil, rerrors.New("P001").WithDetail("decode ops").Wrap(err)
	}
	return ops, nil
}

func decodeOps(d *Decoder) ([]host.Op, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	ops := make([]host.Op, count)
	for i := range ops {
		kind, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		if host.OpKind(kind).String() == "Unknown" {
			return nil, fmt.Errorf("protocol: unknown op 0x%02x", kind)
		}
		seq, err := d.ReadUvarint()
		if err != nil {
			return nil, err
		}
		node, err := d.ReadUvarint()
		if err != nil {
			return nil, err
		}
		parent, err := d.ReadUvarint()
		if err != nil {
			return nil, err
		}
		index, err := d.ReadSvarint()
		if err != nil {
			return nil, err
		}
		name, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		value, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		ops[i] = host.Op{
			Seq:    seq,
			Kind:   host.OpKind(kind),
			Node:   host.ID(node),
			Parent: host.ID(parent),
			Index:  int(index),
			Name:   name,
			Value:  value,
		}
	}
	if !d.EOF() {
		return nil, ErrTrailingData
	}
	return ops, nil
}

// EventMessage asks the surface to dispatch an event on a node.
type EventMessage struct {
	Target host.ID
	Type   string
	Detail map[string]any
}

// EncodeEvent serializes an event message.
func EncodeEvent(m EventMessage) ([]byte, error) {
	e := NewEncoder()
	e.WriteUvarint(uint64(m.Target))
	e.WriteString(m.Type)
	if err := WriteDetail(e, m.Detail); err != nil {
		return nil, rerrors.New("P001").WithDetail("encode event").Wrap(err)
	}
	return e.Bytes(), nil
}

// DecodeEvent restores an event message written by EncodeEvent.
func DecodeEvent(data []byte) (EventMessage, error) {
	d := NewDecoder(data)
	var m EventMessage
	target, err := d.ReadUvarint()
	if err == nil {
		m.Target = host.ID(target)
		m.Type, err = d.ReadString()
	}
	if err == nil {
		m.Detail, err = ReadDetail(d)
	}
	if err == nil && m.Type == "" {
		err = fmt.Errorf("protocol: empty event type")
	}
	if err != nil {
		return EventMessage{}, rerrors.New("P001").WithDetail("decode event").Wrap(err)
	}
	return m, nil
}

// Snapshot is the full content of a mirrored root. Ops with a Seq up to
// and including Seq are already part of HTML.
type Snapshot struct {
	Root host.ID
	Seq  uint64
	HTML string
}

// EncodeSnapshot serializes a snapshot.
func EncodeSnapshot(s Snapshot) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(s.Root))
	e.WriteUvarint(s.Seq)
	e.WriteString(s.HTML)
	return e.Bytes()
}

// DecodeSnapshot restores a snapshot written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	d := NewDecoder(data)
	root, err := d.ReadUvarint()
	if err != nil {
		return Snapshot{}, rerrors.New("P001").WithDetail("decode snapshot").Wrap(err)
	}
	seq, err := d.ReadUvarint()
	if err != nil {
		return Snapshot{}, rerrors.New("P001").WithDetail("decode snapshot").Wrap(err)
	}
	html, err := d.ReadString()
	if err != nil {
		return Snapshot{}, rerrors.New("P001").WithDetail("decode snapshot").Wrap(err)
	}
	return Snapshot{Root: host.ID(root), Seq: seq, HTML: html}, nil
}
