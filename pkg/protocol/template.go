package protocol

import (
	"bytes"
	"errors"
	"fmt"

	rerrors "github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/vdom"
)

// TemplateMagic prefixes every encoded template.
var TemplateMagic = []byte("RTPL")

// TemplateVersion is the current template format version.
const TemplateVersion byte = 1

// Template errors.
var (
	ErrBadMagic        = errors.New("protocol: not a template")
	ErrBadVersion      = errors.New("protocol: unsupported template version")
	ErrNotSerializable = errors.New("protocol: node cannot be serialized")
	ErrTrailingData    = errors.New("protocol: trailing data")
)

// EncodeTemplate serializes a node tree as a template. Only elements, text
// and named components can be serialized.
func EncodeTemplate(root *vdom.VNode) ([]byte, error) {
	e := NewEncoder()
	e.WriteBytes(TemplateMagic)
	e.WriteByte(TemplateVersion)
	if err := writeNode(e, root); err != nil {
		return nil, rerrors.New("P001").WithDetail("encode template").Wrap(err)
	}
	return e.Bytes(), nil
}

// DecodeTemplate restores a tree written by EncodeTemplate.
func DecodeTemplate(data []byte) (*vdom.VNode, error) {
	if !bytes.HasPrefix(data, TemplateMagic) {
		return nil, rerrors.New("P001").Wrap(ErrBadMagic)
	}
	d := NewDecoder(data[len(TemplateMagic):])
	version, err := d.ReadByte()
	if err != nil {
		return nil, rerrors.New("P001").Wrap(err)
	}
	if version != TemplateVersion {
		return nil, rerrors.New("P001").WithDetailf("version %d", version).Wrap(ErrBadVersion)
	}
	root, err := readNode(d, newDepthContext(MaxTreeDepth))
	if err == nil && !d.EOF() {
		err = ErrTrailingData
	}
	if err != nil {
		return nil, rerrors.New("P001").WithDetail("decode template").Wrap(err)
	}
	return root, nil
}

// IsTemplate reports whether data starts with the template magic.
func IsTemplate(data []byte) bool {
	return bytes.HasPrefix(data, TemplateMagic)
}

// EncodeChildren serializes a child list, as carried by a placeholder.
func EncodeChildren(children []*vdom.VNode) ([]byte, error) {
	e := NewEncoder()
	if err := writeChildren(e, children); err != nil {
		return nil, rerrors.New("P001").WithDetail("encode children").Wrap(err)
	}
	return e.Bytes(), nil
}

// DecodeChildren restores a child list written by EncodeChildren.
func DecodeChildren(data []byte) ([]*vdom.VNode, error) {
	d := NewDecoder(data)
	children, err := readChildren(d, newDepthContext(MaxTreeDepth))
	if err == nil && !d.EOF() {
		err = ErrTrailingData
	}
	if err != nil {
		return nil, rerrors.New("P001").WithDetail("decode children").Wrap(err)
	}
	return children, nil
}

func writeNode(e *Encoder, node *vdom.VNode) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrNotSerializable)
	}
	switch node.Kind {
	case vdom.KindText:
		e.WriteByte(byte(vdom.KindText))
		e.WriteBool(node.Numeric)
		e.WriteString(node.Text)
		return nil

	case vdom.KindElement:
		e.WriteByte(byte(vdom.KindElement))
		e.WriteString(node.Tag)

	case vdom.KindComponent:
		if node.Name == "" {
			return fmt.Errorf("%w: anonymous component", ErrNotSerializable)
		}
		e.WriteByte(byte(vdom.KindComponent))
		e.WriteString(node.Name)

	default:
		return fmt.Errorf("%w: %s node", ErrNotSerializable, node.Kind)
	}

	if err := writeProps(e, node.Props); err != nil {
		return err
	}
	return writeChildren(e, node.Children)
}

func writeChildren(e *Encoder, children []*vdom.VNode) error {
	e.WriteUvarint(uint64(len(children)))
	for _, child := range children {
		if err := writeNode(e, child); err != nil {
			return err
		}
	}
	return nil
}

func readNode(d *Decoder, dc *depthContext) (*vdom.VNode, error) {
	if err := dc.enter(); err != nil {
		return nil, err
	}
	defer dc.leave()

	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}

	switch vdom.VKind(kind) {
	case vdom.KindText:
		numeric, err := d.ReadBool()
		if err != nil {
			return nil, err
		}
		text, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		node := vdom.Text(text)
		node.Numeric = numeric
		return node, nil

	case vdom.KindElement, vdom.KindComponent:
		name, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("protocol: empty %s name", vdom.VKind(kind))
		}
		attrs, err := readProps(d)
		if err != nil {
			return nil, err
		}
		children, err := readChildren(d, dc)
		if err != nil {
			return nil, err
		}
		if vdom.VKind(kind) == vdom.KindComponent {
			return vdom.Named(name, attrs, children), nil
		}
		return vdom.El(name, attrs, children), nil

	default:
		return nil, fmt.Errorf("protocol: unknown node kind 0x%02x", kind)
	}
}

func readChildren(d *Decoder, dc *depthContext) ([]*vdom.VNode, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	children := make([]*vdom.VNode, 0, count)
	for i := 0; i < count; i++ {
		child, err := readNode(d, dc)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
