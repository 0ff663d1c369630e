package protocol

import (
	"errors"
	"fmt"
	"sort"

	rerrors "github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/vdom"
)

// Scalar tags.
const (
	tagString byte = 0x00
	tagBool   byte = 0x01
	tagInt    byte = 0x02
	tagFloat  byte = 0x03
	tagNil    byte = 0x04
	tagStyle  byte = 0x05
)

// ErrUnsupportedValue is returned when a prop value has no wire form.
var ErrUnsupportedValue = errors.New("protocol: unsupported value type")

// WriteValue appends a tagged scalar.
func WriteValue(e *Encoder, v any) error {
	switch val := v.(type) {
	case nil:
		e.WriteByte(tagNil)
	case string:
		e.WriteByte(tagString)
		e.WriteString(val)
	case bool:
		e.WriteByte(tagBool)
		e.WriteBool(val)
	case int:
		e.WriteByte(tagInt)
		e.WriteSvarint(int64(val))
	case int8:
		e.WriteByte(tagInt)
		e.WriteSvarint(int64(val))
	case int16:
		e.WriteByte(tagInt)
		e.WriteSvarint(int64(val))
	case int32:
		e.WriteByte(tagInt)
		e.WriteSvarint(int64(val))
	case int64:
		e.WriteByte(tagInt)
		e.WriteSvarint(val)
	case float32:
		e.WriteByte(tagFloat)
		e.WriteFloat64(float64(val))
	case float64:
		e.WriteByte(tagFloat)
		e.WriteFloat64(val)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// ReadValue reads a tagged scalar. Integers decode as int.
func ReadValue(d *Decoder) (any, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	return readTagged(d, tag)
}

func readTagged(d *Decoder, tag byte) (any, error) {
	switch tag {
	case tagNil:
		return nil, nil
	case tagString:
		return d.ReadString()
	case tagBool:
		return d.ReadBool()
	case tagInt:
		v, err := d.ReadSvarint()
		return int(v), err
	case tagFloat:
		return d.ReadFloat64()
	default:
		return nil, fmt.Errorf("%w: tag 0x%02x", ErrUnsupportedValue, tag)
	}
}

// writeProps appends the serializable props in insertion order. Event
// handlers and refs are skipped.
func writeProps(e *Encoder, props vdom.Props) error {
	names := make([]string, 0, props.Len())
	props.Each(func(name string, v vdom.PropValue) {
		if v.Kind == vdom.PropScalar || v.Kind == vdom.PropStyle {
			names = append(names, name)
		}
	})

	e.WriteUvarint(uint64(len(names)))
	for _, name := range names {
		v, _ := props.Get(name)
		e.WriteString(name)
		if v.Kind == vdom.PropStyle {
			keys := v.Style.Keys()
			e.WriteByte(tagStyle)
			e.WriteUvarint(uint64(len(keys)))
			for _, k := range keys {
				e.WriteString(k)
				e.WriteString(v.Style[k])
			}
			continue
		}
		if err := WriteValue(e, v.Scalar); err != nil {
			return fmt.Errorf("prop %q: %w", name, err)
		}
	}
	return nil
}

func readProps(d *Decoder) ([]vdom.Attr, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	attrs := make([]vdom.Attr, 0, count)
	for i := 0; i < count; i++ {
		name, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		tag, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		if tag == tagStyle {
			n, err := d.ReadCollectionCount()
			if err != nil {
				return nil, err
			}
			style := make(vdom.Style, n)
			for j := 0; j < n; j++ {
				k, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				if style[k], err = d.ReadString(); err != nil {
					return nil, err
				}
			}
			attrs = append(attrs, vdom.Attr{Key: name, Value: vdom.StyleValue(style)})
			continue
		}
		v, err := readTagged(d, tag)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, vdom.Attr{Key: name, Value: vdom.ScalarValue(v)})
	}
	return attrs, nil
}

// EncodeProps serializes the declarative part of props. Handlers and refs
// are dropped; callers that need them keep them on the side.
func EncodeProps(props vdom.Props) ([]byte, error) {
	e := NewEncoder()
	if err := writeProps(e, props); err != nil {
		return nil, rerrors.New("P001").WithDetail("encode props").Wrap(err)
	}
	return e.Bytes(), nil
}

// DecodeProps restores props written by EncodeProps.
func DecodeProps(data []byte) (vdom.Props, error) {
	d := NewDecoder(data)
	attrs, err := readProps(d)
	if err != nil {
		return vdom.Props{}, rerrors.New("P001").WithDetail("decode props").Wrap(err)
	}
	return vdom.NewProps(attrs...), nil
}

// WriteDetail appends an event detail map with keys in sorted order.
func WriteDetail(e *Encoder, detail map[string]any) error {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.WriteUvarint(uint64(len(keys)))
	for _, k := range keys {
		e.WriteString(k)
		if err := WriteValue(e, detail[k]); err != nil {
			return fmt.Errorf("detail %q: %w", k, err)
		}
	}
	return nil
}

// ReadDetail reads an event detail map. An empty map decodes as nil.
func ReadDetail(d *Decoder) (map[string]any, error) {
	n, err := d.ReadCollectionCount()
	if err != nil || n == 0 {
		return nil, err
	}
	detail := make(map[string]any, n)
	for i := 0; i < n; i++ {
		k, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		if detail[k], err = ReadValue(d); err != nil {
			return nil, err
		}
	}
	return detail, nil
}
