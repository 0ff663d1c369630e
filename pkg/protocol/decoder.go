package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Limits applied to counts and lengths read from untrusted input.
const (
	// DefaultMaxAllocation caps a single string (4MB).
	DefaultMaxAllocation = 4 * 1024 * 1024

	// MaxCollectionCount caps the item count of one collection.
	MaxCollectionCount = 100_000
)

// Decoding errors, matched with errors.Is.
var (
	ErrVarintOverflow     = errors.New("protocol: varint overflow")
	ErrInvalidBool        = errors.New("protocol: invalid boolean value")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
)

// Decoder reads a message written by Encoder. Reads past the end of the
// input fail with io.ErrUnexpectedEOF.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) remaining() int { return len(d.buf) - d.pos }

// EOF reports whether the whole input has been read.
func (d *Decoder) EOF() bool { return d.pos >= len(d.buf) }

// take consumes n bytes.
func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadByte reads one byte.
func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes reads n bytes. The result aliases the input.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	return d.take(n)
}

// ReadUvarint reads a base-128 varint.
func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	switch {
	case n == 0:
		return 0, io.ErrUnexpectedEOF
	case n < 0:
		return 0, ErrVarintOverflow
	}
	d.pos += n
	return v, nil
}

// ReadSvarint reads a zigzag encoded varint.
func (d *Decoder) ReadSvarint() (int64, error) {
	v, n := binary.Varint(d.buf[d.pos:])
	switch {
	case n == 0:
		return 0, io.ErrUnexpectedEOF
	case n < 0:
		return 0, ErrVarintOverflow
	}
	d.pos += n
	return v, nil
}

// ReadString reads a length-prefixed string.
func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if length > uint64(d.remaining()) {
		return "", io.ErrUnexpectedEOF
	}
	if length > DefaultMaxAllocation {
		return "", ErrAllocationTooLarge
	}
	b, _ := d.take(int(length))
	return string(b), nil
}

// ReadBool reads a byte written by WriteBool. Anything other than 0x00 or
// 0x01 is ErrInvalidBool.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, ErrInvalidBool
	}
	return b == 1, nil
}

// ReadUint32 reads a big-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadFloat64 reads a float written by WriteFloat64.
func (d *Decoder) ReadFloat64() (float64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadCollectionCount reads an item count. Every item takes at least one
// byte, so a count above the remaining input is rejected before any
// allocation.
func (d *Decoder) ReadCollectionCount() (int, error) {
	count, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if count > MaxCollectionCount {
		return 0, ErrCollectionTooLarge
	}
	if count > uint64(d.remaining()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(count), nil
}
