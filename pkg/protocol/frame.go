package protocol

import (
	"errors"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 5

	// MaxPayloadSize is the largest accepted frame payload.
	MaxPayloadSize = DefaultMaxAllocation
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameOps      FrameType = 0x01 // Surface → viewer host operations
	FrameSnapshot FrameType = 0x02 // Surface → viewer full HTML of the root
	FrameEvent    FrameType = 0x03 // Viewer → surface event dispatch
	FrameError    FrameType = 0x04 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameOps:
		return "Ops"
	case FrameSnapshot:
		return "Snapshot"
	case FrameEvent:
		return "Event"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is a typed, length-prefixed message.
//
// Wire format (5 bytes header + variable payload):
//
//	┌─────────────┬───────────────────────────────┐
//	│ Frame Type  │ Payload Length                │
//	│ (1 byte)    │ (4 bytes, big-endian)         │
//	└─────────────┴───────────────────────────────┘
//	│  Payload (variable length)                  │
//	└─────────────────────────────────────────────┘
type Frame struct {
	Type    FrameType
	Payload []byte
}

// NewFrame creates a new frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	e := &Encoder{buf: make([]byte, 0, FrameHeaderSize+len(f.Payload))}
	e.WriteByte(byte(f.Type))
	e.WriteUint32(uint32(len(f.Payload)))
	e.WriteBytes(f.Payload)
	return e.Bytes()
}

// DecodeFrame decodes a frame from bytes. data must hold exactly one frame.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	ft, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if FrameType(ft).String() == "Unknown" {
		return nil, ErrInvalidFrameType
	}
	length, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	payload, err := d.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, ErrTrailingData
	}
	return &Frame{Type: FrameType(ft), Payload: append([]byte(nil), payload...)}, nil
}

// ReadFrame reads a complete frame from an io.Reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length, _ := NewDecoder(header[1:]).ReadUint32()
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return &Frame{Type: FrameType(header[0]), Payload: payload}, nil
}

// WriteFrame writes a complete frame to an io.Writer.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}
