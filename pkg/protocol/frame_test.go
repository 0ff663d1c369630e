package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/retain/pkg/host"
)

func TestFrameTypeString(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameOps, "Ops"},
		{FrameSnapshot, "Snapshot"},
		{FrameEvent, "Event"},
		{FrameError, "Error"},
		{FrameType(0xFF), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("FrameType(%d).String() = %q, want %q", tt.ft, got, tt.want)
		}
	}
}

func TestFrameEncodeDecode(t *testing.T) {
	f := NewFrame(FrameSnapshot, []byte("<p>hi</p>"))
	data := f.Encode()

	if len(data) != FrameHeaderSize+9 {
		t.Fatalf("encoded length = %d", len(data))
	}
	if data[0] != byte(FrameSnapshot) {
		t.Errorf("type byte = %x", data[0])
	}

	got, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Type != FrameSnapshot || string(got.Payload) != "<p>hi</p>" {
		t.Errorf("frame = %+v", got)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	valid := NewFrame(FrameOps, []byte{1, 2}).Encode()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, io.ErrUnexpectedEOF},
		{"short header", valid[:3], io.ErrUnexpectedEOF},
		{"short payload", valid[:len(valid)-1], io.ErrUnexpectedEOF},
		{"bad type", []byte{0x7F, 0, 0, 0, 0}, ErrInvalidFrameType},
		{"too large", []byte{byte(FrameOps), 0xFF, 0xFF, 0xFF, 0xFF}, ErrFrameTooLarge},
		{"trailing", append(append([]byte(nil), valid...), 0), ErrTrailingData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	frames := []*Frame{
		NewFrame(FrameOps, []byte{0}),
		NewFrame(FrameError, []byte("boom")),
		NewFrame(FrameEvent, nil),
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for _, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if got.Type != want.Type || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame = %+v, want %+v", got, want)
		}
	}
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("ReadFrame at end = %v, want io.EOF", err)
	}
}

func TestOpsRoundTrip(t *testing.T) {
	ops := []host.Op{
		{Seq: 1, Kind: host.OpCreateElement, Node: 7, Name: "svg", Value: "http://www.w3.org/2000/svg"},
		{Kind: host.OpSetAttr, Node: 7, Name: "class", Value: "chart"},
		{Kind: host.OpInsertChild, Node: 7, Parent: 1, Index: 3},
		{Kind: host.OpRemoveChild, Node: 9, Parent: 1, Index: 0},
		{Seq: 300, Kind: host.OpSetText, Node: 12, Value: "héllo"},
	}

	got, err := DecodeOps(EncodeOps(ops))
	if err != nil {
		t.Fatalf("DecodeOps: %v", err)
	}
	if diff := cmp.Diff(ops, got); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}

	if _, err := DecodeOps([]byte{0x01, 0x7F}); err == nil {
		t.Error("expected error for unknown op kind")
	}
}

func TestEventRoundTrip(t *testing.T) {
	msg := EventMessage{
		Target: 42,
		Type:   "input",
		Detail: map[string]any{"value": "abc", "x": 3, "shift": true},
	}
	data, err := EncodeEvent(msg)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	if _, err := EncodeEvent(EventMessage{Target: 1, Type: "x", Detail: map[string]any{"bad": struct{}{}}}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("unsupported detail: err = %v", err)
	}
	if _, err := DecodeEvent([]byte{0x01, 0x00, 0x00}); err == nil {
		t.Error("expected error for empty event type")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	in := Snapshot{Root: 7, Seq: 42, HTML: `<div class="a">x</div>`}
	out, err := DecodeSnapshot(EncodeSnapshot(in))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if out != in {
		t.Errorf("DecodeSnapshot = %+v, want %+v", out, in)
	}
	if _, err := DecodeSnapshot([]byte{0x07}); err == nil {
		t.Error("truncated snapshot decoded without error")
	}
}
