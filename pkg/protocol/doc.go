// Package protocol implements the compact binary encodings used by retain.
//
// Three payloads share one set of primitives (varints, ZigZag signed
// integers, length-prefixed strings):
//
//   - Templates: a node tree serialized ahead of time and loaded by a
//     component locator (".rtpl" files). A template starts with the magic
//     "RTPL" and a version byte.
//   - Placeholder payloads: the props and children of a named component
//     whose code is not loaded yet. Handlers never enter the payload; the
//     caller keeps them on the side.
//   - Mirror frames: a snapshot of the mirrored root (its id, the Seq of
//     the last op it contains, and its HTML),
//     host operations streamed to a remote viewer, and the events it sends
//     back.
//
// # Scalars
//
// Prop values are tagged:
//
//	0x00 string   [len-prefixed]
//	0x01 bool     [1 byte]
//	0x02 integer  [svarint]
//	0x03 float    [8 bytes IEEE 754, big-endian]
//	0x04 nil
//	0x05 style    [count][key, value]...
//
// # Frames
//
// Mirror messages are framed with a 5-byte header:
//
//	┌─────────────┬───────────────────────────────┐
//	│ Frame Type  │ Payload Length                │
//	│ (1 byte)    │ (4 bytes, big-endian)         │
//	└─────────────┴───────────────────────────────┘
//
// # Limits
//
// Decoders bound allocation sizes, collection counts and nesting depth so a
// malformed or hostile payload fails with an error instead of exhausting
// memory or the stack.
package protocol
