// Package host defines the live display surface that retain drives.
//
// A Surface is a tree of mutable nodes that carry attributes, style
// properties and event listeners. The engine only ever talks to a surface
// through the Surface interface: it creates nodes, sets and removes
// attributes, binds listeners and inserts, removes or replaces children by
// index. Surfaces that can also report mutations made by someone else
// implement Observer; the render driver uses it to detect out-of-band edits.
//
// # Memory
//
// Memory is a complete in-process Surface. It records every operation in an
// op log (handy for asserting exactly which host writes a render produced),
// tracks focus, selection and scroll offsets, dispatches events to bound
// listeners and serializes any subtree to HTML:
//
//	m := host.NewMemory()
//	root, _ := m.CreateElement("main", "")
//	...
//	fmt.Println(m.HTML(root))
//
// Memory also feeds pkg/mirror, which streams its op log to remote viewers.
package host
