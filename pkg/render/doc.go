// Package render drives render passes against mount roots.
//
// A Driver owns every mount root it renders into. Each root moves through
// three states:
//
//	Unmounted ──Render──▶ FirstPaint ──▶ Committed ──Render──▶ Committed
//	    ▲                                    │
//	    └──── external mutation / failed ────┘
//	          resolution
//
// A first paint clears the root and builds the tree from scratch. Later
// passes reconcile the new tree against the committed one. When the surface
// reports a mutation the driver did not make, the committed tree is no
// longer trusted and the next pass is a first paint again.
//
// Named components are resolved through the Loader given with WithLoader.
// By default a pass waits for every name; a failure replaces the whole root
// with an error message. With WithProgressive(true) unresolved names render
// as loading placeholders, resolution continues in the background and the
// root is rendered again once it settles.
//
//	d := render.New(surface, render.WithLoader(l))
//	unmount := d.Mount(ctx, root, view, store)
//	defer unmount()
//
// Render never returns an error. Problems are logged as coded diagnostics
// and, where the spot is visible, rendered inline.
package render
