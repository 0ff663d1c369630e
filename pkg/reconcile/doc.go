// Package reconcile applies virtual trees to a host surface.
//
// A Patcher owns the host subtree below one mount root. It creates host
// nodes for new positions (Materialize), synchronizes props on reused nodes
// (SyncProps) and walks two trees side by side, replacing, inserting and
// removing children strictly by index (Reconcile). Keys only decide whether
// a position is reused; there is no move detection, so reordering a keyed
// list replaces every shifted element.
//
// Event handlers are bound through one host listener per (node, event). The
// listener dispatches to the handler of the most recent sync, so a new
// closure on every render costs no host mutation.
//
// A Patcher is not safe for concurrent rendering; the render driver
// serializes passes per mount root. Event dispatch may run concurrently with
// a pass.
package reconcile
