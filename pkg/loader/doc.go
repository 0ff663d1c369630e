// Package loader resolves symbolic component names to renderers.
//
// A Loader maps names to Locators. Resolving a name runs its locator once
// and caches the renderer; concurrent callers share the same Future. A
// failed fetch is never cached, so a later Resolve retries, and
// re-registering a name drops whatever was cached for it.
//
//	l := loader.New()
//	l.Register("Card", loader.File("components/card.yaml"))
//	l.Register("Chart", loader.Func(chart.Render))
//
//	render, err := l.Load(ctx, "Card")
//
// Locators that fetch bytes (File, HTTP, S3) accept two template formats: the
// binary format written by protocol.EncodeTemplate and a YAML node tree:
//
//	tag: div
//	props:
//	  class: card
//	  style: {color: "{{color}}"}
//	children:
//	  - tag: h2
//	    children: ["{{title}}"]
//	  - tag: slot
//
// Text and string attribute values substitute {{name}} with the prop of that
// name. A slot element is replaced by the children passed to the component.
package loader
