// Package retain is a retained-mode UI reconciliation engine.
//
// Application code describes the desired UI as a tree of virtual nodes
// (package vdom). The render driver (package render) expands component
// nodes, resolving named components through a loader (package loader), and
// reconciles the result against what it committed before, applying the
// minimal set of mutations to a host surface (package host). A state store
// (package state) batches updates onto frame ticks and re-renders mounted
// views. The mirror server (package mirror) streams a memory surface to
// remote viewers.
//
// App wires all of this from a retain.json or retain.yaml file:
//
//	cfg, err := retain.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := retain.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//	log.Fatal(app.ListenAndServe(ctx))
package retain
