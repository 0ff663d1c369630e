// Package state holds application state and coalesces updates into
// scheduling ticks.
//
// A Store owns one Record. Updates are shallow merges of partial records:
//
//	store := state.NewStore(state.Record{"count": 0}, sched)
//	unsubscribe := store.Subscribe(func(r state.Record) {
//	    driver.Render(ctx, root, view(r))
//	})
//	defer unsubscribe()
//
//	store.SetBatched(state.Record{"count": 1})
//	store.SetBatched(state.Record{"label": "one"})
//	// one notification on the next tick with both keys applied
//
// SetImmediate bypasses the queue and notifies on the caller's goroutine.
//
// Schedulers decide when a flush runs. FrameScheduler runs queued work on a
// fixed interval, ManualScheduler runs it when Tick is called.
package state
